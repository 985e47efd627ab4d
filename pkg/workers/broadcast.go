package workers

import (
	"context"
	"time"

	"github.com/cbodonnell/roulette/pkg/events"
	"github.com/cbodonnell/roulette/pkg/log"
	"github.com/cbodonnell/roulette/pkg/messages"
	"github.com/cbodonnell/roulette/pkg/state"
)

// DefaultBroadcastBufferSize is the number of events buffered between the
// game loop and the broadcast worker.
const DefaultBroadcastBufferSize = 256

// Broadcaster sends a message to every connected client.
type Broadcaster interface {
	SendToAll(msg *messages.Message) (int, error)
}

// BroadcastMessageWorker forwards table events to connected clients and
// streams the table state on a fixed interval.
type BroadcastMessageWorker struct {
	broadcaster   Broadcaster
	bus           *events.Bus
	stateManager  state.StateManager
	stateInterval time.Duration
	eventChan     chan events.Event
	sub           *events.Subscription
}

type NewBroadcastMessageWorkerOptions struct {
	Broadcaster Broadcaster
	Bus         *events.Bus
	// StateManager and StateInterval enable state streaming. Both are optional.
	StateManager  state.StateManager
	StateInterval time.Duration
	BufferSize    int
}

func NewBroadcastMessageWorker(opts NewBroadcastMessageWorkerOptions) *BroadcastMessageWorker {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBroadcastBufferSize
	}
	w := &BroadcastMessageWorker{
		broadcaster:   opts.Broadcaster,
		bus:           opts.Bus,
		stateManager:  opts.StateManager,
		stateInterval: opts.StateInterval,
		eventChan:     make(chan events.Event, opts.BufferSize),
	}
	// events published while the buffer is full are dropped
	w.sub = w.bus.SubscribeAll(func(e events.Event) {
		select {
		case w.eventChan <- e:
		default:
			log.Warn("Broadcast buffer is full, dropping %s", e.Kind())
		}
	})
	return w
}

// Start broadcasts until ctx is done, then unsubscribes from the bus.
func (w *BroadcastMessageWorker) Start(ctx context.Context) {
	defer w.sub.Unsubscribe()

	var stateTick <-chan time.Time
	if w.stateManager != nil && w.stateInterval > 0 {
		ticker := time.NewTicker(w.stateInterval)
		defer ticker.Stop()
		stateTick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-w.eventChan:
			if err := w.handleEvent(e); err != nil {
				log.Error("Failed to broadcast %s: %v", e.Kind(), err)
			}
		case <-stateTick:
			if err := w.handleTableState(ctx); err != nil {
				log.Error("Failed to broadcast table state: %v", err)
			}
		}
	}
}

func (w *BroadcastMessageWorker) handleEvent(e events.Event) error {
	msg, err := messages.NewEventMessage(e)
	if err != nil {
		return err
	}
	n, err := w.broadcaster.SendToAll(msg)
	if err != nil {
		return err
	}
	log.Trace("Sent %s to %d clients", e.Kind(), n)
	return nil
}

func (w *BroadcastMessageWorker) handleTableState(ctx context.Context) error {
	tableState, err := w.stateManager.Get(ctx)
	if err != nil {
		return err
	}
	msg, err := messages.NewStateMessage(tableState)
	if err != nil {
		return err
	}
	_, err = w.broadcaster.SendToAll(msg)
	return err
}
