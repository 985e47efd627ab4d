package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cbodonnell/roulette/pkg/events"
	"github.com/cbodonnell/roulette/pkg/messages"
	"github.com/cbodonnell/roulette/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroadcaster struct {
	lock sync.Mutex
	sent []*messages.Message
	err  error
}

func (f *fakeBroadcaster) SendToAll(msg *messages.Message) (int, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.sent = append(f.sent, msg)
	return 1, nil
}

func (f *fakeBroadcaster) sentMessages() []*messages.Message {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]*messages.Message(nil), f.sent...)
}

func TestBroadcastMessageWorker_events(t *testing.T) {
	bus := events.NewBus()
	b := &fakeBroadcaster{}
	w := NewBroadcastMessageWorker(NewBroadcastMessageWorkerOptions{
		Broadcaster: b,
		Bus:         bus,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	bus.Publish(events.OutcomePublished{RoundID: "r1", Number: 17})
	bus.Publish(events.ResultHidden{RoundID: "r1"})

	require.Eventually(t, func() bool { return len(b.sentMessages()) == 2 }, time.Second, time.Millisecond)
	sent := b.sentMessages()
	assert.Equal(t, events.KindOutcomePublished, sent[0].Type)
	assert.Equal(t, events.KindResultHidden, sent[1].Type)

	var outcome events.OutcomePublished
	require.NoError(t, sent[0].DecodePayload(&outcome))
	assert.Equal(t, 17, outcome.Number)

	cancel()
	<-done
	assert.Equal(t, 0, bus.Subscribers())
}

func TestBroadcastMessageWorker_tableState(t *testing.T) {
	stateManager := state.NewInMemoryStateManager()
	require.NoError(t, stateManager.Set(context.Background(), &state.TableState{Phase: "orbit", Balance: 250}))

	b := &fakeBroadcaster{}
	w := NewBroadcastMessageWorker(NewBroadcastMessageWorkerOptions{
		Broadcaster:   b,
		Bus:           events.NewBus(),
		StateManager:  stateManager,
		StateInterval: time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	require.Eventually(t, func() bool { return len(b.sentMessages()) > 0 }, time.Second, time.Millisecond)
	msg := b.sentMessages()[0]
	assert.Equal(t, messages.MessageTypeServerState, msg.Type)

	var s state.TableState
	require.NoError(t, msg.DecodePayload(&s))
	assert.Equal(t, "orbit", s.Phase)
	assert.Equal(t, 250, s.Balance)
}

func TestBroadcastMessageWorker_dropsWhenFull(t *testing.T) {
	bus := events.NewBus()
	b := &fakeBroadcaster{err: errors.New("closed")}
	w := NewBroadcastMessageWorker(NewBroadcastMessageWorkerOptions{
		Broadcaster: b,
		Bus:         bus,
		BufferSize:  1,
	})

	bus.Publish(events.RoundReset{RoundID: "a"})
	bus.Publish(events.RoundReset{RoundID: "b"})
	assert.Len(t, w.eventChan, 1)

	assert.Error(t, w.handleEvent(<-w.eventChan))
}
