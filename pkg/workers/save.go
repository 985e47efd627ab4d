package workers

import (
	"context"
	"sync"
	"time"

	"github.com/cbodonnell/roulette/pkg/events"
	"github.com/cbodonnell/roulette/pkg/history"
	"github.com/cbodonnell/roulette/pkg/log"
	"github.com/cbodonnell/roulette/pkg/repositories"
)

type SaveGameDataWorker struct {
	repository repositories.Repository
	saveChan   <-chan *history.SaveData
	interval   time.Duration
	bus        *events.Bus

	lock    sync.Mutex
	latest  *history.SaveData
	pending bool
}

type NewSaveGameDataWorkerOptions struct {
	Repository repositories.Repository
	SaveChan   <-chan *history.SaveData
	Interval   time.Duration
	// Bus receives GameSaved after every successful save. Optional.
	Bus *events.Bus
}

// NewSaveGameDataWorker creates a new SaveGameDataWorker.
// The worker keeps the latest save data sent by the game loop, writes it
// to the repository and retries failed writes on every interval.
func NewSaveGameDataWorker(opts NewSaveGameDataWorkerOptions) *SaveGameDataWorker {
	return &SaveGameDataWorker{
		repository: opts.Repository,
		saveChan:   opts.SaveChan,
		interval:   opts.Interval,
		bus:        opts.Bus,
	}
}

// Start processes save requests until ctx is done. Data still pending at
// shutdown is written once more with a fresh context.
func (w *SaveGameDataWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.drain()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			w.flush(shutdownCtx)
			cancel()
			return
		case data := <-w.saveChan:
			w.store(data)
			w.flush(ctx)
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

// Latest returns a copy of the most recent save data received, or nil.
func (w *SaveGameDataWorker) Latest() *history.SaveData {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.latest == nil {
		return nil
	}
	return w.latest.Clone()
}

func (w *SaveGameDataWorker) store(data *history.SaveData) {
	if data == nil {
		return
	}
	w.lock.Lock()
	w.latest = data
	w.pending = true
	w.lock.Unlock()
}

// drain keeps only the newest of the buffered requests.
func (w *SaveGameDataWorker) drain() {
	for {
		select {
		case data := <-w.saveChan:
			w.store(data)
		default:
			return
		}
	}
}

func (w *SaveGameDataWorker) flush(ctx context.Context) {
	w.lock.Lock()
	data := w.latest
	pending := w.pending
	w.pending = false
	w.lock.Unlock()

	if !pending || data == nil {
		return
	}

	if err := w.repository.SaveGameData(ctx, data); err != nil {
		log.Error("Failed to save game data: %v", err)
		w.lock.Lock()
		if w.latest == data {
			w.pending = true
		}
		w.lock.Unlock()
		return
	}
	log.Debug("Saved game data: %d games, balance %d", data.GameCounter, data.Balance)
	w.bus.Publish(events.GameSaved{Games: data.GameCounter, Balance: data.Balance})
}
