// Package game runs the roulette table: it owns the ledger, the wheel
// controller and the saved history, and advances them on a fixed tick.
package game

import (
	"context"
	"math/rand"
	"time"

	"github.com/cbodonnell/roulette/pkg/config"
	"github.com/cbodonnell/roulette/pkg/events"
	"github.com/cbodonnell/roulette/pkg/history"
	"github.com/cbodonnell/roulette/pkg/ledger"
	"github.com/cbodonnell/roulette/pkg/log"
	"github.com/cbodonnell/roulette/pkg/queue"
	"github.com/cbodonnell/roulette/pkg/repositories"
	"github.com/cbodonnell/roulette/pkg/scheduler"
	"github.com/cbodonnell/roulette/pkg/state"
	"github.com/cbodonnell/roulette/pkg/table"
	"github.com/cbodonnell/roulette/pkg/wheel"
	"github.com/google/uuid"
)

type Manager struct {
	config       config.Config
	bus          *events.Bus
	ledger       *ledger.Ledger
	controller   *wheel.Controller
	timers       *scheduler.Scheduler
	commands     queue.Queue
	stateManager state.StateManager
	saveChan     chan<- *history.SaveData
	saveData     *history.SaveData
	logger       *log.Logger
	now          func() time.Time

	accumulator   float64
	dirty         bool
	lastResult    *events.PayoutComputed
	resultVisible bool
	hideToken     *scheduler.Token
	restartToken  *scheduler.Token
	done          chan struct{}
}

// NewManagerOptions contains options for creating a new Manager.
type NewManagerOptions struct {
	Config config.Config
	Bus    *events.Bus
	Layout *table.Layout
	// Source defaults to the one selected by the config.
	Source       wheel.OutcomeSource
	Commands     queue.Queue
	StateManager state.StateManager
	// SaveChan receives a copy of the save data whenever it changes.
	SaveChan chan<- *history.SaveData
	// SaveData is the restored game. Nil starts a fresh game.
	SaveData *history.SaveData
	Rand     *rand.Rand
	Logger   *log.Logger
	Now      func() time.Time
}

func NewManager(opts NewManagerOptions) *Manager {
	cfg := opts.Config
	if opts.Bus == nil {
		opts.Bus = events.NewBus()
	}
	if opts.Logger == nil {
		opts.Logger = log.DefaultLogger().WithComponent("game")
	}
	if opts.Source == nil {
		opts.Source = cfg.OutcomeSource()
	}
	if opts.Commands == nil {
		opts.Commands = queue.NewInMemoryQueue(cfg.Server.QueueSize)
	}
	if opts.StateManager == nil {
		opts.StateManager = state.NewInMemoryStateManager()
	}
	if opts.SaveData == nil {
		opts.SaveData = history.NewSaveData(cfg.Table.StartingBalance)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.SaveData.MaxRecords = cfg.Table.MaxHistory

	m := &Manager{
		config:       cfg,
		bus:          opts.Bus,
		timers:       scheduler.New(),
		commands:     opts.Commands,
		stateManager: opts.StateManager,
		saveChan:     opts.SaveChan,
		saveData:     opts.SaveData,
		logger:       opts.Logger,
		now:          opts.Now,
		done:         make(chan struct{}),
	}
	m.ledger = ledger.New(ledger.NewLedgerOptions{
		Layout:         opts.Layout,
		Bus:            opts.Bus,
		Logger:         opts.Logger.WithComponent("ledger"),
		Balance:        opts.SaveData.Balance,
		MaxStackHeight: cfg.Table.MaxStackHeight,
	})
	m.controller = wheel.NewController(wheel.NewControllerOptions{
		Settings: cfg.Wheel,
		Source:   opts.Source,
		Bus:      opts.Bus,
		Logger:   opts.Logger.WithComponent("wheel"),
		Rand:     opts.Rand,
	})

	events.Subscribe(m.bus, m.onOutcomePublished)
	events.Subscribe(m.bus, m.onSpinAborted)
	events.Subscribe(m.bus, m.onBalanceChanged)

	m.publishState()
	return m
}

// LoadOrDefault restores the saved game, or starts a fresh one when there is
// no save or the save is invalid.
func LoadOrDefault(ctx context.Context, repository repositories.Repository, startingBalance int) (*history.SaveData, bool, error) {
	data, err := repository.LoadSaveData(ctx)
	if err != nil {
		if repositories.IsNotFound(err) {
			log.Info("No saved game found, starting with a balance of %d", startingBalance)
			return history.NewSaveData(startingBalance), true, nil
		}
		if repositories.IsCorrupt(err) {
			log.Warn("Discarding unreadable saved game: %v", err)
			return history.NewSaveData(startingBalance), true, nil
		}
		return nil, false, err
	}
	if err := data.Validate(); err != nil {
		log.Warn("Discarding invalid saved game: %v", err)
		return history.NewSaveData(startingBalance), true, nil
	}
	log.Info("Loaded saved game with %d rounds and a balance of %d", data.GameCounter, data.Balance)
	return data, false, nil
}

// Start runs the game loop until ctx is done.
func (m *Manager) Start(ctx context.Context) error {
	defer close(m.done)

	interval := m.config.Server.TickInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.bus.Publish(events.GameLoaded{Games: m.saveData.GameCounter, Balance: m.ledger.CurrentBalance(), Fresh: m.saveData.GameCounter == 0})

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			m.flushSave()
			return nil
		case t := <-ticker.C:
			dt := t.Sub(last).Seconds()
			last = t
			m.Step(min(dt, 4*interval.Seconds()))
		}
	}
}

// Step runs one iteration of the game loop: pending commands, the fixed
// physics ticks that fit in dt, the round timers and the published state.
func (m *Manager) Step(dt float64) {
	m.processCommands()

	fixed := m.config.Wheel.FixedDeltaTime
	m.accumulator += dt
	for m.accumulator >= fixed {
		m.controller.FixedUpdate(fixed)
		m.accumulator -= fixed
	}
	m.controller.Update(dt)

	m.timers.Advance(dt)

	if m.dirty {
		m.flushSave()
	}
	m.publishState()
}

func (m *Manager) spin() CommandResult {
	if m.controller.Spinning() {
		return m.fromSpin(m.controller.RequestSpin(wheel.SpinRequest{}))
	}

	wager, result := m.ledger.CommitWager()
	if !result.Accepted {
		m.bus.Publish(events.SpinRejected{Reason: string(result.Reason)})
		return m.fromLedger(result)
	}

	m.hideResult()

	res := m.controller.RequestSpin(wheel.SpinRequest{RoundID: uuid.NewString()})
	if !res.Accepted {
		m.ledger.Refund()
		return m.fromSpin(res)
	}

	started := events.SpinStarted{
		RoundID:       res.RoundID,
		Wager:         wager,
		Balance:       m.ledger.CurrentBalance(),
		OrbitDuration: res.OrbitDuration,
	}
	if res.Proof != nil {
		started.Commitment = res.Proof.ServerSeedHash
		started.ClientSeed = res.Proof.ClientSeed
		started.Nonce = res.Proof.Nonce
	}
	m.bus.Publish(started)
	m.logger.Info("Round %s started with a wager of %d", res.RoundID, wager)
	return m.fromSpin(res)
}

func (m *Manager) onOutcomePublished(e events.OutcomePublished) {
	settlement := m.ledger.Resolve(e.Number)
	at := m.now()
	m.saveData.Append(settlement, at)
	m.dirty = true

	payout := events.PayoutComputed{
		RoundID:       e.RoundID,
		WinningNumber: settlement.WinningNumber,
		IsWin:         settlement.IsWin(),
		BetAmount:     settlement.BetAmount,
		Payout:        settlement.Payout,
		NewBalance:    settlement.NewBalance,
		Breakdown:     settlement.Results,
		Timestamp:     at,
	}
	m.lastResult = &payout
	m.bus.Publish(payout)
	m.logger.Info("Round %s landed on %d: bet %d, payout %d, balance %d", e.RoundID, e.Number, settlement.BetAmount, settlement.Payout, settlement.NewBalance)

	m.showResult(e.RoundID, e.Number, settlement.Payout)

	m.restartToken.Cancel()
	m.restartToken = m.timers.After(m.config.Table.RestartDelay, func() {
		if !m.controller.Reset() {
			m.logger.Warn("Wheel could not be reset after round %s", e.RoundID)
		}
	})
}

func (m *Manager) onSpinAborted(e events.SpinAborted) {
	if refunded := m.ledger.Refund(); refunded > 0 {
		m.logger.Warn("Round %s aborted (%s), refunded %d", e.RoundID, e.Reason, refunded)
	}
}

func (m *Manager) onBalanceChanged(e events.BalanceChanged) {
	m.saveData.Balance = e.Balance
	m.dirty = true
}

func (m *Manager) showResult(roundID string, number int, payout int) {
	m.hideToken.Cancel()
	m.resultVisible = true
	m.bus.Publish(events.ResultShown{RoundID: roundID, Number: number, Payout: payout})
	m.hideToken = m.timers.After(m.config.Table.ResultDisplayTime, m.hideResult)
}

// hideResult hides the visible result and cancels a pending hide.
func (m *Manager) hideResult() {
	m.hideToken.Cancel()
	m.hideToken = nil
	if !m.resultVisible {
		return
	}
	m.resultVisible = false
	roundID := ""
	if m.lastResult != nil {
		roundID = m.lastResult.RoundID
	}
	m.bus.Publish(events.ResultHidden{RoundID: roundID})
}

// flushSave hands a copy of the save data to the save worker without blocking the loop.
func (m *Manager) flushSave() {
	m.dirty = false
	if m.saveChan == nil {
		return
	}
	select {
	case m.saveChan <- m.saveData.Clone():
	default:
		m.dirty = true
		m.logger.Warn("Save channel is full, retrying next tick")
	}
}

func (m *Manager) publishState() {
	s := &state.TableState{
		Timestamp:     m.now().UnixMilli(),
		Phase:         m.controller.Phase().String(),
		Balance:       m.ledger.CurrentBalance(),
		TotalWager:    m.ledger.TotalWager(),
		SelectedChip:  m.ledger.SelectedChip(),
		Locked:        m.ledger.Locked(),
		Bets:          m.ledger.PlacedBets(),
		WheelAngle:    m.controller.WheelAngle(),
		BallPosition:  m.controller.Ball().Position,
		LastResult:    m.lastResult,
		ResultVisible: m.resultVisible,
	}
	if session, ok := m.controller.Session(); ok {
		s.RoundID = session.RoundID
	}
	if s.Bets == nil {
		s.Bets = []ledger.PlacedBet{}
	}
	if err := m.stateManager.Set(context.Background(), s); err != nil {
		m.logger.Error("Failed to publish table state: %v", err)
	}
}

// Bus returns the event bus the table publishes on.
func (m *Manager) Bus() *events.Bus {
	return m.bus
}

// StateManager returns the shared table state.
func (m *Manager) StateManager() state.StateManager {
	return m.stateManager
}

// Layout returns the betting table layout.
func (m *Manager) Layout() *table.Layout {
	return m.ledger.Layout()
}

// Controller returns the wheel. It must only be used from the game loop goroutine.
func (m *Manager) Controller() *wheel.Controller {
	return m.controller
}

// SaveData returns a copy of the save data. It must only be called from the game loop goroutine.
func (m *Manager) SaveData() *history.SaveData {
	return m.saveData.Clone()
}
