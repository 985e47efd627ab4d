package game

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	mocks "github.com/cbodonnell/roulette/mocks/github.com/cbodonnell/roulette/pkg/queue"
	repomocks "github.com/cbodonnell/roulette/mocks/github.com/cbodonnell/roulette/pkg/repositories"
	"github.com/cbodonnell/roulette/pkg/chips"
	"github.com/cbodonnell/roulette/pkg/config"
	"github.com/cbodonnell/roulette/pkg/events"
	"github.com/cbodonnell/roulette/pkg/history"
	"github.com/cbodonnell/roulette/pkg/log"
	"github.com/cbodonnell/roulette/pkg/queue"
	"github.com/cbodonnell/roulette/pkg/repositories"
	"github.com/cbodonnell/roulette/pkg/table"
	"github.com/cbodonnell/roulette/pkg/wheel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const maxTestSteps = 5000

var testNow = time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Wheel.MinOrbitDuration = 3
	cfg.Wheel.MaxOrbitDuration = 3
	cfg.Table.RestartDelay = 1
	cfg.Table.ResultDisplayTime = 0.5
	return cfg
}

type recorder struct {
	all []events.Event
}

func (r *recorder) kinds() []string {
	kinds := make([]string, 0, len(r.all))
	for _, e := range r.all {
		kinds = append(kinds, e.Kind())
	}
	return kinds
}

func (r *recorder) count(kind string) int {
	n := 0
	for _, e := range r.all {
		if e.Kind() == kind {
			n++
		}
	}
	return n
}

func newTestManager(t *testing.T, source wheel.OutcomeSource, mutate ...func(*NewManagerOptions)) (*Manager, *recorder) {
	t.Helper()
	bus := events.NewBus()
	rec := &recorder{}
	bus.SubscribeAll(func(e events.Event) { rec.all = append(rec.all, e) })

	opts := NewManagerOptions{
		Config: testConfig(),
		Bus:    bus,
		Source: source,
		Rand:   rand.New(rand.NewSource(1)),
		Logger: log.New(io.Discard, "", 0, log.LogLevelError),
		Now:    func() time.Time { return testNow },
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	return NewManager(opts), rec
}

func stepUntil(t *testing.T, m *Manager, done func() bool) {
	t.Helper()
	dt := m.config.Wheel.FixedDeltaTime
	for i := 0; i < maxTestSteps; i++ {
		if done() {
			return
		}
		m.Step(dt)
	}
	require.FailNow(t, "game loop did not reach the expected state")
}

func steps(m *Manager, seconds float64) {
	dt := m.config.Wheel.FixedDeltaTime
	for elapsed := 0.0; elapsed < seconds; elapsed += dt {
		m.Step(dt)
	}
}

func TestManager_spinPayouts(t *testing.T) {
	tests := []struct {
		name         string
		spotID       string
		denomination chips.Denomination
		number       int
		wantPayout   int
		wantBalance  int
		wantWin      bool
	}{
		{
			name:         "straight 17",
			spotID:       table.StraightID(17),
			denomination: chips.Denomination100,
			number:       17,
			wantPayout:   3600,
			wantBalance:  4500,
			wantWin:      true,
		},
		{
			name:         "red on 17",
			spotID:       "red",
			denomination: chips.Denomination50,
			number:       17,
			wantPayout:   0,
			wantBalance:  950,
		},
		{
			name:         "black on 17",
			spotID:       "black",
			denomination: chips.Denomination50,
			number:       17,
			wantPayout:   100,
			wantBalance:  1050,
			wantWin:      true,
		},
		{
			name:         "even on zero",
			spotID:       "even",
			denomination: chips.Denomination10,
			number:       0,
			wantPayout:   0,
			wantBalance:  990,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, rec := newTestManager(t, wheel.DeterministicSource{Number: tt.number})

			placed := m.Execute(Command{Type: CommandPlaceBet, SpotID: tt.spotID, Denomination: tt.denomination})
			require.True(t, placed.Accepted, placed.Reason)
			assert.Equal(t, tt.denomination.Value(), placed.SpotTotal)

			spun := m.Execute(Command{Type: CommandSpin})
			require.True(t, spun.Accepted, spun.Reason)
			assert.NotEmpty(t, spun.RoundID)
			assert.Equal(t, 1000-tt.denomination.Value(), spun.Balance)

			stepUntil(t, m, func() bool { return rec.count(events.KindPayoutComputed) > 0 })

			var payout events.PayoutComputed
			for _, e := range rec.all {
				if p, ok := e.(events.PayoutComputed); ok {
					payout = p
				}
			}
			assert.Equal(t, spun.RoundID, payout.RoundID)
			assert.Equal(t, tt.number, payout.WinningNumber)
			assert.Equal(t, tt.wantPayout, payout.Payout)
			assert.Equal(t, tt.wantBalance, payout.NewBalance)
			assert.Equal(t, tt.wantWin, payout.IsWin)
			assert.Equal(t, testNow, payout.Timestamp)
			assert.Equal(t, testNow.Format(history.TimestampLayout), m.SaveData().History[0].Timestamp)

			kinds := rec.kinds()
			assert.Less(t, indexOf(kinds, events.KindSpinStarted), indexOf(kinds, events.KindOutcomePublished))
			assert.Less(t, indexOf(kinds, events.KindOutcomePublished), indexOf(kinds, events.KindPayoutComputed))
			assert.Less(t, indexOf(kinds, events.KindPayoutComputed), indexOf(kinds, events.KindResultShown))

			save := m.SaveData()
			assert.Equal(t, 1, save.GameCounter)
			assert.Equal(t, tt.wantBalance, save.Balance)
			require.Len(t, save.History, 1)
			assert.Equal(t, tt.number, save.History[0].WinningNumber)
			assert.Equal(t, tt.denomination.Value(), save.History[0].BetAmount)

			s, err := m.StateManager().Get(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantBalance, s.Balance)
			assert.Empty(t, s.Bets)
			assert.False(t, s.Locked)
			assert.True(t, s.ResultVisible)
			require.NotNil(t, s.LastResult)
			assert.Equal(t, tt.number, s.LastResult.WinningNumber)
		})
	}
}

func indexOf(kinds []string, kind string) int {
	for i, k := range kinds {
		if k == kind {
			return i
		}
	}
	return -1
}

func TestManager_spin_noBets(t *testing.T) {
	m, rec := newTestManager(t, wheel.DeterministicSource{Number: 1})

	res := m.Execute(Command{Type: CommandSpin})
	assert.False(t, res.Accepted)
	assert.Equal(t, "no_bets", res.Reason)
	assert.Error(t, res.Err())
	assert.Equal(t, 1, rec.count(events.KindSpinRejected))
	assert.Equal(t, wheel.PhaseIdle, m.Controller().Phase())
}

func TestManager_spin_inProgress(t *testing.T) {
	m, rec := newTestManager(t, wheel.DeterministicSource{Number: 5})

	require.True(t, m.Execute(Command{Type: CommandPlaceBet, SpotID: "odd", Denomination: chips.Denomination10}).Accepted)
	first := m.Execute(Command{Type: CommandSpin})
	require.True(t, first.Accepted)
	steps(m, 0.5)

	second := m.Execute(Command{Type: CommandSpin})
	assert.False(t, second.Accepted)
	assert.Equal(t, string(wheel.ReasonSpinInProgress), second.Reason)
	assert.Equal(t, first.RoundID, second.RoundID)
	assert.Equal(t, 990, second.Balance)

	bet := m.Execute(Command{Type: CommandPlaceBet, SpotID: "even", Denomination: chips.Denomination10})
	assert.False(t, bet.Accepted)
	assert.Equal(t, 1, rec.count(events.KindSpinStarted))
}

func TestManager_spin_insufficientFunds(t *testing.T) {
	m, rec := newTestManager(t, wheel.DeterministicSource{Number: 5}, func(o *NewManagerOptions) {
		o.SaveData = history.NewSaveData(100)
	})

	require.True(t, m.Execute(Command{Type: CommandPlaceBet, SpotID: "odd", Denomination: chips.Denomination100}).Accepted)
	res := m.Execute(Command{Type: CommandPlaceBet, SpotID: "even", Denomination: chips.Denomination10})
	assert.False(t, res.Accepted)
	assert.Equal(t, "insufficient_funds", res.Reason)
	assert.Equal(t, 1, rec.count(events.KindInsufficientFunds))
}

func TestManager_abortRefundsWager(t *testing.T) {
	m, rec := newTestManager(t, wheel.DeterministicSource{Number: 40})

	require.True(t, m.Execute(Command{Type: CommandPlaceBet, SpotID: "red", Denomination: chips.Denomination100}).Accepted)
	res := m.Execute(Command{Type: CommandSpin})
	assert.False(t, res.Accepted)
	assert.Equal(t, string(wheel.ReasonNoOutcome), res.Reason)
	assert.Equal(t, 1000, res.Balance)
	assert.Equal(t, 100, res.TotalWager)

	assert.Equal(t, 1, rec.count(events.KindSpinAborted))
	assert.Equal(t, 0, rec.count(events.KindSpinStarted))

	steps(m, 1)
	assert.Equal(t, 0, rec.count(events.KindOutcomePublished))
	assert.Equal(t, 0, m.SaveData().GameCounter)

	var refund events.BalanceChanged
	for _, e := range rec.all {
		if b, ok := e.(events.BalanceChanged); ok {
			refund = b
		}
	}
	assert.Equal(t, "refund", refund.Reason)
	assert.Equal(t, 100, refund.Delta)
}

func TestManager_roundLifecycle(t *testing.T) {
	m, rec := newTestManager(t, wheel.DeterministicSource{Number: 8})

	require.True(t, m.Execute(Command{Type: CommandPlaceBet, SpotID: "even", Denomination: chips.Denomination10}).Accepted)
	require.True(t, m.Execute(Command{Type: CommandSpin}).Accepted)
	stepUntil(t, m, func() bool { return rec.count(events.KindResultShown) > 0 })

	assert.Equal(t, wheel.PhaseCooldown, m.Controller().Phase())

	steps(m, 0.6)
	assert.Equal(t, 1, rec.count(events.KindResultHidden))
	assert.Equal(t, 0, rec.count(events.KindRoundReset))

	steps(m, 0.6)
	assert.Equal(t, 1, rec.count(events.KindRoundReset))
	assert.Equal(t, wheel.PhaseIdle, m.Controller().Phase())

	s, err := m.StateManager().Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "idle", s.Phase)
	assert.False(t, s.ResultVisible)
	assert.NotNil(t, s.LastResult)
}

func TestManager_nextSpinHidesResult(t *testing.T) {
	m, rec := newTestManager(t, wheel.DeterministicSource{Number: 2}, func(o *NewManagerOptions) {
		o.Config.Table.ResultDisplayTime = 100
		o.Config.Table.RestartDelay = 0.1
	})

	require.True(t, m.Execute(Command{Type: CommandPlaceBet, SpotID: "even", Denomination: chips.Denomination10}).Accepted)
	require.True(t, m.Execute(Command{Type: CommandSpin}).Accepted)
	stepUntil(t, m, func() bool { return rec.count(events.KindRoundReset) > 0 })
	assert.Equal(t, 0, rec.count(events.KindResultHidden))

	require.True(t, m.Execute(Command{Type: CommandPlaceBet, SpotID: "even", Denomination: chips.Denomination10}).Accepted)
	require.True(t, m.Execute(Command{Type: CommandSpin}).Accepted)
	kinds := rec.kinds()
	assert.Equal(t, 1, rec.count(events.KindResultHidden))
	assert.Less(t, indexOf(kinds, events.KindResultHidden), lastIndexOf(kinds, events.KindSpinStarted))

	stepUntil(t, m, func() bool { return rec.count(events.KindPayoutComputed) == 2 })
	assert.Equal(t, 2, m.SaveData().GameCounter)
}

func lastIndexOf(kinds []string, kind string) int {
	for i := len(kinds) - 1; i >= 0; i-- {
		if kinds[i] == kind {
			return i
		}
	}
	return -1
}

func TestManager_provablyFairSpin(t *testing.T) {
	source := wheel.NewProvablyFairSource("server", "client")
	m, rec := newTestManager(t, source)

	require.True(t, m.Execute(Command{Type: CommandPlaceBet, SpotID: "red", Denomination: chips.Denomination10}).Accepted)
	res := m.Execute(Command{Type: CommandSpin})
	require.True(t, res.Accepted)
	assert.Equal(t, source.Commitment(), res.Commitment)

	var started events.SpinStarted
	for _, e := range rec.all {
		if s, ok := e.(events.SpinStarted); ok {
			started = s
		}
	}
	assert.Equal(t, source.Commitment(), started.Commitment)
	assert.Equal(t, "client", started.ClientSeed)
	assert.Equal(t, uint64(0), started.Nonce)

	want, err := wheel.ProvablyFairNumber("server", "client", 0)
	require.NoError(t, err)
	stepUntil(t, m, func() bool { return rec.count(events.KindOutcomePublished) > 0 })
	assert.Equal(t, want, m.SaveData().History[0].WinningNumber)
}

func TestManager_commands(t *testing.T) {
	m, _ := newTestManager(t, wheel.DeterministicSource{Number: 3})

	res := m.Execute(Command{Type: CommandSelectChip, Denomination: chips.Denomination200})
	require.True(t, res.Accepted)

	res = m.Execute(Command{Type: CommandSelectChip, Denomination: 7})
	assert.False(t, res.Accepted)

	res = m.Execute(Command{Type: CommandPlaceBet, SpotID: "column-1", Denomination: chips.Denomination50})
	require.True(t, res.Accepted)
	res = m.Execute(Command{Type: CommandMoveChip, SpotID: "column-1", ToSpotID: "column-2"})
	require.True(t, res.Accepted)
	assert.Equal(t, 50, res.TotalWager)

	res = m.Execute(Command{Type: CommandRemoveBet, SpotID: "column-1"})
	assert.False(t, res.Accepted)
	assert.Equal(t, "empty_spot", res.Reason)

	res = m.Execute(Command{Type: CommandCancelBets})
	require.True(t, res.Accepted)
	assert.Equal(t, 0, res.TotalWager)

	res = m.Execute(Command{Type: CommandAddFunds, Amount: 500})
	require.True(t, res.Accepted)
	assert.Equal(t, 1500, res.Balance)

	res = m.Execute(Command{Type: CommandAddFunds, Amount: -5})
	assert.False(t, res.Accepted)

	res = m.Execute(Command{Type: CommandHistory})
	require.True(t, res.Accepted)
	assert.Empty(t, res.History)

	res = m.Execute(Command{Type: CommandStats})
	require.True(t, res.Accepted)
	require.NotNil(t, res.Stats)
	assert.Equal(t, 0, res.Stats.TotalGames)

	res = m.Execute(Command{Type: "dance"})
	assert.False(t, res.Accepted)
}

func TestManager_processCommands(t *testing.T) {
	mockQueue := mocks.NewQueue(t)
	m, _ := newTestManager(t, wheel.DeterministicSource{Number: 3}, func(o *NewManagerOptions) {
		o.Commands = mockQueue
	})

	reply := make(chan CommandResult, 1)
	mockQueue.EXPECT().ReadAllMessages().Return([]interface{}{
		"not a command",
		&Command{Type: CommandSelectChip, Denomination: chips.Denomination50, reply: reply},
	}, nil).Once()
	m.Step(0)

	assert.Equal(t, chips.Denomination50, m.ledger.SelectedChip())
	result := <-reply
	assert.True(t, result.Accepted)

	mockQueue.EXPECT().ReadAllMessages().Return(nil, errors.New("boom")).Once()
	m.Step(0)
}

func TestManager_Submit(t *testing.T) {
	m, _ := newTestManager(t, wheel.DeterministicSource{Number: 3}, func(o *NewManagerOptions) {
		o.Commands = queue.NewInMemoryQueue(8)
	})

	done := make(chan CommandResult, 1)
	go func() {
		res, err := m.Submit(context.Background(), Command{Type: CommandAddFunds, Amount: 25})
		assert.NoError(t, err)
		done <- res
	}()

	var res CommandResult
	require.Eventually(t, func() bool {
		m.Step(0)
		select {
		case res = <-done:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
	assert.True(t, res.Accepted)
	assert.Equal(t, 1025, res.Balance)
}

func TestManager_Submit_cancelled(t *testing.T) {
	m, _ := newTestManager(t, wheel.DeterministicSource{Number: 3})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Submit(ctx, Command{Type: CommandStats})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestManager_Submit_queueFull(t *testing.T) {
	mockQueue := mocks.NewQueue(t)
	m, _ := newTestManager(t, wheel.DeterministicSource{Number: 3}, func(o *NewManagerOptions) {
		o.Commands = mockQueue
	})

	mockQueue.EXPECT().Enqueue(mock.Anything).Return(queue.ErrQueueFull).Once()
	_, err := m.Submit(context.Background(), Command{Type: CommandStats})
	assert.Error(t, err)
}

func TestManager_Start(t *testing.T) {
	saves := make(chan *history.SaveData, 8)
	m, rec := newTestManager(t, wheel.DeterministicSource{Number: 3}, func(o *NewManagerOptions) {
		o.Config.Server.TickInterval = time.Millisecond
		o.SaveChan = saves
	})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- m.Start(ctx) }()

	res, err := m.Submit(ctx, Command{Type: CommandAddFunds, Amount: 10})
	require.NoError(t, err)
	assert.True(t, res.Accepted)

	var saved *history.SaveData
	require.Eventually(t, func() bool {
		select {
		case saved = <-saves:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1010, saved.Balance)

	cancel()
	require.NoError(t, <-stopped)
	assert.Equal(t, events.KindGameLoaded, rec.all[0].Kind())

	_, err = m.Submit(context.Background(), Command{Type: CommandStats})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestLoadOrDefault(t *testing.T) {
	valid := history.NewSaveData(420)
	invalid := history.NewSaveData(-1)

	tests := []struct {
		name        string
		data        *history.SaveData
		err         error
		wantBalance int
		wantFresh   bool
		wantErr     bool
	}{
		{name: "not found", err: &repositories.ErrNotFound{}, wantBalance: 1000, wantFresh: true},
		{name: "saved", data: valid, wantBalance: 420},
		{name: "invalid", data: invalid, wantBalance: 1000, wantFresh: true},
		{name: "corrupt", err: &repositories.ErrCorrupt{Err: errors.New("bad row")}, wantBalance: 1000, wantFresh: true},
		{name: "repository error", err: errors.New("connection refused"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repomocks.NewRepository(t)
			repo.EXPECT().LoadSaveData(mock.Anything).Return(tt.data, tt.err).Once()

			data, fresh, err := LoadOrDefault(context.Background(), repo, 1000)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBalance, data.Balance)
			assert.Equal(t, tt.wantFresh, fresh)
		})
	}
}

func TestLoadOrDefault_corruptFile(t *testing.T) {
	for _, name := range []string{"save.json", "save.json.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
			repo, err := repositories.NewFileRepository(path)
			require.NoError(t, err)

			data, fresh, err := LoadOrDefault(context.Background(), repo, 1000)
			require.NoError(t, err)
			assert.True(t, fresh)
			assert.Equal(t, 1000, data.Balance)
			assert.Empty(t, data.History)
		})
	}
}
