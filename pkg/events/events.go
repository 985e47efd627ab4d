package events

import (
	"time"

	"github.com/cbodonnell/roulette/pkg/chips"
	"github.com/cbodonnell/roulette/pkg/table"
)

// Event is the closed set of notifications published by the game core.
// Only types declared in this package satisfy it.
type Event interface {
	// Kind is the stable wire name of the event.
	Kind() string
	event()
}

const (
	KindOutcomePublished  = "outcome_published"
	KindPayoutComputed    = "payout_computed"
	KindBetChanged        = "bet_changed"
	KindBetRejected       = "bet_rejected"
	KindInsufficientFunds = "insufficient_funds"
	KindStackFull         = "stack_full"
	KindBetsCleared       = "bets_cleared"
	KindChipSelected      = "chip_selected"
	KindBalanceChanged    = "balance_changed"
	KindSpinStarted       = "spin_started"
	KindSpinRejected      = "spin_rejected"
	KindSpinAborted       = "spin_aborted"
	KindPhaseChanged      = "phase_changed"
	KindResultShown       = "result_shown"
	KindResultHidden      = "result_hidden"
	KindRoundReset        = "round_reset"
	KindGameSaved         = "game_saved"
	KindGameLoaded        = "game_loaded"
)

// BetAction tells whether a chip was added to or taken from a spot.
type BetAction string

const (
	BetActionPlaced  BetAction = "placed"
	BetActionRemoved BetAction = "removed"
)

// OutcomePublished carries the winning number of a spin. It is published exactly once per spin.
type OutcomePublished struct {
	RoundID string `json:"roundID"`
	Number  int    `json:"number"`
}

// PayoutComputed is the settled round, suitable for recording in the game history.
type PayoutComputed struct {
	RoundID       string            `json:"roundID"`
	WinningNumber int               `json:"winningNumber"`
	IsWin         bool              `json:"isWin"`
	BetAmount     int               `json:"betAmount"`
	Payout        int               `json:"payout"`
	NewBalance    int               `json:"newBalance"`
	Breakdown     []table.BetResult `json:"breakdown"`
	Timestamp     time.Time         `json:"timestamp"`
}

type BetChanged struct {
	SpotID       string             `json:"spotID"`
	Denomination chips.Denomination `json:"denomination"`
	Action       BetAction          `json:"action"`
	SpotTotal    int                `json:"spotTotal"`
	TotalWager   int                `json:"totalWager"`
}

// BetRejected is published for rejections that have no dedicated event.
type BetRejected struct {
	SpotID string `json:"spotID"`
	Reason string `json:"reason"`
}

type InsufficientFunds struct {
	SpotID   string `json:"spotID"`
	Required int    `json:"required"`
	Balance  int    `json:"balance"`
}

type StackFull struct {
	SpotID    string `json:"spotID"`
	MaxHeight int    `json:"maxHeight"`
}

type BetsCleared struct {
	Chips    int `json:"chips"`
	Returned int `json:"returned"`
}

type ChipSelected struct {
	Denomination chips.Denomination `json:"denomination"`
}

type BalanceChanged struct {
	Balance int    `json:"balance"`
	Delta   int    `json:"delta"`
	Reason  string `json:"reason"`
}

type SpinStarted struct {
	RoundID       string  `json:"roundID"`
	Wager         int     `json:"wager"`
	Balance       int     `json:"balance"`
	OrbitDuration float64 `json:"orbitDuration"`
	// Commitment is the hashed server seed when the outcome is provably fair.
	Commitment string `json:"commitment,omitempty"`
	ClientSeed string `json:"clientSeed,omitempty"`
	Nonce      uint64 `json:"nonce,omitempty"`
}

type SpinRejected struct {
	Reason string `json:"reason"`
}

// SpinAborted ends a round without an outcome. The wager refund is reported by BalanceChanged.
type SpinAborted struct {
	RoundID string `json:"roundID"`
	Reason  string `json:"reason"`
}

type PhaseChanged struct {
	RoundID string `json:"roundID"`
	From    string `json:"from"`
	To      string `json:"to"`
}

type ResultShown struct {
	RoundID string `json:"roundID"`
	Number  int    `json:"number"`
	Payout  int    `json:"payout"`
}

type ResultHidden struct {
	RoundID string `json:"roundID"`
}

type RoundReset struct {
	RoundID string `json:"roundID"`
}

type GameSaved struct {
	Games   int `json:"games"`
	Balance int `json:"balance"`
}

type GameLoaded struct {
	Games   int  `json:"games"`
	Balance int  `json:"balance"`
	Fresh   bool `json:"fresh"`
}

func (OutcomePublished) Kind() string  { return KindOutcomePublished }
func (PayoutComputed) Kind() string    { return KindPayoutComputed }
func (BetChanged) Kind() string        { return KindBetChanged }
func (BetRejected) Kind() string       { return KindBetRejected }
func (InsufficientFunds) Kind() string { return KindInsufficientFunds }
func (StackFull) Kind() string         { return KindStackFull }
func (BetsCleared) Kind() string       { return KindBetsCleared }
func (ChipSelected) Kind() string      { return KindChipSelected }
func (BalanceChanged) Kind() string    { return KindBalanceChanged }
func (SpinStarted) Kind() string       { return KindSpinStarted }
func (SpinRejected) Kind() string      { return KindSpinRejected }
func (SpinAborted) Kind() string       { return KindSpinAborted }
func (PhaseChanged) Kind() string      { return KindPhaseChanged }
func (ResultShown) Kind() string       { return KindResultShown }
func (ResultHidden) Kind() string      { return KindResultHidden }
func (RoundReset) Kind() string        { return KindRoundReset }
func (GameSaved) Kind() string         { return KindGameSaved }
func (GameLoaded) Kind() string        { return KindGameLoaded }

func (OutcomePublished) event()  {}
func (PayoutComputed) event()    {}
func (BetChanged) event()        {}
func (BetRejected) event()       {}
func (InsufficientFunds) event() {}
func (StackFull) event()         {}
func (BetsCleared) event()       {}
func (ChipSelected) event()      {}
func (BalanceChanged) event()    {}
func (SpinStarted) event()       {}
func (SpinRejected) event()      {}
func (SpinAborted) event()       {}
func (PhaseChanged) event()      {}
func (ResultShown) event()       {}
func (ResultHidden) event()      {}
func (RoundReset) event()        {}
func (GameSaved) event()         {}
func (GameLoaded) event()        {}
