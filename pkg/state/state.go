package state

import (
	"context"

	"github.com/cbodonnell/roulette/pkg/chips"
	"github.com/cbodonnell/roulette/pkg/events"
	"github.com/cbodonnell/roulette/pkg/kinematic"
	"github.com/cbodonnell/roulette/pkg/ledger"
)

// TableState is a point-in-time view of the table published by the game loop.
type TableState struct {
	Timestamp     int64                  `json:"timestamp"`
	Phase         string                 `json:"phase"`
	RoundID       string                 `json:"roundID,omitempty"`
	Balance       int                    `json:"balance"`
	TotalWager    int                    `json:"totalWager"`
	SelectedChip  chips.Denomination     `json:"selectedChip"`
	Locked        bool                   `json:"locked"`
	Bets          []ledger.PlacedBet     `json:"bets"`
	WheelAngle    float64                `json:"wheelAngle"`
	BallPosition  kinematic.Vector       `json:"ballPosition"`
	LastResult    *events.PayoutComputed `json:"lastResult,omitempty"`
	ResultVisible bool                   `json:"resultVisible"`
}

// StateManager provides shared access to the table state.
// Implementations must be thread-safe.
type StateManager interface {
	// Get returns a copy of the current table state.
	Get(ctx context.Context) (*TableState, error)
	// Set sets the current table state.
	Set(ctx context.Context, tableState *TableState) error
}
