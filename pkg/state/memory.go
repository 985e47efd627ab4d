package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/cbodonnell/roulette/pkg/chips"
	"github.com/cbodonnell/roulette/pkg/ledger"
	"github.com/cbodonnell/roulette/pkg/table"
)

type InMemoryStateManager struct {
	lock       sync.RWMutex
	tableState *TableState
}

func NewInMemoryStateManager() *InMemoryStateManager {
	return &InMemoryStateManager{
		tableState: &TableState{
			Phase: "idle",
			Bets:  []ledger.PlacedBet{},
		},
	}
}

func (m *InMemoryStateManager) Get(ctx context.Context) (*TableState, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.tableState.clone(), nil
}

func (m *InMemoryStateManager) Set(ctx context.Context, tableState *TableState) error {
	if tableState == nil {
		return fmt.Errorf("table state is nil")
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	m.tableState = tableState.clone()
	return nil
}

func (s *TableState) clone() *TableState {
	c := *s
	c.Bets = make([]ledger.PlacedBet, len(s.Bets))
	for i, bet := range s.Bets {
		counts := make(map[chips.Denomination]int, len(bet.Counts))
		for d, n := range bet.Counts {
			counts[d] = n
		}
		bet.Counts = counts
		c.Bets[i] = bet
	}
	if s.LastResult != nil {
		result := *s.LastResult
		result.Breakdown = append([]table.BetResult(nil), s.LastResult.Breakdown...)
		c.LastResult = &result
	}
	return &c
}
