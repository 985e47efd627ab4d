// Package history keeps the persisted record of finished rounds and the
// running statistics derived from them.
package history

import (
	"fmt"
	"time"

	"github.com/cbodonnell/roulette/pkg/ledger"
	"github.com/cbodonnell/roulette/pkg/table"
)

// DefaultMaxRecords is the number of rounds kept in the history.
const DefaultMaxRecords = 30

// TimestampLayout is how record timestamps are formatted.
const TimestampLayout = "2006-01-02 15:04:05"

// GameRecord is one finished round.
type GameRecord struct {
	ID            int             `json:"id"`
	WinningNumber int             `json:"winningNumber"`
	IsWin         bool            `json:"isWin"`
	BetAmount     int             `json:"betAmount"`
	WinAmount     int             `json:"winAmount"`
	Bets          []BetTypeRecord `json:"bets"`
	Timestamp     string          `json:"timestamp"`
}

// BetTypeRecord is one spot's wager within a round.
type BetTypeRecord struct {
	SpotID string        `json:"spotID"`
	Type   table.BetType `json:"type"`
	Amount int           `json:"amount"`
	Payout int           `json:"payout"`
	IsWin  bool          `json:"isWin"`
}

// SaveData is everything that survives a restart.
type SaveData struct {
	History         []GameRecord          `json:"history"`
	Balance         int                   `json:"balance"`
	GameCounter     int                   `json:"gameCounter"`
	TotalWins       int                   `json:"totalWins"`
	TotalLosses     int                   `json:"totalLosses"`
	TotalWagered    int                   `json:"totalWagered"`
	TotalPaid       int                   `json:"totalPaid"`
	WinsByBetType   map[table.BetType]int `json:"winsByBetType"`
	LossesByBetType map[table.BetType]int `json:"lossesByBetType"`

	// MaxRecords caps History. Zero means DefaultMaxRecords.
	MaxRecords int `json:"-"`
}

// NewSaveData returns an empty save with every bet type counter present.
func NewSaveData(balance int) *SaveData {
	s := &SaveData{
		History:         []GameRecord{},
		Balance:         balance,
		WinsByBetType:   make(map[table.BetType]int, len(table.BetTypes)),
		LossesByBetType: make(map[table.BetType]int, len(table.BetTypes)),
	}
	s.fillCounters()
	return s
}

func (s *SaveData) fillCounters() {
	if s.WinsByBetType == nil {
		s.WinsByBetType = make(map[table.BetType]int, len(table.BetTypes))
	}
	if s.LossesByBetType == nil {
		s.LossesByBetType = make(map[table.BetType]int, len(table.BetTypes))
	}
	for _, t := range table.BetTypes {
		if _, ok := s.WinsByBetType[t]; !ok {
			s.WinsByBetType[t] = 0
		}
		if _, ok := s.LossesByBetType[t]; !ok {
			s.LossesByBetType[t] = 0
		}
	}
}

func (s *SaveData) maxRecords() int {
	if s.MaxRecords > 0 {
		return s.MaxRecords
	}
	return DefaultMaxRecords
}

// Append records a settled round, updates the counters and evicts the
// oldest records beyond the cap.
func (s *SaveData) Append(settlement ledger.Settlement, at time.Time) GameRecord {
	s.fillCounters()

	record := GameRecord{
		ID:            s.GameCounter,
		WinningNumber: settlement.WinningNumber,
		IsWin:         settlement.IsWin(),
		BetAmount:     settlement.BetAmount,
		WinAmount:     settlement.Payout,
		Bets:          make([]BetTypeRecord, 0, len(settlement.Results)),
		Timestamp:     at.Format(TimestampLayout),
	}
	s.GameCounter++

	for _, r := range settlement.Results {
		record.Bets = append(record.Bets, BetTypeRecord{
			SpotID: r.SpotID,
			Type:   r.Type,
			Amount: r.Wager,
			Payout: r.Payout,
			IsWin:  r.Won,
		})
		if r.Won {
			s.WinsByBetType[r.Type]++
		} else {
			s.LossesByBetType[r.Type]++
		}
	}

	if record.IsWin {
		s.TotalWins++
	} else {
		s.TotalLosses++
	}
	s.TotalWagered += settlement.BetAmount
	s.TotalPaid += settlement.Payout
	s.Balance = settlement.NewBalance

	s.History = append(s.History, record)
	if over := len(s.History) - s.maxRecords(); over > 0 {
		s.History = append([]GameRecord(nil), s.History[over:]...)
	}
	return record
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *SaveData) Clone() *SaveData {
	c := *s
	c.History = make([]GameRecord, len(s.History))
	for i, r := range s.History {
		r.Bets = append([]BetTypeRecord(nil), r.Bets...)
		c.History[i] = r
	}
	c.WinsByBetType = make(map[table.BetType]int, len(s.WinsByBetType))
	for k, v := range s.WinsByBetType {
		c.WinsByBetType[k] = v
	}
	c.LossesByBetType = make(map[table.BetType]int, len(s.LossesByBetType))
	for k, v := range s.LossesByBetType {
		c.LossesByBetType[k] = v
	}
	return &c
}

// Validate checks a loaded save for values the game could not have produced.
func (s *SaveData) Validate() error {
	if s.Balance < 0 {
		return fmt.Errorf("negative balance: %d", s.Balance)
	}
	if s.TotalWins < 0 || s.TotalLosses < 0 {
		return fmt.Errorf("negative totals: wins=%d losses=%d", s.TotalWins, s.TotalLosses)
	}
	if s.TotalWins+s.TotalLosses != s.GameCounter {
		return fmt.Errorf("totals do not match game counter: %d+%d != %d", s.TotalWins, s.TotalLosses, s.GameCounter)
	}
	if len(s.History) > s.GameCounter {
		return fmt.Errorf("history has %d records but only %d games were played", len(s.History), s.GameCounter)
	}
	for i, r := range s.History {
		if !table.ValidNumber(r.WinningNumber) {
			return fmt.Errorf("record %d has invalid winning number %d", r.ID, r.WinningNumber)
		}
		if i > 0 && r.ID <= s.History[i-1].ID {
			return fmt.Errorf("record %d is out of order", r.ID)
		}
	}
	for t, n := range s.WinsByBetType {
		if n < 0 {
			return fmt.Errorf("negative win counter for %s", t)
		}
	}
	for t, n := range s.LossesByBetType {
		if n < 0 {
			return fmt.Errorf("negative loss counter for %s", t)
		}
	}
	return nil
}

// Stats is a read-only summary of a save.
type Stats struct {
	TotalGames      int                   `json:"totalGames"`
	TotalWins       int                   `json:"totalWins"`
	TotalLosses     int                   `json:"totalLosses"`
	WinRate         float64               `json:"winRate"`
	TotalWagered    int                   `json:"totalWagered"`
	TotalPaid       int                   `json:"totalPaid"`
	ReturnToPlayer  float64               `json:"returnToPlayer"`
	WinsByBetType   map[table.BetType]int `json:"winsByBetType"`
	LossesByBetType map[table.BetType]int `json:"lossesByBetType"`
}

// Stats summarizes the save. WinRate is a percentage.
func (s *SaveData) Stats() Stats {
	c := s.Clone()
	stats := Stats{
		TotalGames:      c.GameCounter,
		TotalWins:       c.TotalWins,
		TotalLosses:     c.TotalLosses,
		TotalWagered:    c.TotalWagered,
		TotalPaid:       c.TotalPaid,
		WinsByBetType:   c.WinsByBetType,
		LossesByBetType: c.LossesByBetType,
	}
	if played := c.TotalWins + c.TotalLosses; played > 0 {
		stats.WinRate = float64(c.TotalWins) / float64(played) * 100
	}
	if c.TotalWagered > 0 {
		stats.ReturnToPlayer = float64(c.TotalPaid) / float64(c.TotalWagered) * 100
	}
	return stats
}
