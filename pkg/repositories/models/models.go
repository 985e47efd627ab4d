package models

import (
	"encoding/json"
	"fmt"

	"github.com/cbodonnell/roulette/pkg/history"
	"github.com/cbodonnell/roulette/pkg/table"
)

// Wallet is the single row holding the balance and the running totals.
type Wallet struct {
	Balance      int `json:"balance"`
	GameCounter  int `json:"game_counter"`
	TotalWins    int `json:"total_wins"`
	TotalLosses  int `json:"total_losses"`
	TotalWagered int `json:"total_wagered"`
	TotalPaid    int `json:"total_paid"`
}

type BetTypeStat struct {
	BetType string `json:"bet_type"`
	Wins    int    `json:"wins"`
	Losses  int    `json:"losses"`
}

type GameRecord struct {
	ID            int    `json:"id"`
	WinningNumber int    `json:"winning_number"`
	IsWin         bool   `json:"is_win"`
	BetAmount     int    `json:"bet_amount"`
	WinAmount     int    `json:"win_amount"`
	Bets          []byte `json:"bets"`
	Timestamp     string `json:"timestamp"`
}

func WalletFromSaveData(s *history.SaveData) Wallet {
	return Wallet{
		Balance:      s.Balance,
		GameCounter:  s.GameCounter,
		TotalWins:    s.TotalWins,
		TotalLosses:  s.TotalLosses,
		TotalWagered: s.TotalWagered,
		TotalPaid:    s.TotalPaid,
	}
}

func BetTypeStatsFromSaveData(s *history.SaveData) []BetTypeStat {
	stats := make([]BetTypeStat, 0, len(table.BetTypes))
	for _, t := range table.BetTypes {
		stats = append(stats, BetTypeStat{
			BetType: t.String(),
			Wins:    s.WinsByBetType[t],
			Losses:  s.LossesByBetType[t],
		})
	}
	return stats
}

func GameRecordFromHistory(r history.GameRecord) (GameRecord, error) {
	bets, err := json.Marshal(r.Bets)
	if err != nil {
		return GameRecord{}, fmt.Errorf("failed to marshal bets: %v", err)
	}
	return GameRecord{
		ID:            r.ID,
		WinningNumber: r.WinningNumber,
		IsWin:         r.IsWin,
		BetAmount:     r.BetAmount,
		WinAmount:     r.WinAmount,
		Bets:          bets,
		Timestamp:     r.Timestamp,
	}, nil
}

func (r GameRecord) ToHistory() (history.GameRecord, error) {
	record := history.GameRecord{
		ID:            r.ID,
		WinningNumber: r.WinningNumber,
		IsWin:         r.IsWin,
		BetAmount:     r.BetAmount,
		WinAmount:     r.WinAmount,
		Timestamp:     r.Timestamp,
	}
	if err := json.Unmarshal(r.Bets, &record.Bets); err != nil {
		return history.GameRecord{}, fmt.Errorf("failed to unmarshal bets of record %d: %v", r.ID, err)
	}
	return record, nil
}

// SaveData assembles the rows back into a save.
func SaveData(w Wallet, stats []BetTypeStat, records []GameRecord) (*history.SaveData, error) {
	s := history.NewSaveData(w.Balance)
	s.GameCounter = w.GameCounter
	s.TotalWins = w.TotalWins
	s.TotalLosses = w.TotalLosses
	s.TotalWagered = w.TotalWagered
	s.TotalPaid = w.TotalPaid

	for _, stat := range stats {
		t, err := table.ParseBetType(stat.BetType)
		if err != nil {
			return nil, err
		}
		s.WinsByBetType[t] = stat.Wins
		s.LossesByBetType[t] = stat.Losses
	}

	for _, row := range records {
		r, err := row.ToHistory()
		if err != nil {
			return nil, err
		}
		s.History = append(s.History, r)
	}
	return s, nil
}
