package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/cbodonnell/roulette/pkg/chips"
	"github.com/cbodonnell/roulette/pkg/history"
	"github.com/cbodonnell/roulette/pkg/ledger"
	"github.com/cbodonnell/roulette/pkg/wheel"
)

// CommandType identifies a player action or query processed by the game loop.
type CommandType string

const (
	CommandPlaceBet   CommandType = "place_bet"
	CommandRemoveBet  CommandType = "remove_bet"
	CommandMoveChip   CommandType = "move_chip"
	CommandCancelBets CommandType = "cancel_bets"
	CommandSelectChip CommandType = "select_chip"
	CommandAddFunds   CommandType = "add_funds"
	CommandSpin       CommandType = "spin"
	CommandHistory    CommandType = "history"
	CommandStats      CommandType = "stats"
)

// ErrStopped is returned by Submit when the game loop is no longer running.
var ErrStopped = errors.New("game loop stopped")

// Command is queued by Submit and executed at the start of the next tick.
type Command struct {
	Type         CommandType
	SpotID       string
	ToSpotID     string
	Denomination chips.Denomination
	Amount       int

	reply chan CommandResult
}

// CommandResult reports the outcome of a command. Rejections are not errors.
type CommandResult struct {
	Accepted   bool   `json:"accepted"`
	Reason     string `json:"reason,omitempty"`
	SpotID     string `json:"spotID,omitempty"`
	RoundID    string `json:"roundID,omitempty"`
	Balance    int    `json:"balance"`
	TotalWager int    `json:"totalWager"`
	SpotTotal  int    `json:"spotTotal"`
	Commitment string `json:"commitment,omitempty"`

	History []history.GameRecord `json:"history,omitempty"`
	Stats   *history.Stats       `json:"stats,omitempty"`
}

func (r CommandResult) Err() error {
	if r.Accepted {
		return nil
	}
	return fmt.Errorf("command rejected: %s", r.Reason)
}

// Submit queues a command for the game loop and waits for its result.
func (m *Manager) Submit(ctx context.Context, cmd Command) (CommandResult, error) {
	cmd.reply = make(chan CommandResult, 1)
	if err := m.commands.Enqueue(&cmd); err != nil {
		return CommandResult{}, fmt.Errorf("failed to enqueue command: %v", err)
	}

	select {
	case <-ctx.Done():
		return CommandResult{}, ctx.Err()
	case <-m.done:
		return CommandResult{}, ErrStopped
	case result := <-cmd.reply:
		return result, nil
	}
}

// processCommands runs every pending command in arrival order.
func (m *Manager) processCommands() {
	pending, err := m.commands.ReadAllMessages()
	if err != nil {
		m.logger.Error("Failed to read commands: %v", err)
		return
	}
	for _, item := range pending {
		cmd, ok := item.(*Command)
		if !ok {
			m.logger.Error("Unknown command type %T", item)
			continue
		}
		result := m.execute(*cmd)
		if cmd.reply != nil {
			cmd.reply <- result
		}
	}
}

// Execute runs a command synchronously. It must only be called from the game loop goroutine.
func (m *Manager) Execute(cmd Command) CommandResult {
	return m.execute(cmd)
}

func (m *Manager) execute(cmd Command) CommandResult {
	m.logger.Trace("Executing %s", cmd.Type)

	var result CommandResult
	switch cmd.Type {
	case CommandPlaceBet:
		result = m.fromLedger(m.ledger.PlaceBet(cmd.SpotID, cmd.Denomination))
	case CommandRemoveBet:
		result = m.fromLedger(m.ledger.RemoveTopBet(cmd.SpotID))
	case CommandMoveChip:
		result = m.fromLedger(m.ledger.MoveChip(cmd.SpotID, cmd.ToSpotID))
	case CommandCancelBets:
		result = m.fromLedger(m.ledger.CancelAllBets())
	case CommandSelectChip:
		result = m.fromLedger(m.ledger.SelectChip(cmd.Denomination))
	case CommandAddFunds:
		result = m.fromLedger(m.ledger.AddFunds(cmd.Amount))
	case CommandSpin:
		result = m.spin()
	case CommandHistory:
		result = m.fromLedger(ledger.Result{Accepted: true})
		result.History = append([]history.GameRecord{}, m.saveData.History...)
	case CommandStats:
		stats := m.saveData.Stats()
		result = m.fromLedger(ledger.Result{Accepted: true})
		result.Stats = &stats
	default:
		result = CommandResult{Reason: fmt.Sprintf("unknown command %q", cmd.Type)}
	}
	return result
}

func (m *Manager) fromLedger(r ledger.Result) CommandResult {
	result := CommandResult{
		Accepted:   r.Accepted,
		Reason:     string(r.Reason),
		SpotID:     r.SpotID,
		Balance:    m.ledger.CurrentBalance(),
		TotalWager: m.ledger.TotalWager(),
	}
	if r.SpotID != "" {
		result.SpotTotal = m.ledger.SpotTotal(r.SpotID)
	}
	return result
}

func (m *Manager) fromSpin(r wheel.SpinResult) CommandResult {
	result := CommandResult{
		Accepted:   r.Accepted,
		Reason:     string(r.Reason),
		RoundID:    r.RoundID,
		Balance:    m.ledger.CurrentBalance(),
		TotalWager: m.ledger.TotalWager(),
	}
	if r.Proof != nil {
		result.Commitment = r.Proof.ServerSeedHash
	}
	return result
}
