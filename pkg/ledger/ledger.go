// Package ledger tracks the chips wagered on each table spot, the player's
// balance, and settles wagers against a winning number.
//
// A Ledger is owned by the game loop and is not safe for concurrent use.
// Rejected operations never mutate state; they are reported through the
// returned Result and the matching event on the bus.
package ledger

import (
	"math"

	"github.com/cbodonnell/roulette/pkg/chips"
	"github.com/cbodonnell/roulette/pkg/events"
	"github.com/cbodonnell/roulette/pkg/log"
	"github.com/cbodonnell/roulette/pkg/table"
)

const (
	DefaultMaxStackHeight = 10
	DefaultBalance        = 1000
)

// Reason explains why an operation was rejected.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonInsufficientFunds   Reason = "insufficient_funds"
	ReasonStackFull           Reason = "stack_full"
	ReasonEmptySpot           Reason = "empty_spot"
	ReasonUnknownSpot         Reason = "unknown_spot"
	ReasonNoBets              Reason = "no_bets"
	ReasonBetsLocked          Reason = "bets_locked"
	ReasonInvalidDenomination Reason = "invalid_denomination"
	ReasonInvalidAmount       Reason = "invalid_amount"
)

// Result is the outcome of a ledger operation.
type Result struct {
	Accepted     bool
	Reason       Reason
	SpotID       string
	Denomination chips.Denomination
}

func accepted(spotID string, d chips.Denomination) Result {
	return Result{Accepted: true, SpotID: spotID, Denomination: d}
}

func rejected(spotID string, reason Reason) Result {
	return Result{Reason: reason, SpotID: spotID}
}

// PlacedBet aggregates the chips on one spot.
type PlacedBet struct {
	SpotID string                     `json:"spotID"`
	Type   table.BetType              `json:"type"`
	Counts map[chips.Denomination]int `json:"counts"`
	Total  int                        `json:"total"`
}

// Settlement is the result of resolving every wager against a winning number.
type Settlement struct {
	WinningNumber int               `json:"winningNumber"`
	BetAmount     int               `json:"betAmount"`
	Payout        int               `json:"payout"`
	NewBalance    int               `json:"newBalance"`
	Results       []table.BetResult `json:"results"`
}

// IsWin reports whether any wager paid out.
func (s Settlement) IsWin() bool {
	return s.Payout > 0
}

type Ledger struct {
	layout   *table.Layout
	pool     *chips.Pool
	bus      *events.Bus
	logger   *log.Logger
	maxStack int

	balance   int
	stacks    map[string][]*chips.Chip
	total     int
	committed int
	locked    bool
	selected  chips.Denomination
}

type NewLedgerOptions struct {
	Layout         *table.Layout
	Pool           *chips.Pool
	Bus            *events.Bus
	Logger         *log.Logger
	Balance        int
	MaxStackHeight int
}

func New(opts NewLedgerOptions) *Ledger {
	if opts.Layout == nil {
		opts.Layout = table.StandardLayout()
	}
	if opts.Pool == nil {
		opts.Pool = chips.NewPool()
	}
	if opts.Logger == nil {
		opts.Logger = log.DefaultLogger().WithComponent("ledger")
	}
	if opts.MaxStackHeight <= 0 {
		opts.MaxStackHeight = DefaultMaxStackHeight
	}
	return &Ledger{
		layout:   opts.Layout,
		pool:     opts.Pool,
		bus:      opts.Bus,
		logger:   opts.Logger,
		maxStack: opts.MaxStackHeight,
		balance:  opts.Balance,
		stacks:   make(map[string][]*chips.Chip),
		selected: chips.Denomination10,
	}
}

// Layout returns the table the ledger accepts bets on.
func (l *Ledger) Layout() *table.Layout {
	return l.layout
}

// PlaceBet pushes a chip onto the spot. A zero denomination uses the selected chip.
func (l *Ledger) PlaceBet(spotID string, d chips.Denomination) Result {
	if d == 0 {
		d = l.selected
	}
	if !d.Valid() {
		return l.reject(spotID, ReasonInvalidDenomination)
	}
	if l.locked {
		return l.reject(spotID, ReasonBetsLocked)
	}
	if l.layout.Spot(spotID) == nil {
		return l.reject(spotID, ReasonUnknownSpot)
	}
	if len(l.stacks[spotID]) >= l.maxStack {
		l.logger.Info("Stack on %s is full", spotID)
		l.bus.Publish(events.StackFull{SpotID: spotID, MaxHeight: l.maxStack})
		return rejected(spotID, ReasonStackFull)
	}
	if required := l.total + d.Value(); required > l.balance {
		l.logger.Info("Insufficient funds to place %d on %s: need %d, have %d", d, spotID, required, l.balance)
		l.bus.Publish(events.InsufficientFunds{SpotID: spotID, Required: required, Balance: l.balance})
		return rejected(spotID, ReasonInsufficientFunds)
	}

	chip := l.pool.Get(d)
	l.push(spotID, chip)
	l.logger.Debug("Placed %d on %s", d, spotID)
	l.bus.Publish(events.BetChanged{
		SpotID:       spotID,
		Denomination: d,
		Action:       events.BetActionPlaced,
		SpotTotal:    l.SpotTotal(spotID),
		TotalWager:   l.total,
	})
	return accepted(spotID, d)
}

// RemoveTopBet pops the most recently placed chip from the spot.
// Removing from an empty spot is a no-op and publishes nothing.
func (l *Ledger) RemoveTopBet(spotID string) Result {
	if l.locked {
		return l.reject(spotID, ReasonBetsLocked)
	}
	if l.layout.Spot(spotID) == nil {
		return l.reject(spotID, ReasonUnknownSpot)
	}
	chip := l.pop(spotID)
	if chip == nil {
		return rejected(spotID, ReasonEmptySpot)
	}
	d := chip.Denomination
	l.pool.Return(chip)

	l.logger.Debug("Removed %d from %s", d, spotID)
	l.bus.Publish(events.BetChanged{
		SpotID:       spotID,
		Denomination: d,
		Action:       events.BetActionRemoved,
		SpotTotal:    l.SpotTotal(spotID),
		TotalWager:   l.total,
	})
	return accepted(spotID, d)
}

// MoveChip moves the top chip of one spot onto another. If the destination
// rejects the chip, it stays on its origin spot.
func (l *Ledger) MoveChip(fromID, toID string) Result {
	if l.locked {
		return l.reject(fromID, ReasonBetsLocked)
	}
	if l.layout.Spot(fromID) == nil {
		return l.reject(fromID, ReasonUnknownSpot)
	}
	if l.layout.Spot(toID) == nil {
		return l.reject(toID, ReasonUnknownSpot)
	}
	stack := l.stacks[fromID]
	if len(stack) == 0 {
		return rejected(fromID, ReasonEmptySpot)
	}
	top := stack[len(stack)-1]
	if fromID == toID {
		return accepted(toID, top.Denomination)
	}
	if len(l.stacks[toID]) >= l.maxStack {
		l.bus.Publish(events.StackFull{SpotID: toID, MaxHeight: l.maxStack})
		return rejected(toID, ReasonStackFull)
	}
	if l.total > l.balance {
		l.bus.Publish(events.InsufficientFunds{SpotID: toID, Required: l.total, Balance: l.balance})
		return rejected(toID, ReasonInsufficientFunds)
	}

	chip := l.pop(fromID)
	l.bus.Publish(events.BetChanged{
		SpotID:       fromID,
		Denomination: chip.Denomination,
		Action:       events.BetActionRemoved,
		SpotTotal:    l.SpotTotal(fromID),
		TotalWager:   l.total,
	})
	l.push(toID, chip)
	l.bus.Publish(events.BetChanged{
		SpotID:       toID,
		Denomination: chip.Denomination,
		Action:       events.BetActionPlaced,
		SpotTotal:    l.SpotTotal(toID),
		TotalWager:   l.total,
	})
	l.logger.Debug("Moved %d from %s to %s", chip.Denomination, fromID, toID)
	return accepted(toID, chip.Denomination)
}

// CancelAllBets returns every placed chip to the pool.
func (l *Ledger) CancelAllBets() Result {
	if l.locked {
		return l.reject("", ReasonBetsLocked)
	}
	count, amount := l.clear()
	l.logger.Debug("Cancelled %d chips worth %d", count, amount)
	l.bus.Publish(events.BetsCleared{Chips: count, Returned: amount})
	return Result{Accepted: true}
}

// SelectChip sets the denomination used when a bet is placed without one.
func (l *Ledger) SelectChip(d chips.Denomination) Result {
	if !d.Valid() {
		return l.reject("", ReasonInvalidDenomination)
	}
	l.selected = d
	l.bus.Publish(events.ChipSelected{Denomination: d})
	return accepted("", d)
}

func (l *Ledger) SelectedChip() chips.Denomination {
	return l.selected
}

// TotalWager returns the sum of every chip on the table.
func (l *Ledger) TotalWager() int {
	return l.total
}

// SpotTotal returns the sum of the chips stacked on a spot.
func (l *Ledger) SpotTotal(spotID string) int {
	sum := 0
	for _, chip := range l.stacks[spotID] {
		sum += chip.Denomination.Value()
	}
	return sum
}

// SpotStack returns the denominations on a spot from bottom to top.
func (l *Ledger) SpotStack(spotID string) []chips.Denomination {
	stack := l.stacks[spotID]
	out := make([]chips.Denomination, len(stack))
	for i, chip := range stack {
		out[i] = chip.Denomination
	}
	return out
}

// PlacedBets returns the chip counts of every spot with a wager, in layout order.
func (l *Ledger) PlacedBets() []PlacedBet {
	var bets []PlacedBet
	for _, spot := range l.layout.Spots() {
		stack := l.stacks[spot.ID]
		if len(stack) == 0 {
			continue
		}
		bet := PlacedBet{
			SpotID: spot.ID,
			Type:   spot.Type,
			Counts: make(map[chips.Denomination]int),
		}
		for _, chip := range stack {
			bet.Counts[chip.Denomination]++
			bet.Total += chip.Denomination.Value()
		}
		bets = append(bets, bet)
	}
	return bets
}

// CommitWager debits the total wager from the balance and locks the table until
// the round is resolved or refunded.
func (l *Ledger) CommitWager() (int, Result) {
	if l.locked {
		return 0, rejected("", ReasonBetsLocked)
	}
	if l.total <= 0 {
		return 0, rejected("", ReasonNoBets)
	}
	if !l.HasEnoughFunds(l.total) {
		l.bus.Publish(events.InsufficientFunds{Required: l.total, Balance: l.balance})
		return 0, rejected("", ReasonInsufficientFunds)
	}
	l.committed = l.total
	l.locked = true
	l.adjustBalance(-l.committed, "wager")
	return l.committed, Result{Accepted: true}
}

// Resolve settles every wager against the winning number, credits the payout,
// clears the table and unlocks it.
func (l *Ledger) Resolve(winningNumber int) Settlement {
	settlement := Settlement{WinningNumber: winningNumber}
	for _, bet := range l.PlacedBets() {
		spot := l.layout.Spot(bet.SpotID)
		result := table.BetResult{
			SpotID: bet.SpotID,
			Type:   bet.Type,
			Wager:  bet.Total,
		}
		if spot.Wins(winningNumber) {
			result.Won = true
			result.Payout = bet.Total * (1 + spot.Multiplier())
		}
		settlement.BetAmount += bet.Total
		settlement.Payout += result.Payout
		settlement.Results = append(settlement.Results, result)
	}

	if settlement.Payout > 0 {
		l.adjustBalance(settlement.Payout, "payout")
	}
	l.clear()
	l.committed = 0
	l.locked = false
	settlement.NewBalance = l.balance

	l.logger.Debug("Resolved %d: bet %d, payout %d, balance %d", winningNumber, settlement.BetAmount, settlement.Payout, l.balance)
	return settlement
}

// Refund credits back a committed wager and unlocks the table. The bets stay placed.
func (l *Ledger) Refund() int {
	if !l.locked {
		return 0
	}
	refunded := l.committed
	l.committed = 0
	l.locked = false
	if refunded > 0 {
		l.adjustBalance(refunded, "refund")
	}
	return refunded
}

// Locked reports whether a wager is committed to a spin in progress.
func (l *Ledger) Locked() bool {
	return l.locked
}

// Committed returns the wager debited for the spin in progress.
func (l *Ledger) Committed() int {
	return l.committed
}

func (l *Ledger) HasEnoughFunds(amount int) bool {
	return l.balance >= amount
}

func (l *Ledger) CurrentBalance() int {
	return l.balance
}

// AddFunds credits a positive amount to the balance.
func (l *Ledger) AddFunds(amount int) Result {
	if amount <= 0 || l.balance > math.MaxInt-amount {
		return l.reject("", ReasonInvalidAmount)
	}
	l.adjustBalance(amount, "deposit")
	return Result{Accepted: true}
}

// SetBalance replaces the balance, e.g. when restoring a saved game.
func (l *Ledger) SetBalance(balance int) {
	delta := balance - l.balance
	l.balance = balance
	l.bus.Publish(events.BalanceChanged{Balance: balance, Delta: delta, Reason: "restore"})
}

func (l *Ledger) adjustBalance(delta int, reason string) {
	l.balance += delta
	l.bus.Publish(events.BalanceChanged{Balance: l.balance, Delta: delta, Reason: reason})
}

func (l *Ledger) reject(spotID string, reason Reason) Result {
	l.logger.Info("Rejected bet operation on %q: %s", spotID, reason)
	l.bus.Publish(events.BetRejected{SpotID: spotID, Reason: string(reason)})
	return rejected(spotID, reason)
}

func (l *Ledger) push(spotID string, chip *chips.Chip) {
	chip.SpotID = spotID
	l.stacks[spotID] = append(l.stacks[spotID], chip)
	l.total += chip.Denomination.Value()
}

func (l *Ledger) pop(spotID string) *chips.Chip {
	stack := l.stacks[spotID]
	if len(stack) == 0 {
		return nil
	}
	chip := stack[len(stack)-1]
	stack[len(stack)-1] = nil
	if len(stack) == 1 {
		delete(l.stacks, spotID)
	} else {
		l.stacks[spotID] = stack[:len(stack)-1]
	}
	chip.SpotID = ""
	l.total -= chip.Denomination.Value()
	return chip
}

func (l *Ledger) clear() (int, int) {
	count, amount := 0, 0
	for spotID, stack := range l.stacks {
		for _, chip := range stack {
			count++
			amount += chip.Denomination.Value()
			l.pool.Return(chip)
		}
		delete(l.stacks, spotID)
	}
	l.total = 0
	return count, amount
}
