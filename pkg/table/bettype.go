package table

import "fmt"

// BetType is the kind of wager a spot accepts.
type BetType uint8

const (
	BetTypeStraight BetType = iota
	BetTypeSplit
	BetTypeStreet
	BetTypeCorner
	BetTypeSixLine
	BetTypeColumn
	BetTypeDozen
	BetTypeHigh
	BetTypeLow
	BetTypeRed
	BetTypeBlack
	BetTypeOdd
	BetTypeEven
)

// BetTypes lists every bet type in payout order.
var BetTypes = []BetType{
	BetTypeStraight,
	BetTypeSplit,
	BetTypeStreet,
	BetTypeCorner,
	BetTypeSixLine,
	BetTypeColumn,
	BetTypeDozen,
	BetTypeHigh,
	BetTypeLow,
	BetTypeRed,
	BetTypeBlack,
	BetTypeOdd,
	BetTypeEven,
}

var betTypeNames = map[BetType]string{
	BetTypeStraight: "straight",
	BetTypeSplit:    "split",
	BetTypeStreet:   "street",
	BetTypeCorner:   "corner",
	BetTypeSixLine:  "six_line",
	BetTypeColumn:   "column",
	BetTypeDozen:    "dozen",
	BetTypeHigh:     "high",
	BetTypeLow:      "low",
	BetTypeRed:      "red",
	BetTypeBlack:    "black",
	BetTypeOdd:      "odd",
	BetTypeEven:     "even",
}

var betTypeMultipliers = map[BetType]int{
	BetTypeStraight: 35,
	BetTypeSplit:    17,
	BetTypeStreet:   11,
	BetTypeCorner:   8,
	BetTypeSixLine:  5,
	BetTypeColumn:   2,
	BetTypeDozen:    2,
	BetTypeHigh:     1,
	BetTypeLow:      1,
	BetTypeRed:      1,
	BetTypeBlack:    1,
	BetTypeOdd:      1,
	BetTypeEven:     1,
}

func (t BetType) String() string {
	if name, ok := betTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("BetType(%d)", uint8(t))
}

// ParseBetType returns the bet type with the given name.
func ParseBetType(name string) (BetType, error) {
	for t, n := range betTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown bet type: %s", name)
}

func (t BetType) MarshalText() ([]byte, error) {
	name, ok := betTypeNames[t]
	if !ok {
		return nil, fmt.Errorf("unknown bet type: %d", uint8(t))
	}
	return []byte(name), nil
}

func (t *BetType) UnmarshalText(b []byte) error {
	parsed, err := ParseBetType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Multiplier is the payout ratio of a winning wager, excluding the returned stake.
func Multiplier(t BetType) int {
	return betTypeMultipliers[t]
}

const (
	MinNumber = 0
	MaxNumber = 36
	// Pockets is the number of slots on a single-zero wheel.
	Pockets = MaxNumber - MinNumber + 1
)

var redNumbers = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true, 14: true, 16: true, 18: true,
	19: true, 21: true, 23: true, 25: true, 27: true, 30: true, 32: true, 34: true, 36: true,
}

// ValidNumber reports whether n is a pocket on the wheel.
func ValidNumber(n int) bool {
	return n >= MinNumber && n <= MaxNumber
}

func IsRed(n int) bool {
	return redNumbers[n]
}

func IsBlack(n int) bool {
	return n > 0 && n <= MaxNumber && !redNumbers[n]
}

func IsOdd(n int) bool {
	return n > 0 && n <= MaxNumber && n%2 == 1
}

func IsEven(n int) bool {
	return n > 0 && n <= MaxNumber && n%2 == 0
}

func IsHigh(n int) bool {
	return n >= 19 && n <= MaxNumber
}

func IsLow(n int) bool {
	return n >= 1 && n <= 18
}

// Color returns "green", "red" or "black".
func Color(n int) string {
	switch {
	case IsRed(n):
		return "red"
	case IsBlack(n):
		return "black"
	default:
		return "green"
	}
}
