package table

// Rect is an axis-aligned region of the betting surface in layout units.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Contains reports whether the point lies inside the rectangle. The right and bottom edges are exclusive.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// Spot is a wager location on the table.
type Spot struct {
	ID      string  `json:"id"`
	Type    BetType `json:"type"`
	Numbers []int   `json:"numbers"`
	Rect    Rect    `json:"rect"`
}

// Wins reports whether a wager on the spot wins when the ball lands on n.
func (s *Spot) Wins(n int) bool {
	switch s.Type {
	case BetTypeHigh:
		return IsHigh(n)
	case BetTypeLow:
		return IsLow(n)
	case BetTypeRed:
		return IsRed(n)
	case BetTypeBlack:
		return IsBlack(n)
	case BetTypeOdd:
		return IsOdd(n)
	case BetTypeEven:
		return IsEven(n)
	}
	for _, number := range s.Numbers {
		if number == n {
			return true
		}
	}
	return false
}

// Multiplier returns the payout ratio of the spot's bet type.
func (s *Spot) Multiplier() int {
	return Multiplier(s.Type)
}

// BetResult is the settlement of one spot's wager against a winning number.
type BetResult struct {
	SpotID string  `json:"spotID"`
	Type   BetType `json:"type"`
	Wager  int     `json:"wager"`
	// Payout includes the returned stake. Zero for a losing wager.
	Payout int  `json:"payout"`
	Won    bool `json:"won"`
}
