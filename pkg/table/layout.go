package table

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/solarlune/resolv"
)

// Layout geometry in layout units. The zero pocket occupies the leftmost
// column, the number grid follows with 3 rows of 12 columns, the column bets
// sit at the right end and the dozens and even-money spots sit below the grid.
const (
	CellSize     = 60.0
	EdgeInset    = 12.0
	GridX        = CellSize
	GridY        = 0.0
	GridColumns  = 12
	GridRows     = 3
	DozenY       = GridY + GridRows*CellSize + 20
	DozenHeight  = 50.0
	OutsideY     = DozenY + DozenHeight
	OutsideWidth = 2 * CellSize
	LayoutWidth  = GridX + (GridColumns+1)*CellSize
	LayoutHeight = OutsideY + DozenHeight

	spaceCellSize = 12
	spotTag       = "spot"
)

// Layout is an immutable set of table spots with coordinate hit-testing.
type Layout struct {
	spots []*Spot
	byID  map[string]*Spot

	lock  sync.Mutex
	space *resolv.Space
	probe *resolv.Object
}

// NewLayout indexes the given spots. Spot IDs must be unique.
func NewLayout(spots []*Spot) (*Layout, error) {
	l := &Layout{
		spots: spots,
		byID:  make(map[string]*Spot, len(spots)),
		space: resolv.NewSpace(int(LayoutWidth), int(LayoutHeight), spaceCellSize, spaceCellSize),
		probe: resolv.NewObject(0, 0, 1, 1),
	}
	for _, spot := range spots {
		if _, ok := l.byID[spot.ID]; ok {
			return nil, fmt.Errorf("duplicate spot id: %s", spot.ID)
		}
		l.byID[spot.ID] = spot
		obj := resolv.NewObject(spot.Rect.X, spot.Rect.Y, spot.Rect.W, spot.Rect.H, spotTag)
		obj.Data = spot
		l.space.Add(obj)
	}
	l.space.Add(l.probe)
	return l, nil
}

// StandardLayout builds the single-zero European table.
func StandardLayout() *Layout {
	l, err := NewLayout(standardSpots())
	if err != nil {
		panic(fmt.Sprintf("invalid standard layout: %v", err))
	}
	return l
}

// Spot returns the spot with the given ID, or nil.
func (l *Layout) Spot(id string) *Spot {
	return l.byID[id]
}

// Spots returns every spot in layout order.
func (l *Layout) Spots() []*Spot {
	spots := make([]*Spot, len(l.spots))
	copy(spots, l.spots)
	return spots
}

// SpotsByType returns the spots accepting the given bet type.
func (l *Layout) SpotsByType(t BetType) []*Spot {
	var spots []*Spot
	for _, spot := range l.spots {
		if spot.Type == t {
			spots = append(spots, spot)
		}
	}
	return spots
}

// SpotAt returns the spot under the given point, or nil.
func (l *Layout) SpotAt(x, y float64) *Spot {
	if x < 0 || y < 0 || x >= LayoutWidth || y >= LayoutHeight {
		return nil
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	l.probe.Position.X = x
	l.probe.Position.Y = y
	l.probe.Update()

	collision := l.probe.Check(0, 0, spotTag)
	if collision == nil {
		return nil
	}
	for _, obj := range collision.Objects {
		spot, ok := obj.Data.(*Spot)
		if !ok {
			continue
		}
		if spot.Rect.Contains(x, y) {
			return spot
		}
	}
	return nil
}

func standardSpots() []*Spot {
	var spots []*Spot
	add := func(t BetType, id string, rect Rect, numbers ...int) {
		spots = append(spots, &Spot{ID: id, Type: t, Numbers: numbers, Rect: rect})
	}

	add(BetTypeStraight, StraightID(0), Rect{X: EdgeInset, Y: GridY + EdgeInset, W: CellSize - 2*EdgeInset, H: GridRows*CellSize - 2*EdgeInset}, 0)
	for n := 1; n <= MaxNumber; n++ {
		x, y := cellOrigin(n)
		add(BetTypeStraight, StraightID(n), Rect{X: x + EdgeInset, Y: y + EdgeInset, W: CellSize - 2*EdgeInset, H: CellSize - 2*EdgeInset}, n)
	}

	// splits with the zero straddle the zero/grid boundary
	for n := 1; n <= 3; n++ {
		_, y := cellOrigin(n)
		add(BetTypeSplit, joinID("split", 0, n), Rect{X: GridX - EdgeInset, Y: y + EdgeInset, W: 2 * EdgeInset, H: CellSize - 2*EdgeInset}, 0, n)
	}
	for n := 1; n <= MaxNumber-3; n++ {
		x, y := cellOrigin(n)
		add(BetTypeSplit, joinID("split", n, n+3), Rect{X: x + CellSize - EdgeInset, Y: y + EdgeInset, W: 2 * EdgeInset, H: CellSize - 2*EdgeInset}, n, n+3)
	}
	for n := 1; n <= MaxNumber; n++ {
		if n%3 == 0 {
			continue
		}
		x, y := cellOrigin(n)
		add(BetTypeSplit, joinID("split", n, n+1), Rect{X: x + EdgeInset, Y: y - EdgeInset, W: CellSize - 2*EdgeInset, H: 2 * EdgeInset}, n, n+1)
	}

	add(BetTypeStreet, joinID("street", 0, 1, 2), square(GridX, GridY+2*CellSize), 0, 1, 2)
	add(BetTypeStreet, joinID("street", 0, 2, 3), square(GridX, GridY+CellSize), 0, 2, 3)
	for n := 1; n <= MaxNumber; n += 3 {
		x, _ := cellOrigin(n)
		add(BetTypeStreet, joinID("street", n, n+1, n+2), Rect{X: x + EdgeInset, Y: GridY + GridRows*CellSize - EdgeInset, W: CellSize - 2*EdgeInset, H: 2 * EdgeInset}, n, n+1, n+2)
	}

	add(BetTypeCorner, joinID("corner", 0, 1, 2, 3), square(GridX, GridY+GridRows*CellSize), 0, 1, 2, 3)
	for n := 1; n <= MaxNumber-4; n++ {
		if n%3 == 0 {
			continue
		}
		x, y := cellOrigin(n)
		add(BetTypeCorner, joinID("corner", n, n+1, n+3, n+4), square(x+CellSize, y), n, n+1, n+3, n+4)
	}

	for n := 1; n <= MaxNumber-5; n += 3 {
		x, _ := cellOrigin(n)
		add(BetTypeSixLine, fmt.Sprintf("six-line-%d-%d", n, n+5), square(x+CellSize, GridY+GridRows*CellSize), n, n+1, n+2, n+3, n+4, n+5)
	}

	for c := 1; c <= 3; c++ {
		var numbers []int
		for n := c; n <= MaxNumber; n += 3 {
			numbers = append(numbers, n)
		}
		row := 3 - c
		add(BetTypeColumn, fmt.Sprintf("column-%d", c), Rect{X: GridX + GridColumns*CellSize, Y: GridY + float64(row)*CellSize, W: CellSize, H: CellSize}, numbers...)
	}

	for d := 1; d <= 3; d++ {
		var numbers []int
		for n := (d-1)*12 + 1; n <= d*12; n++ {
			numbers = append(numbers, n)
		}
		add(BetTypeDozen, fmt.Sprintf("dozen-%d", d), Rect{X: GridX + float64(d-1)*4*CellSize, Y: DozenY, W: 4 * CellSize, H: DozenHeight}, numbers...)
	}

	outside := []struct {
		t     BetType
		match func(int) bool
	}{
		{BetTypeLow, IsLow},
		{BetTypeEven, IsEven},
		{BetTypeRed, IsRed},
		{BetTypeBlack, IsBlack},
		{BetTypeOdd, IsOdd},
		{BetTypeHigh, IsHigh},
	}
	for i, o := range outside {
		var numbers []int
		for n := 1; n <= MaxNumber; n++ {
			if o.match(n) {
				numbers = append(numbers, n)
			}
		}
		add(o.t, o.t.String(), Rect{X: GridX + float64(i)*OutsideWidth, Y: OutsideY, W: OutsideWidth, H: DozenHeight}, numbers...)
	}

	return spots
}

// cellOrigin returns the top-left corner of the grid cell holding n (1-36).
func cellOrigin(n int) (float64, float64) {
	col := (n - 1) / 3
	row := 2 - (n-1)%3
	return GridX + float64(col)*CellSize, GridY + float64(row)*CellSize
}

// square returns a hit box centered on a grid intersection.
func square(cx, cy float64) Rect {
	return Rect{X: cx - EdgeInset, Y: cy - EdgeInset, W: 2 * EdgeInset, H: 2 * EdgeInset}
}

// StraightID returns the spot ID of the straight bet on n.
func StraightID(n int) string {
	return "straight-" + strconv.Itoa(n)
}

func joinID(prefix string, numbers ...int) string {
	sorted := append([]int(nil), numbers...)
	sort.Ints(sorted)
	parts := make([]string, 0, len(sorted)+1)
	parts = append(parts, prefix)
	for _, n := range sorted {
		parts = append(parts, strconv.Itoa(n))
	}
	return strings.Join(parts, "-")
}
