package wheel

import (
	"github.com/cbodonnell/roulette/pkg/kinematic"
	"github.com/cbodonnell/roulette/pkg/table"
)

// WheelOrder is the clockwise pocket order of a single-zero wheel.
var WheelOrder = []int{
	0, 32, 15, 19, 4, 21, 2, 25, 17, 34, 6, 27, 13, 36, 11, 30, 8, 23, 10,
	5, 24, 16, 33, 1, 20, 14, 31, 9, 22, 18, 29, 7, 28, 12, 35, 3, 26,
}

// Anchor is the resting point of the ball in one pocket, in wheel-local coordinates.
type Anchor struct {
	Number int
	Index  int
	Local  kinematic.Vector
	Center kinematic.Vector
}

// WorldPosition returns the anchor position for the given wheel angle in degrees.
func (a Anchor) WorldPosition(wheelAngle float64) kinematic.Vector {
	return a.Center.Add(a.Local.RotateY(wheelAngle))
}

// SlotResolver maps an outcome number to its pocket anchor.
type SlotResolver interface {
	Resolve(number int) (Anchor, bool)
}

// SlotTable is a fixed lookup of the pocket anchors, indexed by number.
type SlotTable struct {
	anchors map[int]Anchor
}

// NewSlotTable places the pockets evenly on a circle around center, in WheelOrder.
func NewSlotTable(center kinematic.Vector, pocketRadius float64, height float64) *SlotTable {
	t := &SlotTable{anchors: make(map[int]Anchor, len(WheelOrder))}
	step := 360 / float64(len(WheelOrder))
	for i, number := range WheelOrder {
		local := kinematic.Vector{X: pocketRadius, Y: height}.RotateY(float64(i) * step)
		t.anchors[number] = Anchor{
			Number: number,
			Index:  i,
			Local:  local,
			Center: center,
		}
	}
	return t
}

// Resolve returns the anchor of the pocket holding number.
func (t *SlotTable) Resolve(number int) (Anchor, bool) {
	if !table.ValidNumber(number) {
		return Anchor{}, false
	}
	a, ok := t.anchors[number]
	return a, ok
}

// NumberAt returns the pocket nearest to a world position for the given wheel angle.
func (t *SlotTable) NumberAt(position kinematic.Vector, wheelAngle float64) int {
	best, bestDistance := -1, 0.0
	for number, a := range t.anchors {
		d := kinematic.Distance(a.WorldPosition(wheelAngle).Horizontal(), position.Horizontal())
		if best < 0 || d < bestDistance {
			best, bestDistance = number, d
		}
	}
	return best
}
