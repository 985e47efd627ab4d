// chips package

package chips

import (
	"fmt"
	"strconv"
	"sync"
)

// Denomination is the face value of a chip.
type Denomination int

const (
	Denomination10  Denomination = 10
	Denomination50  Denomination = 50
	Denomination100 Denomination = 100
	Denomination200 Denomination = 200
)

// Denominations lists the valid chip values in ascending order.
var Denominations = []Denomination{Denomination10, Denomination50, Denomination100, Denomination200}

// Value returns the chip value in balance units.
func (d Denomination) Value() int {
	return int(d)
}

// Valid reports whether d is one of the fixed chip values.
func (d Denomination) Valid() bool {
	for _, v := range Denominations {
		if d == v {
			return true
		}
	}
	return false
}

func (d Denomination) String() string {
	return strconv.Itoa(int(d))
}

// ParseDenomination parses a chip value such as "50".
func ParseDenomination(s string) (Denomination, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse denomination %q: %v", s, err)
	}
	d := Denomination(v)
	if !d.Valid() {
		return 0, fmt.Errorf("invalid denomination: %d", v)
	}
	return d, nil
}

// Chip is one unit of wager. SpotID is empty while the chip is not on a spot.
type Chip struct {
	ID           uint32
	Denomination Denomination
	SpotID       string
}

// Pool recycles chips so that a placed chip is never owned permanently by a spot.
type Pool struct {
	free   []*Chip
	inUse  map[uint32]*Chip
	nextID uint32
	lock   sync.Mutex
}

func NewPool() *Pool {
	return &Pool{
		inUse: make(map[uint32]*Chip),
	}
}

// Get hands out a chip of the given denomination, reusing a returned chip if one is available.
func (p *Pool) Get(d Denomination) *Chip {
	p.lock.Lock()
	defer p.lock.Unlock()

	var c *Chip
	if n := len(p.free); n > 0 {
		c = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		p.nextID++
		c = &Chip{ID: p.nextID}
	}
	c.Denomination = d
	c.SpotID = ""
	p.inUse[c.ID] = c
	return c
}

// Return releases a chip back to the pool. Returning a chip twice is a no-op.
func (p *Pool) Return(c *Chip) {
	if c == nil {
		return
	}
	p.lock.Lock()
	defer p.lock.Unlock()

	if _, ok := p.inUse[c.ID]; !ok {
		return
	}
	delete(p.inUse, c.ID)
	c.SpotID = ""
	p.free = append(p.free, c)
}

// InUse returns the number of chips handed out and not yet returned.
func (p *Pool) InUse() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.inUse)
}

// Idle returns the number of chips waiting for reuse.
func (p *Pool) Idle() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.free)
}
