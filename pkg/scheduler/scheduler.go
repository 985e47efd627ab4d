// Package scheduler runs continuations after a delay measured in simulation time.
package scheduler

import "sort"

// Token identifies a scheduled continuation and can cancel it before it fires.
type Token struct {
	id        uint64
	due       float64
	fn        func()
	cancelled bool
	fired     bool
}

// Cancel prevents the continuation from running. Cancelling a fired token is a no-op.
func (t *Token) Cancel() {
	if t == nil {
		return
	}
	t.cancelled = true
}

// Active reports whether the continuation is still waiting to run.
func (t *Token) Active() bool {
	return t != nil && !t.cancelled && !t.fired
}

// Scheduler runs deferred continuations against simulation time.
// It is advanced by the owning tick loop and is not safe for concurrent use.
type Scheduler struct {
	now     float64
	nextID  uint64
	pending []*Token
}

func New() *Scheduler {
	return &Scheduler{}
}

// Now returns the current simulation time in seconds.
func (s *Scheduler) Now() float64 {
	return s.now
}

// After schedules fn to run once delay seconds of simulation time have elapsed.
func (s *Scheduler) After(delay float64, fn func()) *Token {
	if delay < 0 {
		delay = 0
	}
	s.nextID++
	t := &Token{
		id:  s.nextID,
		due: s.now + delay,
		fn:  fn,
	}
	s.pending = append(s.pending, t)
	return t
}

// Advance moves simulation time forward by dt and runs every continuation that became due,
// in due-time order (ties in scheduling order). While a continuation runs, Now reports its
// due time, so continuations it schedules are timed from that point and may fire in the
// same window.
func (s *Scheduler) Advance(dt float64) {
	target := s.now + dt
	for {
		t := s.popDue(target)
		if t == nil {
			break
		}
		if t.due > s.now {
			s.now = t.due
		}
		t.fired = true
		if t.fn != nil {
			t.fn()
		}
	}
	s.now = target
}

func (s *Scheduler) popDue(until float64) *Token {
	s.compact()
	if len(s.pending) == 0 {
		return nil
	}
	sort.SliceStable(s.pending, func(i, j int) bool {
		if s.pending[i].due == s.pending[j].due {
			return s.pending[i].id < s.pending[j].id
		}
		return s.pending[i].due < s.pending[j].due
	})
	next := s.pending[0]
	if next.due > until {
		return nil
	}
	s.pending = s.pending[1:]
	return next
}

func (s *Scheduler) compact() {
	live := s.pending[:0]
	for _, t := range s.pending {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	s.pending = live
}

// Pending returns the number of continuations that have not fired or been cancelled.
func (s *Scheduler) Pending() int {
	n := 0
	for _, t := range s.pending {
		if t.Active() {
			n++
		}
	}
	return n
}

// CancelAll drops every pending continuation.
func (s *Scheduler) CancelAll() {
	for _, t := range s.pending {
		t.Cancel()
	}
	s.pending = nil
}
