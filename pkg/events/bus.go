package events

import "sync"

type handler struct {
	id uint64
	fn func(Event)
}

// Bus dispatches events synchronously to subscribers in subscription order.
// Handlers run on the publishing goroutine and may publish further events.
type Bus struct {
	handlers []handler
	nextID   uint64
	lock     sync.RWMutex
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscription detaches a handler from its bus.
type Subscription struct {
	bus *Bus
	id  uint64
}

// Unsubscribe removes the handler. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.remove(s.id)
	s.bus = nil
}

// Publish delivers e to every current subscriber.
func (b *Bus) Publish(e Event) {
	if b == nil || e == nil {
		return
	}
	b.lock.RLock()
	handlers := make([]handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.lock.RUnlock()

	for _, h := range handlers {
		h.fn(e)
	}
}

// SubscribeAll registers fn for every event.
func (b *Bus) SubscribeAll(fn func(Event)) *Subscription {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.nextID++
	b.handlers = append(b.handlers, handler{id: b.nextID, fn: fn})
	return &Subscription{bus: b, id: b.nextID}
}

// Subscribe registers fn for events of type T only.
func Subscribe[T Event](b *Bus, fn func(T)) *Subscription {
	return b.SubscribeAll(func(e Event) {
		if typed, ok := e.(T); ok {
			fn(typed)
		}
	})
}

// Subscribers returns the number of registered handlers.
func (b *Bus) Subscribers() int {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return len(b.handlers)
}

func (b *Bus) remove(id uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()

	for i, h := range b.handlers {
		if h.id == id {
			b.handlers = append(b.handlers[:i:i], b.handlers[i+1:]...)
			return
		}
	}
}
