// Package component holds the UI-agnostic behaviour of forms, tables and
// search panels. Components talk to each other and to the CRUD coordinator
// only through the event bus.
package component

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/oscarka/underwritingsystem2/internal/events"
)

// Base tracks a component's bus subscriptions so Destroy can release them.
type Base struct {
	bus *events.Bus
	log zerolog.Logger

	mu        sync.Mutex
	subs      []events.Subscription
	destroyed bool
}

func newBase(bus *events.Bus, logger *zerolog.Logger, name string) Base {
	b := Base{bus: bus, log: zerolog.Nop()}
	if logger != nil {
		b.log = logger.With().Str("component", name).Logger()
	}
	return b
}

// track keeps subscriptions for Destroy. After Destroy they are released at once.
func (b *Base) track(subs ...events.Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		for _, s := range subs {
			s.Unsubscribe()
		}
		return
	}
	b.subs = append(b.subs, subs...)
}

func (b *Base) emit(ev events.Event) {
	if b.Destroyed() {
		return
	}
	b.bus.Emit(ev)
}

// Destroy unsubscribes everything. Safe to call more than once.
func (b *Base) Destroy() {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.destroyed = true
	b.mu.Unlock()
	for _, s := range subs {
		s.Unsubscribe()
	}
}

func (b *Base) Destroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}
