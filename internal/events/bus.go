package events

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Handler receives events of the kind it was registered for.
type Handler func(Event)

// Subscription identifies one registered handler.
type Subscription struct {
	bus  *Bus
	kind Kind
	id   uint64
}

// Unsubscribe removes the handler. Calling it more than once is harmless.
func (s Subscription) Unsubscribe() {
	if s.bus != nil {
		s.bus.Off(s)
	}
}

// Kind returns the event kind the subscription listens to.
func (s Subscription) Kind() Kind { return s.kind }

// Emission is the diagnostic record of the most recent Emit.
type Emission struct {
	Kind  Kind
	Event Event
	At    time.Time
}

// Options configure a Bus.
type Options struct {
	Logger *zerolog.Logger
	// Now overrides the clock used for LastEvent timestamps.
	Now func() time.Time
	// Debug logs every emission at debug level.
	Debug bool
}

type entry struct {
	id uint64
	h  Handler
}

// Bus is a synchronous publish/subscribe hub.
// Handlers run on the emitting goroutine in registration order.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Kind][]entry
	nextID uint64
	last   *Emission
	debug  bool
	log    zerolog.Logger
	now    func() time.Time
}

// New constructs an empty Bus.
func New(opts Options) *Bus {
	b := &Bus{
		subs:  make(map[Kind][]entry),
		debug: opts.Debug,
		log:   zerolog.Nop(),
		now:   opts.Now,
	}
	if opts.Logger != nil {
		b.log = opts.Logger.With().Str("component", "eventbus").Logger()
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b
}

// On registers h for kind and returns its subscription.
func (b *Bus) On(kind Kind, h Handler) Subscription {
	if h == nil {
		panic("events: nil handler")
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[kind] = append(b.subs[kind], entry{id: id, h: h})
	b.mu.Unlock()
	return Subscription{bus: b, kind: kind, id: id}
}

// Listen registers a handler typed on the concrete event E.
func Listen[E Event](b *Bus, fn func(E)) Subscription {
	var zero E
	return b.On(zero.Kind(), func(ev Event) {
		if e, ok := ev.(E); ok {
			fn(e)
		}
	})
}

// Off removes the handler behind s.
func (b *Bus) Off(s Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[s.kind]
	for i, e := range list {
		if e.id == s.id {
			out := make([]entry, 0, len(list)-1)
			out = append(out, list[:i]...)
			out = append(out, list[i+1:]...)
			if len(out) == 0 {
				delete(b.subs, s.kind)
			} else {
				b.subs[s.kind] = out
			}
			return
		}
	}
}

// Emit delivers ev to every handler registered for its kind at the time of the call.
// A panicking handler is logged and skipped; it never reaches the caller.
func (b *Bus) Emit(ev Event) {
	if ev == nil {
		return
	}
	kind := ev.Kind()
	b.mu.Lock()
	b.last = &Emission{Kind: kind, Event: ev, At: b.now()}
	handlers := b.subs[kind]
	debug := b.debug
	b.mu.Unlock()

	if debug {
		b.log.Debug().Str("event", string(kind)).Str("payload", fmt.Sprintf("%+v", ev)).Msg("emit")
	}
	for _, e := range handlers {
		b.call(kind, e, ev)
	}
}

func (b *Bus) call(kind Kind, e entry, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Str("event", string(kind)).
				Uint64("subscription", e.id).
				Interface("panic", r).
				Msg("event handler failed")
		}
	}()
	e.h(ev)
}

// LastEvent returns the most recent emission, if any.
func (b *Bus) LastEvent() (Emission, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.last == nil {
		return Emission{}, false
	}
	return *b.last, true
}

// Clear removes all handlers of the given kinds, or every handler when none are given.
func (b *Bus) Clear(kinds ...Kind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(kinds) == 0 {
		b.subs = make(map[Kind][]entry)
		return
	}
	for _, k := range kinds {
		delete(b.subs, k)
	}
}

// ListenerCount returns the number of handlers for kind, or for all kinds when kind is empty.
func (b *Bus) ListenerCount(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if kind != "" {
		return len(b.subs[kind])
	}
	n := 0
	for _, list := range b.subs {
		n += len(list)
	}
	return n
}

// Kinds lists the kinds that currently have handlers, sorted.
func (b *Bus) Kinds() []Kind {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Kind, 0, len(b.subs))
	for k := range b.subs {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SetDebug toggles emission logging.
func (b *Bus) SetDebug(enabled bool) {
	b.mu.Lock()
	b.debug = enabled
	b.mu.Unlock()
}
