package events

import "sync"

// Recorder stores events in memory for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	subs   []Subscription
}

// NewRecorder subscribes a Recorder to the given kinds on b.
func NewRecorder(b *Bus, kinds ...Kind) *Recorder {
	r := &Recorder{}
	for _, k := range kinds {
		r.subs = append(r.subs, b.On(k, r.record))
	}
	return r
}

func (r *Recorder) record(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Of returns the recorded events of kind k.
func (r *Recorder) Of(k Kind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Kind() == k {
			out = append(out, ev)
		}
	}
	return out
}

// Toasts returns the recorded toasts, optionally filtered by level.
func (r *Recorder) Toasts(levels ...Level) []Toast {
	var out []Toast
	for _, ev := range r.Of(KindToast) {
		t := ev.(Toast)
		if len(levels) == 0 {
			out = append(out, t)
			continue
		}
		for _, l := range levels {
			if t.Level == l {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// Reset drops recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// Close unsubscribes the recorder.
func (r *Recorder) Close() {
	for _, s := range r.subs {
		s.Unsubscribe()
	}
	r.subs = nil
}
