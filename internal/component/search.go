package component

import (
	"net/url"
	"sync"

	"github.com/rs/zerolog"

	"github.com/oscarka/underwritingsystem2/internal/events"
)

// Search holds the query of a search panel.
type Search struct {
	Base
	mu     sync.Mutex
	values url.Values
}

func NewSearch(bus *events.Bus, logger *zerolog.Logger) *Search {
	return &Search{Base: newBase(bus, logger, "search"), values: url.Values{}}
}

// Set replaces key's values; no values removes the key.
func (s *Search) Set(key string, values ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(values) == 0 || (len(values) == 1 && values[0] == "") {
		s.values.Del(key)
		return
	}
	s.values[key] = append([]string(nil), values...)
}

func (s *Search) Values() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneValues(s.values)
}

// Submit emits SearchSubmitted with the current query.
func (s *Search) Submit() {
	s.emit(events.SearchSubmitted{Params: s.Values()})
}

// Reset clears the query and emits SearchReset.
func (s *Search) Reset() {
	s.mu.Lock()
	s.values = url.Values{}
	s.mu.Unlock()
	s.emit(events.SearchReset{})
}
