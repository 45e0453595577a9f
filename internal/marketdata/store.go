// Package marketdata keeps the live quote table the engine prices against,
// and a pub/sub bus that fans quote updates out to WebSocket subscribers.
package marketdata

import (
	"errors"
	"sort"
	"sync"
	"time"

	"lv-paperbroker/internal/model"
)

var ErrNoQuote = errors.New("marketdata: no quote for symbol")

type Store struct {
	mu     sync.RWMutex
	quotes map[string]model.Quote
	bus    *Bus
}

func NewStore(bus *Bus) *Store {
	return &Store{quotes: make(map[string]model.Quote), bus: bus}
}

// Lookup satisfies the engine's price oracle: current price and currency
// for a symbol. A missing or non-positive quote is an error the caller
// treats as a stale price.
func (s *Store) Lookup(symbol string) (model.Quote, error) {
	s.mu.RLock()
	q, ok := s.quotes[symbol]
	s.mu.RUnlock()
	if !ok || q.Price <= 0 {
		return model.Quote{}, ErrNoQuote
	}
	return q, nil
}

func (s *Store) Set(q model.Quote) {
	q.UpdatedAt = time.Now().UTC()
	s.mu.Lock()
	s.quotes[q.Symbol] = q
	s.mu.Unlock()
	if s.bus != nil {
		s.bus.Publish(Event{Type: "quote", Data: q})
	}
}

func (s *Store) Delete(symbol string) {
	s.mu.Lock()
	delete(s.quotes, symbol)
	s.mu.Unlock()
}

func (s *Store) All() []model.Quote {
	s.mu.RLock()
	out := make([]model.Quote, 0, len(s.quotes))
	for _, q := range s.quotes {
		out = append(out, q)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
