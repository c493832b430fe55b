package feed

import (
	"sync"
	"time"
)

// PricePoint is the last observed price for one symbol.
type PricePoint struct {
	Price     int64 // ticks
	UpdatedAt time.Time
}

// State tracks the latest price per symbol. It is the only mutable state the
// feed owns and is safe for concurrent use.
type State struct {
	mu     sync.Mutex
	prices map[string]PricePoint
}

// NewState creates an empty State.
func NewState() *State {
	return &State{prices: make(map[string]PricePoint)}
}

// Update records a new price for symbol and returns the previous price along
// with whether one existed. The first observation for a symbol never
// triggers detection; there is nothing to compare against.
func (s *State) Update(symbol string, price int64, at time.Time) (prev int64, hadPrev bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prices[symbol]
	s.prices[symbol] = PricePoint{Price: price, UpdatedAt: at}
	return p.Price, ok
}

// Last returns the latest observation for symbol.
func (s *State) Last(symbol string) (PricePoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prices[symbol]
	return p, ok
}

// RelativeMove returns |new-prev|/prev. Zero prev yields zero.
func RelativeMove(prev, price int64) float64 {
	if prev == 0 {
		return 0
	}
	diff := price - prev
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) / float64(prev)
}
