package collector

import (
	"context"
	"sync"
	"time"

	"WatchSentinel/internal/model"
)

// MockSource returns controllable fixed quotes for development and testing.
type MockSource struct {
	mu     sync.Mutex
	quotes map[string]model.Quote
	err    error
	calls  int

	defaultPrice float64
}

// NewMockSource creates a mock seeded with the given quotes.
func NewMockSource(quotes ...model.Quote) *MockSource {
	m := &MockSource{quotes: make(map[string]model.Quote)}
	for _, q := range quotes {
		m.quotes[q.Code] = q
	}
	return m
}

func (m *MockSource) Name() string { return "mock" }

// SetPrice sets the price of code and recomputes its change figures.
func (m *MockSource) SetPrice(code string, price, prevClose float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.quotes[code]
	q.Code = code
	if q.Name == "" {
		q.Name = code
	}
	q.Price = price
	q.PrevClose = prevClose
	q.Change, q.ChangePercent = changeOf(price, prevClose)
	q.Timestamp = time.Now()
	m.quotes[code] = q
}

// SetDefaultPrice makes fetches of unknown codes return a flat quote at price.
// Zero turns it off.
func (m *MockSource) SetDefaultPrice(price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultPrice = price
}

// FailWith makes subsequent fetches return err; nil clears it.
func (m *MockSource) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many fetches were made.
func (m *MockSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockSource) FetchQuotes(ctx context.Context, codes []string) ([]model.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]model.Quote, 0, len(codes))
	for _, code := range codes {
		q, ok := m.quotes[code]
		if !ok {
			if m.defaultPrice <= 0 {
				continue
			}
			q = model.Quote{Code: code, Name: code, Price: m.defaultPrice, PrevClose: m.defaultPrice, Timestamp: time.Now()}
			m.quotes[code] = q
		}
		out = append(out, q)
	}
	return out, nil
}
