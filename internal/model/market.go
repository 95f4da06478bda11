package model

import "time"

// Quote is the latest market data point for one instrument.
type Quote struct {
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	PrevClose     float64   `json:"prev_close"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"` // as reported by the source
	Volume        float64   `json:"volume"`
	Amount        float64   `json:"amount"`
	Timestamp     time.Time `json:"timestamp"`
}

// QuoteSnapshot maps instrument code to its most recent quote.
// A snapshot handed out by the store is never mutated afterwards.
type QuoteSnapshot map[string]Quote

// Get returns the quote for code, if any.
func (s QuoteSnapshot) Get(code string) (Quote, bool) {
	q, ok := s[code]
	return q, ok
}

// Merge returns a new snapshot with quotes applied over s. Codes absent from
// quotes keep their previous value; within quotes the last entry per code wins.
func (s QuoteSnapshot) Merge(quotes []Quote) QuoteSnapshot {
	next := make(QuoteSnapshot, len(s)+len(quotes))
	for code, q := range s {
		next[code] = q
	}
	for _, q := range quotes {
		if q.Code == "" {
			continue
		}
		next[q.Code] = q
	}
	return next
}

// Codes returns the snapshot's codes in no particular order.
func (s QuoteSnapshot) Codes() []string {
	codes := make([]string, 0, len(s))
	for code := range s {
		codes = append(codes, code)
	}
	return codes
}
