package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"WatchSentinel/internal/logger"
	"WatchSentinel/internal/model"
)

// ErrAllBatchesFailed is returned when no batch of a fetch produced quotes.
var ErrAllBatchesFailed = errors.New("all quote batches failed")

// Collector splits a code list into rate-limited batches against a Source.
type Collector struct {
	Source    Source
	BatchSize int
	limiter   *rate.Limiter
}

// NewCollector creates a collector allowing ratePerSec batch requests per second.
func NewCollector(src Source, batchSize int, ratePerSec float64) *Collector {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Collector{
		Source:    src,
		BatchSize: batchSize,
		limiter:   rate.NewLimiter(rate.Limit(ratePerSec), 1),
	}
}

// Collect fetches quotes for codes. Failed batches are logged and skipped;
// the result is partial unless every batch failed.
func (c *Collector) Collect(ctx context.Context, codes []string) ([]model.Quote, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	log := logger.Get().WithComponent("collector")
	start := time.Now()

	var (
		quotes  []model.Quote
		failed  int
		batches = splitBatches(codes, c.BatchSize)
		lastErr error
	)
	for _, batch := range batches {
		if err := c.limiter.Wait(ctx); err != nil {
			return quotes, fmt.Errorf("rate limit wait: %w", err)
		}
		got, err := c.Source.FetchQuotes(ctx, batch)
		if err != nil {
			failed++
			lastErr = err
			log.WithError(err).WithField("batch_size", len(batch)).Warn("batch fetch failed")
			continue
		}
		quotes = append(quotes, got...)
	}

	if failed == len(batches) {
		return nil, fmt.Errorf("%w: %s: %v", ErrAllBatchesFailed, c.Source.Name(), lastErr)
	}
	log.WithField("requested", len(codes)).
		WithField("received", len(quotes)).
		WithField("elapsed_ms", time.Since(start).Milliseconds()).
		Debug("quotes collected")
	return quotes, nil
}

func splitBatches(codes []string, size int) [][]string {
	var out [][]string
	for i := 0; i < len(codes); i += size {
		end := i + size
		if end > len(codes) {
			end = len(codes)
		}
		out = append(out, codes[i:end])
	}
	return out
}
