package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"WatchSentinel/internal/logger"
	"WatchSentinel/internal/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooSource implements Source using the Yahoo Finance chart API, one request per code.
type YahooSource struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // maps internal code to Yahoo ticker
}

// NewYahooSource creates a new Yahoo Finance source.
func NewYahooSource(proxyURL string, timeout time.Duration) *YahooSource {
	return &YahooSource{
		BaseURL: yahooBaseURL,
		Client:  newHTTPClient(proxyURL, timeout),
		SymbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"NDX":    "^NDX",
		},
	}
}

func (f *YahooSource) Name() string { return "yahoo" }

func (f *YahooSource) yahooSymbol(code string) string {
	if mapped, ok := f.SymbolMap[code]; ok {
		return mapped
	}
	return code
}

// yahooChart is the subset of the chart API response that carries the live quote.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				ShortName          string  `json:"shortName"`
				LongName           string  `json:"longName"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				PreviousClose      float64 `json:"previousClose"`
				RegularMarketVol   float64 `json:"regularMarketVolume"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchQuotes fetches codes one by one and skips the ones that fail. It errors
// only when no code could be fetched.
func (f *YahooSource) FetchQuotes(ctx context.Context, codes []string) ([]model.Quote, error) {
	log := logger.Get().WithComponent("yahoo")
	quotes := make([]model.Quote, 0, len(codes))
	var lastErr error
	for _, code := range codes {
		q, err := f.fetchOne(ctx, code)
		if err != nil {
			if ctx.Err() != nil {
				return quotes, ctx.Err()
			}
			log.WithError(err).WithField("code", code).Warn("quote fetch failed")
			lastErr = err
			continue
		}
		quotes = append(quotes, q)
	}
	if len(quotes) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return quotes, nil
}

func (f *YahooSource) fetchOne(ctx context.Context, code string) (model.Quote, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=1d",
		f.BaseURL, url.PathEscape(f.yahooSymbol(code)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.Quote{}, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return model.Quote{}, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Quote{}, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return model.Quote{}, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return model.Quote{}, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return model.Quote{}, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return model.Quote{}, fmt.Errorf("yahoo: no data returned")
	}

	meta := chart.Chart.Result[0].Meta
	prevClose := meta.ChartPreviousClose
	if prevClose == 0 {
		prevClose = meta.PreviousClose
	}
	name := meta.ShortName
	if name == "" {
		name = meta.LongName
	}
	if name == "" {
		name = code
	}
	change, pct := changeOf(meta.RegularMarketPrice, prevClose)
	return model.Quote{
		Code:          code,
		Name:          name,
		Price:         meta.RegularMarketPrice,
		PrevClose:     prevClose,
		Change:        change,
		ChangePercent: pct,
		Volume:        meta.RegularMarketVol,
		Amount:        meta.RegularMarketVol * meta.RegularMarketPrice,
		Timestamp:     time.Unix(meta.RegularMarketTime, 0),
	}, nil
}
