package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"

	"WatchSentinel/internal/model"
)

func sinaLine(code, name string, prevClose, price float64) string {
	fields := make([]string, 33)
	for i := range fields {
		fields[i] = "0"
	}
	fields[0] = name
	fields[1] = fmt.Sprintf("%.2f", prevClose)
	fields[2] = fmt.Sprintf("%.2f", prevClose)
	fields[3] = fmt.Sprintf("%.2f", price)
	fields[8] = "12345"
	fields[9] = "67890.5"
	fields[30] = "2026-10-16"
	fields[31] = "14:30:00"
	return fmt.Sprintf("var hq_str_%s=\"%s\";", code, strings.Join(fields, ","))
}

func TestParseSinaBody(t *testing.T) {
	body := strings.Join([]string{
		sinaLine("sh600519", "贵州茅台", 100, 105),
		`var hq_str_sz000000="";`,
		"garbage",
	}, "\n")

	quotes := parseSinaBody(body)
	if len(quotes) != 1 {
		t.Fatalf("expected 1 quote, got %d", len(quotes))
	}
	q := quotes[0]
	if q.Code != "sh600519" || q.Name != "贵州茅台" {
		t.Errorf("unexpected identity: %+v", q)
	}
	if q.Price != 105 || q.PrevClose != 100 {
		t.Errorf("price = %v prevClose = %v", q.Price, q.PrevClose)
	}
	if q.Change != 5 || q.ChangePercent != 5 {
		t.Errorf("change = %v pct = %v", q.Change, q.ChangePercent)
	}
	if q.Volume != 12345 || q.Amount != 67890.5 {
		t.Errorf("volume = %v amount = %v", q.Volume, q.Amount)
	}
	if q.Timestamp.Hour() != 14 || q.Timestamp.Minute() != 30 {
		t.Errorf("timestamp = %v", q.Timestamp)
	}
}

func TestSinaSource_FetchQuotesDecodesGBK(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body := sinaLine("sh600519", "贵州茅台", 100, 99) + "\n" + sinaLine("sz000001", "平安银行", 10, 11)
		encoded, err := simplifiedchinese.GBK.NewEncoder().String(body)
		if err != nil {
			t.Errorf("encode: %v", err)
		}
		_, _ = w.Write([]byte(encoded))
	}))
	defer srv.Close()

	src := NewSinaSource("", time.Second)
	src.BaseURL = srv.URL
	quotes, err := src.FetchQuotes(context.Background(), []string{"sh600519", "sz000001"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotPath != "/list=sh600519,sz000001" {
		t.Errorf("path = %q", gotPath)
	}
	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}
	if quotes[1].Name != "平安银行" {
		t.Errorf("name not decoded: %q", quotes[1].Name)
	}
	if quotes[0].ChangePercent != -1 {
		t.Errorf("pct = %v", quotes[0].ChangePercent)
	}
}

func TestSinaSource_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	src := NewSinaSource("", time.Second)
	src.BaseURL = srv.URL
	if _, err := src.FetchQuotes(context.Background(), []string{"sh600519"}); err == nil {
		t.Fatal("expected error on 403")
	}
}

func TestYahooSource_PartialResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "BAD") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"chart":{"result":[{"meta":{"symbol":"AAPL","shortName":"Apple",
			"regularMarketPrice":110,"chartPreviousClose":100,"regularMarketVolume":1000,
			"regularMarketTime":1760600000}}],"error":null}}`))
	}))
	defer srv.Close()

	src := NewYahooSource("", time.Second)
	src.BaseURL = srv.URL
	quotes, err := src.FetchQuotes(context.Background(), []string{"AAPL", "BAD"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(quotes) != 1 {
		t.Fatalf("expected 1 quote, got %d", len(quotes))
	}
	q := quotes[0]
	if q.Code != "AAPL" || q.Name != "Apple" || q.Price != 110 || q.ChangePercent != 10 {
		t.Errorf("unexpected quote: %+v", q)
	}

	if _, err := src.FetchQuotes(context.Background(), []string{"BAD"}); err == nil {
		t.Error("expected error when every code fails")
	}
}

// flakySource fails every batch that contains a code listed in fail.
type flakySource struct {
	mu      sync.Mutex
	fail    map[string]bool
	batches [][]string
}

func (f *flakySource) Name() string { return "flaky" }

func (f *flakySource) FetchQuotes(_ context.Context, codes []string) ([]model.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]string(nil), codes...))
	var out []model.Quote
	for _, c := range codes {
		if f.fail[c] {
			return nil, errors.New("boom")
		}
		out = append(out, model.Quote{Code: c, Price: 1})
	}
	return out, nil
}

func TestCollector_BatchesAndPartialFailure(t *testing.T) {
	src := &flakySource{fail: map[string]bool{"C": true}}
	col := NewCollector(src, 2, 1000)

	quotes, err := col.Collect(context.Background(), []string{"A", "B", "C", "D", "E"})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(src.batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(src.batches))
	}
	got := map[string]bool{}
	for _, q := range quotes {
		got[q.Code] = true
	}
	for _, c := range []string{"A", "B", "E"} {
		if !got[c] {
			t.Errorf("missing %s", c)
		}
	}
	if got["C"] || got["D"] {
		t.Error("failed batch leaked quotes")
	}
}

func TestCollector_AllBatchesFailed(t *testing.T) {
	src := &flakySource{fail: map[string]bool{"A": true}}
	col := NewCollector(src, 10, 1000)
	_, err := col.Collect(context.Background(), []string{"A"})
	if !errors.Is(err, ErrAllBatchesFailed) {
		t.Fatalf("expected ErrAllBatchesFailed, got %v", err)
	}
}

func TestCollector_EmptyCodes(t *testing.T) {
	src := NewMockSource()
	col := NewCollector(src, 10, 1000)
	quotes, err := col.Collect(context.Background(), nil)
	if err != nil || quotes != nil {
		t.Fatalf("expected nil, nil; got %v, %v", quotes, err)
	}
	if src.Calls() != 0 {
		t.Error("source should not be called for empty code list")
	}
}

func TestMockSource(t *testing.T) {
	src := NewMockSource()
	src.SetPrice("X", 96.99, 100)
	quotes, err := src.FetchQuotes(context.Background(), []string{"X", "Y"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(quotes) != 1 || quotes[0].Price != 96.99 {
		t.Fatalf("unexpected quotes: %+v", quotes)
	}
	src.SetDefaultPrice(50)
	quotes, err = src.FetchQuotes(context.Background(), []string{"X", "Y"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(quotes) != 2 || quotes[1].Code != "Y" || quotes[1].Price != 50 || quotes[1].ChangePercent != 0 {
		t.Fatalf("unknown code should get a flat default quote: %+v", quotes)
	}
	src.SetPrice("Y", 55, 50)
	quotes, _ = src.FetchQuotes(context.Background(), []string{"Y"})
	if len(quotes) != 1 || quotes[0].Price != 55 {
		t.Errorf("SetPrice after default = %+v", quotes)
	}

	src.FailWith(errors.New("down"))
	if _, err := src.FetchQuotes(context.Background(), []string{"X"}); err == nil {
		t.Error("expected injected error")
	}
}
