package recorder

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"WatchSentinel/internal/model"
)

func openTestRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open recorder: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func quoteCount(r *SQLiteRecorder, code string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM quote_ticks WHERE code = ?`, code).Scan(&n)
	return n, err
}

var _ Pruner = (*SQLiteRecorder)(nil)

func TestRecordQuotes(t *testing.T) {
	r := openTestRecorder(t)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	quotes := []model.Quote{
		{Code: "sh600519", Name: "Moutai", Price: 1700, PrevClose: 1680, Timestamp: now},
		{Code: "sz000001", Name: "PAB", Price: 11.2, PrevClose: 11},
	}
	if err := r.RecordQuotes(quotes, now); err != nil {
		t.Fatalf("RecordQuotes: %v", err)
	}
	if err := r.RecordQuotes(quotes[:1], now.Add(time.Minute)); err != nil {
		t.Fatalf("RecordQuotes: %v", err)
	}
	if err := r.RecordQuotes(nil, now); err != nil {
		t.Fatalf("RecordQuotes(nil): %v", err)
	}

	tests := []struct {
		code string
		want int
	}{
		{"sh600519", 2},
		{"sz000001", 1},
		{"hk00700", 0},
	}
	for _, tt := range tests {
		n, err := quoteCount(r, tt.code)
		if err != nil {
			t.Fatalf("QuoteCount(%s): %v", tt.code, err)
		}
		if n != tt.want {
			t.Errorf("QuoteCount(%s) = %d, want %d", tt.code, n, tt.want)
		}
	}

	removed, err := r.Prune(now.Add(30 * time.Second))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 2 {
		t.Errorf("Prune removed %d, want 2", removed)
	}
}

func TestRecordAlertActivity(t *testing.T) {
	r := openTestRecorder(t)
	now := time.Now()

	if err := r.RecordAlertFired(&FiredEvent{
		AlertID: "a1", Code: "sh600519", Type: model.AlertPrice,
		Condition: model.ConditionAbove, Target: 110, Value: 111, Price: 111, FiredAt: now,
	}); err != nil {
		t.Fatalf("RecordAlertFired: %v", err)
	}
	for _, evt := range []*DeliveryEvent{
		{AlertID: "a1", Channel: model.ChannelTray, Code: "sh600519", Message: "hit", SentAt: now},
		{AlertID: "a1", Channel: model.ChannelDesktop, Code: "sh600519", Message: "hit", Err: errors.New("timeout"), SentAt: now},
	} {
		if err := r.RecordNotification(evt); err != nil {
			t.Fatalf("RecordNotification: %v", err)
		}
	}

	var failed int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM notifications WHERE ok = 0`).Scan(&failed); err != nil {
		t.Fatalf("query: %v", err)
	}
	if failed != 1 {
		t.Errorf("failed deliveries = %d, want 1", failed)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	r, err := NewSQLiteRecorder(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := r.RecordQuotes([]model.Quote{{Code: "X", Price: 1}}, time.Now()); err != nil {
		t.Fatalf("RecordQuotes: %v", err)
	}
	r.Close()

	r, err = NewSQLiteRecorder(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer r.Close()
	if n, _ := quoteCount(r, "X"); n != 1 {
		t.Errorf("QuoteCount after reopen = %d, want 1", n)
	}
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	if err := r.RecordQuotes([]model.Quote{{Code: "X"}}, time.Now()); err != nil {
		t.Error(err)
	}
	if err := r.RecordAlertFired(&FiredEvent{}); err != nil {
		t.Error(err)
	}
	if err := r.RecordNotification(&DeliveryEvent{}); err != nil {
		t.Error(err)
	}
	if err := r.Close(); err != nil {
		t.Error(err)
	}
}
