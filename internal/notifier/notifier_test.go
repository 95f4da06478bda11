package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"WatchSentinel/internal/model"
)

type recordingSink struct {
	got []Payload
	err error
}

func (r *recordingSink) Notify(_ context.Context, _ model.Channel, p Payload) error {
	r.got = append(r.got, p)
	return r.err
}

func TestRouter_Dispatch(t *testing.T) {
	tray := &recordingSink{}
	desktop := &recordingSink{err: errors.New("offline")}
	r := NewRouter()
	r.Register(model.ChannelTray, tray)
	r.Register(model.ChannelDesktop, desktop)

	n := model.Notification{Channel: model.ChannelTray, Code: "A", Name: "Alpha", Message: "up"}
	if err := r.Dispatch(context.Background(), n); err != nil {
		t.Fatalf("tray dispatch: %v", err)
	}
	if len(tray.got) != 1 || tray.got[0].Message != "up" {
		t.Errorf("tray got %+v", tray.got)
	}

	n.Channel = model.ChannelDesktop
	if err := r.Dispatch(context.Background(), n); err == nil {
		t.Error("expected desktop error to surface")
	}
}

func TestRouter_NoSink(t *testing.T) {
	err := NewRouter().Dispatch(context.Background(), model.Notification{Channel: model.ChannelDesktop})
	if !errors.Is(err, ErrNoSink) {
		t.Fatalf("expected ErrNoSink, got %v", err)
	}
}

func TestTraySink(t *testing.T) {
	if err := NewTraySink().Notify(context.Background(), model.ChannelTray, Payload{Code: "A", Message: "m"}); err != nil {
		t.Fatal(err)
	}
}

func TestTelegramNotifier_Notify(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("TOKEN", "42", "")
	tn.BaseURL = srv.URL
	err := tn.Notify(context.Background(), model.ChannelDesktop, Payload{Code: "A", Name: "<Alpha>", Message: "rose"})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if body["chat_id"] != "42" || body["parse_mode"] != "HTML" {
		t.Errorf("payload = %v", body)
	}
	if !strings.Contains(body["text"], "&lt;Alpha&gt;") {
		t.Errorf("name not escaped: %q", body["text"])
	}
}

func TestTelegramNotifier_FailsWithoutRetries(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("TOKEN", "42", "")
	tn.BaseURL = srv.URL
	tn.MaxRetries = 0
	if err := tn.Notify(context.Background(), model.ChannelDesktop, Payload{}); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d", calls)
	}
}

func TestFormatWatchlist(t *testing.T) {
	entries := []model.WatchEntry{{Code: "A"}, {Code: "B"}}
	quotes := model.QuoteSnapshot{"A": {Code: "A", Name: "Alpha", Price: 10.5, ChangePercent: 1.25}}
	out := FormatWatchlist(entries, quotes, model.SortState{SortType: model.SortRise})
	if !strings.Contains(out, "rise") {
		t.Errorf("mode missing: %s", out)
	}
	if !strings.Contains(out, "10.50") || !strings.Contains(out, "+1.25%") {
		t.Errorf("quote missing: %s", out)
	}
	if !strings.Contains(out, "B") {
		t.Errorf("unquoted entry missing: %s", out)
	}

	manual := FormatWatchlist(nil, nil, model.SortState{IsManualSort: true})
	if !strings.Contains(manual, "manual") || !strings.Contains(manual, "empty") {
		t.Errorf("manual empty = %s", manual)
	}
}

func TestFormatAlerts(t *testing.T) {
	p := 110.0
	out := FormatAlerts([]model.AlertRule{
		{Code: "A", Type: model.AlertPrice, Condition: model.ConditionAbove, TargetValue: 110, TimePeriod: model.PeriodOnce, Triggered: true, LastTriggerPrice: &p},
		{Code: "B", Type: model.AlertPercent, Condition: model.ConditionBelow, TargetValue: -3, TimePeriod: model.PeriodDay},
	})
	if !strings.Contains(out, "fired @ 110.00") {
		t.Errorf("fired marker missing: %s", out)
	}
	if !strings.Contains(out, "-3.00%") || !strings.Contains(out, "armed") {
		t.Errorf("percent alert missing: %s", out)
	}
}
