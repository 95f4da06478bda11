package alert

import (
	"errors"
	"sync"
	"testing"

	"WatchSentinel/internal/model"
)

type fakeWatchlist struct {
	codes map[string]bool
	snap  model.QuoteSnapshot
}

func (f *fakeWatchlist) Contains(code string) bool      { return f.codes[code] }
func (f *fakeWatchlist) Snapshot() model.QuoteSnapshot { return f.snap }

type memAlerts struct {
	mu    sync.Mutex
	rules []model.AlertRule
	saves int
}

func (m *memAlerts) LoadAlerts() ([]model.AlertRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.AlertRule(nil), m.rules...), nil
}

func (m *memAlerts) SaveAlerts(rules []model.AlertRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.rules = rules
	return nil
}

func newTestStore() (*Store, *fakeWatchlist, *memAlerts) {
	w := &fakeWatchlist{
		codes: map[string]bool{"A": true, "B": true},
		snap: model.QuoteSnapshot{
			"A": {Code: "A", Name: "Alpha", Price: 105, PrevClose: 100},
		},
	}
	p := &memAlerts{}
	return NewStore(p, w), w, p
}

func priceDraft(code string, target float64) Draft {
	return Draft{
		Code:          code,
		Type:          model.AlertPrice,
		Condition:     model.ConditionAbove,
		TargetValue:   target,
		Notifications: model.Notifications{Tray: true},
	}
}

func TestStore_CreateDefaults(t *testing.T) {
	s, _, p := newTestStore()
	r, err := s.Create(priceDraft("A", 110))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.ID == "" {
		t.Error("id not assigned")
	}
	if r.Name != "Alpha" {
		t.Errorf("name = %q", r.Name)
	}
	if r.BasePrice != 100 {
		t.Errorf("base price = %v, want previous close", r.BasePrice)
	}
	if r.TimePeriod != model.PeriodOnce {
		t.Errorf("period = %q", r.TimePeriod)
	}
	if r.Triggered || r.LastTriggerPrice != nil {
		t.Error("new alert should be armed")
	}
	if len(p.rules) != 1 {
		t.Errorf("not persisted: %d rules", len(p.rules))
	}
}

func TestStore_CreateRejects(t *testing.T) {
	s, _, p := newTestStore()
	if _, err := s.Create(priceDraft("Z", 1)); !errors.Is(err, ErrNotWatched) {
		t.Errorf("unwatched: %v", err)
	}
	if _, err := s.Create(priceDraft("A", -1)); !errors.Is(err, ErrValidation) {
		t.Errorf("invalid: %v", err)
	}
	// B is watched but has no quote, so a percent alert has no base.
	d := Draft{Code: "B", Type: model.AlertPercent, Condition: model.ConditionAbove, TargetValue: 2, Notifications: model.Notifications{Tray: true}}
	if _, err := s.Create(d); !errors.Is(err, ErrValidation) {
		t.Errorf("percent without base: %v", err)
	}
	d.BasePrice = 50
	if _, err := s.Create(d); err != nil {
		t.Errorf("explicit base should be accepted: %v", err)
	}
	if len(s.List()) != 1 || p.saves != 1 {
		t.Errorf("rejected drafts must not enter the store: list=%d saves=%d", len(s.List()), p.saves)
	}
}

func TestStore_UpdateResetsOnTermsChange(t *testing.T) {
	s, w, _ := newTestStore()
	e := NewEngine(s)
	r, _ := s.Create(priceDraft("A", 110))

	w.snap = model.QuoteSnapshot{"A": {Code: "A", Price: 112}}
	if got := e.Evaluate(w.snap, s.now()); len(got) != 1 {
		t.Fatalf("expected alert to fire, got %d", len(got))
	}

	// Name-only edit keeps the fired state.
	d := priceDraft("A", 110)
	d.Name = "renamed"
	updated, err := s.Update(r.ID, d)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Triggered {
		t.Error("cosmetic edit should not re-arm")
	}

	updated, err = s.Update(r.ID, priceDraft("A", 120))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Triggered || updated.LastTriggerPrice != nil {
		t.Errorf("target change should re-arm and clear last price: %+v", updated)
	}
	if updated.Name != "renamed" {
		t.Errorf("name lost: %q", updated.Name)
	}

	if _, err := s.Update(r.ID, priceDraft("B", 120)); !errors.Is(err, ErrValidation) {
		t.Errorf("code change: %v", err)
	}
	if _, err := s.Update("missing", priceDraft("A", 1)); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing id: %v", err)
	}
}

func TestStore_DeleteAndReset(t *testing.T) {
	s, _, _ := newTestStore()
	a, _ := s.Create(priceDraft("A", 1))
	b, _ := s.Create(priceDraft("B", 1))
	if err := s.Delete(a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete: %v", err)
	}
	list := s.List()
	if len(list) != 1 || list[0].ID != b.ID {
		t.Fatalf("list = %+v", list)
	}
	if _, err := s.Reset(b.ID); err != nil {
		t.Errorf("reset: %v", err)
	}
	if got := s.Codes(); len(got) != 1 || got[0] != "B" {
		t.Errorf("codes = %v", got)
	}
}

func TestStore_LoadRoundTrip(t *testing.T) {
	s, w, p := newTestStore()
	_, _ = s.Create(priceDraft("A", 110))

	reloaded := NewStore(p, w)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(reloaded.List()) != 1 {
		t.Fatalf("expected 1 alert after reload, got %d", len(reloaded.List()))
	}
}
