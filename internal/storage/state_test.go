package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"WatchSentinel/internal/model"
)

func TestFileStoreEmpty(t *testing.T) {
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "state"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	wl, err := fs.LoadWatchList()
	if err != nil {
		t.Fatalf("LoadWatchList: %v", err)
	}
	if len(wl.Entries) != 0 || wl.Sort.SortType != model.SortDefault {
		t.Errorf("empty watchlist = %+v", wl)
	}
	rules, err := fs.LoadAlerts()
	if err != nil {
		t.Fatalf("LoadAlerts: %v", err)
	}
	if len(rules) != 0 {
		t.Errorf("got %d alerts, want 0", len(rules))
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	group := "tech"
	in := model.WatchListState{
		Entries: []model.WatchEntry{
			{Code: "sh600519", ManualRank: 1},
			{Code: "sz000001", GroupIDs: []string{"tech"}, ManualRank: 0},
		},
		Sort: model.SortState{SortType: model.SortRise, IsManualSort: true, SelectedGroupID: &group},
	}
	if err := fs.SaveWatchList(in); err != nil {
		t.Fatalf("SaveWatchList: %v", err)
	}

	price := 111.0
	created := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	rules := []model.AlertRule{{
		ID: "a1", Code: "sh600519", Type: model.AlertPrice, Condition: model.ConditionAbove,
		TargetValue: 110, BasePrice: 100, TimePeriod: model.PeriodDay,
		Notifications: model.Notifications{Tray: true}, Triggered: true,
		LastTriggerPrice: &price, TriggeredAt: created.Add(time.Hour), CreatedAt: created,
	}}
	if err := fs.SaveAlerts(rules); err != nil {
		t.Fatalf("SaveAlerts: %v", err)
	}

	// a second store over the same dir sees what the first wrote
	fs2, _ := NewFileStore(dir)
	out, err := fs2.LoadWatchList()
	if err != nil {
		t.Fatalf("LoadWatchList: %v", err)
	}
	if len(out.Entries) != 2 || out.Entries[1].Code != "sz000001" || out.Entries[1].GroupIDs[0] != "tech" {
		t.Errorf("entries = %+v", out.Entries)
	}
	if out.Sort.SortType != model.SortRise || !out.Sort.IsManualSort ||
		out.Sort.SelectedGroupID == nil || *out.Sort.SelectedGroupID != "tech" {
		t.Errorf("sort = %+v", out.Sort)
	}

	gotRules, err := fs2.LoadAlerts()
	if err != nil {
		t.Fatalf("LoadAlerts: %v", err)
	}
	if len(gotRules) != 1 {
		t.Fatalf("got %d alerts, want 1", len(gotRules))
	}
	r := gotRules[0]
	if !r.Triggered || r.LastTriggerPrice == nil || *r.LastTriggerPrice != 111 {
		t.Errorf("fired state lost: %+v", r)
	}
	if !r.CreatedAt.Equal(created) || r.TimePeriod != model.PeriodDay {
		t.Errorf("rule = %+v", r)
	}

	// no temp files left behind
	leftovers, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left: %v", leftovers)
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, alertsFileName), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	fs, _ := NewFileStore(dir)
	if _, err := fs.LoadAlerts(); err == nil {
		t.Error("expected decode error")
	}
}
