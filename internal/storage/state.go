package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"WatchSentinel/internal/model"
)

const (
	watchlistFileName = "watchlist.json"
	alertsFileName    = "alerts.json"
	stateVersion      = 1
)

type watchlistDoc struct {
	Version   int                `json:"version"`
	Entries   []model.WatchEntry `json:"entries"`
	Sort      model.SortState    `json:"sort"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type alertsDoc struct {
	Version   int               `json:"version"`
	Alerts    []model.AlertRule `json:"alerts"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// FileStore keeps the watchlist and alerts as JSON documents in one directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// LoadWatchList reads the watchlist. A missing file yields an empty list.
func (f *FileStore) LoadWatchList() (model.WatchListState, error) {
	var doc watchlistDoc
	found, err := f.read(watchlistFileName, &doc)
	if err != nil || !found {
		return model.WatchListState{Sort: model.SortState{SortType: model.SortDefault}}, err
	}
	return model.WatchListState{Entries: doc.Entries, Sort: doc.Sort}, nil
}

// SaveWatchList writes the watchlist.
func (f *FileStore) SaveWatchList(state model.WatchListState) error {
	return f.write(watchlistFileName, watchlistDoc{
		Version:   stateVersion,
		Entries:   state.Entries,
		Sort:      state.Sort,
		UpdatedAt: time.Now(),
	})
}

// LoadAlerts reads the alerts. A missing file yields none.
func (f *FileStore) LoadAlerts() ([]model.AlertRule, error) {
	var doc alertsDoc
	found, err := f.read(alertsFileName, &doc)
	if err != nil || !found {
		return nil, err
	}
	return doc.Alerts, nil
}

// SaveAlerts writes the alerts.
func (f *FileStore) SaveAlerts(rules []model.AlertRule) error {
	return f.write(alertsFileName, alertsDoc{
		Version:   stateVersion,
		Alerts:    rules,
		UpdatedAt: time.Now(),
	})
}

func (f *FileStore) read(name string, v any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(filepath.Join(f.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}

// write replaces the file through a temp file and rename so readers never see
// a partial document.
func (f *FileStore) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	path := filepath.Join(f.dir, name)
	tmp, err := os.CreateTemp(f.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}
