package watchlist

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"WatchSentinel/internal/logger"
	"WatchSentinel/internal/model"
)

var (
	ErrInvalidCode = errors.New("invalid instrument code")
	ErrExists      = errors.New("instrument already watched")
	ErrNotFound    = errors.New("instrument not watched")
	ErrSortType    = errors.New("unknown sort type")
)

// Persistence loads and saves the watchlist.
type Persistence interface {
	LoadWatchList() (model.WatchListState, error)
	SaveWatchList(state model.WatchListState) error
}

// EventKind tells listeners which part of the store changed.
type EventKind int

const (
	EventEntries EventKind = iota
	EventQuotes
	EventSort
)

// Listener is notified after a mutation has been applied.
type Listener func(EventKind)

// Store holds the watched entries, the latest quote snapshot and sort state.
// All methods are safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries []model.WatchEntry // insertion order
	quotes  model.QuoteSnapshot
	sort    model.SortState
	loaded  bool
	closed  bool
	version uint64

	listeners map[int]Listener
	nextID    int

	persist   Persistence
	saveMu    sync.Mutex
	savedVers uint64
	log       *logrus.Entry
}

// NewStore creates an empty store. persist may be nil.
func NewStore(persist Persistence) *Store {
	return &Store{
		quotes:    model.QuoteSnapshot{},
		sort:      model.SortState{SortType: model.SortDefault},
		listeners: make(map[int]Listener),
		persist:   persist,
		log:       logger.Get().WithComponent("watchlist"),
	}
}

// Load replaces entries and sort state from persistence. It is a no-op when the
// store was already loaded in this session, unless force is set.
func (s *Store) Load(force bool) error {
	s.mu.Lock()
	if s.loaded && !force {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	var state model.WatchListState
	if s.persist != nil {
		var err error
		state, err = s.persist.LoadWatchList()
		if err != nil {
			return fmt.Errorf("load watchlist: %w", err)
		}
	}

	s.mu.Lock()
	if s.loaded && !force {
		s.mu.Unlock()
		return nil
	}
	s.entries = normalizeEntries(state.Entries)
	s.sort = state.Sort
	if !s.sort.SortType.Valid() {
		s.sort.SortType = model.SortDefault
	}
	s.loaded = true
	s.mu.Unlock()

	s.log.WithField("entries", len(state.Entries)).Info("watchlist loaded")
	s.emit(EventEntries)
	s.emit(EventSort)
	return nil
}

// normalizeEntries drops blank and duplicate codes and makes ManualRank dense
// while keeping its relative order.
func normalizeEntries(in []model.WatchEntry) []model.WatchEntry {
	seen := make(map[string]bool, len(in))
	out := make([]model.WatchEntry, 0, len(in))
	for _, e := range in {
		if e.Code == "" || seen[e.Code] {
			continue
		}
		seen[e.Code] = true
		e.GroupIDs = append([]string(nil), e.GroupIDs...)
		out = append(out, e)
	}
	densifyRanks(out)
	return out
}

// densifyRanks rewrites ManualRank to 0..n-1 following the current rank order,
// ties broken by insertion order.
func densifyRanks(entries []model.WatchEntry) {
	idx := make([]int, len(entries))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return entries[idx[a]].ManualRank < entries[idx[b]].ManualRank
	})
	for rank, i := range idx {
		entries[i].ManualRank = rank
	}
}

// Add appends code to the watchlist with the given groups.
func (s *Store) Add(code string, groupIDs ...string) error {
	if code == "" {
		return ErrInvalidCode
	}
	s.mu.Lock()
	for _, e := range s.entries {
		if e.Code == code {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrExists, code)
		}
	}
	s.entries = append(s.entries, model.WatchEntry{
		Code:       code,
		GroupIDs:   append([]string(nil), groupIDs...),
		ManualRank: len(s.entries),
	})
	state := s.stateLocked()
	s.mu.Unlock()

	s.save(state)
	s.emit(EventEntries)
	return nil
}

// Remove deletes code from the watchlist. Its cached quote stays until GC.
func (s *Store) Remove(code string) error {
	s.mu.Lock()
	pos := s.indexLocked(code)
	if pos < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	next := make([]model.WatchEntry, 0, len(s.entries)-1)
	next = append(next, s.entries[:pos]...)
	next = append(next, s.entries[pos+1:]...)
	densifyRanks(next)
	s.entries = next
	state := s.stateLocked()
	s.mu.Unlock()

	s.save(state)
	s.emit(EventEntries)
	return nil
}

// SetGroups replaces the group membership of code.
func (s *Store) SetGroups(code string, groupIDs []string) error {
	s.mu.Lock()
	pos := s.indexLocked(code)
	if pos < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	next := s.copyEntriesLocked()
	next[pos].GroupIDs = append([]string(nil), groupIDs...)
	s.entries = next
	state := s.stateLocked()
	s.mu.Unlock()

	s.save(state)
	s.emit(EventEntries)
	return nil
}

// Reorder switches to manual sort. codes come first in the given order; entries
// not listed follow in their previous manual order. Unknown codes are ignored.
func (s *Store) Reorder(codes []string) {
	s.mu.Lock()
	next := s.copyEntriesLocked()
	pos := make(map[string]int, len(next))
	for i, e := range next {
		pos[e.Code] = i
	}
	placed := make(map[string]bool, len(codes))
	rank := 0
	for _, code := range codes {
		i, ok := pos[code]
		if !ok || placed[code] {
			continue
		}
		placed[code] = true
		next[i].ManualRank = rank
		rank++
	}
	rest := make([]int, 0, len(next))
	for i, e := range next {
		if !placed[e.Code] {
			rest = append(rest, i)
		}
	}
	sort.SliceStable(rest, func(a, b int) bool {
		return next[rest[a]].ManualRank < next[rest[b]].ManualRank
	})
	for _, i := range rest {
		next[i].ManualRank = rank
		rank++
	}
	s.entries = next
	s.sort.IsManualSort = true
	state := s.stateLocked()
	s.mu.Unlock()

	s.save(state)
	s.emit(EventSort)
}

// SetSortType sets the automatic sort. A non-default type leaves manual mode;
// SortDefault while in manual mode stays dormant.
func (s *Store) SetSortType(t model.SortType) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrSortType, t)
	}
	s.mu.Lock()
	s.sort.SortType = t
	if t != model.SortDefault {
		s.sort.IsManualSort = false
	}
	state := s.stateLocked()
	s.mu.Unlock()

	s.save(state)
	s.emit(EventSort)
	return nil
}

// ExitManualSort leaves manual mode; the stored ranks are kept.
func (s *Store) ExitManualSort() {
	s.mu.Lock()
	s.sort.IsManualSort = false
	state := s.stateLocked()
	s.mu.Unlock()

	s.save(state)
	s.emit(EventSort)
}

// SelectGroup narrows ordering to entries in group id; nil selects all.
func (s *Store) SelectGroup(id *string) {
	s.mu.Lock()
	if id == nil {
		s.sort.SelectedGroupID = nil
	} else {
		g := *id
		s.sort.SelectedGroupID = &g
	}
	state := s.stateLocked()
	s.mu.Unlock()

	s.save(state)
	s.emit(EventSort)
}

// UpdateQuotes merges quotes into the snapshot by code. Readers see either the
// old or the new snapshot as a whole. After Close the batch is discarded and
// UpdateQuotes reports false.
func (s *Store) UpdateQuotes(quotes []model.Quote) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if len(quotes) == 0 {
		s.mu.Unlock()
		return true
	}
	s.quotes = s.quotes.Merge(quotes)
	s.mu.Unlock()

	s.emit(EventQuotes)
	return true
}

// Closed reports whether Close has been called.
func (s *Store) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Snapshot returns the current quote snapshot. Callers must not modify it.
func (s *Store) Snapshot() model.QuoteSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quotes
}

// Entries returns a copy of the entries in insertion order.
func (s *Store) Entries() []model.WatchEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyEntriesLocked()
}

// Codes returns the watched codes in insertion order.
func (s *Store) Codes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	codes := make([]string, len(s.entries))
	for i, e := range s.entries {
		codes[i] = e.Code
	}
	return codes
}

// Contains reports whether code is watched.
func (s *Store) Contains(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexLocked(code) >= 0
}

// SortState returns a copy of the sort state.
func (s *Store) SortState() model.SortState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySort(s.sort)
}

// Ordered applies Order to a consistent view of the store.
func (s *Store) Ordered() []model.WatchEntry {
	s.mu.RLock()
	entries, quotes, st := s.entries, s.quotes, s.sort
	s.mu.RUnlock()
	return Order(entries, quotes, st)
}

// GC drops quotes for codes that are neither watched nor listed in keep.
// It returns how many quotes were removed.
func (s *Store) GC(keep []string) int {
	s.mu.Lock()
	live := make(map[string]bool, len(s.entries)+len(keep))
	for _, e := range s.entries {
		live[e.Code] = true
	}
	for _, c := range keep {
		live[c] = true
	}
	next := make(model.QuoteSnapshot, len(s.quotes))
	for code, q := range s.quotes {
		if live[code] {
			next[code] = q
		}
	}
	removed := len(s.quotes) - len(next)
	if removed > 0 {
		s.quotes = next
	}
	s.mu.Unlock()

	if removed > 0 {
		s.emit(EventQuotes)
	}
	return removed
}

// Subscribe registers fn for change notifications and returns an unsubscribe func.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Close tears the store down. Later quote updates are discarded silently.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.listeners = make(map[int]Listener)
	s.mu.Unlock()
}

func (s *Store) emit(kind EventKind) {
	s.mu.RLock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(kind)
	}
}

// save writes state unless a newer version was already written.
func (s *Store) save(state versioned) {
	if s.persist == nil {
		return
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if state.version <= s.savedVers {
		return
	}
	if err := s.persist.SaveWatchList(state.WatchListState); err != nil {
		s.log.WithError(err).Error("save watchlist failed")
		return
	}
	s.savedVers = state.version
}

type versioned struct {
	model.WatchListState
	version uint64
}

func (s *Store) stateLocked() versioned {
	s.version++
	return versioned{
		WatchListState: model.WatchListState{
			Entries: s.copyEntriesLocked(),
			Sort:    copySort(s.sort),
		},
		version: s.version,
	}
}

func (s *Store) indexLocked(code string) int {
	for i, e := range s.entries {
		if e.Code == code {
			return i
		}
	}
	return -1
}

func (s *Store) copyEntriesLocked() []model.WatchEntry {
	out := make([]model.WatchEntry, len(s.entries))
	for i, e := range s.entries {
		e.GroupIDs = append([]string(nil), e.GroupIDs...)
		out[i] = e
	}
	return out
}

func copySort(st model.SortState) model.SortState {
	if st.SelectedGroupID != nil {
		g := *st.SelectedGroupID
		st.SelectedGroupID = &g
	}
	return st
}
