package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"WatchSentinel/internal/alert"
	"WatchSentinel/internal/model"
)

type watchRow struct {
	model.WatchEntry
	Quote *model.Quote `json:"quote,omitempty"`
}

type watchlistView struct {
	Sort    model.SortState `json:"sort"`
	Entries []watchRow      `json:"entries"`
}

// getWatchlist returns entries in display order with their latest quotes.
func (s *server) getWatchlist(w http.ResponseWriter, _ *http.Request) {
	ordered := s.Watchlist.Ordered()
	snap := s.Watchlist.Snapshot()
	view := watchlistView{Sort: s.Watchlist.SortState(), Entries: make([]watchRow, 0, len(ordered))}
	for _, e := range ordered {
		row := watchRow{WatchEntry: e}
		if q, ok := snap.Get(e.Code); ok {
			row.Quote = &q
		}
		view.Entries = append(view.Entries, row)
	}
	writeJSON(w, http.StatusOK, view)
}

type addEntryRequest struct {
	Code     string   `json:"code"`
	GroupIDs []string `json:"group_ids"`
}

func (s *server) addEntry(w http.ResponseWriter, r *http.Request) {
	var req addEntryRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.Watchlist.Add(req.Code, req.GroupIDs...); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *server) removeEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.Watchlist.Remove(chi.URLParam(r, "code")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) setGroups(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GroupIDs []string `json:"group_ids"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.Watchlist.SetGroups(chi.URLParam(r, "code"), req.GroupIDs); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// reorder is the drag action: it switches to manual sort.
func (s *server) reorder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Codes []string `json:"codes"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.Watchlist.Reorder(req.Codes)
	s.getWatchlist(w, r)
}

type sortRequest struct {
	SortType   *model.SortType `json:"sort_type"`
	ExitManual bool            `json:"exit_manual"`
	GroupID    *string         `json:"group_id"`
	AllGroups  bool            `json:"all_groups"`
}

func (s *server) setSort(w http.ResponseWriter, r *http.Request) {
	var req sortRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.SortType != nil {
		if err := s.Watchlist.SetSortType(*req.SortType); err != nil {
			s.writeError(w, err)
			return
		}
	}
	if req.ExitManual {
		s.Watchlist.ExitManualSort()
	}
	switch {
	case req.AllGroups:
		s.Watchlist.SelectGroup(nil)
	case req.GroupID != nil:
		s.Watchlist.SelectGroup(req.GroupID)
	}
	writeJSON(w, http.StatusOK, s.Watchlist.SortState())
}

func (s *server) getQuotes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Watchlist.Snapshot())
}

func (s *server) listAlerts(w http.ResponseWriter, _ *http.Request) {
	rules := s.Alerts.List()
	if rules == nil {
		rules = []model.AlertRule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

func (s *server) getAlert(w http.ResponseWriter, r *http.Request) {
	rule, err := s.Alerts.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *server) createAlert(w http.ResponseWriter, r *http.Request) {
	var d alert.Draft
	if err := decode(r, &d); err != nil {
		s.writeError(w, err)
		return
	}
	rule, err := s.Alerts.Create(d)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (s *server) updateAlert(w http.ResponseWriter, r *http.Request) {
	var d alert.Draft
	if err := decode(r, &d); err != nil {
		s.writeError(w, err)
		return
	}
	rule, err := s.Alerts.Update(chi.URLParam(r, "id"), d)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *server) deleteAlert(w http.ResponseWriter, r *http.Request) {
	if err := s.Alerts.Delete(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) resetAlert(w http.ResponseWriter, r *http.Request) {
	rule, err := s.Alerts.Reset(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

type pollState struct {
	Enabled  bool   `json:"enabled"`
	Interval string `json:"interval"`
}

type pollRequest struct {
	Enabled  *bool  `json:"enabled"`
	Interval string `json:"interval"`
}

func (s *server) getPoll(w http.ResponseWriter, _ *http.Request) {
	if s.Poller == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "polling not configured"})
		return
	}
	writeJSON(w, http.StatusOK, pollState{Enabled: s.Poller.Enabled(), Interval: s.Poller.Interval().String()})
}

// setPoll toggles polling and changes its interval. A new interval applies
// from the next scheduled tick.
func (s *server) setPoll(w http.ResponseWriter, r *http.Request) {
	if s.Poller == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "polling not configured"})
		return
	}
	var req pollRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Interval != "" {
		d, err := time.ParseDuration(req.Interval)
		if err != nil || d < 500*time.Millisecond {
			s.writeError(w, fmt.Errorf("%w: interval %q must be a duration of at least 500ms", errBadRequest, req.Interval))
			return
		}
		s.Poller.SetInterval(d)
	}
	if req.Enabled != nil {
		s.Poller.SetEnabled(*req.Enabled)
	}
	s.getPoll(w, r)
}

// refresh runs one pipeline pass now and reports a fetch failure as 502.
func (s *server) refresh(w http.ResponseWriter, r *http.Request) {
	if s.Refresh == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "refresh not configured"})
		return
	}
	if err := s.Refresh(r.Context()); err != nil {
		if r.Context().Err() != nil {
			return
		}
		writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"quotes": len(s.Watchlist.Snapshot())})
}
