package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"WatchSentinel/internal/alert"
	"WatchSentinel/internal/logger"
	"WatchSentinel/internal/watchlist"
)

// PollControl is the part of the quote poller the API can steer.
type PollControl interface {
	Enabled() bool
	Interval() time.Duration
	SetEnabled(on bool)
	SetInterval(d time.Duration)
}

// Deps wires the API to the running core. Gatherer and Refresh may be nil.
type Deps struct {
	Watchlist *watchlist.Store
	Alerts    *alert.Store
	Poller    PollControl
	Refresh   func(ctx context.Context) error
	Gatherer  prometheus.Gatherer
}

type server struct {
	Deps
	log *logrus.Entry
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) http.Handler {
	s := &server{Deps: d, log: logger.Get().WithComponent("http")}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.health)
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/watchlist", func(r chi.Router) {
		r.Get("/", s.getWatchlist)
		r.Post("/", s.addEntry)
		r.Put("/order", s.reorder)
		r.Put("/{code}/groups", s.setGroups)
		r.Delete("/{code}", s.removeEntry)
	})
	r.Get("/quotes", s.getQuotes)
	r.Put("/sort", s.setSort)

	r.Route("/alerts", func(r chi.Router) {
		r.Get("/", s.listAlerts)
		r.Post("/", s.createAlert)
		r.Get("/{id}", s.getAlert)
		r.Put("/{id}", s.updateAlert)
		r.Delete("/{id}", s.deleteAlert)
		r.Post("/{id}/reset", s.resetAlert)
	})

	r.Get("/poll", s.getPoll)
	r.Post("/poll", s.setPoll)
	r.Post("/refresh", s.refresh)
	return r
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("http request")
	})
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// writeError maps core errors onto status codes.
func (s *server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := errorBody{Error: err.Error()}

	var verr *alert.ValidationError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		body.Field = verr.Field
	case errors.Is(err, alert.ErrValidation),
		errors.Is(err, watchlist.ErrInvalidCode),
		errors.Is(err, watchlist.ErrSortType),
		errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, alert.ErrNotFound), errors.Is(err, watchlist.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, alert.ErrNotWatched), errors.Is(err, watchlist.ErrExists):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.log.WithError(err).Error("request failed")
	}
	writeJSON(w, status, body)
}

var errBadRequest = errors.New("bad request")

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
