package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"WatchSentinel/internal/alert"
	"WatchSentinel/internal/collector"
	"WatchSentinel/internal/instrumentation"
	"WatchSentinel/internal/logger"
	"WatchSentinel/internal/model"
	"WatchSentinel/internal/notifier"
	"WatchSentinel/internal/recorder"
	"WatchSentinel/internal/watchlist"
)

// Deps are the collaborators of a Scheduler. Recorder and Metrics may be nil.
type Deps struct {
	Collector *collector.Collector
	Watchlist *watchlist.Store
	Alerts    *alert.Store
	Engine    *alert.Engine
	Router    *notifier.Router
	Recorder  recorder.Recorder
	Metrics   *instrumentation.Metrics

	// HistoryRetention bounds recorded quote history; zero keeps everything.
	HistoryRetention time.Duration
}

// Scheduler drives the quote poller and the cron maintenance jobs, and runs
// the refresh pipeline: fetch, merge, evaluate, dispatch.
type Scheduler struct {
	Cron      *cron.Cron
	Poller    *Poller
	Collector *collector.Collector
	Watchlist *watchlist.Store
	Alerts    *alert.Store
	Engine    *alert.Engine
	Router    *notifier.Router
	Recorder  recorder.Recorder
	Metrics   *instrumentation.Metrics

	// Now is the clock used for evaluation and records.
	Now func() time.Time

	HistoryRetention time.Duration

	refreshMu   sync.Mutex
	unsubscribe func()
	log         *logrus.Entry
}

// NewScheduler creates a Scheduler.
func NewScheduler(d Deps) *Scheduler {
	s := &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Collector: d.Collector,
		Watchlist: d.Watchlist,
		Alerts:    d.Alerts,
		Engine:    d.Engine,
		Router:    d.Router,
		Recorder:  d.Recorder,
		Metrics:   d.Metrics,
		Now:       time.Now,

		HistoryRetention: d.HistoryRetention,
		log:       logger.Get().WithComponent("scheduler"),
	}
	if s.Recorder == nil {
		s.Recorder = recorder.NewNoopRecorder()
	}
	s.Poller = NewPoller("quotes", func(err error) {
		s.Metrics.RecordTaskError("quotes")
	})
	s.unsubscribe = s.Watchlist.Subscribe(func(kind watchlist.EventKind) {
		if kind == watchlist.EventQuotes {
			s.Metrics.RecordSnapshotSize(len(s.Watchlist.Snapshot()))
		}
	})
	return s
}

// RegisterAll registers the period-reset sweep and the snapshot GC. History
// pruning runs on the GC schedule when the recorder supports it.
func (s *Scheduler) RegisterAll(resetCron, gcCron string) error {
	if _, err := s.Cron.AddFunc(resetCron, s.resetTask); err != nil {
		return fmt.Errorf("register reset task: %w", err)
	}
	if _, err := s.Cron.AddFunc(gcCron, s.gcTask); err != nil {
		return fmt.Errorf("register gc task: %w", err)
	}
	if _, ok := s.Recorder.(recorder.Pruner); ok && s.HistoryRetention > 0 {
		if _, err := s.Cron.AddFunc(gcCron, s.pruneTask); err != nil {
			return fmt.Errorf("register prune task: %w", err)
		}
	}
	return nil
}

// Start starts the cron jobs and the quote poller.
func (s *Scheduler) Start(ctx context.Context, opts Options) error {
	if err := s.Poller.Start(ctx, s.Refresh, opts); err != nil {
		return err
	}
	s.Cron.Start()
	s.log.Info("scheduler started")
	return nil
}

// Stop stops polling and waits for running jobs.
func (s *Scheduler) Stop() {
	s.unsubscribe()
	s.Poller.Stop()
	<-s.Cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// Refresh runs one pipeline pass. Quotes are fetched for watched codes and for
// codes that only alerts reference. A failed fetch leaves the snapshot stale.
func (s *Scheduler) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if s.Watchlist.Closed() {
		return nil
	}
	codes := s.trackedCodes()
	if len(codes) == 0 {
		return nil
	}

	start := time.Now()
	quotes, err := s.Collector.Collect(ctx, codes)
	s.Metrics.RecordFetch(s.Collector.Source.Name(), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("refresh quotes: %w", err)
	}

	now := s.Now()
	// the store was torn down while fetching
	if !s.Watchlist.UpdateQuotes(quotes) {
		s.log.Debug("store closed, fetched quotes discarded")
		return nil
	}
	snap := s.Watchlist.Snapshot()
	s.Metrics.RecordMerge(len(quotes), len(snap), now)
	if err := s.Recorder.RecordQuotes(quotes, now); err != nil {
		s.log.WithError(err).Error("record quotes")
	}

	s.deliver(ctx, s.Engine.Evaluate(snap, now), now)
	return nil
}

// deliver sends every notification of every firing. Delivery failures are
// logged and counted; the alerts stay fired.
func (s *Scheduler) deliver(ctx context.Context, firings []alert.Firing, now time.Time) {
	for _, f := range firings {
		s.Metrics.RecordAlertFired(string(f.Rule.Type))
		if err := s.Recorder.RecordAlertFired(&recorder.FiredEvent{
			AlertID:   f.Rule.ID,
			Code:      f.Rule.Code,
			Type:      f.Rule.Type,
			Condition: f.Rule.Condition,
			Target:    f.Rule.TargetValue,
			Value:     f.Value,
			Price:     f.Quote.Price,
			FiredAt:   now,
		}); err != nil {
			s.log.WithError(err).Error("record alert fired")
		}

		for _, n := range f.Notifications {
			err := s.Router.Dispatch(ctx, n)
			if err != nil {
				s.Metrics.RecordNotifyFailure(string(n.Channel))
				s.log.WithError(err).WithFields(logrus.Fields{
					"alert_id": n.AlertID,
					"channel":  n.Channel,
				}).Error("notification failed")
			}
			if rerr := s.Recorder.RecordNotification(&recorder.DeliveryEvent{
				AlertID: n.AlertID,
				Channel: n.Channel,
				Code:    n.Code,
				Message: n.Message,
				Err:     err,
				SentAt:  s.Now(),
			}); rerr != nil {
				s.log.WithError(rerr).Error("record notification")
			}
		}
	}
}

func (s *Scheduler) trackedCodes() []string {
	codes := s.Watchlist.Codes()
	seen := make(map[string]bool, len(codes))
	for _, c := range codes {
		seen[c] = true
	}
	for _, c := range s.Alerts.Codes() {
		if !seen[c] {
			seen[c] = true
			codes = append(codes, c)
		}
	}
	return codes
}

func (s *Scheduler) resetTask() {
	n := s.Engine.ResetExpired(s.Now())
	s.log.WithField("rearmed", n).Debug("period reset sweep done")
}

func (s *Scheduler) gcTask() {
	removed := s.Watchlist.GC(s.Alerts.Codes())
	if removed > 0 {
		s.log.WithField("removed", removed).Info("dropped unreferenced quotes")
	}
}

func (s *Scheduler) pruneTask() {
	p, ok := s.Recorder.(recorder.Pruner)
	if !ok || s.HistoryRetention <= 0 {
		return
	}
	cutoff := s.Now().Add(-s.HistoryRetention)
	n, err := p.Prune(cutoff)
	if err != nil {
		s.log.WithError(err).Error("prune quote history")
		s.Metrics.RecordTaskError("prune")
		return
	}
	s.log.WithFields(logrus.Fields{"removed": n, "cutoff": cutoff.Format(time.RFC3339)}).Info("quote history pruned")
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	switch fields[0] {
	case "/watchlist":
		return s.formatWatchlist()
	case "/alerts":
		return notifier.FormatAlerts(s.Alerts.List())
	case "/rise", "/fall", "/default":
		t := model.SortType(strings.TrimPrefix(fields[0], "/"))
		if err := s.Watchlist.SetSortType(t); err != nil {
			return err.Error()
		}
		return s.formatWatchlist()
	case "/add":
		if len(fields) < 2 {
			return "usage: /add <code>"
		}
		if err := s.Watchlist.Add(fields[1]); err != nil {
			return err.Error()
		}
		return "added " + fields[1]
	case "/remove":
		if len(fields) < 2 {
			return "usage: /remove <code>"
		}
		if err := s.Watchlist.Remove(fields[1]); err != nil {
			return err.Error()
		}
		return "removed " + fields[1]
	default:
		return "commands:\n• /watchlist\n• /alerts\n• /rise /fall /default\n• /add <code>\n• /remove <code>"
	}
}

func (s *Scheduler) formatWatchlist() string {
	return notifier.FormatWatchlist(s.Watchlist.Ordered(), s.Watchlist.Snapshot(), s.Watchlist.SortState())
}
