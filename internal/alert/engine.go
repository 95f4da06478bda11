package alert

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"WatchSentinel/internal/logger"
	"WatchSentinel/internal/model"
)

// Firing describes one alert that fired during an evaluation pass.
type Firing struct {
	Rule          model.AlertRule
	Quote         model.Quote
	Value         float64
	Notifications []model.Notification
}

// Engine evaluates alerts against quote snapshots. Passes never overlap.
type Engine struct {
	store *Store
	pass  sync.Mutex
	log   *logrus.Entry
}

// NewEngine creates an engine over store.
func NewEngine(store *Store) *Engine {
	return &Engine{
		store: store,
		log:   logger.Get().WithComponent("alert_engine"),
	}
}

// Evaluate runs one pass against snap, which must not change during the call.
// Fired alerts whose period boundary has passed at now are re-armed first.
// Armed alerts without a quote in snap or without a channel are skipped.
func (e *Engine) Evaluate(snap model.QuoteSnapshot, now time.Time) []Firing {
	e.pass.Lock()
	defer e.pass.Unlock()

	var firings []Firing
	e.store.mutate(func(rules []*model.AlertRule) bool {
		changed := false
		for _, r := range rules {
			if dueForReset(r, now) {
				rearm(r)
				changed = true
			}
			if r.Triggered || len(r.Notifications.Channels()) == 0 {
				continue
			}
			q, ok := snap.Get(r.Code)
			if !ok {
				continue
			}
			value := ComparisonValue(*r, q)
			if !Satisfied(*r, value) {
				continue
			}

			price := q.Price
			r.Triggered = true
			r.LastTriggerPrice = &price
			r.TriggeredAt = now
			changed = true

			fired := copyRule(r)
			firings = append(firings, Firing{
				Rule:          fired,
				Quote:         q,
				Value:         value,
				Notifications: notificationsFor(fired, q, value),
			})
		}
		return changed
	})

	for _, f := range firings {
		e.log.WithFields(logrus.Fields{
			"alert_id": f.Rule.ID,
			"code":     f.Rule.Code,
			"value":    f.Value,
			"price":    f.Quote.Price,
		}).Info("alert fired")
	}
	return firings
}

// ResetExpired re-arms every fired alert whose period boundary has passed.
// It returns how many were re-armed.
func (e *Engine) ResetExpired(now time.Time) int {
	e.pass.Lock()
	defer e.pass.Unlock()

	n := 0
	e.store.mutate(func(rules []*model.AlertRule) bool {
		for _, r := range rules {
			if dueForReset(r, now) {
				rearm(r)
				n++
			}
		}
		return n > 0
	})
	if n > 0 {
		e.log.WithField("count", n).Info("alerts re-armed at period boundary")
	}
	return n
}

func notificationsFor(r model.AlertRule, q model.Quote, value float64) []model.Notification {
	msg := Message(r, q, value)
	channels := r.Notifications.Channels()
	out := make([]model.Notification, 0, len(channels))
	for _, ch := range channels {
		out = append(out, model.Notification{
			AlertID: r.ID,
			Channel: ch,
			Code:    r.Code,
			Name:    r.Name,
			Message: msg,
			Price:   q.Price,
		})
	}
	return out
}
