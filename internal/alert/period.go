package alert

import (
	"time"

	"WatchSentinel/internal/model"
)

// NextReset returns when a rule fired at firedAt re-arms by itself, in the
// location of firedAt. The zero time means never.
//
// day:  the first local midnight after firedAt.
// week: the first local Monday 00:00 after firedAt.
func NextReset(period model.TimePeriod, firedAt time.Time) time.Time {
	if firedAt.IsZero() {
		return time.Time{}
	}
	y, m, d := firedAt.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, firedAt.Location())
	switch period {
	case model.PeriodDay:
		return midnight.AddDate(0, 0, 1)
	case model.PeriodWeek:
		days := (int(time.Monday) - int(firedAt.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		return midnight.AddDate(0, 0, days)
	}
	return time.Time{}
}

// dueForReset reports whether a fired rule's period boundary has passed at now.
// Boundaries are taken in now's location.
func dueForReset(r *model.AlertRule, now time.Time) bool {
	if !r.Triggered || r.TriggeredAt.IsZero() {
		return false
	}
	next := NextReset(r.TimePeriod, r.TriggeredAt.In(now.Location()))
	return !next.IsZero() && !now.Before(next)
}

func rearm(r *model.AlertRule) {
	r.Triggered = false
	r.LastTriggerPrice = nil
	r.TriggeredAt = time.Time{}
}
