package alert

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"WatchSentinel/internal/model"
)

var (
	ErrValidation = errors.New("invalid alert")
	ErrNotFound   = errors.New("alert not found")
	ErrNotWatched = errors.New("instrument not on watchlist")
)

// ValidationError describes why an alert draft was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid alert: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Draft carries the user-editable fields of an alert.
type Draft struct {
	Code          string              `json:"code"`
	Name          string              `json:"name"`
	Type          model.AlertType     `json:"type"`
	Condition     model.Condition     `json:"condition"`
	TargetValue   float64             `json:"target_value"`
	BasePrice     float64             `json:"base_price"`
	TimePeriod    model.TimePeriod    `json:"time_period"`
	Notifications model.Notifications `json:"notifications"`
}

// Validate checks a draft before it reaches the store.
func Validate(d Draft) error {
	if strings.TrimSpace(d.Code) == "" {
		return invalid("code", "is required")
	}
	if math.IsNaN(d.TargetValue) || math.IsInf(d.TargetValue, 0) {
		return invalid("target_value", "must be a finite number")
	}
	switch d.Condition {
	case model.ConditionAbove, model.ConditionBelow:
	default:
		return invalid("condition", fmt.Sprintf("%q is not above or below", d.Condition))
	}
	switch d.Type {
	case model.AlertPrice:
		if d.TargetValue <= 0 {
			return invalid("target_value", "must be greater than 0 for price alerts")
		}
	case model.AlertPercent:
		if d.Condition == model.ConditionAbove && d.TargetValue <= 0 {
			return invalid("target_value", "must be greater than 0 for a rise alert")
		}
		if d.Condition == model.ConditionBelow && d.TargetValue >= 0 {
			return invalid("target_value", "must be less than 0 for a fall alert")
		}
	default:
		return invalid("type", fmt.Sprintf("%q is not price or percent", d.Type))
	}
	if d.BasePrice < 0 {
		return invalid("base_price", "must not be negative")
	}
	switch d.TimePeriod {
	case "", model.PeriodOnce, model.PeriodDay, model.PeriodWeek:
	default:
		return invalid("time_period", fmt.Sprintf("%q is not once, day or week", d.TimePeriod))
	}
	if !d.Notifications.Tray && !d.Notifications.Desktop {
		return invalid("notifications", "need at least one channel")
	}
	return nil
}

// termsChanged reports whether an edit alters what the alert fires on.
func termsChanged(r *model.AlertRule, d Draft) bool {
	return r.TargetValue != d.TargetValue || r.Condition != d.Condition || r.Type != d.Type
}

// ComparisonValue is the number an alert compares to its target: the price for
// price alerts, the percentage move from BasePrice for percent alerts.
func ComparisonValue(r model.AlertRule, q model.Quote) float64 {
	if r.Type == model.AlertPercent {
		if r.BasePrice == 0 {
			return 0
		}
		return (q.Price - r.BasePrice) / r.BasePrice * 100
	}
	return q.Price
}

// targetTolerance absorbs float rounding in the percent formula so a move that
// lands exactly on the target counts as reaching it.
const targetTolerance = 1e-9

// Satisfied reports whether value meets the rule's condition. Both directions
// include the target itself.
func Satisfied(r model.AlertRule, value float64) bool {
	tol := targetTolerance * math.Max(1, math.Abs(r.TargetValue))
	if r.Condition == model.ConditionBelow {
		return value <= r.TargetValue+tol
	}
	return value >= r.TargetValue-tol
}

// Message renders the human-readable notification text for a fired rule.
func Message(r model.AlertRule, q model.Quote, value float64) string {
	verb := "rose above"
	if r.Condition == model.ConditionBelow {
		verb = "fell below"
	}
	if r.Type == model.AlertPercent {
		return fmt.Sprintf("%s (%s) %s %+.2f%%: now %+.2f%% at %.2f (base %.2f)",
			r.Name, r.Code, verb, r.TargetValue, value, q.Price, r.BasePrice)
	}
	return fmt.Sprintf("%s (%s) %s %.2f: now %.2f (%+.2f%%)",
		r.Name, r.Code, verb, r.TargetValue, q.Price, q.ChangePercent)
}
