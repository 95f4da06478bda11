package recorder

import (
	"time"

	"WatchSentinel/internal/model"
)

// FiredEvent is one alert transition to fired.
type FiredEvent struct {
	AlertID   string
	Code      string
	Type      model.AlertType
	Condition model.Condition
	Target    float64
	Value     float64
	Price     float64
	FiredAt   time.Time
}

// DeliveryEvent is the outcome of one notification attempt.
type DeliveryEvent struct {
	AlertID string
	Channel model.Channel
	Code    string
	Message string
	Err     error
	SentAt  time.Time
}

// Pruner is implemented by recorders that can drop old quote history.
type Pruner interface {
	Prune(cutoff time.Time) (int64, error)
}

// Recorder persists quote history and alert activity for later analysis.
type Recorder interface {
	RecordQuotes(quotes []model.Quote, at time.Time) error
	RecordAlertFired(evt *FiredEvent) error
	RecordNotification(evt *DeliveryEvent) error
	Close() error
}
