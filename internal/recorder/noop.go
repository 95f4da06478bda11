package recorder

import (
	"time"

	"WatchSentinel/internal/model"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordQuotes(_ []model.Quote, _ time.Time) error { return nil }
func (n *NoopRecorder) RecordAlertFired(_ *FiredEvent) error            { return nil }
func (n *NoopRecorder) RecordNotification(_ *DeliveryEvent) error       { return nil }
func (n *NoopRecorder) Close() error                                    { return nil }
