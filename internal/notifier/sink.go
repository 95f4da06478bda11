package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"WatchSentinel/internal/logger"
	"WatchSentinel/internal/model"
)

// ErrNoSink is returned when a channel has no sink registered.
var ErrNoSink = errors.New("no sink for channel")

// Payload is what a sink delivers to the user.
type Payload struct {
	Code    string
	Name    string
	Message string
}

// Sink delivers a payload on one channel.
type Sink interface {
	Notify(ctx context.Context, channel model.Channel, p Payload) error
}

// Router dispatches notifications to the sink registered for their channel.
type Router struct {
	mu    sync.RWMutex
	sinks map[model.Channel]Sink
	log   *logrus.Entry
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{
		sinks: make(map[model.Channel]Sink),
		log:   logger.Get().WithComponent("notifier"),
	}
}

// Register binds sink to channel, replacing any previous binding.
func (r *Router) Register(channel model.Channel, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[channel] = sink
}

// Dispatch delivers n. Errors are returned for the caller to log and count;
// they never undo the alert's fired state.
func (r *Router) Dispatch(ctx context.Context, n model.Notification) error {
	r.mu.RLock()
	sink, ok := r.sinks[n.Channel]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSink, n.Channel)
	}
	if err := sink.Notify(ctx, n.Channel, Payload{Code: n.Code, Name: n.Name, Message: n.Message}); err != nil {
		return fmt.Errorf("notify %s: %w", n.Channel, err)
	}
	return nil
}

// TraySink shows alerts as tray lines. Without a desktop shell it writes them
// to the log at warn level so they stand out.
type TraySink struct {
	log *logrus.Entry
}

// NewTraySink creates a tray sink writing to the process logger.
func NewTraySink() *TraySink {
	return &TraySink{log: logger.Get().WithComponent("tray")}
}

func (t *TraySink) Notify(_ context.Context, channel model.Channel, p Payload) error {
	t.log.WithFields(logrus.Fields{
		"channel": channel,
		"code":    p.Code,
		"name":    p.Name,
	}).Warn(p.Message)
	return nil
}
