package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"WatchSentinel/internal/logger"
)

var (
	ErrClosed         = errors.New("poller stopped")
	ErrAlreadyStarted = errors.New("poller already started")
	ErrTaskPanic      = errors.New("task panicked")
)

// Task is one unit of polled work.
type Task func(ctx context.Context) error

// ErrorSink receives errors and recovered panics from a task.
type ErrorSink func(err error)

// Options control a Poller.
type Options struct {
	Enabled   bool
	Immediate bool
	Interval  time.Duration
}

// Poller runs a task repeatedly with a fixed delay measured from the end of
// the previous run, so runs never overlap.
type Poller struct {
	name  string
	onErr ErrorSink
	log   *logrus.Entry

	mu      sync.Mutex
	task    Task
	opts    Options
	ctx     context.Context
	cancel  context.CancelFunc
	timer   *time.Timer
	seq     uint64 // invalidates timers that were stopped too late
	running bool
	started bool
	stopped bool

	inFlight sync.WaitGroup
}

// NewPoller creates a stopped poller. onErr may be nil.
func NewPoller(name string, onErr ErrorSink) *Poller {
	return &Poller{
		name:  name,
		onErr: onErr,
		log:   logger.Get().WithComponent("poller").WithField("poller", name),
	}
}

// Start begins polling with task. If opts.Enabled is false nothing runs until
// SetEnabled(true).
func (p *Poller) Start(ctx context.Context, task Task, opts Options) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrClosed
	}
	if p.started {
		return ErrAlreadyStarted
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.task = task
	p.opts = opts
	p.started = true
	if opts.Enabled {
		p.scheduleLocked(p.firstDelayLocked())
	}
	p.log.WithFields(logrus.Fields{
		"enabled":   opts.Enabled,
		"immediate": opts.Immediate,
		"interval":  opts.Interval.String(),
	}).Info("poller started")
	return nil
}

// SetEnabled turns polling on or off. Turning it off cancels a pending tick
// but lets an in-flight run finish.
func (p *Poller) SetEnabled(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.opts.Enabled == on {
		return
	}
	p.opts.Enabled = on
	if !p.started || p.stopped {
		return
	}
	if !on {
		p.cancelTimerLocked()
		p.log.Info("poller disabled")
		return
	}
	// a running task reschedules itself on completion
	if !p.running {
		p.scheduleLocked(p.firstDelayLocked())
	}
	p.log.Info("poller enabled")
}

// SetInterval changes the delay used for the next scheduled tick. A tick
// already pending keeps its delay.
func (p *Poller) SetInterval(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opts.Interval = d
}

// Enabled reports whether polling is on.
func (p *Poller) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opts.Enabled
}

// Interval returns the configured delay between runs.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opts.Interval
}

// Stop cancels pending ticks and the task context, then waits for an
// in-flight run to return. The poller cannot be restarted.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.cancelTimerLocked()
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()

	p.inFlight.Wait()
	p.log.Info("poller stopped")
}

func (p *Poller) firstDelayLocked() time.Duration {
	if p.opts.Immediate {
		return 0
	}
	return p.opts.Interval
}

func (p *Poller) scheduleLocked(d time.Duration) {
	p.seq++
	seq := p.seq
	p.timer = time.AfterFunc(d, func() { p.fire(seq) })
}

func (p *Poller) cancelTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.seq++
}

func (p *Poller) fire(seq uint64) {
	p.mu.Lock()
	if seq != p.seq || p.stopped || !p.opts.Enabled || p.running {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	p.running = true
	p.inFlight.Add(1)
	ctx, task := p.ctx, p.task
	p.mu.Unlock()

	defer p.inFlight.Done()
	p.run(ctx, task)

	p.mu.Lock()
	p.running = false
	if !p.stopped && p.opts.Enabled && p.timer == nil {
		p.scheduleLocked(p.opts.Interval)
	}
	p.mu.Unlock()
}

func (p *Poller) run(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.report(fmt.Errorf("%w: %s: %v", ErrTaskPanic, p.name, r))
		}
	}()
	if err := task(ctx); err != nil {
		p.report(err)
	}
}

func (p *Poller) report(err error) {
	p.log.WithError(err).Warn("poll task failed")
	if p.onErr != nil {
		p.onErr(err)
	}
}
