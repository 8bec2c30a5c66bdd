// Package scheduler marks due campaigns as sent on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prajwalbharadwajbm/mailproof/internal/models"
)

// DefaultInterval is used when no interval is configured.
const DefaultInterval = 60 * time.Second

// Run outcomes reported to the Observer.
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

var ErrAlreadyStarted = errors.New("scheduler already started")

// Sender is the part of the campaign service the scheduler drives.
type Sender interface {
	DueCampaigns(ctx context.Context, now time.Time) ([]models.Campaign, error)
	MarkSent(ctx context.Context, id string) (*models.Campaign, error)
}

// Observer receives per-tick counts. *metrics.Metrics satisfies it.
type Observer interface {
	ObserveSchedulerRun(outcome string, fired, failed int)
}

type nopObserver struct{}

func (nopObserver) ObserveSchedulerRun(string, int, int) {}

// Lease guards a tick when several instances share one record store.
type Lease interface {
	Acquire(ctx context.Context) (token string, ok bool, err error)
	Release(ctx context.Context, token string) error
}

// Result summarises one tick.
type Result struct {
	Due    int
	Fired  int
	Failed int
}

// Scheduler polls for due campaigns and marks them sent.
type Scheduler struct {
	sender   Sender
	interval time.Duration
	lease    Lease
	observer Observer
	logger   kitlog.Logger
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithLease makes every tick take l first; a tick whose lease is held elsewhere is skipped.
func WithLease(l Lease) Option {
	return func(s *Scheduler) { s.lease = l }
}

// WithObserver reports tick outcomes to o.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) { s.observer = o }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a stopped Scheduler.
func New(sender Sender, interval time.Duration, logger kitlog.Logger, opts ...Option) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Scheduler{
		sender:   sender,
		interval: interval,
		observer: nopObserver{},
		logger:   kitlog.With(logger, "component", "scheduler"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the polling goroutine. It stops when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(runCtx, s.done)

	level.Info(s.logger).Log("msg", "scheduler started", "interval", s.interval)
	return nil
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.RunOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Stop cancels the loop and waits for an in-flight tick, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		level.Info(s.logger).Log("msg", "scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce fires every campaign due now. A campaign that fails is logged and counted;
// it does not stop the rest of the batch.
func (s *Scheduler) RunOnce(ctx context.Context) (Result, error) {
	var res Result

	if s.lease != nil {
		token, ok, err := s.lease.Acquire(ctx)
		if err != nil {
			level.Error(s.logger).Log("msg", "failed to acquire scheduler lease", "err", err)
			s.observer.ObserveSchedulerRun(OutcomeError, 0, 0)
			return res, err
		}
		if !ok {
			level.Debug(s.logger).Log("msg", "scheduler lease held by another instance, skipping tick")
			s.observer.ObserveSchedulerRun(OutcomeSkipped, 0, 0)
			return res, nil
		}
		defer func() {
			if err := s.lease.Release(context.WithoutCancel(ctx), token); err != nil {
				level.Warn(s.logger).Log("msg", "failed to release scheduler lease", "err", err)
			}
		}()
	}

	due, err := s.sender.DueCampaigns(ctx, s.now())
	if err != nil {
		level.Error(s.logger).Log("msg", "failed to list due campaigns", "err", err)
		s.observer.ObserveSchedulerRun(OutcomeError, 0, 0)
		return res, err
	}
	res.Due = len(due)

	for _, c := range due {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.sender.MarkSent(ctx, c.ID); err != nil {
			res.Failed++
			level.Error(s.logger).Log("msg", "failed to mark campaign sent", "campaign_id", c.ID, "err", err)
			continue
		}
		res.Fired++
		level.Info(s.logger).Log("msg", "campaign sent", "campaign_id", c.ID, "campaign_name", c.CampaignName, "scheduled_at", c.ScheduledAt)
	}

	s.observer.ObserveSchedulerRun(OutcomeOK, res.Fired, res.Failed)
	return res, nil
}
