// Package scheduler runs archive cycles on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gauthierbraillon/storyarchive/internal/archive"
	"github.com/gauthierbraillon/storyarchive/internal/delivery"
	"github.com/gauthierbraillon/storyarchive/internal/history"
)

// Cycler runs one synchronization cycle.
type Cycler interface {
	RunCycle(ctx context.Context, creds archive.Credentials, targets []archive.Target, dir string, seen archive.SeenSet) ([]archive.Batch, error)
}

// Deliverer forwards one batch.
type Deliverer interface {
	Deliver(ctx context.Context, batch archive.Batch) delivery.Report
}

// Recorder stores finished cycles.
type Recorder interface {
	Record(ctx context.Context, c history.Cycle) error
}

// Config holds what every iteration needs.
type Config struct {
	Credentials archive.Credentials
	Targets     []archive.Target
	StorageDir  string
	Interval    time.Duration
}

// Summary describes one iteration.
type Summary struct {
	CycleID    string
	StartedAt  time.Time
	FinishedAt time.Time
	Batches    []archive.Batch
	Reports    []delivery.Report
}

// Downloaded returns the number of stories stored this iteration.
func (s Summary) Downloaded() int {
	n := 0
	for _, b := range s.Batches {
		n += len(b.Items)
	}
	return n
}

// DownloadFailed returns the number of stories that could not be stored.
func (s Summary) DownloadFailed() int {
	n := 0
	for _, b := range s.Batches {
		n += len(b.FailedIDs)
	}
	return n
}

// Delivered returns the number of messages sent, headers included.
func (s Summary) Delivered() int {
	n := 0
	for _, r := range s.Reports {
		n += r.Sent()
	}
	return n
}

// DeliveryFailed returns the number of sends that failed.
func (s Summary) DeliveryFailed() int {
	n := 0
	for _, r := range s.Reports {
		n += r.Failed()
	}
	return n
}

// Scheduler runs iterations of seen-set derivation, sync and delivery.
type Scheduler struct {
	cfg       Config
	cycler    Cycler
	deliverer Deliverer
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithDeliverer sets where batches are sent. Without one, batches are only
// downloaded.
func WithDeliverer(d Deliverer) Option {
	return func(s *Scheduler) {
		s.deliverer = d
	}
}

// WithRecorder stores every finished iteration, failed ones included.
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) {
		s.recorder = r
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithClock replaces time.Now for cycle timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates a Scheduler that runs cycler with cfg.
func New(cfg Config, cycler Cycler, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:    cfg,
		cycler: cycler,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes an iteration immediately, then one more every interval after
// the previous iteration finished. It returns nil when ctx is cancelled and
// an error only when the storage directory is missing.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Scheduler started", "interval", s.cfg.Interval, "targets", len(s.cfg.Targets))

	for {
		_, err := s.RunOnce(ctx)
		switch {
		case errors.Is(err, archive.ErrStorageMissing):
			return err
		case ctx.Err() != nil:
			s.logger.Info("Scheduler stopped")
			return nil
		case errors.Is(err, archive.ErrAuth):
			s.logger.Error("Cycle aborted, retrying next interval", "error", err, "next_in", s.cfg.Interval)
		case err != nil:
			s.logger.Error("Cycle failed", "error", err)
		}

		timer := time.NewTimer(s.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("Scheduler stopped")
			return nil
		case <-timer.C:
		}
	}
}

// RunOnce derives the seen-set, runs one cycle, delivers every batch in
// target order and records the outcome.
func (s *Scheduler) RunOnce(ctx context.Context) (Summary, error) {
	summary := Summary{CycleID: uuid.NewString(), StartedAt: s.now()}

	err := s.iterate(ctx, &summary)
	summary.FinishedAt = s.now()
	s.record(ctx, summary, err)

	if err != nil {
		return summary, err
	}
	s.logger.Info("Cycle finished",
		"cycle", summary.CycleID,
		"downloaded", summary.Downloaded(),
		"download_failed", summary.DownloadFailed(),
		"delivered", summary.Delivered(),
		"delivery_failed", summary.DeliveryFailed(),
		"took", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))
	return summary, nil
}

func (s *Scheduler) iterate(ctx context.Context, summary *Summary) error {
	seen, err := archive.DeriveSeenSet(s.cfg.StorageDir)
	if err != nil {
		return err
	}
	s.logger.Debug("Seen-set derived", "dir", s.cfg.StorageDir, "items", seen.Len())

	batches, err := s.cycler.RunCycle(ctx, s.cfg.Credentials, s.cfg.Targets, s.cfg.StorageDir, seen)
	if err != nil {
		return fmt.Errorf("run cycle: %w", err)
	}
	summary.Batches = batches

	if s.deliverer == nil {
		return nil
	}
	for _, batch := range batches {
		summary.Reports = append(summary.Reports, s.deliverer.Deliver(ctx, batch))
	}
	return nil
}

func (s *Scheduler) record(ctx context.Context, summary Summary, cycleErr error) {
	if s.recorder == nil {
		return
	}

	c := history.Cycle{
		ID:             summary.CycleID,
		StartedAt:      summary.StartedAt,
		FinishedAt:     summary.FinishedAt,
		Targets:        len(s.cfg.Targets),
		Downloaded:     summary.Downloaded(),
		DownloadFailed: summary.DownloadFailed(),
		Delivered:      summary.Delivered(),
		DeliveryFailed: summary.DeliveryFailed(),
	}
	if cycleErr != nil {
		c.Error = cycleErr.Error()
	}

	// The cycle context may already be cancelled on shutdown.
	if err := s.recorder.Record(context.WithoutCancel(ctx), c); err != nil {
		s.logger.Warn("Failed to record cycle", "cycle", c.ID, "error", err)
	}
}
