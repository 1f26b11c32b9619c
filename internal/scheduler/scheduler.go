package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"video_ingestor/internal/domain"
)

// Runner runs one ingestion cycle.
type Runner interface {
	Ingest(ctx context.Context) (*domain.IngestStats, error)
}

type Scheduler struct {
	runner  Runner
	spec    string
	timeout time.Duration
	cron    *cron.Cron
	logger  *slog.Logger
}

// NewScheduler accepts standard five-field cron expressions as well as
// descriptors such as "@hourly" or "@every 30m".
func NewScheduler(runner Runner, spec string, timeout time.Duration, logger *slog.Logger) (*Scheduler, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}

	cronLogger := cronLogAdapter{logger: logger}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		cron.WithLogger(cronLogger),
	)

	return &Scheduler{
		runner:  runner,
		spec:    spec,
		timeout: timeout,
		cron:    c,
		logger:  logger,
	}, nil
}

// Start runs one cycle immediately, then on every schedule tick until ctx
// is cancelled. It waits for a running cycle to finish before returning.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "schedule", s.spec, "run_timeout", s.timeout)

	s.runIngest(ctx)

	if _, err := s.cron.AddFunc(s.spec, func() { s.runIngest(ctx) }); err != nil {
		return fmt.Errorf("schedule ingestion: %w", err)
	}
	s.cron.Start()

	<-ctx.Done()

	stopped := s.cron.Stop()
	<-stopped.Done()

	s.logger.Info("scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) runIngest(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.runner.Ingest(runCtx)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrRunInProgress):
		s.logger.Info("skipping tick, another ingestion is running")
	default:
		s.logger.Error("ingestion failed", "error", err)
	}
}

type cronLogAdapter struct {
	logger *slog.Logger
}

func (a cronLogAdapter) Info(msg string, keysAndValues ...any) {
	a.logger.Debug("cron: "+msg, keysAndValues...)
}

func (a cronLogAdapter) Error(err error, msg string, keysAndValues ...any) {
	a.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
