package worker

import (
	"context"
	"fmt"
	"time"

	"roombook/internal/metrics"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler runs periodic maintenance: the hold sweep and database backups.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger *zerolog.Logger
}

func NewScheduler(logger *zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Add registers job under a standard cron spec or a descriptor like "@every 1m".
func (s *Scheduler) Add(name, spec string, job func(ctx context.Context) error) error {
	if _, err := s.cron.AddFunc(spec, func() { s.run(name, job) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.logger.Info().Str("job", name).Str("spec", spec).Msg("Job scheduled")
	return nil
}

func (s *Scheduler) run(name string, job func(ctx context.Context) error) {
	start := time.Now()
	if err := job(s.ctx); err != nil {
		metrics.IncWorkerTask(name, "failed")
		s.logger.Error().Err(err).Str("job", name).Msg("Scheduled job failed")
		return
	}
	metrics.IncWorkerTask(name, "completed")
	s.logger.Debug().Str("job", name).Dur("took", time.Since(start)).Msg("Scheduled job finished")
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}
