package worker

import (
	"context"
	"fmt"
	"time"

	"agt_platform/internal/platform/logger"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// StaleFailer fails assignments stuck in grading past timeout.
type StaleFailer interface {
	FailStale(ctx context.Context, timeout time.Duration) ([]string, error)
}

// Sweeper periodically fails gradings that outlived their budget, so a lost job
// or crashed worker never leaves an assignment in grading forever.
type Sweeper struct {
	failer   StaleFailer
	timeout  time.Duration
	interval time.Duration
	cron     *cron.Cron
	log      zerolog.Logger
}

func NewSweeper(failer StaleFailer, timeout, interval time.Duration) *Sweeper {
	return &Sweeper{
		failer:   failer,
		timeout:  timeout,
		interval: interval,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		log:      logger.Component("grading_sweeper"),
	}
}

// Sweep runs one pass and returns the ids it failed.
func (s *Sweeper) Sweep(ctx context.Context) ([]string, error) {
	ids, err := s.failer.FailStale(ctx, s.timeout)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		s.log.Warn().Int("count", len(ids)).Strs("assignment_ids", ids).Msg("Failed stale gradings")
	}
	return ids, nil
}

// Start schedules Sweep every interval and blocks until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	spec := fmt.Sprintf("@every %s", s.interval)
	_, err := s.cron.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, s.interval)
		defer cancel()
		if _, err := s.Sweep(runCtx); err != nil {
			s.log.Error().Err(err).Msg("Grading sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweeper %q: %w", spec, err)
	}

	s.log.Info().Dur("timeout", s.timeout).Dur("interval", s.interval).Msg("Grading sweeper started")
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info().Msg("Grading sweeper stopped")
	return nil
}
