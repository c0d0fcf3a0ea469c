package worker

import (
	"context"
	"errors"
	"time"

	"agt_platform/internal/app/grader"
	"agt_platform/internal/app/service"
	"agt_platform/internal/common"
	"agt_platform/internal/domain/model"
	"agt_platform/internal/platform/logger"
	"agt_platform/internal/platform/queue"

	"github.com/rs/zerolog"
)

// JobSource is the queue side a worker consumes.
type JobSource interface {
	Next(ctx context.Context, timeout time.Duration) (string, error)
	Requeue(ctx context.Context, assignmentID string) error
}

type Locker interface {
	Acquire(ctx context.Context, name string) (*queue.Lock, error)
}

// GradingWorker pops assignment ids, grades the stored file, and records the outcome.
// A per-assignment lock keeps two workers off the same assignment when a job is delivered twice.
type GradingWorker struct {
	name         string
	jobs         JobSource
	locker       Locker
	assignments  *service.AssignmentService
	grader       grader.Grader
	gradeTimeout time.Duration
	pollTimeout  time.Duration
	retryDelay   time.Duration
	log          zerolog.Logger
}

func NewGradingWorker(
	name string,
	jobs JobSource,
	locker Locker,
	assignments *service.AssignmentService,
	g grader.Grader,
	gradeTimeout time.Duration,
) *GradingWorker {
	return &GradingWorker{
		name:         name,
		jobs:         jobs,
		locker:       locker,
		assignments:  assignments,
		grader:       g,
		gradeTimeout: gradeTimeout,
		pollTimeout:  5 * time.Second,
		retryDelay:   5 * time.Second,
		log:          logger.Component("grading_worker").With().Str("worker", name).Logger(),
	}
}

// Start blocks until ctx is cancelled.
func (w *GradingWorker) Start(ctx context.Context) error {
	w.log.Info().Msg("Grading worker started")
	for {
		if ctx.Err() != nil {
			w.log.Info().Msg("Grading worker stopping")
			return nil
		}

		id, err := w.jobs.Next(ctx, w.pollTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			w.log.Error().Err(err).Msg("Failed to pop grading job")
			sleep(ctx, w.retryDelay)
			continue
		}
		if id == "" {
			continue
		}
		w.ProcessWithLock(ctx, id)
	}
}

// ProcessWithLock grades one assignment while holding its lock.
func (w *GradingWorker) ProcessWithLock(ctx context.Context, id string) {
	log := w.log.With().Str("assignment_id", id).Logger()

	lock, err := w.locker.Acquire(ctx, id)
	if errors.Is(err, queue.ErrLockNotAcquired) {
		log.Info().Msg("Assignment is being graded by another worker, dropping duplicate job")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to acquire grading lock, re-queueing")
		w.requeue(id)
		return
	}
	defer func() {
		released, err := lock.Release(context.Background())
		switch {
		case err != nil:
			log.Error().Err(err).Msg("Failed to release grading lock")
		case !released:
			log.Warn().Msg("Grading lock expired before release")
		}
	}()

	w.handle(ctx, id, log)
}

func (w *GradingWorker) handle(ctx context.Context, id string, log zerolog.Logger) {
	a, err := w.assignments.Get(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			log.Warn().Msg("Job for unknown assignment, dropping")
			return
		}
		log.Error().Err(err).Msg("Failed to load assignment, re-queueing")
		w.requeue(id)
		return
	}
	if a.Status != model.StatusGrading {
		log.Info().Str("status", string(a.Status)).Msg("Assignment no longer in grading, skipping")
		return
	}

	outcome := w.grade(ctx, a, log)
	if ctx.Err() != nil {
		// shutting down mid-grade; another worker picks it up
		w.requeue(id)
		return
	}

	if _, err := w.assignments.RecordResult(ctx, id, outcome); err != nil {
		if errors.Is(err, common.ErrStateConflict) {
			log.Info().Msg("Result already recorded elsewhere")
			return
		}
		log.Error().Err(err).Msg("Failed to record grading result")
	}
}

func (w *GradingWorker) grade(ctx context.Context, a *model.Assignment, log zerolog.Logger) model.GradingOutcome {
	rc, err := w.assignments.OpenSubmission(ctx, a)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open submission")
		return model.GradingOutcome{Success: false, Error: "could not read submission"}
	}
	defer rc.Close()

	gctx := ctx
	if w.gradeTimeout > 0 {
		var cancel context.CancelFunc
		gctx, cancel = context.WithTimeout(ctx, w.gradeTimeout)
		defer cancel()
	}

	start := time.Now()
	outcome, err := w.grader.Grade(gctx, a.Filename, rc)
	if err != nil {
		log.Warn().Err(err).Msg("Grader returned an error")
		return model.GradingOutcome{Success: false, Error: err.Error()}
	}
	log.Info().Bool("success", outcome.Success).Float64("score", outcome.Score).Dur("took", time.Since(start)).Msg("Assignment graded")
	return outcome
}

func (w *GradingWorker) requeue(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.jobs.Requeue(ctx, id); err != nil {
		w.log.Error().Err(err).Str("assignment_id", id).Msg("Failed to re-queue grading job")
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
