package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agt_platform/internal/common"
	"agt_platform/internal/platform/logger"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// GradingJobService owns the Redis list that carries assignment ids to the grading workers.
// Producers LPUSH and workers BRPOP, so the list drains oldest first.
type GradingJobService struct {
	rdb       *redis.Client
	queueName string
	log       zerolog.Logger
}

func NewGradingJobService(rdb *redis.Client, queueName string) *GradingJobService {
	return &GradingJobService{rdb: rdb, queueName: queueName, log: logger.Component("grading_queue")}
}

func (s *GradingJobService) Enqueue(ctx context.Context, assignmentID string) error {
	if err := s.rdb.LPush(ctx, s.queueName, assignmentID).Err(); err != nil {
		return common.Errorf("failed to push assignment %s to grading queue: %w", assignmentID, err)
	}
	s.log.Info().Str("assignment_id", assignmentID).Msg("Grading job enqueued")
	return nil
}

// Requeue puts the id back at the consuming end so it is retried next.
func (s *GradingJobService) Requeue(ctx context.Context, assignmentID string) error {
	if err := s.rdb.RPush(ctx, s.queueName, assignmentID).Err(); err != nil {
		return common.Errorf("failed to re-queue assignment %s: %w", assignmentID, err)
	}
	s.log.Info().Str("assignment_id", assignmentID).Msg("Grading job re-queued")
	return nil
}

// Next blocks up to timeout for a job. It returns "" with a nil error when the wait timed out.
func (s *GradingJobService) Next(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := s.rdb.BRPop(ctx, timeout, s.queueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("BRPop %s: %w", s.queueName, err)
	}
	// res is [queueName, value]
	if len(res) < 2 {
		return "", nil
	}
	return res[1], nil
}

func (s *GradingJobService) Depth(ctx context.Context) (int64, error) {
	n, err := s.rdb.LLen(ctx, s.queueName).Result()
	if err != nil {
		return 0, fmt.Errorf("LLen %s: %w", s.queueName, err)
	}
	return n, nil
}
