package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"suzy-backend/internal/models"
	"suzy-backend/internal/repository"
)

const AnalyticsRefreshQueue = "queue:analytics-refresh"

// RefreshEnqueuer schedules a best-effort analytics rebuild for a user.
type RefreshEnqueuer interface {
	Enqueue(ctx context.Context, userID uuid.UUID, reason string)
}

type RefreshQueue struct {
	jobs  repository.JobRepository
	redis *redis.Client
}

func NewRefreshQueue(jobs repository.JobRepository, redisClient *redis.Client) *RefreshQueue {
	return &RefreshQueue{jobs: jobs, redis: redisClient}
}

// Enqueue records a job row and pushes it onto the worker queue. Failures
// are logged and recorded on the job; they never fail the caller.
func (q *RefreshQueue) Enqueue(ctx context.Context, userID uuid.UUID, reason string) {
	config, _ := json.Marshal(map[string]string{"reason": reason})
	job := &models.Job{
		UserID:     userID,
		Type:       models.JobTypeAnalyticsRefresh,
		ConfigJSON: config,
	}
	if err := q.jobs.Create(ctx, job); err != nil {
		log.Warn().Err(err).Str("userId", userID.String()).Str("reason", reason).Msg("failed to record analytics refresh job")
		return
	}

	jobBytes, err := json.Marshal(job)
	if err == nil {
		err = q.redis.LPush(ctx, AnalyticsRefreshQueue, string(jobBytes)).Err()
	}
	if err != nil {
		log.Warn().Err(err).Str("jobId", job.ID.String()).Msg("failed to enqueue analytics refresh")
		if uerr := q.jobs.UpdateError(ctx, job.ID, "enqueue failed: "+err.Error(), 0); uerr != nil {
			log.Error().Err(uerr).Str("jobId", job.ID.String()).Msg("failed to record enqueue error")
		}
		if uerr := q.jobs.UpdateStatus(ctx, job.ID, "failed"); uerr != nil {
			log.Error().Err(uerr).Str("jobId", job.ID.String()).Msg("failed to mark job failed")
		}
	}
}
