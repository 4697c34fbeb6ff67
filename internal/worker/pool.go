package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"suzy-backend/internal/config"
	"suzy-backend/internal/models"
	"suzy-backend/internal/repository"
	"suzy-backend/internal/services"
)

// Refresher rebuilds a user's analytics aggregates.
type Refresher interface {
	Refresh(ctx context.Context, userID uuid.UUID) error
}

type Pool struct {
	redis       *redis.Client
	jobRepo     repository.JobRepository
	analytics   Refresher
	workerCount int

	// requeue schedules a failed job for another attempt after backoff.
	requeue func(job *models.Job, backoff time.Duration)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPool(redisClient *redis.Client, jobRepo repository.JobRepository, analytics Refresher, workerCount int) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		redis:       redisClient,
		jobRepo:     jobRepo,
		analytics:   analytics,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
	}
	p.requeue = p.pushAfter
	return p
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	log.Info().Int("workers", p.workerCount).Str("queue", services.AnalyticsRefreshQueue).Msg("started worker pool")
}

// Stop cancels in-flight pops and waits for workers to return.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		if p.ctx.Err() != nil {
			log.Info().Int("worker", id).Msg("worker shutting down")
			return
		}

		result, err := p.redis.BLPop(p.ctx, config.WorkerPopTimeout, services.AnalyticsRefreshQueue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && p.ctx.Err() == nil {
				log.Warn().Err(err).Int("worker", id).Msg("queue pop failed")
				time.Sleep(time.Second)
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Error().Err(err).Int("worker", id).Msg("failed to parse job")
			continue
		}

		lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
		locked, err := p.redis.SetNX(p.ctx, lockKey, "1", config.WorkerJobLockTTL).Result()
		if err != nil || !locked {
			continue
		}

		p.process(p.ctx, &job)
		p.redis.Del(context.Background(), lockKey)
	}
}

func (p *Pool) process(ctx context.Context, job *models.Job) {
	log.Debug().Str("jobId", job.ID.String()).Str("type", job.Type).Msg("processing job")
	if err := p.jobRepo.UpdateStatus(ctx, job.ID, "processing"); err != nil {
		log.Warn().Err(err).Str("jobId", job.ID.String()).Msg("failed to mark job processing")
	}

	var processErr error
	switch job.Type {
	case models.JobTypeAnalyticsRefresh:
		processErr = p.analytics.Refresh(ctx, job.UserID)
	default:
		processErr = fmt.Errorf("unknown job type: %s", job.Type)
	}

	if processErr != nil {
		p.handleFailure(ctx, job, processErr)
		return
	}
	p.handleSuccess(ctx, job)
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job) {
	if err := p.jobRepo.UpdateStatus(ctx, job.ID, "completed"); err != nil {
		log.Warn().Err(err).Str("jobId", job.ID.String()).Msg("failed to mark job completed")
	}
	log.Debug().Str("jobId", job.ID.String()).Str("userId", job.UserID.String()).Msg("analytics refreshed")
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()
	maxRetries := job.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}

	if uerr := p.jobRepo.UpdateError(ctx, job.ID, errMsg, job.RetryCount); uerr != nil {
		log.Warn().Err(uerr).Str("jobId", job.ID.String()).Msg("failed to record job error")
	}

	if job.RetryCount < maxRetries {
		backoff := time.Duration(1<<uint(job.RetryCount)) * time.Second
		log.Warn().Err(err).Str("jobId", job.ID.String()).Int("attempt", job.RetryCount).Dur("backoff", backoff).Msg("job failed, retrying")
		p.jobRepo.UpdateStatus(ctx, job.ID, "pending")
		p.requeue(job, backoff)
		return
	}

	log.Error().Err(err).Str("jobId", job.ID.String()).Msg("job failed permanently")
	p.jobRepo.UpdateStatus(ctx, job.ID, "failed")
}

func (p *Pool) pushAfter(job *models.Job, backoff time.Duration) {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		log.Error().Err(err).Str("jobId", job.ID.String()).Msg("failed to encode job for retry")
		return
	}
	time.AfterFunc(backoff, func() {
		if err := p.redis.LPush(context.Background(), services.AnalyticsRefreshQueue, string(jobBytes)).Err(); err != nil {
			log.Error().Err(err).Str("jobId", job.ID.String()).Msg("failed to requeue job")
		}
	})
}
