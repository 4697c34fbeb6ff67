package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"suzy-backend/internal/config"
)

type staleTimerCloser interface {
	CloseStaleTimers(ctx context.Context, openedBefore time.Time, maxMinutes int, note string) (int64, error)
}

type analyticsPruner interface {
	PruneBefore(ctx context.Context, before time.Time) (int64, error)
}

const staleTimerNote = "Closed automatically"

// CleanupJob caps timers nobody ended and drops aged analytics rows.
type CleanupJob struct {
	timers    staleTimerCloser
	analytics analyticsPruner
	interval  time.Duration
	maxOpen   time.Duration
	now       func() time.Time
	done      chan struct{}
}

func NewCleanupJob(timers staleTimerCloser, analytics analyticsPruner, interval, maxOpen time.Duration) *CleanupJob {
	return &CleanupJob{
		timers:    timers,
		analytics: analytics,
		interval:  interval,
		maxOpen:   maxOpen,
		now:       time.Now,
		done:      make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Dur("maxOpen", j.maxOpen).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	select {
	case <-j.done:
		return
	default:
		close(j.done)
	}
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), config.CleanupTickTimeout)
	defer cancel()

	now := j.now().UTC()
	maxMinutes := int(j.maxOpen / time.Minute)

	j.runCleanup(ctx, "stale timers", func(ctx context.Context) (int64, error) {
		return j.timers.CloseStaleTimers(ctx, now.Add(-j.maxOpen), maxMinutes, staleTimerNote)
	})
	j.runCleanup(ctx, "analytics rows", func(ctx context.Context) (int64, error) {
		return j.analytics.PruneBefore(ctx, now.AddDate(0, 0, -config.AnalyticsRetentionDays))
	})
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to clean up %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
