// File: /jobs/session_sweep_job.go
package jobs

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"messenger-api/metrics"
	"messenger-api/services"
)

const sessionSweepJobName = "session_sweep"

// SessionSweepJob evicts sessions that have been idle longer than the
// configured TTL and marks their users offline.
type SessionSweepJob struct {
	registry *services.SessionRegistry
	idle     time.Duration
	log      *zap.Logger

	cron     *cron.Cron
	schedule string
}

// NewSessionSweepJob returns an error when schedule is not a valid
// five field cron expression.
func NewSessionSweepJob(registry *services.SessionRegistry, schedule string, idle time.Duration, log *zap.Logger) (*SessionSweepJob, error) {
	j := &SessionSweepJob{
		registry: registry,
		idle:     idle,
		log:      log.Named(sessionSweepJobName),
		cron:     cron.New(),
		schedule: schedule,
	}
	if _, err := j.cron.AddFunc(schedule, func() { j.Run(context.Background()) }); err != nil {
		return nil, errors.Wrapf(err, "invalid sweep schedule %q", schedule)
	}
	return j, nil
}

// Start begins the schedule in the background.
func (j *SessionSweepJob) Start() {
	j.log.Info("session sweep job started", zap.String("schedule", j.schedule), zap.Duration("idle_ttl", j.idle))
	j.cron.Start()
}

// Stop waits for a running sweep to finish or ctx to expire.
func (j *SessionSweepJob) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
		j.log.Info("session sweep job stopped")
	case <-ctx.Done():
		j.log.Warn("session sweep job did not stop in time")
	}
}

// Run performs a single sweep and returns the number of evicted sessions.
func (j *SessionSweepJob) Run(ctx context.Context) int {
	start := time.Now()
	evicted := j.registry.Sweep(ctx, j.idle)
	metrics.RecordJobRun(sessionSweepJobName, time.Since(start), ctx.Err() == nil)

	if evicted > 0 {
		j.log.Info("idle sessions evicted", zap.Int("evicted", evicted), zap.Int("remaining", j.registry.Len()))
	} else {
		j.log.Debug("no idle sessions")
	}
	return evicted
}
