package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messenger-api/models"
	"messenger-api/repositories"
	"messenger-api/services"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestSessionSweepJobRun(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryStore()
	require.NoError(t, store.CreateProfile(ctx, &models.Profile{ID: "ann", Name: "Ann", Email: "ann@example.com"}))

	clock := &fakeClock{now: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)}
	registry := services.NewSessionRegistry(&services.Dependencies{Store: store, Now: clock.Now})
	_, err := registry.Resume(ctx, "session-ann", "ann")
	require.NoError(t, err)

	job, err := NewSessionSweepJob(registry, "*/5 * * * *", time.Hour, zap.NewNop())
	require.NoError(t, err)

	assert.Zero(t, job.Run(ctx), "fresh sessions stay")

	clock.Advance(2 * time.Hour)
	assert.Equal(t, 1, job.Run(ctx))
	assert.Zero(t, registry.Len())
}

func TestSessionSweepJobRejectsBadSchedule(t *testing.T) {
	registry := services.NewSessionRegistry(&services.Dependencies{Store: repositories.NewMemoryStore()})

	_, err := NewSessionSweepJob(registry, "every five minutes", time.Hour, zap.NewNop())
	assert.Error(t, err)
}

func TestSessionSweepJobStartStop(t *testing.T) {
	registry := services.NewSessionRegistry(&services.Dependencies{Store: repositories.NewMemoryStore()})
	job, err := NewSessionSweepJob(registry, "@every 1h", time.Hour, zap.NewNop())
	require.NoError(t, err)

	job.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	job.Stop(ctx)
	assert.NoError(t, ctx.Err())
}
