package services

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"messenger-api/cache"
	"messenger-api/models"
	"messenger-api/repositories"
)

// PresenceService keeps a heartbeat per user in the cache and mirrors the
// status and last-seen time onto the profile row.
type PresenceService struct {
	cache cache.Cache
	store repositories.ProfileRepository
	ttl   time.Duration
	now   func() time.Time
}

func NewPresenceService(c cache.Cache, store repositories.ProfileRepository, ttl time.Duration) *PresenceService {
	return &PresenceService{cache: c, store: store, ttl: ttl, now: time.Now}
}

func presenceKey(userID string) string { return "presence:" + userID }

// Set records status for userID. Offline removes the heartbeat.
func (p *PresenceService) Set(ctx context.Context, userID string, status models.PresenceStatus) error {
	now := p.now()
	if err := p.store.SetPresence(ctx, userID, status, now); err != nil {
		return errors.Wrap(err, "store presence")
	}
	if status == models.PresenceOffline {
		return errors.Wrap(p.cache.Delete(ctx, presenceKey(userID)), "clear presence")
	}
	return errors.Wrap(p.cache.Set(ctx, presenceKey(userID), string(status), p.ttl), "cache presence")
}

// Touch renews the heartbeat of a user who just made an authenticated
// request. A missing or expired heartbeat is restored as online.
func (p *PresenceService) Touch(ctx context.Context, userID string) error {
	status, ok, err := p.cache.Get(ctx, presenceKey(userID))
	if err != nil {
		return err
	}
	if !ok || !models.PresenceStatus(status).Valid() {
		return p.Set(ctx, userID, models.PresenceOnline)
	}
	return p.cache.Set(ctx, presenceKey(userID), status, p.ttl)
}

// Status reports the live status of userID. An expired heartbeat reads as
// offline whatever the profile row says.
func (p *PresenceService) Status(ctx context.Context, userID string) models.PresenceStatus {
	status, ok, err := p.cache.Get(ctx, presenceKey(userID))
	if err != nil || !ok {
		return models.PresenceOffline
	}
	s := models.PresenceStatus(status)
	if !s.Valid() {
		return models.PresenceOffline
	}
	return s
}

func (p *PresenceService) IsOnline(ctx context.Context, userID string) bool {
	return p.Status(ctx, userID) == models.PresenceOnline
}
