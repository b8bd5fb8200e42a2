package services

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-api/cache"
	"messenger-api/errs"
	"messenger-api/models"
)

func TestResumeRebuildsLostSession(t *testing.T) {
	env := newTestEnv(t)
	ann := env.user(t, "ann", "Ann")

	same, err := env.registry.Resume(env.ctx, ann.ID, "ann")
	require.NoError(t, err)
	assert.Same(t, ann, same)

	// A fresh registry stands in for a restarted process.
	restarted := NewSessionRegistry(env.deps)
	s, err := restarted.Resume(env.ctx, ann.ID, "ann")
	require.NoError(t, err)
	assert.NotSame(t, ann, s)
	assert.Equal(t, "ann", s.Identity.Principal().ID)
	assert.Equal(t, 1, restarted.Len())

	_, err = restarted.Resume(env.ctx, "other", "ghost")
	assert.True(t, errors.Is(err, errs.ErrProfileLookup))
	assert.Equal(t, 1, restarted.Len())
}

func TestSessionsAreIndependent(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "bob", "Bob")
	env.user(t, "ann", "Ann")
	phone, err := env.registry.Resume(env.ctx, "phone", "ann")
	require.NoError(t, err)
	laptop, err := env.registry.Resume(env.ctx, "laptop", "ann")
	require.NoError(t, err)

	convID, err := phone.Messaging.CreateConversation(env.ctx, "bob")
	require.NoError(t, err)
	_, err = phone.Messaging.SelectChat(env.ctx, convID)
	require.NoError(t, err)

	assert.Equal(t, convID, phone.Messaging.SelectedChatID())
	assert.Empty(t, laptop.Messaging.SelectedChatID())
	assert.Empty(t, laptop.Messaging.Chats())
}

func TestCloseSession(t *testing.T) {
	env := newTestEnv(t)
	ann := env.user(t, "ann", "Ann")

	require.NoError(t, env.registry.Close(env.ctx, ann.ID))
	_, ok := env.registry.Get(ann.ID)
	assert.False(t, ok)
	assert.Nil(t, ann.Identity.Principal())
	assert.False(t, env.deps.Presence.IsOnline(env.ctx, "ann"))

	require.NoError(t, env.registry.Close(env.ctx, ann.ID))
}

func TestCloseKeepsUserOnlineWhileAnotherSessionLives(t *testing.T) {
	env := newTestEnv(t)
	ann := env.user(t, "ann", "Ann")
	phone, err := env.registry.Resume(env.ctx, "ann-phone", "ann")
	require.NoError(t, err)
	require.NoError(t, env.deps.Presence.Set(env.ctx, "ann", models.PresenceOnline))

	require.NoError(t, env.registry.Close(env.ctx, ann.ID))
	assert.Nil(t, ann.Identity.Principal())
	assert.NotNil(t, phone.Identity.Principal())
	assert.True(t, env.deps.Presence.IsOnline(env.ctx, "ann"), "the phone session is still live")

	require.NoError(t, env.registry.Close(env.ctx, phone.ID))
	assert.False(t, env.deps.Presence.IsOnline(env.ctx, "ann"), "last session gone")
}

func TestTouchRestoresMissingHeartbeat(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "ann", "Ann")
	require.NoError(t, env.deps.Presence.Set(env.ctx, "ann", models.PresenceOffline))
	require.False(t, env.deps.Presence.IsOnline(env.ctx, "ann"))

	require.NoError(t, env.deps.Presence.Touch(env.ctx, "ann"))
	assert.True(t, env.deps.Presence.IsOnline(env.ctx, "ann"))

	profile, err := env.mem.GetProfile(env.ctx, "ann")
	require.NoError(t, err)
	assert.Equal(t, models.PresenceOnline, profile.Status)

	require.NoError(t, env.deps.Presence.Set(env.ctx, "ann", models.PresenceBusy))
	require.NoError(t, env.deps.Presence.Touch(env.ctx, "ann"))
	assert.Equal(t, models.PresenceBusy, env.deps.Presence.Status(env.ctx, "ann"), "a live status is kept")
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "ann", "Ann")
	env.user(t, "bob", "Bob")
	annPhone, err := env.registry.Resume(env.ctx, "ann-phone", "ann")
	require.NoError(t, err)

	env.clock.Advance(3 * time.Hour)
	_, ok := env.registry.Get(annPhone.ID)
	require.True(t, ok)

	evicted := env.registry.Sweep(env.ctx, 2*time.Hour)
	assert.Equal(t, 2, evicted)
	assert.Equal(t, 1, env.registry.Len())

	assert.False(t, env.deps.Presence.IsOnline(env.ctx, "bob"), "users without sessions go offline")
	assert.True(t, env.deps.Presence.IsOnline(env.ctx, "ann"), "ann still has a live session")

	states := env.registry.States()
	require.Len(t, states, 1)
	assert.Equal(t, "ann-phone", states[0].ID)
	assert.Equal(t, "ann", states[0].Principal.ID)
}

func TestTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	revoked := cache.NewMemoryCache()
	tokens := NewTokenService("secret", time.Hour, revoked)

	raw, claims, err := tokens.Issue("ann", "session-1")
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)

	parsed, err := tokens.Parse(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "ann", parsed.UserID)
	assert.Equal(t, "session-1", parsed.SessionID)

	_, err = NewTokenService("other", time.Hour, revoked).Parse(ctx, raw)
	assert.Error(t, err, "wrong signing key")

	require.NoError(t, tokens.Revoke(ctx, parsed))
	_, err = tokens.Parse(ctx, raw)
	assert.Error(t, err, "revoked token")
}

func TestExpiredTokenIsRejected(t *testing.T) {
	ctx := context.Background()
	tokens := NewTokenService("secret", time.Minute, cache.NewMemoryCache())
	raw, _, err := tokens.Issue("ann", "session-1")
	require.NoError(t, err)

	tokens.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = tokens.Parse(ctx, raw)
	assert.Error(t, err)
}

func TestPresenceHeartbeat(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "ann", "Ann")
	presence := NewPresenceService(env.cache, env.mem, 50*time.Millisecond)

	require.NoError(t, presence.Set(env.ctx, "ann", models.PresenceAway))
	assert.Equal(t, models.PresenceAway, presence.Status(env.ctx, "ann"))
	profile, err := env.mem.GetProfile(env.ctx, "ann")
	require.NoError(t, err)
	assert.Equal(t, models.PresenceAway, profile.Status)
	assert.NotNil(t, profile.LastSeen)

	assert.Eventually(t, func() bool {
		return presence.Status(env.ctx, "ann") == models.PresenceOffline
	}, time.Second, 10*time.Millisecond, "an expired heartbeat reads as offline")

	require.NoError(t, presence.Set(env.ctx, "ann", models.PresenceOnline))
	require.NoError(t, presence.Touch(env.ctx, "ann"))
	assert.True(t, presence.IsOnline(env.ctx, "ann"))
	assert.Equal(t, models.PresenceOffline, presence.Status(env.ctx, "ghost"))
}
