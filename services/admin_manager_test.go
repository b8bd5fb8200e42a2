package services

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-api/errs"
	"messenger-api/models"
)

func seedFeatures(t *testing.T, env *testEnv) {
	t.Helper()
	for _, f := range []models.FeatureToggle{
		{ID: "f-media", Name: models.FeatureMediaAttachments, Category: models.FeatureCategoryMessaging, Enabled: true},
		{ID: "f-2fa", Name: "two_factor_auth", Category: models.FeatureCategorySecurity},
	} {
		require.NoError(t, env.mem.PutFeature(env.ctx, f))
	}
}

// flaggedConversation has ann send three messages and bob one, then bob
// reports ann's first message.
func flaggedConversation(t *testing.T, env *testEnv) (convID, flaggedID string) {
	t.Helper()
	ann, convID := selectedChat(t, env)
	bob, _ := env.registry.Get("session-bob")
	var first string
	for i, text := range []string{"hi", "buy now", "cheap"} {
		v, err := ann.Messaging.SendMessage(env.ctx, text)
		require.NoError(t, err)
		if i == 0 {
			first = v.ID
		}
	}
	_, err := bob.Messaging.SelectChat(env.ctx, convID)
	require.NoError(t, err)
	_, err = bob.Messaging.SendMessage(env.ctx, "stop")
	require.NoError(t, err)
	require.NoError(t, bob.Messaging.FlagMessage(env.ctx, first, "spam", models.SeverityHigh))
	return convID, first
}

func TestAdminOperationsRejectNonAdmins(t *testing.T) {
	env := newTestEnv(t)
	seedFeatures(t, env)
	_, flaggedID := flaggedConversation(t, env)
	ann, _ := env.registry.Get("session-ann")

	calls := map[string]func() error{
		"features": func() error { _, err := ann.Admin.RefreshFeatures(env.ctx); return err },
		"toggle":   func() error { _, err := ann.Admin.ToggleFeature(env.ctx, "f-2fa", true); return err },
		"convs":    func() error { _, err := ann.Admin.RefreshConversations(env.ctx); return err },
		"flagged":  func() error { _, err := ann.Admin.RefreshFlaggedContent(env.ctx); return err },
		"review": func() error {
			return ann.Admin.ReviewFlaggedMessage(env.ctx, flaggedID, models.FlagStatusDismissed)
		},
		"usage": func() error { _, err := ann.Admin.RefreshUsageMetrics(env.ctx, "bogus"); return err },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			assert.True(t, errors.Is(err, errs.ErrAuthorization), "got %v", err)
			assert.Equal(t, OpStatus{}, ann.Admin.Status(), "no state change on rejection")
		})
	}

	assert.Empty(t, ann.Admin.Features())
	assert.Empty(t, ann.Admin.FlaggedContent())
	assert.Nil(t, ann.Admin.UsageMetrics())

	f, err := env.mem.GetFeatureByName(env.ctx, "two_factor_auth")
	require.NoError(t, err)
	assert.False(t, f.Enabled)
	msg, err := env.mem.GetMessage(env.ctx, flaggedID)
	require.NoError(t, err)
	assert.Equal(t, models.FlagStatusPending, msg.FlagStatus)

	anonymous := NewSession("anonymous", env.deps)
	_, err = anonymous.Admin.RefreshFeatures(env.ctx)
	assert.True(t, errors.Is(err, errs.ErrAuthentication))
}

func TestToggleFeature(t *testing.T) {
	env := newTestEnv(t)
	seedFeatures(t, env)
	root := env.admin(t, "root", "Root")

	features, err := root.Admin.RefreshFeatures(env.ctx)
	require.NoError(t, err)
	require.Len(t, features, 2)

	features, err = root.Admin.ToggleFeature(env.ctx, "f-2fa", true)
	require.NoError(t, err)
	for _, f := range features {
		if f.ID == "f-2fa" {
			assert.True(t, f.Enabled)
		}
	}

	_, err = root.Admin.ToggleFeature(env.ctx, "missing", true)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	assert.Equal(t, "Feature not found", root.Admin.Status().Error)
}

func TestReviewFlaggedMessage(t *testing.T) {
	env := newTestEnv(t)
	convID, flaggedID := flaggedConversation(t, env)
	root := env.admin(t, "root", "Root")

	flagged, err := root.Admin.RefreshFlaggedContent(env.ctx)
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, flaggedID, flagged[0].ID)
	assert.Equal(t, "Ann", flagged[0].Sender)
	assert.Equal(t, models.SeverityHigh, flagged[0].Severity)
	assert.Equal(t, models.FlagStatusPending, flagged[0].Status)

	err = root.Admin.ReviewFlaggedMessage(env.ctx, flaggedID, models.FlagStatusPending)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	require.NoError(t, root.Admin.ReviewFlaggedMessage(env.ctx, flaggedID, models.FlagStatusReviewed))
	assert.Equal(t, models.FlagStatusReviewed, root.Admin.FlaggedContent()[0].Status)

	err = root.Admin.ReviewFlaggedMessage(env.ctx, flaggedID, models.FlagStatusDismissed)
	assert.True(t, errors.Is(err, errs.ErrConflict), "resolved flags stay resolved")

	convs, err := root.Admin.RefreshConversations(env.ctx)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, convID, convs[0].ID)
	assert.Equal(t, int64(4), convs[0].MessageCount)
	assert.Equal(t, int64(1), convs[0].FlaggedCount)
	assert.ElementsMatch(t, []string{"Ann", "Bob"}, convs[0].Participants)
}

func TestRefreshUsageMetrics(t *testing.T) {
	env := newTestEnv(t)
	flaggedConversation(t, env)
	root := env.admin(t, "root", "Root")

	usage, err := root.Admin.RefreshUsageMetrics(env.ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "7d", usage.Window)
	assert.Equal(t, int64(3), usage.TotalUsers)
	assert.Equal(t, int64(2), usage.ActiveUsers)
	assert.Equal(t, int64(4), usage.MessagesSent)
	assert.Equal(t, int64(1), usage.TotalConversations)
	assert.InDelta(t, 2.0, usage.MessagesPerActiveUser, 0.001)
	require.Len(t, usage.MessageVolume, 1)
	assert.Equal(t, "2024-03-04", usage.MessageVolume[0].Day)

	require.Len(t, usage.ActiveHours, 6)
	assert.Equal(t, "08-12", usage.ActiveHours[2].Label)
	assert.Equal(t, int64(4), usage.ActiveHours[2].Count)

	_, err = root.Admin.RefreshUsageMetrics(env.ctx, "fortnight")
	assert.True(t, errors.Is(err, errs.ErrValidation))
	assert.NotNil(t, root.Admin.UsageMetrics(), "a rejected window keeps the last metrics")
}

func TestParseWindow(t *testing.T) {
	cases := map[string]time.Duration{
		"all": 0,
		"7d":  7 * 24 * time.Hour,
		"30D": 30 * 24 * time.Hour,
		"24h": 24 * time.Hour,
	}
	for label, want := range cases {
		got, err := ParseWindow(label)
		require.NoError(t, err, label)
		assert.Equal(t, want, got, label)
	}
	for _, bad := range []string{"", "0d", "-1h", "week", "400d"} {
		_, err := ParseWindow(bad)
		assert.Error(t, err, bad)
	}
}

func TestHourBuckets(t *testing.T) {
	buckets := hourBuckets(map[int]int64{0: 1, 3: 2, 4: 5, 23: 7})
	require.Len(t, buckets, 6)
	assert.Equal(t, models.HourBucket{Label: "00-04", Count: 3}, buckets[0])
	assert.Equal(t, models.HourBucket{Label: "04-08", Count: 5}, buckets[1])
	assert.Equal(t, models.HourBucket{Label: "20-24", Count: 7}, buckets[5])
}
