package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"messenger-api/errs"
	"messenger-api/models"
)

const (
	hourBucketWidth = 4
	defaultWindow   = "7d"
)

var errAdminOnly = errs.New(errs.KindAuthorization, "Administrator access required")

// AdminManager holds the moderation and usage projections shown to
// administrators.
type AdminManager struct {
	deps     *Dependencies
	identity *IdentityManager
	op       opState

	mu            sync.RWMutex
	features      []models.FeatureToggle
	conversations []models.ConversationData
	flagged       []models.FlaggedMessage
	usage         *models.UsageMetrics
}

func NewAdminManager(deps *Dependencies, identity *IdentityManager) *AdminManager {
	return &AdminManager{deps: deps.withDefaults(), identity: identity, op: opState{domain: "admin"}}
}

func (m *AdminManager) Status() OpStatus { return m.op.Status() }

// authorize rejects non-admin principals before any state is touched,
// including the loading flag and last error.
func (m *AdminManager) authorize() (*models.Principal, error) {
	p, err := m.identity.requirePrincipal()
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() {
		return nil, errAdminOnly
	}
	return p, nil
}

func (m *AdminManager) Features() []models.FeatureToggle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.FeatureToggle{}, m.features...)
}

func (m *AdminManager) ConversationData() []models.ConversationData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.ConversationData{}, m.conversations...)
}

func (m *AdminManager) FlaggedContent() []models.FlaggedMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.FlaggedMessage{}, m.flagged...)
}

func (m *AdminManager) UsageMetrics() *models.UsageMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.usage == nil {
		return nil
	}
	u := *m.usage
	return &u
}

func (m *AdminManager) RefreshFeatures(ctx context.Context) ([]models.FeatureToggle, error) {
	if _, err := m.authorize(); err != nil {
		return nil, err
	}
	m.op.begin()
	features, err := m.refreshFeatures(ctx)
	return features, m.op.end(err)
}

func (m *AdminManager) refreshFeatures(ctx context.Context) ([]models.FeatureToggle, error) {
	features, err := m.deps.Store.ListFeatures(ctx)
	if err != nil {
		return nil, storeError(err, "Failed to load features")
	}
	m.mu.Lock()
	m.features = features
	m.mu.Unlock()
	return m.Features(), nil
}

func (m *AdminManager) ToggleFeature(ctx context.Context, id string, enabled bool) ([]models.FeatureToggle, error) {
	p, err := m.authorize()
	if err != nil {
		return nil, err
	}
	m.op.begin()
	if err := m.deps.Store.SetFeatureEnabled(ctx, id, enabled); err != nil {
		return nil, m.op.end(storeError(err, "Feature not found"))
	}
	m.deps.Log.Info("feature toggled", zap.String("feature_id", id), zap.Bool("enabled", enabled), zap.String("admin_id", p.ID))
	features, err := m.refreshFeatures(ctx)
	return features, m.op.end(err)
}

func (m *AdminManager) RefreshConversations(ctx context.Context) ([]models.ConversationData, error) {
	if _, err := m.authorize(); err != nil {
		return nil, err
	}
	m.op.begin()
	data, err := m.deps.Store.ConversationActivity(ctx)
	if err != nil {
		return nil, m.op.end(storeError(err, "Failed to load conversations"))
	}
	m.mu.Lock()
	m.conversations = data
	m.mu.Unlock()
	return m.ConversationData(), m.op.end(nil)
}

func (m *AdminManager) RefreshFlaggedContent(ctx context.Context) ([]models.FlaggedMessage, error) {
	if _, err := m.authorize(); err != nil {
		return nil, err
	}
	m.op.begin()
	msgs, err := m.deps.Store.ListFlaggedMessages(ctx)
	if err != nil {
		return nil, m.op.end(storeError(err, "Failed to load flagged content"))
	}
	flagged := make([]models.FlaggedMessage, 0, len(msgs))
	for i := range msgs {
		flagged = append(flagged, models.FlaggedFromMessage(&msgs[i]))
	}
	m.mu.Lock()
	m.flagged = flagged
	m.mu.Unlock()
	return m.FlaggedContent(), m.op.end(nil)
}

// ReviewFlaggedMessage resolves a pending flag. Resolved flags cannot be
// reopened or resolved again.
func (m *AdminManager) ReviewFlaggedMessage(ctx context.Context, id string, status models.FlagStatus) error {
	p, err := m.authorize()
	if err != nil {
		return err
	}
	if status != models.FlagStatusReviewed && status != models.FlagStatusDismissed {
		return m.op.fail(errs.Newf(errs.KindValidation, "Flag status must be %q or %q", models.FlagStatusReviewed, models.FlagStatusDismissed))
	}

	m.op.begin()
	if err := m.deps.Store.SetFlagStatus(ctx, id, status); err != nil {
		return m.op.end(storeError(err, "Flag is already resolved"))
	}
	m.deps.Log.Info("flag reviewed", zap.String("message_id", id), zap.String("status", string(status)), zap.String("admin_id", p.ID))

	m.mu.Lock()
	for i := range m.flagged {
		if m.flagged[i].ID == id {
			m.flagged[i].Status = status
		}
	}
	m.mu.Unlock()
	return m.op.end(nil)
}

// ParseWindow turns labels like "24h", "7d" or "all" into a duration. Zero
// means all time.
func ParseWindow(label string) (time.Duration, error) {
	label = strings.ToLower(strings.TrimSpace(label))
	switch {
	case label == "all":
		return 0, nil
	case strings.HasSuffix(label, "d"):
		days, err := strconv.Atoi(strings.TrimSuffix(label, "d"))
		if err != nil || days <= 0 || days > 366 {
			return 0, errs.Newf(errs.KindValidation, "Invalid window %q", label)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	case strings.HasSuffix(label, "h"):
		hours, err := strconv.Atoi(strings.TrimSuffix(label, "h"))
		if err != nil || hours <= 0 || hours > 24*366 {
			return 0, errs.Newf(errs.KindValidation, "Invalid window %q", label)
		}
		return time.Duration(hours) * time.Hour, nil
	}
	return 0, errs.Newf(errs.KindValidation, "Invalid window %q", label)
}

// RefreshUsageMetrics aggregates platform usage over window ("7d" when
// empty). The individual counts run concurrently.
func (m *AdminManager) RefreshUsageMetrics(ctx context.Context, window string) (*models.UsageMetrics, error) {
	if _, err := m.authorize(); err != nil {
		return nil, err
	}
	if window == "" {
		window = defaultWindow
	}
	span, err := ParseWindow(window)
	if err != nil {
		return nil, m.op.fail(err)
	}

	m.op.begin()
	now := m.deps.Now()
	usage := &models.UsageMetrics{Window: window, GeneratedAt: now}
	if span > 0 {
		usage.Since = now.Add(-span)
	}
	since := usage.Since

	var hourly map[int]int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		usage.TotalUsers, err = m.deps.Store.CountProfiles(gctx, time.Time{})
		return err
	})
	g.Go(func() (err error) {
		usage.NewUsers, err = m.deps.Store.CountProfiles(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		usage.ActiveUsers, err = m.deps.Store.CountActiveSenders(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		usage.MessagesSent, err = m.deps.Store.CountMessages(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		usage.TotalConversations, err = m.deps.Store.CountConversations(gctx)
		return err
	})
	g.Go(func() (err error) {
		usage.UserGrowth, err = m.deps.Store.DailyProfileCounts(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		usage.MessageVolume, err = m.deps.Store.DailyMessageCounts(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		hourly, err = m.deps.Store.HourlyMessageCounts(gctx, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, m.op.end(storeError(err, "Failed to load usage metrics"))
	}

	if usage.ActiveUsers > 0 {
		usage.MessagesPerActiveUser = float64(usage.MessagesSent) / float64(usage.ActiveUsers)
	}
	usage.ActiveHours = hourBuckets(hourly)
	if usage.UserGrowth == nil {
		usage.UserGrowth = []models.DailyCount{}
	}
	if usage.MessageVolume == nil {
		usage.MessageVolume = []models.DailyCount{}
	}

	m.mu.Lock()
	m.usage = usage
	m.mu.Unlock()
	return m.UsageMetrics(), m.op.end(nil)
}

// hourBuckets folds per-hour counts into fixed four hour buckets labelled
// "00-04" through "20-24".
func hourBuckets(hourly map[int]int64) []models.HourBucket {
	buckets := make([]models.HourBucket, 0, 24/hourBucketWidth)
	for start := 0; start < 24; start += hourBucketWidth {
		b := models.HourBucket{Label: fmt.Sprintf("%02d-%02d", start, start+hourBucketWidth)}
		for h := start; h < start+hourBucketWidth; h++ {
			b.Count += hourly[h]
		}
		buckets = append(buckets, b)
	}
	return buckets
}
