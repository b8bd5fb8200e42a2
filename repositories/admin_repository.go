package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"messenger-api/models"
)

func (s *GormStore) ListFeatures(ctx context.Context) ([]models.FeatureToggle, error) {
	var features []models.FeatureToggle
	if err := s.conn(ctx).Order("category ASC, name ASC").Find(&features).Error; err != nil {
		return nil, translate(err, "list features")
	}
	return features, nil
}

func (s *GormStore) GetFeatureByName(ctx context.Context, name string) (*models.FeatureToggle, error) {
	var feature models.FeatureToggle
	if err := s.conn(ctx).Where("name = ?", name).First(&feature).Error; err != nil {
		return nil, translate(err, "get feature")
	}
	return &feature, nil
}

func (s *GormStore) SetFeatureEnabled(ctx context.Context, id string, enabled bool) error {
	res := s.conn(ctx).Model(&models.FeatureToggle{}).Where("id = ?", id).Update("enabled", enabled)
	if res.Error != nil {
		return translate(res.Error, "set feature")
	}
	if res.RowsAffected == 0 {
		var feature models.FeatureToggle
		return translate(s.conn(ctx).First(&feature, "id = ?", id).Error, "set feature")
	}
	return nil
}

func (s *GormStore) ListFlaggedMessages(ctx context.Context) ([]models.Message, error) {
	var messages []models.Message
	if err := s.conn(ctx).Preload("Sender").
		Where("is_flagged = ?", true).
		Order("created_at DESC").
		Find(&messages).Error; err != nil {
		return nil, translate(err, "list flagged messages")
	}
	return messages, nil
}

func (s *GormStore) SetFlagStatus(ctx context.Context, id string, status models.FlagStatus) error {
	res := s.conn(ctx).Model(&models.Message{}).
		Where("id = ? AND is_flagged = ? AND flag_status = ?", id, true, models.FlagStatusPending).
		Update("flag_status", status)
	if res.Error != nil {
		return translate(res.Error, "set flag status")
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var msg models.Message
	if err := s.conn(ctx).Select("id", "is_flagged").First(&msg, "id = ?", id).Error; err != nil {
		return translate(err, "set flag status")
	}
	if !msg.IsFlagged {
		return translate(ErrNotFound, "set flag status")
	}
	return translate(ErrStaleState, "set flag status")
}

type conversationCounts struct {
	ConversationID string
	Total          int64
	Flagged        int64
}

func (s *GormStore) ConversationActivity(ctx context.Context) ([]models.ConversationData, error) {
	var convs []models.Conversation
	if err := s.conn(ctx).Preload("Participants.Profile").
		Order("last_activity DESC").
		Find(&convs).Error; err != nil {
		return nil, translate(err, "list conversation activity")
	}

	var counts []conversationCounts
	if err := s.conn(ctx).Model(&models.Message{}).
		Select("conversation_id, COUNT(*) AS total, SUM(CASE WHEN is_flagged THEN 1 ELSE 0 END) AS flagged").
		Group("conversation_id").
		Scan(&counts).Error; err != nil {
		return nil, translate(err, "count conversation messages")
	}

	byID := make(map[string]conversationCounts, len(counts))
	for _, c := range counts {
		byID[c.ConversationID] = c
	}

	data := make([]models.ConversationData, 0, len(convs))
	for _, conv := range convs {
		names := make([]string, 0, len(conv.Participants))
		for _, p := range conv.Participants {
			names = append(names, p.Profile.Name)
		}
		c := byID[conv.ID]
		data = append(data, models.ConversationData{
			ID:           conv.ID,
			Participants: names,
			LastActive:   conv.LastActivity,
			MessageCount: c.Total,
			FlaggedCount: c.Flagged,
		})
	}
	return data, nil
}

func since(q *gorm.DB, t time.Time) *gorm.DB {
	if t.IsZero() {
		return q
	}
	return q.Where("created_at >= ?", t)
}

func (s *GormStore) CountProfiles(ctx context.Context, from time.Time) (int64, error) {
	var count int64
	err := since(s.conn(ctx).Model(&models.Profile{}), from).Count(&count).Error
	return count, translate(err, "count profiles")
}

func (s *GormStore) CountMessages(ctx context.Context, from time.Time) (int64, error) {
	var count int64
	err := since(s.conn(ctx).Model(&models.Message{}), from).Count(&count).Error
	return count, translate(err, "count messages")
}

func (s *GormStore) CountActiveSenders(ctx context.Context, from time.Time) (int64, error) {
	var count int64
	err := since(s.conn(ctx).Model(&models.Message{}), from).Distinct("sender_id").Count(&count).Error
	return count, translate(err, "count active senders")
}

func (s *GormStore) CountConversations(ctx context.Context) (int64, error) {
	var count int64
	err := s.conn(ctx).Model(&models.Conversation{}).Count(&count).Error
	return count, translate(err, "count conversations")
}

func (s *GormStore) DailyProfileCounts(ctx context.Context, from time.Time) ([]models.DailyCount, error) {
	return s.dailyCounts(ctx, &models.Profile{}, from)
}

func (s *GormStore) DailyMessageCounts(ctx context.Context, from time.Time) ([]models.DailyCount, error) {
	return s.dailyCounts(ctx, &models.Message{}, from)
}

func (s *GormStore) dailyCounts(ctx context.Context, model interface{}, from time.Time) ([]models.DailyCount, error) {
	var rows []models.DailyCount
	err := since(s.conn(ctx).Model(model), from).
		Select("DATE_FORMAT(created_at, '%Y-%m-%d') AS day, COUNT(*) AS count").
		Group("day").
		Order("day ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err, "daily counts")
	}
	return rows, nil
}

type hourCount struct {
	Hour  int
	Count int64
}

func (s *GormStore) HourlyMessageCounts(ctx context.Context, from time.Time) (map[int]int64, error) {
	var rows []hourCount
	err := since(s.conn(ctx).Model(&models.Message{}), from).
		Select("HOUR(created_at) AS hour, COUNT(*) AS count").
		Group("hour").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err, "hourly message counts")
	}

	out := make(map[int]int64, len(rows))
	for _, r := range rows {
		out[r.Hour] = r.Count
	}
	return out, nil
}

// PutFeature inserts a feature toggle, or refreshes the description and
// category of an existing one with the same name. The enabled flag of an
// existing toggle is left alone.
func (s *GormStore) PutFeature(ctx context.Context, feature models.FeatureToggle) error {
	err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "category"}),
	}).Create(&feature).Error
	return translate(err, "put feature")
}

func (s *GormStore) SetRole(ctx context.Context, id string, role models.Role) error {
	res := s.conn(ctx).Model(&models.Profile{}).Where("id = ?", id).Update("role", role)
	if res.Error != nil {
		return translate(res.Error, "set role")
	}
	if res.RowsAffected == 0 {
		var profile models.Profile
		return translate(s.conn(ctx).Select("id").First(&profile, "id = ?", id).Error, "set role")
	}
	return nil
}
