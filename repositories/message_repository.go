package repositories

import (
	"context"

	"messenger-api/models"
)

func (s *GormStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	return translate(s.conn(ctx).Omit("Sender").Create(msg).Error, "create message")
}

func (s *GormStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	if err := s.conn(ctx).Preload("Sender").First(&msg, "id = ?", id).Error; err != nil {
		return nil, translate(err, "get message")
	}
	return &msg, nil
}

func (s *GormStore) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var messages []models.Message
	if err := s.conn(ctx).Preload("Sender").
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		return nil, translate(err, "list messages")
	}
	return messages, nil
}

func (s *GormStore) LastMessage(ctx context.Context, conversationID string) (*models.Message, error) {
	var messages []models.Message
	if err := s.conn(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(1).
		Find(&messages).Error; err != nil {
		return nil, translate(err, "last message")
	}
	if len(messages) == 0 {
		return nil, nil
	}
	return &messages[0], nil
}

func (s *GormStore) CountUnread(ctx context.Context, conversationID, senderID string) (int64, error) {
	var count int64
	err := s.conn(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id = ? AND status <> ?", conversationID, senderID, models.MessageStatusRead).
		Count(&count).Error
	if err != nil {
		return 0, translate(err, "count unread")
	}
	return count, nil
}

func (s *GormStore) AdvanceStatus(ctx context.Context, conversationID, senderID string, status models.MessageStatus) (int64, error) {
	before := models.StatusesBefore(status)
	if len(before) == 0 {
		return 0, nil
	}

	res := s.conn(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id = ? AND status IN ?", conversationID, senderID, before).
		Update("status", status)
	if res.Error != nil {
		return 0, translate(res.Error, "advance message status")
	}
	return res.RowsAffected, nil
}

func (s *GormStore) FlagMessage(ctx context.Context, id, reason string, severity models.FlagSeverity) error {
	res := s.conn(ctx).Model(&models.Message{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_flagged":    true,
		"flag_reason":   reason,
		"flag_status":   models.FlagStatusPending,
		"flag_severity": severity,
	})
	if res.Error != nil {
		return translate(res.Error, "flag message")
	}
	if res.RowsAffected == 0 {
		_, err := s.GetMessage(ctx, id)
		return err
	}
	return nil
}
