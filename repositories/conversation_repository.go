package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"messenger-api/models"
)

func (s *GormStore) FindConversationByPair(ctx context.Context, pairKey string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.conn(ctx).Preload("Participants.Profile").
		Where("pair_key = ?", pairKey).
		First(&conv).Error; err != nil {
		return nil, translate(err, "find conversation")
	}
	return &conv, nil
}

func (s *GormStore) CreateConversation(ctx context.Context, conv *models.Conversation, participantIDs []string) error {
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(conv).Error; err != nil {
			return err
		}

		participants := make([]models.ConversationParticipant, 0, len(participantIDs))
		for _, userID := range participantIDs {
			participants = append(participants, models.ConversationParticipant{
				ConversationID: conv.ID,
				UserID:         userID,
			})
		}
		if err := tx.Omit("Profile").Create(&participants).Error; err != nil {
			return err
		}
		conv.Participants = participants
		return nil
	})
	return translate(err, "create conversation")
}

func (s *GormStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.conn(ctx).Preload("Participants.Profile").First(&conv, "id = ?", id).Error; err != nil {
		return nil, translate(err, "get conversation")
	}
	return &conv, nil
}

func (s *GormStore) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	memberOf := s.conn(ctx).Model(&models.ConversationParticipant{}).
		Select("conversation_id").
		Where("user_id = ?", userID)

	var convs []models.Conversation
	if err := s.conn(ctx).Preload("Participants.Profile").
		Where("id IN (?)", memberOf).
		Order("last_activity DESC").
		Find(&convs).Error; err != nil {
		return nil, translate(err, "list conversations")
	}
	return convs, nil
}

func (s *GormStore) TouchConversation(ctx context.Context, id string, at time.Time) error {
	err := s.conn(ctx).Model(&models.Conversation{}).Where("id = ?", id).Update("last_activity", at).Error
	return translate(err, "touch conversation")
}
