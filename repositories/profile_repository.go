package repositories

import (
	"context"
	"time"

	"messenger-api/models"
)

func (s *GormStore) CreateIdentity(ctx context.Context, identity *models.AuthIdentity) error {
	return translate(s.conn(ctx).Create(identity).Error, "create identity")
}

func (s *GormStore) FindIdentityByEmail(ctx context.Context, email string) (*models.AuthIdentity, error) {
	var identity models.AuthIdentity
	if err := s.conn(ctx).Where("email = ?", email).First(&identity).Error; err != nil {
		return nil, translate(err, "find identity")
	}
	return &identity, nil
}

func (s *GormStore) DeleteIdentity(ctx context.Context, id string) error {
	return translate(s.conn(ctx).Where("id = ?", id).Delete(&models.AuthIdentity{}).Error, "delete identity")
}

func (s *GormStore) CreateProfile(ctx context.Context, profile *models.Profile) error {
	return translate(s.conn(ctx).Create(profile).Error, "create profile")
}

func (s *GormStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.conn(ctx).First(&profile, "id = ?", id).Error; err != nil {
		return nil, translate(err, "get profile")
	}
	return &profile, nil
}

func (s *GormStore) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.Profile, error) {
	updates := map[string]interface{}{}
	if update.Name != nil {
		updates["name"] = *update.Name
		updates["username"] = models.GenerateUsernameFromName(*update.Name)
	}
	if update.Avatar != nil {
		updates["avatar_url"] = *update.Avatar
	}

	if len(updates) > 0 {
		if err := s.conn(ctx).Model(&models.Profile{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, translate(err, "update profile")
		}
	}
	return s.GetProfile(ctx, id)
}

func (s *GormStore) SetPrivacy(ctx context.Context, id string, isPrivate bool) error {
	res := s.conn(ctx).Model(&models.Profile{}).Where("id = ?", id).Update("is_private", isPrivate)
	if res.Error != nil {
		return translate(res.Error, "set privacy")
	}
	if res.RowsAffected == 0 {
		// MySQL reports zero rows when the value is unchanged.
		_, err := s.GetProfile(ctx, id)
		return err
	}
	return nil
}

func (s *GormStore) SetPresence(ctx context.Context, id string, status models.PresenceStatus, lastSeen time.Time) error {
	err := s.conn(ctx).Model(&models.Profile{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":    status,
		"last_seen": lastSeen,
	}).Error
	return translate(err, "set presence")
}

func (s *GormStore) SearchProfiles(ctx context.Context, query, excludeID string, limit int) ([]models.Profile, error) {
	pattern := likePattern(query)

	var profiles []models.Profile
	err := s.conn(ctx).
		Where("(name LIKE ? OR username LIKE ?) AND id <> ? AND is_private = ?", pattern, pattern, excludeID, false).
		Order("name ASC").
		Limit(limit).
		Find(&profiles).Error
	if err != nil {
		return nil, translate(err, "search profiles")
	}
	return profiles, nil
}
