package repositories

import (
	"context"

	"messenger-api/models"
)

func (s *GormStore) ListFriends(ctx context.Context, userID string) ([]models.Profile, error) {
	var links []models.FriendLink
	if err := s.conn(ctx).Preload("Friend").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&links).Error; err != nil {
		return nil, translate(err, "list friends")
	}

	friends := make([]models.Profile, 0, len(links))
	for _, link := range links {
		friends = append(friends, link.Friend)
	}
	return friends, nil
}

func (s *GormStore) AreFriends(ctx context.Context, a, b string) (bool, error) {
	var count int64
	if err := s.conn(ctx).Model(&models.FriendLink{}).
		Where("user_id = ? AND friend_id = ?", a, b).
		Count(&count).Error; err != nil {
		return false, translate(err, "check friendship")
	}
	return count > 0, nil
}

func (s *GormStore) CreateFriendPair(ctx context.Context, a, b string) error {
	links := []models.FriendLink{
		{UserID: a, FriendID: b},
		{UserID: b, FriendID: a},
	}
	return translate(s.conn(ctx).Omit("Friend").Create(&links).Error, "create friend pair")
}

func (s *GormStore) DeleteFriendPair(ctx context.Context, a, b string) error {
	err := s.conn(ctx).
		Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)", a, b, b, a).
		Delete(&models.FriendLink{}).Error
	return translate(err, "delete friend pair")
}

func (s *GormStore) CountMutualFriends(ctx context.Context, a, b string) (int64, error) {
	var count int64
	err := s.conn(ctx).Table("friends AS f1").
		Joins("JOIN friends AS f2 ON f1.friend_id = f2.friend_id").
		Where("f1.user_id = ? AND f2.user_id = ?", a, b).
		Count(&count).Error
	if err != nil {
		return 0, translate(err, "count mutual friends")
	}
	return count, nil
}

func (s *GormStore) CreateFriendRequest(ctx context.Context, req *models.FriendRequest) error {
	return translate(s.conn(ctx).Omit("Sender", "Recipient").Create(req).Error, "create friend request")
}

func (s *GormStore) GetFriendRequest(ctx context.Context, id string) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := s.conn(ctx).Preload("Sender").Preload("Recipient").First(&req, "id = ?", id).Error; err != nil {
		return nil, translate(err, "get friend request")
	}
	return &req, nil
}

func (s *GormStore) FindPendingRequest(ctx context.Context, a, b string) (*models.FriendRequest, error) {
	var req models.FriendRequest
	err := s.conn(ctx).
		Where("((sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)) AND status = ?",
			a, b, b, a, models.FriendRequestStatusPending).
		First(&req).Error
	if err != nil {
		return nil, translate(err, "find pending request")
	}
	return &req, nil
}

func (s *GormStore) ListIncomingRequests(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	return s.listRequests(ctx, "Sender", "recipient_id = ? AND status = ?", userID)
}

func (s *GormStore) ListOutgoingRequests(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	return s.listRequests(ctx, "Recipient", "sender_id = ? AND status = ?", userID)
}

func (s *GormStore) listRequests(ctx context.Context, preload, where, userID string) ([]models.FriendRequest, error) {
	var requests []models.FriendRequest
	if err := s.conn(ctx).Preload(preload).
		Where(where, userID, models.FriendRequestStatusPending).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return nil, translate(err, "list friend requests")
	}
	return requests, nil
}

func (s *GormStore) ResolveFriendRequest(ctx context.Context, id string, status models.FriendRequestStatus) error {
	res := s.conn(ctx).Model(&models.FriendRequest{}).
		Where("id = ? AND status = ?", id, models.FriendRequestStatusPending).
		Update("status", status)
	if res.Error != nil {
		return translate(res.Error, "resolve friend request")
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var req models.FriendRequest
	if err := s.conn(ctx).Select("id", "status").First(&req, "id = ?", id).Error; err != nil {
		return translate(err, "resolve friend request")
	}
	return translate(ErrStaleState, "resolve friend request")
}

