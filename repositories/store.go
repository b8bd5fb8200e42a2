package repositories

import (
	"context"
	"errors"
	"time"

	"messenger-api/models"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
	// ErrStaleState is returned when a guarded update found the row in a state
	// it may no longer leave (a resolved request, a reviewed flag).
	ErrStaleState = errors.New("record is no longer in the expected state")
)

type IdentityRepository interface {
	CreateIdentity(ctx context.Context, identity *models.AuthIdentity) error
	FindIdentityByEmail(ctx context.Context, email string) (*models.AuthIdentity, error)
	DeleteIdentity(ctx context.Context, id string) error
}

type ProfileRepository interface {
	CreateProfile(ctx context.Context, profile *models.Profile) error
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.Profile, error)
	SetPrivacy(ctx context.Context, id string, isPrivate bool) error
	SetPresence(ctx context.Context, id string, status models.PresenceStatus, lastSeen time.Time) error
	// SearchProfiles matches name or username and skips private profiles.
	SearchProfiles(ctx context.Context, query, excludeID string, limit int) ([]models.Profile, error)
}

type FriendRepository interface {
	ListFriends(ctx context.Context, userID string) ([]models.Profile, error)
	AreFriends(ctx context.Context, a, b string) (bool, error)
	// CreateFriendPair inserts both directions of a friendship.
	CreateFriendPair(ctx context.Context, a, b string) error
	// DeleteFriendPair removes both directions; absent rows are not an error.
	DeleteFriendPair(ctx context.Context, a, b string) error
	CountMutualFriends(ctx context.Context, a, b string) (int64, error)

	CreateFriendRequest(ctx context.Context, req *models.FriendRequest) error
	GetFriendRequest(ctx context.Context, id string) (*models.FriendRequest, error)
	// FindPendingRequest looks for a pending request in either direction.
	FindPendingRequest(ctx context.Context, a, b string) (*models.FriendRequest, error)
	ListIncomingRequests(ctx context.Context, userID string) ([]models.FriendRequest, error)
	ListOutgoingRequests(ctx context.Context, userID string) ([]models.FriendRequest, error)
	// ResolveFriendRequest moves a pending request to a terminal status and
	// returns ErrStaleState when the request is no longer pending.
	ResolveFriendRequest(ctx context.Context, id string, status models.FriendRequestStatus) error
}

type ConversationRepository interface {
	FindConversationByPair(ctx context.Context, pairKey string) (*models.Conversation, error)
	// CreateConversation inserts the conversation and its participants.
	// ErrDuplicate means another conversation already owns the pair key.
	CreateConversation(ctx context.Context, conv *models.Conversation, participantIDs []string) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	TouchConversation(ctx context.Context, id string, at time.Time) error
}

type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	LastMessage(ctx context.Context, conversationID string) (*models.Message, error)
	// CountUnread counts messages from senderID that are not read yet.
	CountUnread(ctx context.Context, conversationID, senderID string) (int64, error)
	// AdvanceStatus moves every message of senderID in the conversation to
	// status, touching only rows whose status is strictly earlier.
	AdvanceStatus(ctx context.Context, conversationID, senderID string, status models.MessageStatus) (int64, error)
	FlagMessage(ctx context.Context, id, reason string, severity models.FlagSeverity) error
}

type AdminRepository interface {
	ListFeatures(ctx context.Context) ([]models.FeatureToggle, error)
	GetFeatureByName(ctx context.Context, name string) (*models.FeatureToggle, error)
	SetFeatureEnabled(ctx context.Context, id string, enabled bool) error
	ListFlaggedMessages(ctx context.Context) ([]models.Message, error)
	// SetFlagStatus resolves a pending flag; ErrStaleState when already resolved.
	SetFlagStatus(ctx context.Context, id string, status models.FlagStatus) error
	ConversationActivity(ctx context.Context) ([]models.ConversationData, error)

	CountProfiles(ctx context.Context, since time.Time) (int64, error)
	CountMessages(ctx context.Context, since time.Time) (int64, error)
	CountActiveSenders(ctx context.Context, since time.Time) (int64, error)
	CountConversations(ctx context.Context) (int64, error)
	DailyProfileCounts(ctx context.Context, since time.Time) ([]models.DailyCount, error)
	DailyMessageCounts(ctx context.Context, since time.Time) ([]models.DailyCount, error)
	HourlyMessageCounts(ctx context.Context, since time.Time) (map[int]int64, error)
}

// Store is the persistence collaborator every domain manager works through.
type Store interface {
	IdentityRepository
	ProfileRepository
	FriendRepository
	ConversationRepository
	MessageRepository
	AdminRepository

	// Transaction runs fn against a transactional view of the store. Any
	// error returned by fn rolls back every write fn made.
	Transaction(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}

// Seeder is implemented by stores that can be provisioned outside the
// request path: feature defaults and administrator roles.
type Seeder interface {
	Store
	PutFeature(ctx context.Context, feature models.FeatureToggle) error
	SetRole(ctx context.Context, id string, role models.Role) error
}
