// File: /database/database.go
package database

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"messenger-api/models"
	"messenger-api/repositories"
	"messenger-api/services"
)

func Initialize(databaseURL string, development bool) (*gorm.DB, error) {
	level := logger.Warn
	if development {
		level = logger.Info
	}

	db, err := gorm.Open(mysql.Open(databaseURL), &gorm.Config{
		Logger:                                   logger.Default.LogMode(level),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to access connection pool")
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	err := db.AutoMigrate(
		&models.AuthIdentity{},
		&models.Profile{},
		&models.FriendLink{},
		&models.FriendRequest{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.Message{},
		&models.FeatureToggle{},
	)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to migrate database")
	}

	addCustomIndexes(db, log)
	addDatabaseConstraints(db, log)
	return nil
}

// Index and constraint statements fail harmlessly when they already exist,
// so failures are only logged.
var customIndexes = []struct{ name, stmt string }{
	{"friend_requests pair", "CREATE INDEX idx_friend_requests_pair_status ON friend_requests(sender_id, recipient_id, status)"},
	{"friend_requests recipient", "CREATE INDEX idx_friend_requests_recipient_status ON friend_requests(recipient_id, status, created_at DESC)"},
	{"messages conversation", "CREATE INDEX idx_messages_conversation_created ON messages(conversation_id, created_at)"},
	{"messages unread", "CREATE INDEX idx_messages_conversation_sender_status ON messages(conversation_id, sender_id, status)"},
	{"messages flagged", "CREATE INDEX idx_messages_flagged_status ON messages(is_flagged, flag_status)"},
}

var customConstraints = []struct{ name, stmt string }{
	{"friends no self", "ALTER TABLE friends ADD CONSTRAINT ck_friends_no_self CHECK (user_id != friend_id)"},
	{"friend_requests no self", "ALTER TABLE friend_requests ADD CONSTRAINT ck_friend_requests_no_self CHECK (sender_id != recipient_id)"},
}

func addCustomIndexes(db *gorm.DB, log *zap.Logger) {
	for _, idx := range customIndexes {
		if err := db.Exec(idx.stmt).Error; err != nil {
			log.Warn("could not create index", zap.String("index", idx.name), zap.Error(err))
		}
	}
}

func addDatabaseConstraints(db *gorm.DB, log *zap.Logger) {
	for _, c := range customConstraints {
		if err := db.Exec(c.stmt).Error; err != nil {
			log.Warn("could not add constraint", zap.String("constraint", c.name), zap.Error(err))
		}
	}
}

// DefaultFeatures are the toggles a fresh installation starts with.
var DefaultFeatures = []models.FeatureToggle{
	{ID: "feature-e2e", Name: "end_to_end_encryption", Description: "Enable secure message encryption between users", Enabled: true, Category: models.FeatureCategorySecurity},
	{ID: "feature-2fa", Name: "two_factor_auth", Description: "Require additional verification during login", Enabled: true, Category: models.FeatureCategorySecurity},
	{ID: "feature-media", Name: models.FeatureMediaAttachments, Description: "Allow users to share images, videos and files", Enabled: true, Category: models.FeatureCategoryMessaging},
	{ID: "feature-groups", Name: "group_chats", Description: "Enable users to create and participate in group chats", Enabled: false, Category: models.FeatureCategoryMessaging},
	{ID: "feature-discovery", Name: "friend_discovery", Description: "Allow users to find friends through the platform", Enabled: true, Category: models.FeatureCategoryUsers},
	{ID: "feature-push", Name: "push_notifications", Description: "Send notifications for new messages and activities", Enabled: true, Category: models.FeatureCategoryNotifications},
	{ID: "feature-receipts", Name: "read_receipts", Description: "Show when messages have been read by recipients", Enabled: false, Category: models.FeatureCategoryMessaging},
	{ID: "feature-typing", Name: "typing_indicators", Description: "Show when users are typing in a conversation", Enabled: true, Category: models.FeatureCategoryMessaging},
}

// SeedData inserts the default feature toggles. Toggles that already exist
// keep their current state.
func SeedData(ctx context.Context, store repositories.Seeder, log *zap.Logger) (int, error) {
	created := 0
	for _, feature := range DefaultFeatures {
		_, err := store.GetFeatureByName(ctx, feature.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return created, pkgerrors.Wrapf(err, "look up feature %s", feature.Name)
		}
		if err := store.PutFeature(ctx, feature); err != nil {
			return created, pkgerrors.Wrapf(err, "seed feature %s", feature.Name)
		}
		created++
	}
	log.Info("feature toggles seeded", zap.Int("created", created))
	return created, nil
}

// SeedAdmin registers an administrator account through the normal
// registration path and promotes it. An existing account with the same
// email is promoted instead.
func SeedAdmin(ctx context.Context, store repositories.Seeder, deps *services.Dependencies, name, email, password string) (string, error) {
	identity := services.NewIdentityManager(deps)

	p, err := identity.Register(ctx, name, email, password)
	if err != nil {
		if !errors.Is(err, repositories.ErrDuplicate) {
			return "", pkgerrors.Wrap(err, "register admin")
		}
		existing, findErr := store.FindIdentityByEmail(ctx, email)
		if findErr != nil {
			return "", pkgerrors.Wrap(findErr, "find existing admin")
		}
		if err := store.SetRole(ctx, existing.ID, models.RoleAdmin); err != nil {
			return "", pkgerrors.Wrap(err, "promote existing admin")
		}
		return existing.ID, nil
	}

	if err := store.SetRole(ctx, p.ID, models.RoleAdmin); err != nil {
		return "", pkgerrors.Wrap(err, "promote admin")
	}
	if err := identity.Logout(ctx); err != nil {
		return "", pkgerrors.Wrap(err, "sign out admin")
	}
	deps.Log.Info("admin account ready", zap.String("user_id", p.ID), zap.String("email", email))
	return p.ID, nil
}
