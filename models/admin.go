package models

import "time"

type FeatureCategory string

const (
	FeatureCategorySecurity      FeatureCategory = "security"
	FeatureCategoryMessaging     FeatureCategory = "messaging"
	FeatureCategoryUsers         FeatureCategory = "users"
	FeatureCategoryNotifications FeatureCategory = "notifications"
)

// FeatureMediaAttachments gates media uploads in conversations.
const FeatureMediaAttachments = "media_attachments"

type FeatureToggle struct {
	ID          string          `json:"id" gorm:"primaryKey;size:191"`
	Name        string          `json:"name" gorm:"uniqueIndex;not null;size:100"`
	Description string          `json:"description" gorm:"size:500"`
	Enabled     bool            `json:"enabled" gorm:"default:false"`
	Category    FeatureCategory `json:"category" gorm:"not null;size:30"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (FeatureToggle) TableName() string { return "features" }

type FlaggedMessage struct {
	ID        string       `json:"id"`
	Content   string       `json:"content"`
	Sender    string       `json:"sender"`
	Timestamp time.Time    `json:"timestamp"`
	Reason    string       `json:"reason"`
	Status    FlagStatus   `json:"status"`
	Severity  FlagSeverity `json:"severity"`
}

func FlaggedFromMessage(m *Message) FlaggedMessage {
	status := m.FlagStatus
	if status == "" {
		status = FlagStatusPending
	}
	severity := m.FlagSeverity
	if severity == "" {
		severity = SeverityLow
	}
	return FlaggedMessage{
		ID:        m.ID,
		Content:   m.Content,
		Sender:    m.Sender.Name,
		Timestamp: m.CreatedAt,
		Reason:    m.FlagReason,
		Status:    status,
		Severity:  severity,
	}
}

// ConversationData is the moderation projection of a conversation.
type ConversationData struct {
	ID           string    `json:"id"`
	Participants []string  `json:"participants"`
	LastActive   time.Time `json:"last_active"`
	MessageCount int64     `json:"message_count"`
	FlaggedCount int64     `json:"flagged_count"`
}

type DailyCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

type HourBucket struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// UsageMetrics is the platform wide aggregate shown on the admin dashboard.
type UsageMetrics struct {
	Window                string       `json:"window"`
	Since                 time.Time    `json:"since"`
	TotalUsers            int64        `json:"total_users"`
	NewUsers              int64        `json:"new_users"`
	ActiveUsers           int64        `json:"active_users"`
	MessagesSent          int64        `json:"messages_sent"`
	TotalConversations    int64        `json:"total_conversations"`
	MessagesPerActiveUser float64      `json:"messages_per_active_user"`
	UserGrowth            []DailyCount `json:"user_growth"`
	MessageVolume         []DailyCount `json:"message_volume"`
	ActiveHours           []HourBucket `json:"active_hours"`
	GeneratedAt           time.Time    `json:"generated_at"`
}
