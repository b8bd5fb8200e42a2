package models

import (
	"strings"
	"time"
)

type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

func (s MessageStatus) rank() int {
	switch s {
	case MessageStatusSent:
		return 1
	case MessageStatusDelivered:
		return 2
	case MessageStatusRead:
		return 3
	}
	return 0
}

func (s MessageStatus) Valid() bool { return s.rank() > 0 }

// CanAdvanceTo reports whether moving from s to next goes strictly forward.
func (s MessageStatus) CanAdvanceTo(next MessageStatus) bool {
	return next.Valid() && next.rank() > s.rank()
}

// Advance returns the later of s and next. Status never regresses.
func (s MessageStatus) Advance(next MessageStatus) MessageStatus {
	if s.CanAdvanceTo(next) {
		return next
	}
	return s
}

// StatusesBefore lists the statuses a message may hold and still be advanced
// to next.
func StatusesBefore(next MessageStatus) []MessageStatus {
	var out []MessageStatus
	for _, s := range []MessageStatus{MessageStatusSent, MessageStatusDelivered, MessageStatusRead} {
		if s.CanAdvanceTo(next) {
			out = append(out, s)
		}
	}
	return out
}

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaFile  MediaKind = "file"
)

// MediaKindFor derives the attachment kind from a declared content type.
func MediaKindFor(contentType string) MediaKind {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return MediaImage
	case strings.HasPrefix(ct, "video/"):
		return MediaVideo
	default:
		return MediaFile
	}
}

type Media struct {
	Type MediaKind `json:"type"`
	URL  string    `json:"url"`
	Name string    `json:"name,omitempty"`
	Size int64     `json:"size,omitempty"`
}

type FlagStatus string

const (
	FlagStatusPending   FlagStatus = "pending"
	FlagStatusReviewed  FlagStatus = "reviewed"
	FlagStatusDismissed FlagStatus = "dismissed"
)

type FlagSeverity string

const (
	SeverityLow    FlagSeverity = "low"
	SeverityMedium FlagSeverity = "medium"
	SeverityHigh   FlagSeverity = "high"
)

func (s FlagSeverity) Valid() bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityHigh
}

type Message struct {
	ID             string        `json:"id" gorm:"primaryKey;size:191"`
	ConversationID string        `json:"conversation_id" gorm:"not null;size:191;index:idx_messages_conv_created"`
	SenderID       string        `json:"sender_id" gorm:"not null;size:191;index"`
	Content        string        `json:"content" gorm:"type:text"`
	Status         MessageStatus `json:"status" gorm:"not null;default:'sent';size:20"`
	Media          MediaList     `json:"media,omitempty"`
	IsFlagged      bool          `json:"is_flagged" gorm:"default:false;index"`
	FlagReason     string        `json:"flag_reason,omitempty" gorm:"size:500"`
	FlagStatus     FlagStatus    `json:"flag_status,omitempty" gorm:"size:20"`
	FlagSeverity   FlagSeverity  `json:"flag_severity,omitempty" gorm:"size:20"`
	CreatedAt      time.Time     `json:"created_at" gorm:"index:idx_messages_conv_created"`
	UpdatedAt      time.Time     `json:"updated_at"`

	Sender Profile `json:"-" gorm:"foreignKey:SenderID"`
}

type SenderSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type MessageView struct {
	ID            string        `json:"id"`
	Content       string        `json:"content"`
	Sender        SenderSummary `json:"sender"`
	Timestamp     time.Time     `json:"timestamp"`
	Status        MessageStatus `json:"status"`
	IsCurrentUser bool          `json:"is_current_user"`
	Media         MediaList     `json:"media,omitempty"`
}

func (m *Message) View(viewerID string) MessageView {
	return MessageView{
		ID:      m.ID,
		Content: m.Content,
		Sender: SenderSummary{
			ID:     m.SenderID,
			Name:   m.Sender.Name,
			Avatar: m.Sender.Avatar(),
		},
		Timestamp:     m.CreatedAt,
		Status:        m.Status,
		IsCurrentUser: m.SenderID == viewerID,
		Media:         m.Media,
	}
}
