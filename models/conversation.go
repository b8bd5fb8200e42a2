package models

import (
	"sort"
	"strings"
	"time"
)

type Conversation struct {
	ID           string    `json:"id" gorm:"primaryKey;size:191"`
	PairKey      string    `json:"-" gorm:"not null;size:400;uniqueIndex"`
	CreatedBy    string    `json:"created_by" gorm:"not null;size:191"`
	LastActivity time.Time `json:"last_activity" gorm:"index"`
	CreatedAt    time.Time `json:"created_at"`

	Participants []ConversationParticipant `json:"participants" gorm:"foreignKey:ConversationID"`
}

type ConversationParticipant struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	ConversationID string    `json:"conversation_id" gorm:"not null;size:191;uniqueIndex:uk_participants_conv_user"`
	UserID         string    `json:"user_id" gorm:"not null;size:191;uniqueIndex:uk_participants_conv_user;index"`
	CreatedAt      time.Time `json:"created_at"`

	Profile Profile `json:"-" gorm:"foreignKey:UserID"`
}

// PairKey identifies the unordered pair of principals a direct conversation
// belongs to.
func PairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

// Counterparty returns the participant that is not userID.
func (c *Conversation) Counterparty(userID string) (*ConversationParticipant, bool) {
	for i := range c.Participants {
		if c.Participants[i].UserID != userID {
			return &c.Participants[i], true
		}
	}
	return nil, false
}

func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// LastMessage summarizes the newest message of a chat.
type LastMessage struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
	Status    MessageStatus `json:"status"`
	IsUnread  bool          `json:"is_unread"`
}

// Chat is the list projection of a conversation.
type Chat struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Avatar       string      `json:"avatar,omitempty"`
	LastMessage  LastMessage `json:"last_message"`
	UnreadCount  int64       `json:"unread_count"`
	IsOnline     bool        `json:"is_online"`
	LastActivity time.Time   `json:"last_activity"`
}

type Recipient struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Avatar   string         `json:"avatar,omitempty"`
	Status   PresenceStatus `json:"status"`
	LastSeen time.Time      `json:"last_seen"`
}

// ConversationView is a loaded transcript with one counterparty.
type ConversationView struct {
	ID        string        `json:"id"`
	Recipient Recipient     `json:"recipient"`
	Messages  []MessageView `json:"messages"`
}

// InSync reports whether the view still ends with last, including its
// delivery status.
func (v *ConversationView) InSync(last LastMessage) bool {
	if len(v.Messages) == 0 {
		return last.ID == ""
	}
	tail := v.Messages[len(v.Messages)-1]
	return tail.ID == last.ID && tail.Status == last.Status
}

// Clone copies the view so callers can hold it outside the manager lock.
func (v *ConversationView) Clone() *ConversationView {
	out := *v
	out.Messages = make([]MessageView, len(v.Messages))
	copy(out.Messages, v.Messages)
	return &out
}
