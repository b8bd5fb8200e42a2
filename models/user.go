package models

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
	PresenceAway    PresenceStatus = "away"
	PresenceBusy    PresenceStatus = "busy"
)

func (s PresenceStatus) Valid() bool {
	switch s {
	case PresenceOnline, PresenceOffline, PresenceAway, PresenceBusy:
		return true
	}
	return false
}

// AuthIdentity is the credential record. It is created before the profile
// during registration and must never outlive a failed profile insert.
type AuthIdentity struct {
	ID           string    `json:"id" gorm:"primaryKey;size:191"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null;size:255"`
	PasswordHash string    `json:"-" gorm:"not null;size:255"`
	CreatedAt    time.Time `json:"created_at"`
}

type Profile struct {
	ID        string         `json:"id" gorm:"primaryKey;size:191"`
	Name      string         `json:"name" gorm:"not null;size:255;index"`
	Username  string         `json:"username" gorm:"size:100;index"`
	Email     string         `json:"email" gorm:"uniqueIndex;not null;size:255"`
	AvatarURL *string        `json:"avatar_url" gorm:"size:500"`
	Role      Role           `json:"role" gorm:"not null;default:'user';size:20"`
	Status    PresenceStatus `json:"status" gorm:"not null;default:'offline';size:20"`
	LastSeen  *time.Time     `json:"last_seen"`
	IsPrivate bool           `json:"is_private" gorm:"default:false"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Principal is the authenticated actor as seen by the rest of the service.
type Principal struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
	Role   Role   `json:"role"`
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

func (p *Profile) Principal() *Principal {
	name := p.Name
	if name == "" {
		name = strings.Split(p.Email, "@")[0]
	}
	if name == "" {
		name = "User"
	}
	role := p.Role
	if role == "" {
		role = RoleUser
	}
	return &Principal{
		ID:     p.ID,
		Name:   name,
		Email:  p.Email,
		Avatar: p.Avatar(),
		Role:   role,
	}
}

func (p *Profile) Avatar() string {
	if p.AvatarURL == nil {
		return ""
	}
	return *p.AvatarURL
}

func (p *Profile) Presence() PresenceStatus {
	if p.Status == "" {
		return PresenceOffline
	}
	return p.Status
}

// ProfileUpdate carries the user editable profile fields. Role is not part of
// it so self service edits can never change roles.
type ProfileUpdate struct {
	Name   *string
	Avatar *string
}

// GenerateUsernameFromName derives a search handle from a display name.
func GenerateUsernameFromName(name string) string {
	username := strings.ToLower(strings.Join(strings.Fields(name), "."))
	username = strings.ReplaceAll(username, "-", "_")
	return username
}

// DefaultAvatarURL is the generated avatar assigned at registration.
func DefaultAvatarURL(name string) string {
	return "https://api.dicebear.com/7.x/avataaars/svg?seed=" + strings.ReplaceAll(name, " ", "%20")
}
