package models

import "time"

type FriendRequestStatus string

const (
	FriendRequestStatusPending  FriendRequestStatus = "pending"
	FriendRequestStatusAccepted FriendRequestStatus = "accepted"
	FriendRequestStatusDeclined FriendRequestStatus = "declined"
)

func (s FriendRequestStatus) Terminal() bool {
	return s == FriendRequestStatusAccepted || s == FriendRequestStatusDeclined
}

type FriendRequest struct {
	ID          string              `json:"id" gorm:"primaryKey;size:191"`
	SenderID    string              `json:"sender_id" gorm:"not null;size:191;index"`
	RecipientID string              `json:"recipient_id" gorm:"not null;size:191;index"`
	Status      FriendRequestStatus `json:"status" gorm:"not null;default:'pending';size:20"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`

	Sender    Profile `json:"-" gorm:"foreignKey:SenderID"`
	Recipient Profile `json:"-" gorm:"foreignKey:RecipientID"`
}

// FriendLink is one direction of a friendship. Accepted requests always
// produce two links, (a,b) and (b,a).
type FriendLink struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"not null;size:191;uniqueIndex:uk_friends_user_friend"`
	FriendID  string    `json:"friend_id" gorm:"not null;size:191;uniqueIndex:uk_friends_user_friend"`
	CreatedAt time.Time `json:"created_at"`

	Friend Profile `json:"-" gorm:"foreignKey:FriendID"`
}

func (FriendLink) TableName() string { return "friends" }

type Friend struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Avatar   string         `json:"avatar,omitempty"`
	Status   PresenceStatus `json:"status"`
	LastSeen *time.Time     `json:"last_seen,omitempty"`
}

func FriendFromProfile(p *Profile) Friend {
	return Friend{
		ID:       p.ID,
		Name:     p.Name,
		Avatar:   p.Avatar(),
		Status:   p.Presence(),
		LastSeen: p.LastSeen,
	}
}

// UserSearchResult is a search hit annotated with the mutual friend count.
type UserSearchResult struct {
	Friend
	Username      string `json:"username"`
	MutualFriends int64  `json:"mutual_friends"`
}

type RequestUser struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Avatar   string     `json:"avatar,omitempty"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

type FriendRequestView struct {
	ID        string      `json:"id"`
	User      RequestUser `json:"user"`
	Timestamp time.Time   `json:"timestamp"`
}

// View projects the request from the point of view of viewerID: the user
// shown is always the counterparty.
func (r *FriendRequest) View(viewerID string) FriendRequestView {
	other := r.Sender
	if r.SenderID == viewerID {
		other = r.Recipient
	}
	return FriendRequestView{
		ID: r.ID,
		User: RequestUser{
			ID:       other.ID,
			Name:     other.Name,
			Avatar:   other.Avatar(),
			LastSeen: other.LastSeen,
		},
		Timestamp: r.CreatedAt,
	}
}

type FriendRequests struct {
	Incoming []FriendRequestView `json:"incoming"`
	Outgoing []FriendRequestView `json:"outgoing"`
}
