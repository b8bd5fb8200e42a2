package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"messenger-api/models"
)

// MemoryStore is an in-process Store for development and tests. Transactions
// are serialized and roll back by restoring a snapshot taken when they start.
// Writes outside a transaction wait for the open one to finish, so a rollback
// never discards them.
type MemoryStore struct {
	st   *memoryState
	inTx bool
}

type memoryState struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data *memoryData
}

type memoryData struct {
	identities    map[string]models.AuthIdentity
	profiles      map[string]models.Profile
	links         map[[2]string]models.FriendLink
	requests      map[string]models.FriendRequest
	conversations map[string]models.Conversation
	participants  map[string][]string
	messages      map[string]models.Message
	messageOrder  []string
	features      map[string]models.FeatureToggle
	nextLinkID    uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: &memoryState{data: &memoryData{
		identities:    map[string]models.AuthIdentity{},
		profiles:      map[string]models.Profile{},
		links:         map[[2]string]models.FriendLink{},
		requests:      map[string]models.FriendRequest{},
		conversations: map[string]models.Conversation{},
		participants:  map[string][]string{},
		messages:      map[string]models.Message{},
		features:      map[string]models.FeatureToggle{},
	}}}
}

func (d *memoryData) clone() *memoryData {
	out := &memoryData{
		identities:    make(map[string]models.AuthIdentity, len(d.identities)),
		profiles:      make(map[string]models.Profile, len(d.profiles)),
		links:         make(map[[2]string]models.FriendLink, len(d.links)),
		requests:      make(map[string]models.FriendRequest, len(d.requests)),
		conversations: make(map[string]models.Conversation, len(d.conversations)),
		participants:  make(map[string][]string, len(d.participants)),
		messages:      make(map[string]models.Message, len(d.messages)),
		messageOrder:  append([]string(nil), d.messageOrder...),
		features:      make(map[string]models.FeatureToggle, len(d.features)),
		nextLinkID:    d.nextLinkID,
	}
	for k, v := range d.identities {
		out.identities[k] = v
	}
	for k, v := range d.profiles {
		out.profiles[k] = v
	}
	for k, v := range d.links {
		out.links[k] = v
	}
	for k, v := range d.requests {
		out.requests[k] = v
	}
	for k, v := range d.conversations {
		out.conversations[k] = v
	}
	for k, v := range d.participants {
		out.participants[k] = append([]string(nil), v...)
	}
	for k, v := range d.messages {
		out.messages[k] = v
	}
	for k, v := range d.features {
		out.features[k] = v
	}
	return out
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	if !s.inTx {
		s.st.txMu.Lock()
		defer s.st.txMu.Unlock()
	}

	s.st.mu.Lock()
	snapshot := s.st.data.clone()
	s.st.mu.Unlock()

	if err := fn(&MemoryStore{st: s.st, inTx: true}); err != nil {
		s.st.mu.Lock()
		s.st.data = snapshot
		s.st.mu.Unlock()
		return err
	}
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) read(fn func(d *memoryData) error) error {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	return fn(s.st.data)
}

func (s *MemoryStore) write(fn func(d *memoryData) error) error {
	if !s.inTx {
		s.st.txMu.Lock()
		defer s.st.txMu.Unlock()
	}
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return fn(s.st.data)
}

func notFound(what string) error {
	return errors.Wrap(ErrNotFound, what)
}

func stamp(t *time.Time) {
	if t.IsZero() {
		*t = time.Now()
	}
}

// --- identities -------------------------------------------------------------

func (s *MemoryStore) CreateIdentity(ctx context.Context, identity *models.AuthIdentity) error {
	return s.write(func(d *memoryData) error {
		for _, existing := range d.identities {
			if strings.EqualFold(existing.Email, identity.Email) {
				return errors.Wrap(ErrDuplicate, "create identity")
			}
		}
		stamp(&identity.CreatedAt)
		d.identities[identity.ID] = *identity
		return nil
	})
}

func (s *MemoryStore) FindIdentityByEmail(ctx context.Context, email string) (*models.AuthIdentity, error) {
	var out *models.AuthIdentity
	err := s.read(func(d *memoryData) error {
		for _, identity := range d.identities {
			if strings.EqualFold(identity.Email, email) {
				identity := identity
				out = &identity
				return nil
			}
		}
		return notFound("find identity")
	})
	return out, err
}

func (s *MemoryStore) DeleteIdentity(ctx context.Context, id string) error {
	return s.write(func(d *memoryData) error {
		delete(d.identities, id)
		return nil
	})
}

// --- profiles ---------------------------------------------------------------

func (s *MemoryStore) CreateProfile(ctx context.Context, profile *models.Profile) error {
	return s.write(func(d *memoryData) error {
		if _, ok := d.profiles[profile.ID]; ok {
			return errors.Wrap(ErrDuplicate, "create profile")
		}
		for _, existing := range d.profiles {
			if strings.EqualFold(existing.Email, profile.Email) {
				return errors.Wrap(ErrDuplicate, "create profile")
			}
		}
		stamp(&profile.CreatedAt)
		profile.UpdatedAt = profile.CreatedAt
		if profile.Role == "" {
			profile.Role = models.RoleUser
		}
		if profile.Status == "" {
			profile.Status = models.PresenceOffline
		}
		d.profiles[profile.ID] = *profile
		return nil
	})
}

func (s *MemoryStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var out *models.Profile
	err := s.read(func(d *memoryData) error {
		p, ok := d.profiles[id]
		if !ok {
			return notFound("get profile")
		}
		out = &p
		return nil
	})
	return out, err
}

func (s *MemoryStore) updateProfile(id, what string, fn func(p *models.Profile)) error {
	return s.write(func(d *memoryData) error {
		p, ok := d.profiles[id]
		if !ok {
			return notFound(what)
		}
		fn(&p)
		p.UpdatedAt = time.Now()
		d.profiles[id] = p
		return nil
	})
}

func (s *MemoryStore) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.Profile, error) {
	err := s.updateProfile(id, "update profile", func(p *models.Profile) {
		if update.Name != nil {
			p.Name = *update.Name
			p.Username = models.GenerateUsernameFromName(*update.Name)
		}
		if update.Avatar != nil {
			avatar := *update.Avatar
			p.AvatarURL = &avatar
		}
	})
	if err != nil {
		return nil, err
	}
	return s.GetProfile(ctx, id)
}

func (s *MemoryStore) SetPrivacy(ctx context.Context, id string, isPrivate bool) error {
	return s.updateProfile(id, "set privacy", func(p *models.Profile) {
		p.IsPrivate = isPrivate
	})
}

func (s *MemoryStore) SetPresence(ctx context.Context, id string, status models.PresenceStatus, lastSeen time.Time) error {
	return s.updateProfile(id, "set presence", func(p *models.Profile) {
		p.Status = status
		seen := lastSeen
		p.LastSeen = &seen
	})
}

func (s *MemoryStore) SearchProfiles(ctx context.Context, query, excludeID string, limit int) ([]models.Profile, error) {
	needle := strings.ToLower(query)
	var out []models.Profile
	err := s.read(func(d *memoryData) error {
		for _, p := range d.profiles {
			if p.ID == excludeID || p.IsPrivate {
				continue
			}
			if strings.Contains(strings.ToLower(p.Name), needle) || strings.Contains(strings.ToLower(p.Username), needle) {
				out = append(out, p)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

// --- friends ----------------------------------------------------------------

func (s *MemoryStore) ListFriends(ctx context.Context, userID string) ([]models.Profile, error) {
	var links []models.FriendLink
	var out []models.Profile
	err := s.read(func(d *memoryData) error {
		for key, link := range d.links {
			if key[0] == userID {
				links = append(links, link)
			}
		}
		sort.Slice(links, func(i, j int) bool { return links[i].ID < links[j].ID })
		for _, link := range links {
			if p, ok := d.profiles[link.FriendID]; ok {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}

func (s *MemoryStore) AreFriends(ctx context.Context, a, b string) (bool, error) {
	var ok bool
	err := s.read(func(d *memoryData) error {
		_, ok = d.links[[2]string{a, b}]
		return nil
	})
	return ok, err
}

func (s *MemoryStore) CreateFriendPair(ctx context.Context, a, b string) error {
	return s.write(func(d *memoryData) error {
		for _, key := range [][2]string{{a, b}, {b, a}} {
			if _, ok := d.links[key]; ok {
				return errors.Wrap(ErrDuplicate, "create friend pair")
			}
		}
		now := time.Now()
		for _, key := range [][2]string{{a, b}, {b, a}} {
			d.nextLinkID++
			d.links[key] = models.FriendLink{ID: d.nextLinkID, UserID: key[0], FriendID: key[1], CreatedAt: now}
		}
		return nil
	})
}

func (s *MemoryStore) DeleteFriendPair(ctx context.Context, a, b string) error {
	return s.write(func(d *memoryData) error {
		delete(d.links, [2]string{a, b})
		delete(d.links, [2]string{b, a})
		return nil
	})
}

func (s *MemoryStore) CountMutualFriends(ctx context.Context, a, b string) (int64, error) {
	var count int64
	err := s.read(func(d *memoryData) error {
		for key := range d.links {
			if key[0] != a {
				continue
			}
			if _, ok := d.links[[2]string{b, key[1]}]; ok {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (d *memoryData) hydrateRequest(r models.FriendRequest) models.FriendRequest {
	r.Sender = d.profiles[r.SenderID]
	r.Recipient = d.profiles[r.RecipientID]
	return r
}

func (s *MemoryStore) CreateFriendRequest(ctx context.Context, req *models.FriendRequest) error {
	return s.write(func(d *memoryData) error {
		if _, ok := d.requests[req.ID]; ok {
			return errors.Wrap(ErrDuplicate, "create friend request")
		}
		stamp(&req.CreatedAt)
		req.UpdatedAt = req.CreatedAt
		if req.Status == "" {
			req.Status = models.FriendRequestStatusPending
		}
		stored := *req
		stored.Sender, stored.Recipient = models.Profile{}, models.Profile{}
		d.requests[req.ID] = stored
		return nil
	})
}

func (s *MemoryStore) GetFriendRequest(ctx context.Context, id string) (*models.FriendRequest, error) {
	var out *models.FriendRequest
	err := s.read(func(d *memoryData) error {
		r, ok := d.requests[id]
		if !ok {
			return notFound("get friend request")
		}
		r = d.hydrateRequest(r)
		out = &r
		return nil
	})
	return out, err
}

func (s *MemoryStore) FindPendingRequest(ctx context.Context, a, b string) (*models.FriendRequest, error) {
	var out *models.FriendRequest
	err := s.read(func(d *memoryData) error {
		for _, r := range d.requests {
			if r.Status != models.FriendRequestStatusPending {
				continue
			}
			if (r.SenderID == a && r.RecipientID == b) || (r.SenderID == b && r.RecipientID == a) {
				r := r
				out = &r
				return nil
			}
		}
		return notFound("find pending request")
	})
	return out, err
}

func (s *MemoryStore) listRequests(match func(r models.FriendRequest) bool) ([]models.FriendRequest, error) {
	var out []models.FriendRequest
	err := s.read(func(d *memoryData) error {
		for _, r := range d.requests {
			if r.Status == models.FriendRequestStatusPending && match(r) {
				out = append(out, d.hydrateRequest(r))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (s *MemoryStore) ListIncomingRequests(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	return s.listRequests(func(r models.FriendRequest) bool { return r.RecipientID == userID })
}

func (s *MemoryStore) ListOutgoingRequests(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	return s.listRequests(func(r models.FriendRequest) bool { return r.SenderID == userID })
}

func (s *MemoryStore) ResolveFriendRequest(ctx context.Context, id string, status models.FriendRequestStatus) error {
	return s.write(func(d *memoryData) error {
		r, ok := d.requests[id]
		if !ok {
			return notFound("resolve friend request")
		}
		if r.Status != models.FriendRequestStatusPending {
			return errors.Wrap(ErrStaleState, "resolve friend request")
		}
		r.Status = status
		r.UpdatedAt = time.Now()
		d.requests[id] = r
		return nil
	})
}

// --- conversations ----------------------------------------------------------

func (d *memoryData) hydrateConversation(c models.Conversation) models.Conversation {
	ids := d.participants[c.ID]
	c.Participants = make([]models.ConversationParticipant, 0, len(ids))
	for i, userID := range ids {
		c.Participants = append(c.Participants, models.ConversationParticipant{
			ID:             uint(i + 1),
			ConversationID: c.ID,
			UserID:         userID,
			CreatedAt:      c.CreatedAt,
			Profile:        d.profiles[userID],
		})
	}
	return c
}

func (s *MemoryStore) FindConversationByPair(ctx context.Context, pairKey string) (*models.Conversation, error) {
	var out *models.Conversation
	err := s.read(func(d *memoryData) error {
		for _, c := range d.conversations {
			if c.PairKey == pairKey {
				c = d.hydrateConversation(c)
				out = &c
				return nil
			}
		}
		return notFound("find conversation")
	})
	return out, err
}

func (s *MemoryStore) CreateConversation(ctx context.Context, conv *models.Conversation, participantIDs []string) error {
	return s.write(func(d *memoryData) error {
		if _, ok := d.conversations[conv.ID]; ok {
			return errors.Wrap(ErrDuplicate, "create conversation")
		}
		for _, c := range d.conversations {
			if c.PairKey == conv.PairKey {
				return errors.Wrap(ErrDuplicate, "create conversation")
			}
		}
		stamp(&conv.CreatedAt)
		if conv.LastActivity.IsZero() {
			conv.LastActivity = conv.CreatedAt
		}
		stored := *conv
		stored.Participants = nil
		d.conversations[conv.ID] = stored
		d.participants[conv.ID] = append([]string(nil), participantIDs...)
		*conv = d.hydrateConversation(stored)
		return nil
	})
}

func (s *MemoryStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var out *models.Conversation
	err := s.read(func(d *memoryData) error {
		c, ok := d.conversations[id]
		if !ok {
			return notFound("get conversation")
		}
		c = d.hydrateConversation(c)
		out = &c
		return nil
	})
	return out, err
}

func (s *MemoryStore) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	var out []models.Conversation
	err := s.read(func(d *memoryData) error {
		for id, members := range d.participants {
			for _, member := range members {
				if member == userID {
					out = append(out, d.hydrateConversation(d.conversations[id]))
					break
				}
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out, err
}

func (s *MemoryStore) TouchConversation(ctx context.Context, id string, at time.Time) error {
	return s.write(func(d *memoryData) error {
		c, ok := d.conversations[id]
		if !ok {
			return notFound("touch conversation")
		}
		c.LastActivity = at
		d.conversations[id] = c
		return nil
	})
}

// --- messages ---------------------------------------------------------------

func (d *memoryData) hydrateMessage(m models.Message) models.Message {
	m.Sender = d.profiles[m.SenderID]
	return m
}

// conversationMessages returns the messages of a conversation in insertion order.
func (d *memoryData) conversationMessages(conversationID string) []models.Message {
	var out []models.Message
	for _, id := range d.messageOrder {
		if m := d.messages[id]; m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *MemoryStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	return s.write(func(d *memoryData) error {
		if _, ok := d.conversations[msg.ConversationID]; !ok {
			return errors.Wrap(ErrNotFound, fmt.Sprintf("create message: conversation %s", msg.ConversationID))
		}
		if _, ok := d.messages[msg.ID]; ok {
			return errors.Wrap(ErrDuplicate, "create message")
		}
		stamp(&msg.CreatedAt)
		msg.UpdatedAt = msg.CreatedAt
		if msg.Status == "" {
			msg.Status = models.MessageStatusSent
		}
		stored := *msg
		stored.Sender = models.Profile{}
		d.messages[msg.ID] = stored
		d.messageOrder = append(d.messageOrder, msg.ID)
		return nil
	})
}

func (s *MemoryStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var out *models.Message
	err := s.read(func(d *memoryData) error {
		m, ok := d.messages[id]
		if !ok {
			return notFound("get message")
		}
		m = d.hydrateMessage(m)
		out = &m
		return nil
	})
	return out, err
}

func (s *MemoryStore) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var out []models.Message
	err := s.read(func(d *memoryData) error {
		for _, m := range d.conversationMessages(conversationID) {
			out = append(out, d.hydrateMessage(m))
		}
		return nil
	})
	return out, err
}

func (s *MemoryStore) LastMessage(ctx context.Context, conversationID string) (*models.Message, error) {
	var out *models.Message
	err := s.read(func(d *memoryData) error {
		msgs := d.conversationMessages(conversationID)
		if len(msgs) == 0 {
			return nil
		}
		last := msgs[len(msgs)-1]
		out = &last
		return nil
	})
	return out, err
}

func (s *MemoryStore) CountUnread(ctx context.Context, conversationID, senderID string) (int64, error) {
	var count int64
	err := s.read(func(d *memoryData) error {
		for _, m := range d.messages {
			if m.ConversationID == conversationID && m.SenderID == senderID && m.Status != models.MessageStatusRead {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (s *MemoryStore) AdvanceStatus(ctx context.Context, conversationID, senderID string, status models.MessageStatus) (int64, error) {
	var n int64
	err := s.write(func(d *memoryData) error {
		for id, m := range d.messages {
			if m.ConversationID != conversationID || m.SenderID != senderID || !m.Status.CanAdvanceTo(status) {
				continue
			}
			m.Status = status
			m.UpdatedAt = time.Now()
			d.messages[id] = m
			n++
		}
		return nil
	})
	return n, err
}

func (s *MemoryStore) FlagMessage(ctx context.Context, id, reason string, severity models.FlagSeverity) error {
	return s.write(func(d *memoryData) error {
		m, ok := d.messages[id]
		if !ok {
			return notFound("flag message")
		}
		m.IsFlagged = true
		m.FlagReason = reason
		m.FlagStatus = models.FlagStatusPending
		m.FlagSeverity = severity
		d.messages[id] = m
		return nil
	})
}

// --- admin ------------------------------------------------------------------

// PutFeature inserts or replaces a feature toggle. It backs seeding.
func (s *MemoryStore) PutFeature(ctx context.Context, feature models.FeatureToggle) error {
	return s.write(func(d *memoryData) error {
		for id, existing := range d.features {
			if existing.Name == feature.Name && id != feature.ID {
				return errors.Wrap(ErrDuplicate, "put feature")
			}
		}
		feature.UpdatedAt = time.Now()
		d.features[feature.ID] = feature
		return nil
	})
}

// SetRole changes a profile's role. Only seeding and tests use it; no
// request path can promote a user.
func (s *MemoryStore) SetRole(ctx context.Context, id string, role models.Role) error {
	return s.updateProfile(id, "set role", func(p *models.Profile) {
		p.Role = role
	})
}

func (s *MemoryStore) ListFeatures(ctx context.Context) ([]models.FeatureToggle, error) {
	var out []models.FeatureToggle
	err := s.read(func(d *memoryData) error {
		for _, f := range d.features {
			out = append(out, f)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, err
}

func (s *MemoryStore) GetFeatureByName(ctx context.Context, name string) (*models.FeatureToggle, error) {
	var out *models.FeatureToggle
	err := s.read(func(d *memoryData) error {
		for _, f := range d.features {
			if f.Name == name {
				f := f
				out = &f
				return nil
			}
		}
		return notFound("get feature")
	})
	return out, err
}

func (s *MemoryStore) SetFeatureEnabled(ctx context.Context, id string, enabled bool) error {
	return s.write(func(d *memoryData) error {
		f, ok := d.features[id]
		if !ok {
			return notFound("set feature")
		}
		f.Enabled = enabled
		f.UpdatedAt = time.Now()
		d.features[id] = f
		return nil
	})
}

func (s *MemoryStore) ListFlaggedMessages(ctx context.Context) ([]models.Message, error) {
	var out []models.Message
	err := s.read(func(d *memoryData) error {
		for _, m := range d.messages {
			if m.IsFlagged {
				out = append(out, d.hydrateMessage(m))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (s *MemoryStore) SetFlagStatus(ctx context.Context, id string, status models.FlagStatus) error {
	return s.write(func(d *memoryData) error {
		m, ok := d.messages[id]
		if !ok || !m.IsFlagged {
			return notFound("set flag status")
		}
		if m.FlagStatus != models.FlagStatusPending {
			return errors.Wrap(ErrStaleState, "set flag status")
		}
		m.FlagStatus = status
		d.messages[id] = m
		return nil
	})
}

func (s *MemoryStore) ConversationActivity(ctx context.Context) ([]models.ConversationData, error) {
	var out []models.ConversationData
	err := s.read(func(d *memoryData) error {
		for _, c := range d.conversations {
			c = d.hydrateConversation(c)
			item := models.ConversationData{ID: c.ID, LastActive: c.LastActivity}
			for _, p := range c.Participants {
				item.Participants = append(item.Participants, p.Profile.Name)
			}
			for _, m := range d.messages {
				if m.ConversationID != c.ID {
					continue
				}
				item.MessageCount++
				if m.IsFlagged {
					item.FlaggedCount++
				}
			}
			out = append(out, item)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].LastActive.After(out[j].LastActive) })
	return out, err
}

func inWindow(t, from time.Time) bool {
	return from.IsZero() || !t.Before(from)
}

func (s *MemoryStore) CountProfiles(ctx context.Context, from time.Time) (int64, error) {
	var n int64
	err := s.read(func(d *memoryData) error {
		for _, p := range d.profiles {
			if inWindow(p.CreatedAt, from) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *MemoryStore) CountMessages(ctx context.Context, from time.Time) (int64, error) {
	var n int64
	err := s.read(func(d *memoryData) error {
		for _, m := range d.messages {
			if inWindow(m.CreatedAt, from) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *MemoryStore) CountActiveSenders(ctx context.Context, from time.Time) (int64, error) {
	senders := map[string]struct{}{}
	err := s.read(func(d *memoryData) error {
		for _, m := range d.messages {
			if inWindow(m.CreatedAt, from) {
				senders[m.SenderID] = struct{}{}
			}
		}
		return nil
	})
	return int64(len(senders)), err
}

func (s *MemoryStore) CountConversations(ctx context.Context) (int64, error) {
	var n int64
	err := s.read(func(d *memoryData) error {
		n = int64(len(d.conversations))
		return nil
	})
	return n, err
}

func dailyCounts(times []time.Time) []models.DailyCount {
	byDay := map[string]int64{}
	for _, t := range times {
		byDay[t.Format("2006-01-02")]++
	}
	out := make([]models.DailyCount, 0, len(byDay))
	for day, count := range byDay {
		out = append(out, models.DailyCount{Day: day, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

func (s *MemoryStore) DailyProfileCounts(ctx context.Context, from time.Time) ([]models.DailyCount, error) {
	var times []time.Time
	err := s.read(func(d *memoryData) error {
		for _, p := range d.profiles {
			if inWindow(p.CreatedAt, from) {
				times = append(times, p.CreatedAt)
			}
		}
		return nil
	})
	return dailyCounts(times), err
}

func (s *MemoryStore) DailyMessageCounts(ctx context.Context, from time.Time) ([]models.DailyCount, error) {
	var times []time.Time
	err := s.read(func(d *memoryData) error {
		for _, m := range d.messages {
			if inWindow(m.CreatedAt, from) {
				times = append(times, m.CreatedAt)
			}
		}
		return nil
	})
	return dailyCounts(times), err
}

func (s *MemoryStore) HourlyMessageCounts(ctx context.Context, from time.Time) (map[int]int64, error) {
	out := map[int]int64{}
	err := s.read(func(d *memoryData) error {
		for _, m := range d.messages {
			if inWindow(m.CreatedAt, from) {
				out[m.CreatedAt.Hour()]++
			}
		}
		return nil
	})
	return out, err
}
