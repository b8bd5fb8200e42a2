package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"messenger-api/errs"
	"messenger-api/metrics"
	"messenger-api/models"
	"messenger-api/repositories"
)

const searchLimit = 20

// RelationshipManager holds the friend list, request inbox and outbox and
// search results of one principal.
type RelationshipManager struct {
	deps     *Dependencies
	identity *IdentityManager
	op       opState

	mu       sync.RWMutex
	friends  []models.Friend
	requests models.FriendRequests
	results  []models.UserSearchResult
}

func NewRelationshipManager(deps *Dependencies, identity *IdentityManager) *RelationshipManager {
	return &RelationshipManager{
		deps:     deps.withDefaults(),
		identity: identity,
		op:       opState{domain: "relationships"},
		requests: models.FriendRequests{Incoming: []models.FriendRequestView{}, Outgoing: []models.FriendRequestView{}},
	}
}

func (m *RelationshipManager) Status() OpStatus { return m.op.Status() }

func (m *RelationshipManager) Friends() []models.Friend {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Friend{}, m.friends...)
}

func (m *RelationshipManager) Requests() models.FriendRequests {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return models.FriendRequests{
		Incoming: append([]models.FriendRequestView{}, m.requests.Incoming...),
		Outgoing: append([]models.FriendRequestView{}, m.requests.Outgoing...),
	}
}

func (m *RelationshipManager) SearchResults() []models.UserSearchResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.UserSearchResult{}, m.results...)
}

func (m *RelationshipManager) RefreshFriends(ctx context.Context) ([]models.Friend, error) {
	p, err := m.identity.requirePrincipal()
	if err != nil {
		return nil, m.op.fail(err)
	}
	m.op.begin()
	profiles, err := m.deps.Store.ListFriends(ctx, p.ID)
	if err != nil {
		return nil, m.op.end(storeError(err, "Failed to load friends"))
	}
	friends := make([]models.Friend, 0, len(profiles))
	for i := range profiles {
		friends = append(friends, m.friendView(ctx, &profiles[i]))
	}

	m.mu.Lock()
	m.friends = friends
	m.mu.Unlock()
	return m.Friends(), m.op.end(nil)
}

// friendView overlays the live presence heartbeat on the stored status.
func (m *RelationshipManager) friendView(ctx context.Context, p *models.Profile) models.Friend {
	f := models.FriendFromProfile(p)
	if m.deps.Presence != nil {
		f.Status = m.deps.Presence.Status(ctx, p.ID)
	}
	return f
}

func (m *RelationshipManager) RefreshRequests(ctx context.Context) (models.FriendRequests, error) {
	p, err := m.identity.requirePrincipal()
	if err != nil {
		return models.FriendRequests{}, m.op.fail(err)
	}
	m.op.begin()

	var incoming, outgoing []models.FriendRequest
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		incoming, err = m.deps.Store.ListIncomingRequests(gctx, p.ID)
		return err
	})
	g.Go(func() error {
		var err error
		outgoing, err = m.deps.Store.ListOutgoingRequests(gctx, p.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.FriendRequests{}, m.op.end(storeError(err, "Failed to load friend requests"))
	}

	out := models.FriendRequests{
		Incoming: make([]models.FriendRequestView, 0, len(incoming)),
		Outgoing: make([]models.FriendRequestView, 0, len(outgoing)),
	}
	for i := range incoming {
		out.Incoming = append(out.Incoming, incoming[i].View(p.ID))
	}
	for i := range outgoing {
		out.Outgoing = append(out.Outgoing, outgoing[i].View(p.ID))
	}

	m.mu.Lock()
	m.requests = out
	m.mu.Unlock()
	return m.Requests(), m.op.end(nil)
}

// SearchUsers finds other users by name or username. A blank query yields
// an empty result without touching the store.
func (m *RelationshipManager) SearchUsers(ctx context.Context, query string) ([]models.UserSearchResult, error) {
	p, err := m.identity.requirePrincipal()
	if err != nil {
		return nil, m.op.fail(err)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		m.mu.Lock()
		m.results = []models.UserSearchResult{}
		m.mu.Unlock()
		return []models.UserSearchResult{}, nil
	}

	m.op.begin()
	profiles, err := m.deps.Store.SearchProfiles(ctx, query, p.ID, searchLimit)
	if err != nil {
		return nil, m.op.end(storeError(err, "Search failed"))
	}

	results := make([]models.UserSearchResult, len(profiles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.deps.SummaryConcurrency)
	for i := range profiles {
		i := i
		g.Go(func() error {
			mutual, err := m.deps.Store.CountMutualFriends(gctx, p.ID, profiles[i].ID)
			if err != nil {
				return err
			}
			username := profiles[i].Username
			if username == "" {
				username = models.GenerateUsernameFromName(profiles[i].Name)
			}
			results[i] = models.UserSearchResult{
				Friend:        m.friendView(gctx, &profiles[i]),
				Username:      username,
				MutualFriends: mutual,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, m.op.end(storeError(err, "Search failed"))
	}

	m.mu.Lock()
	m.results = results
	m.mu.Unlock()
	return m.SearchResults(), m.op.end(nil)
}

func (m *RelationshipManager) SendFriendRequest(ctx context.Context, targetID string) (*models.FriendRequestView, error) {
	p, err := m.identity.requirePrincipal()
	if err != nil {
		return nil, m.op.fail(err)
	}
	if targetID == "" || targetID == p.ID {
		return nil, m.op.fail(errs.New(errs.KindValidation, "You cannot send a friend request to yourself"))
	}

	m.op.begin()
	view, err := m.sendFriendRequest(ctx, p, targetID)
	return view, m.op.end(err)
}

func (m *RelationshipManager) sendFriendRequest(ctx context.Context, p *models.Principal, targetID string) (*models.FriendRequestView, error) {
	target, err := m.deps.Store.GetProfile(ctx, targetID)
	if err != nil {
		return nil, storeError(err, "User not found")
	}

	friends, err := m.deps.Store.AreFriends(ctx, p.ID, targetID)
	if err != nil {
		return nil, storeError(err, "Failed to send friend request")
	}
	if friends {
		return nil, errs.New(errs.KindConflict, "You are already friends")
	}

	_, err = m.deps.Store.FindPendingRequest(ctx, p.ID, targetID)
	switch {
	case err == nil:
		return nil, errs.New(errs.KindDuplicateRequest, "A friend request between you is already pending")
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, storeError(err, "Failed to send friend request")
	}

	req := &models.FriendRequest{
		ID:          m.deps.NewID(),
		SenderID:    p.ID,
		RecipientID: targetID,
		Status:      models.FriendRequestStatusPending,
	}
	if err := m.deps.Store.CreateFriendRequest(ctx, req); err != nil {
		return nil, storeError(err, "Failed to send friend request")
	}
	metrics.FriendRequest("sent")
	m.deps.Log.Info("friend request sent", zap.String("request_id", req.ID),
		zap.String("sender_id", p.ID), zap.String("recipient_id", targetID))

	go func() {
		if err := m.deps.Mailer.SendFriendRequest(target.Email, target.Name, p.Name); err != nil {
			m.deps.Log.Warn("friend request email not sent", zap.String("request_id", req.ID), zap.Error(err))
		}
	}()

	req.Recipient = *target
	view := req.View(p.ID)
	m.mu.Lock()
	m.requests.Outgoing = append([]models.FriendRequestView{view}, m.requests.Outgoing...)
	m.mu.Unlock()
	return &view, nil
}

// loadAddressedRequest fetches a request the principal may resolve.
func (m *RelationshipManager) loadAddressedRequest(ctx context.Context, p *models.Principal, requestID string) (*models.FriendRequest, error) {
	req, err := m.deps.Store.GetFriendRequest(ctx, requestID)
	if err != nil {
		return nil, storeError(err, "Friend request not found")
	}
	if req.RecipientID != p.ID {
		return nil, errs.New(errs.KindAuthorization, "Only the recipient can answer this friend request")
	}
	if req.Status.Terminal() {
		return nil, errs.Newf(errs.KindConflict, "Friend request was already %s", req.Status)
	}
	return req, nil
}

// AcceptFriendRequest resolves the request and creates both friend rows in
// one store transaction.
func (m *RelationshipManager) AcceptFriendRequest(ctx context.Context, requestID string) error {
	p, err := m.identity.requirePrincipal()
	if err != nil {
		return m.op.fail(err)
	}
	m.op.begin()

	req, err := m.loadAddressedRequest(ctx, p, requestID)
	if err != nil {
		return m.op.end(err)
	}

	err = m.deps.Store.Transaction(ctx, func(tx repositories.Store) error {
		if err := tx.ResolveFriendRequest(ctx, req.ID, models.FriendRequestStatusAccepted); err != nil {
			return storeError(err, "Friend request is no longer pending")
		}
		if err := tx.CreateFriendPair(ctx, req.RecipientID, req.SenderID); err != nil {
			if errors.Is(err, repositories.ErrDuplicate) {
				return errs.Wrap(errs.KindConflict, err, "You are already friends")
			}
			return storeError(err, "Failed to create friendship")
		}
		return nil
	})
	if err != nil {
		return m.op.end(err)
	}

	metrics.FriendRequest("accepted")
	m.deps.Log.Info("friend request accepted", zap.String("request_id", req.ID))
	m.dropIncoming(req.ID)

	if sender, err := m.deps.Store.GetProfile(ctx, req.SenderID); err == nil {
		friend := m.friendView(ctx, sender)
		m.mu.Lock()
		m.friends = append(m.friends, friend)
		m.mu.Unlock()
	}
	return m.op.end(nil)
}

func (m *RelationshipManager) DeclineFriendRequest(ctx context.Context, requestID string) error {
	p, err := m.identity.requirePrincipal()
	if err != nil {
		return m.op.fail(err)
	}
	m.op.begin()

	req, err := m.loadAddressedRequest(ctx, p, requestID)
	if err != nil {
		return m.op.end(err)
	}
	if err := m.deps.Store.ResolveFriendRequest(ctx, req.ID, models.FriendRequestStatusDeclined); err != nil {
		return m.op.end(storeError(err, "Friend request is no longer pending"))
	}

	metrics.FriendRequest("declined")
	m.dropIncoming(req.ID)
	return m.op.end(nil)
}

func (m *RelationshipManager) dropIncoming(requestID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.requests.Incoming[:0]
	for _, r := range m.requests.Incoming {
		if r.ID != requestID {
			kept = append(kept, r)
		}
	}
	m.requests.Incoming = kept
}

// RemoveFriend deletes both directions of a friendship. Removing a friendship
// that does not exist succeeds.
func (m *RelationshipManager) RemoveFriend(ctx context.Context, friendID string) error {
	p, err := m.identity.requirePrincipal()
	if err != nil {
		return m.op.fail(err)
	}
	m.op.begin()
	if err := m.deps.Store.DeleteFriendPair(ctx, p.ID, friendID); err != nil {
		return m.op.end(storeError(err, "Failed to remove friend"))
	}

	m.mu.Lock()
	kept := m.friends[:0]
	for _, f := range m.friends {
		if f.ID != friendID {
			kept = append(kept, f)
		}
	}
	m.friends = kept
	m.mu.Unlock()
	return m.op.end(nil)
}

func (m *RelationshipManager) TogglePrivacy(ctx context.Context, isPrivate bool) error {
	p, err := m.identity.requirePrincipal()
	if err != nil {
		return m.op.fail(err)
	}
	m.op.begin()
	return m.op.end(storeError(m.deps.Store.SetPrivacy(ctx, p.ID, isPrivate), "Failed to update privacy"))
}
