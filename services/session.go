package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"messenger-api/metrics"
	"messenger-api/models"
)

// Session groups the four managers of one login. Managers share the
// session's Dependencies and read the principal from its IdentityManager.
type Session struct {
	ID            string
	Identity      *IdentityManager
	Relationships *RelationshipManager
	Messaging     *MessagingManager
	Admin         *AdminManager

	mu       sync.Mutex
	lastUsed time.Time
}

func NewSession(id string, deps *Dependencies) *Session {
	deps = deps.withDefaults()
	identity := NewIdentityManager(deps)
	return &Session{
		ID:            id,
		Identity:      identity,
		Relationships: NewRelationshipManager(deps, identity),
		Messaging:     NewMessagingManager(deps, identity),
		Admin:         NewAdminManager(deps, identity),
		lastUsed:      deps.Now(),
	}
}

func (s *Session) principal() *models.Principal {
	if s == nil {
		return nil
	}
	return s.Identity.Principal()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// SessionState is the externally visible state of a session.
type SessionState struct {
	ID            string            `json:"id"`
	Principal     *models.Principal `json:"principal"`
	LastUsed      time.Time         `json:"last_used"`
	SelectedChat  string            `json:"selected_chat,omitempty"`
	Identity      OpStatus          `json:"identity"`
	Relationships OpStatus          `json:"relationships"`
	Messaging     OpStatus          `json:"messaging"`
	Admin         OpStatus          `json:"admin"`
}

func (s *Session) State() SessionState {
	return SessionState{
		ID:            s.ID,
		Principal:     s.Identity.Principal(),
		LastUsed:      s.LastUsed(),
		SelectedChat:  s.Messaging.SelectedChatID(),
		Identity:      s.Identity.Status(),
		Relationships: s.Relationships.Status(),
		Messaging:     s.Messaging.Status(),
		Admin:         s.Admin.Status(),
	}
}

// SessionRegistry owns every live session of the process.
type SessionRegistry struct {
	deps *Dependencies

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionRegistry(deps *Dependencies) *SessionRegistry {
	return &SessionRegistry{deps: deps.withDefaults(), sessions: map[string]*Session{}}
}

func (r *SessionRegistry) add(s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[s.ID]; ok {
		return existing
	}
	r.sessions[s.ID] = s
	metrics.SetActiveSessions(len(r.sessions))
	return s
}

// Login opens a new session for the given credentials.
func (r *SessionRegistry) Login(ctx context.Context, email, password string) (*Session, error) {
	s := NewSession(r.deps.NewID(), r.deps)
	if _, err := s.Identity.Login(ctx, email, password); err != nil {
		return nil, err
	}
	return r.add(s), nil
}

// Register creates an account and opens its first session.
func (r *SessionRegistry) Register(ctx context.Context, name, email, password string) (*Session, error) {
	s := NewSession(r.deps.NewID(), r.deps)
	if _, err := s.Identity.Register(ctx, name, email, password); err != nil {
		return nil, err
	}
	return r.add(s), nil
}

func (r *SessionRegistry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if ok {
		s.touch(r.deps.Now())
	}
	return s, ok
}

// Resume returns the live session id, rebuilding it for userID when the
// process no longer holds it.
func (r *SessionRegistry) Resume(ctx context.Context, id, userID string) (*Session, error) {
	if s, ok := r.Get(id); ok {
		return s, nil
	}
	s := NewSession(id, r.deps)
	if _, err := s.Identity.Resume(ctx, userID); err != nil {
		return nil, err
	}
	r.deps.Log.Debug("session resumed", zap.String("session_id", id), zap.String("user_id", userID))
	return r.add(s), nil
}

// Close logs the session out and forgets it. Unknown ids are ignored.
func (r *SessionRegistry) Close(ctx context.Context, id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	shared := false
	if p := s.principal(); ok && p != nil {
		for _, other := range r.sessions {
			if op := other.principal(); op != nil && op.ID == p.ID {
				shared = true
				break
			}
		}
	}
	metrics.SetActiveSessions(len(r.sessions))
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return s.Identity.logout(ctx, !shared)
}

// Sweep evicts sessions idle for longer than idle. Users left without any
// session are marked offline.
func (r *SessionRegistry) Sweep(ctx context.Context, idle time.Duration) int {
	cutoff := r.deps.Now().Add(-idle)

	r.mu.Lock()
	var evicted []*Session
	for id, s := range r.sessions {
		if s.LastUsed().Before(cutoff) {
			evicted = append(evicted, s)
			delete(r.sessions, id)
		}
	}
	remaining := map[string]bool{}
	for _, s := range r.sessions {
		if p := s.Identity.Principal(); p != nil {
			remaining[p.ID] = true
		}
	}
	metrics.SetActiveSessions(len(r.sessions))
	r.mu.Unlock()

	for _, s := range evicted {
		p := s.Identity.Principal()
		if p != nil && !remaining[p.ID] {
			if err := s.Identity.Logout(ctx); err != nil {
				r.deps.Log.Warn("logout of idle session failed", zap.String("session_id", s.ID), zap.Error(err))
			}
		}
	}
	return len(evicted)
}

func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// States lists every live session, most recently used first.
func (r *SessionRegistry) States() []SessionState {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	out := make([]SessionState, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.State())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUsed.After(out[j].LastUsed) })
	return out
}
