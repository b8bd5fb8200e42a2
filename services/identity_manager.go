package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"messenger-api/errs"
	"messenger-api/models"
	"messenger-api/repositories"
	"messenger-api/utils"
)

// IdentityManager holds the signed in principal of one session.
type IdentityManager struct {
	deps *Dependencies
	op   opState

	mu        sync.RWMutex
	principal *models.Principal
	// userID survives a dropped principal so CurrentPrincipal can reload it.
	userID string
}

func NewIdentityManager(deps *Dependencies) *IdentityManager {
	return &IdentityManager{deps: deps.withDefaults(), op: opState{domain: "identity"}}
}

func (m *IdentityManager) Status() OpStatus { return m.op.Status() }

// Principal returns a snapshot of the cached principal without any lookup.
func (m *IdentityManager) Principal() *models.Principal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.principal == nil {
		return nil
	}
	p := *m.principal
	return &p
}

func (m *IdentityManager) requirePrincipal() (*models.Principal, error) {
	p := m.Principal()
	if p == nil {
		return nil, errNotSignedIn
	}
	return p, nil
}

func (m *IdentityManager) setPrincipal(p *models.Principal) {
	m.mu.Lock()
	m.principal = p
	if p != nil {
		m.userID = p.ID
	} else {
		m.userID = ""
	}
	m.mu.Unlock()
}

func (m *IdentityManager) Login(ctx context.Context, email, password string) (*models.Principal, error) {
	m.op.begin()
	p, err := m.login(ctx, utils.NormalizeEmail(email), password)
	return p, m.op.end(err)
}

func (m *IdentityManager) login(ctx context.Context, email, password string) (*models.Principal, error) {
	identity, err := m.deps.Store.FindIdentityByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, errs.New(errs.KindAuthentication, "Invalid email or password")
	}
	if err != nil {
		return nil, storeError(err, "Could not verify credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return nil, errs.New(errs.KindAuthentication, "Invalid email or password")
	}

	profile, err := m.deps.Store.GetProfile(ctx, identity.ID)
	if err != nil {
		return nil, errs.Wrap(errs.KindProfileLookup, err, "Could not load the profile for this account")
	}

	m.markPresence(ctx, profile.ID, models.PresenceOnline)
	p := profile.Principal()
	m.setPrincipal(p)
	m.deps.Log.Info("user logged in", zap.String("user_id", p.ID))
	return p, nil
}

func (m *IdentityManager) Register(ctx context.Context, name, email, password string) (*models.Principal, error) {
	m.op.begin()
	p, err := m.register(ctx, strings.TrimSpace(name), utils.NormalizeEmail(email), password)
	return p, m.op.end(err)
}

func (m *IdentityManager) register(ctx context.Context, name, email, password string) (*models.Principal, error) {
	switch {
	case name == "":
		return nil, errs.New(errs.KindRegistration, "Name is required")
	case !utils.IsValidEmail(email):
		return nil, errs.New(errs.KindRegistration, "Invalid email format")
	case !utils.IsValidPassword(password):
		return nil, errs.Newf(errs.KindRegistration,
			"Password must be at least %d characters and mix upper case, lower case, digits or symbols", utils.MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errs.Wrap(errs.KindRegistration, err, "Failed to hash password")
	}

	id := m.deps.NewID()
	identity := &models.AuthIdentity{ID: id, Email: email, PasswordHash: string(hash)}
	if err := m.deps.Store.CreateIdentity(ctx, identity); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, errs.Wrap(errs.KindRegistration, err, "An account with this email already exists")
		}
		return nil, errs.Wrap(errs.KindRegistration, err, "Failed to create account")
	}

	avatar := models.DefaultAvatarURL(name)
	profile := &models.Profile{
		ID:        id,
		Name:      name,
		Username:  models.GenerateUsernameFromName(name),
		Email:     email,
		AvatarURL: &avatar,
		Role:      models.RoleUser,
		Status:    models.PresenceOnline,
	}
	if err := m.deps.Store.CreateProfile(ctx, profile); err != nil {
		// The identity must not outlive a failed profile insert.
		if delErr := m.deps.Store.DeleteIdentity(context.WithoutCancel(ctx), id); delErr != nil {
			m.deps.Log.Error("orphaned auth identity after failed registration",
				zap.String("identity_id", id), zap.Error(err), zap.NamedError("cleanup_error", delErr))
			return nil, errs.Wrap(errs.KindInconsistent, delErr,
				"Account setup failed and could not be rolled back; contact support")
		}
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, errs.Wrap(errs.KindRegistration, err, "An account with this email already exists")
		}
		return nil, errs.Wrap(errs.KindRegistration, err, "Failed to create profile")
	}

	m.markPresence(ctx, id, models.PresenceOnline)
	p := profile.Principal()
	m.setPrincipal(p)
	m.deps.Log.Info("user registered", zap.String("user_id", id))

	go func() {
		if err := m.deps.Mailer.SendWelcome(email, name); err != nil {
			m.deps.Log.Warn("welcome email not sent", zap.String("user_id", id), zap.Error(err))
		}
	}()
	return p, nil
}

// Logout clears the principal. Calling it without a principal is a no-op.
func (m *IdentityManager) Logout(ctx context.Context) error {
	return m.logout(ctx, true)
}

// logout clears the principal. The user is marked offline only when
// markOffline is set; a user with other live sessions stays online.
func (m *IdentityManager) logout(ctx context.Context, markOffline bool) error {
	m.op.begin()
	p := m.Principal()
	if p != nil {
		if markOffline {
			m.markPresence(ctx, p.ID, models.PresenceOffline)
		}
		m.deps.Log.Info("user logged out", zap.String("user_id", p.ID))
	}
	m.setPrincipal(nil)
	return m.op.end(nil)
}

// Resume rebuilds the principal of a session from its user id, e.g. after a
// restart dropped the in-memory session.
func (m *IdentityManager) Resume(ctx context.Context, userID string) (*models.Principal, error) {
	m.op.begin()
	profile, err := m.deps.Store.GetProfile(ctx, userID)
	if err != nil {
		return nil, m.op.end(errs.Wrap(errs.KindProfileLookup, err, "Could not load the profile for this session"))
	}
	p := profile.Principal()
	m.setPrincipal(p)
	m.markPresence(ctx, userID, models.PresenceOnline)
	return p, m.op.end(nil)
}

// CurrentPrincipal returns the cached principal, or reloads it within
// LookupTimeout. Any failure yields nil.
func (m *IdentityManager) CurrentPrincipal(ctx context.Context) *models.Principal {
	if p := m.Principal(); p != nil {
		return p
	}

	m.mu.RLock()
	userID := m.userID
	m.mu.RUnlock()
	if userID == "" {
		return nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, m.deps.LookupTimeout)
	defer cancel()
	profile, err := m.deps.Store.GetProfile(lookupCtx, userID)
	if err != nil {
		m.deps.Log.Debug("principal lookup failed", zap.String("user_id", userID), zap.Error(err))
		return nil
	}

	p := profile.Principal()
	m.mu.Lock()
	if m.userID == userID {
		m.principal = p
	}
	m.mu.Unlock()
	return m.Principal()
}

// Invalidate drops the cached principal but keeps the user id, so the next
// CurrentPrincipal call reloads it from the store.
func (m *IdentityManager) Invalidate() {
	m.mu.Lock()
	m.principal = nil
	m.mu.Unlock()
}

// UpdateProfile edits the display name and avatar of the principal.
func (m *IdentityManager) UpdateProfile(ctx context.Context, name, avatar *string) (*models.Principal, error) {
	p, err := m.requirePrincipal()
	if err != nil {
		return nil, m.op.fail(err)
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, m.op.fail(errs.New(errs.KindValidation, "Name cannot be empty"))
		}
		name = &trimmed
	}

	m.op.begin()
	profile, err := m.deps.Store.UpdateProfile(ctx, p.ID, models.ProfileUpdate{Name: name, Avatar: avatar})
	if err != nil {
		return nil, m.op.end(storeError(err, "Failed to update profile"))
	}
	updated := profile.Principal()
	m.mu.Lock()
	if m.principal != nil && m.principal.ID == updated.ID {
		m.principal = updated
	}
	m.mu.Unlock()
	return updated, m.op.end(nil)
}

// SetPresence publishes an explicit status (away, busy) for the principal.
func (m *IdentityManager) SetPresence(ctx context.Context, status models.PresenceStatus) error {
	p, err := m.requirePrincipal()
	if err != nil {
		return m.op.fail(err)
	}
	if !status.Valid() {
		return m.op.fail(errs.Newf(errs.KindValidation, "Unknown presence status %q", status))
	}
	m.op.begin()
	if m.deps.Presence == nil {
		return m.op.end(nil)
	}
	return m.op.end(storeError(m.deps.Presence.Set(ctx, p.ID, status), "Failed to update presence"))
}

func (m *IdentityManager) markPresence(ctx context.Context, userID string, status models.PresenceStatus) {
	if m.deps.Presence == nil {
		return
	}
	if err := m.deps.Presence.Set(ctx, userID, status); err != nil {
		m.deps.Log.Warn("presence update failed", zap.String("user_id", userID),
			zap.String("status", string(status)), zap.Error(err))
	}
}
