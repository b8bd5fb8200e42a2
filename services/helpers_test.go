package services

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messenger-api/cache"
	"messenger-api/models"
	"messenger-api/repositories"
	"messenger-api/storage"
)

// testClock advances one second on every reading so stored timestamps are
// strictly ordered.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// faultyStore injects failures into selected store calls, including calls
// made inside transactions.
type faultyStore struct {
	repositories.Store

	createProfileErr  error
	deleteIdentityErr error
	getProfileErr     error
	createMessageErr  error
	createPairErr     error
}

func (f *faultyStore) Transaction(ctx context.Context, fn func(tx repositories.Store) error) error {
	return f.Store.Transaction(ctx, func(tx repositories.Store) error {
		inner := *f
		inner.Store = tx
		return fn(&inner)
	})
}

func (f *faultyStore) CreateProfile(ctx context.Context, p *models.Profile) error {
	if f.createProfileErr != nil {
		return f.createProfileErr
	}
	return f.Store.CreateProfile(ctx, p)
}

func (f *faultyStore) DeleteIdentity(ctx context.Context, id string) error {
	if f.deleteIdentityErr != nil {
		return f.deleteIdentityErr
	}
	return f.Store.DeleteIdentity(ctx, id)
}

func (f *faultyStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	if f.getProfileErr != nil {
		return nil, f.getProfileErr
	}
	return f.Store.GetProfile(ctx, id)
}

func (f *faultyStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	if f.createMessageErr != nil {
		return f.createMessageErr
	}
	return f.Store.CreateMessage(ctx, msg)
}

func (f *faultyStore) CreateFriendPair(ctx context.Context, a, b string) error {
	if f.createPairErr != nil {
		return f.createPairErr
	}
	return f.Store.CreateFriendPair(ctx, a, b)
}

// blobs wraps the in-memory blob store with an optional upload failure and
// a record of deletions.
type blobs struct {
	*storage.MemoryStore
	uploadErr error

	mu      sync.Mutex
	deleted []string
}

func (b *blobs) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if b.uploadErr != nil {
		return "", b.uploadErr
	}
	return b.MemoryStore.Upload(ctx, key, r, size, contentType)
}

func (b *blobs) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	b.deleted = append(b.deleted, key)
	b.mu.Unlock()
	return b.MemoryStore.Delete(ctx, key)
}

type sentMail struct {
	kind string
	to   string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) SendWelcome(email, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{kind: "welcome", to: email})
	return nil
}

func (m *recordingMailer) SendFriendRequest(email, recipientName, senderName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{kind: "friend_request", to: email})
	return nil
}

func (m *recordingMailer) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sent {
		if s.kind == kind {
			n++
		}
	}
	return n
}

type testEnv struct {
	ctx      context.Context
	mem      *repositories.MemoryStore
	store    *faultyStore
	blobs    *blobs
	cache    *cache.MemoryCache
	mailer   *recordingMailer
	clock    *testClock
	deps     *Dependencies
	registry *SessionRegistry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := repositories.NewMemoryStore()
	store := &faultyStore{Store: mem}
	c := cache.NewMemoryCache()
	env := &testEnv{
		ctx:    context.Background(),
		mem:    mem,
		store:  store,
		blobs:  &blobs{MemoryStore: storage.NewMemoryStore("https://media.test")},
		cache:  c,
		mailer: &recordingMailer{},
		clock:  newTestClock(),
	}
	env.deps = &Dependencies{
		Store:    store,
		Blobs:    env.blobs,
		Presence: NewPresenceService(c, mem, time.Hour),
		Mailer:   env.mailer,
		Log:      zap.NewNop(),
		Now:      env.clock.Now,
	}
	env.registry = NewSessionRegistry(env.deps)
	return env
}

// user seeds a profile and returns a signed in session for it.
func (e *testEnv) user(t *testing.T, id, name string) *Session {
	t.Helper()
	require.NoError(t, e.mem.CreateProfile(e.ctx, &models.Profile{
		ID:    id,
		Name:  name,
		Email: id + "@example.com",
	}))
	s, err := e.registry.Resume(e.ctx, "session-"+id, id)
	require.NoError(t, err)
	return s
}

func (e *testEnv) admin(t *testing.T, id, name string) *Session {
	t.Helper()
	require.NoError(t, e.mem.CreateProfile(e.ctx, &models.Profile{
		ID:    id,
		Name:  name,
		Email: id + "@example.com",
		Role:  models.RoleAdmin,
	}))
	s, err := e.registry.Resume(e.ctx, "session-"+id, id)
	require.NoError(t, err)
	return s
}

var errBoom = errors.New("collaborator unavailable")
