package services

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"messenger-api/repositories"
	"messenger-api/storage"
	"messenger-api/utils"
)

// Dependencies are the collaborators shared by every session. They are
// built once at startup and handed to each manager by reference.
type Dependencies struct {
	Store    repositories.Store
	Blobs    storage.BlobStore
	Presence *PresenceService
	Mailer   Mailer
	// Locks serializes writes per conversation across all sessions.
	Locks *utils.KeyedMutex
	Log   *zap.Logger

	// LookupTimeout bounds the profile lookup behind CurrentPrincipal.
	LookupTimeout time.Duration
	// SummaryConcurrency caps parallel store calls when building chat lists.
	SummaryConcurrency int

	Now   func() time.Time
	NewID func() string
}

func (d *Dependencies) withDefaults() *Dependencies {
	if d.Locks == nil {
		d.Locks = utils.NewKeyedMutex()
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Mailer == nil {
		d.Mailer = NewNoopMailer(d.Log)
	}
	if d.LookupTimeout <= 0 {
		d.LookupTimeout = 5 * time.Second
	}
	if d.SummaryConcurrency <= 0 {
		d.SummaryConcurrency = 8
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	return d
}
