package services

import (
	"errors"
	"sync"

	"messenger-api/errs"
	"messenger-api/metrics"
	"messenger-api/repositories"
)

// OpStatus is the loading flag and last error a manager exposes to callers.
type OpStatus struct {
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

// opState tracks in-flight operations and the last failure of a manager.
// Loading is a counter so overlapping calls do not clear each other's flag.
type opState struct {
	domain string

	mu      sync.Mutex
	loading int
	lastErr string
}

// begin marks an operation in flight and clears the previous error.
func (s *opState) begin() {
	s.mu.Lock()
	s.loading++
	s.lastErr = ""
	s.mu.Unlock()
}

// end records err, if any, and returns it unchanged.
func (s *opState) end(err error) error {
	s.mu.Lock()
	s.loading--
	if err != nil {
		s.lastErr = describe(err)
	}
	s.mu.Unlock()

	if err != nil {
		metrics.OperationFailed(s.domain, string(errs.KindOf(err)))
	}
	return err
}

// fail records err for an operation rejected before it started.
func (s *opState) fail(err error) error {
	s.mu.Lock()
	s.lastErr = describe(err)
	s.mu.Unlock()
	metrics.OperationFailed(s.domain, string(errs.KindOf(err)))
	return err
}

func (s *opState) Status() OpStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return OpStatus{Loading: s.loading > 0, Error: s.lastErr}
}

// describe keeps the collaborator's own text for transport failures.
func describe(err error) string {
	if errs.KindOf(err) == errs.KindTransport {
		return err.Error()
	}
	return errs.Message(err)
}

// storeError classifies a store failure. Missing rows become NotFound and
// lost races on guarded updates become Conflict.
func storeError(err error, message string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return errs.Wrap(errs.KindNotFound, err, message)
	case errors.Is(err, repositories.ErrStaleState), errors.Is(err, repositories.ErrDuplicate):
		return errs.Wrap(errs.KindConflict, err, message)
	}
	return errs.Wrap(errs.KindTransport, err, message)
}

var errNotSignedIn = errs.New(errs.KindAuthentication, "You must be signed in")
