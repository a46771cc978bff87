package refine

import (
	"sync"

	"github.com/pkg/errors"
)

// Backend is a decision procedure over bit-vector clauses. Symbols appear
// as VarExpr leaves only.
type Backend interface {
	// Push & Pop open and discard an assertion scope.
	Push() error
	Pop() error

	// Assert adds c to the current scope.
	Assert(c Clause) error

	// Check returns Valid if c holds in every model of the asserted
	// clauses, Invalid if it fails in at least one.
	Check(c Clause) (Validity, error)

	// Value returns the value of v in the counterexample of the last
	// Invalid check, if the backend keeps models.
	Value(v *VarExpr) (uint64, bool)

	Close() error
}

// BackendFactory returns a new, empty backend.
type BackendFactory func() (Backend, error)

// The process holds at most one solver session at a time. The mutex only
// protects the slot itself.
var session struct {
	mu     sync.Mutex
	active *Session
}

// Session is the exclusive handle to a backend.
type Session struct {
	factory BackendFactory
	backend Backend
}

// AcquireSession creates a new backend and claims the session slot.
// Returns ErrSolverUnavailable if another session is held.
func AcquireSession(factory BackendFactory) (*Session, error) {
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.active != nil {
		return nil, ErrSolverUnavailable
	}

	backend, err := factory()
	if err != nil {
		return nil, errors.Wrapf(ErrSolverUnavailable, "create backend: %s", err)
	}

	s := &Session{factory: factory, backend: backend}
	session.active = s
	return s, nil
}

// Backend returns the current backend.
func (s *Session) Backend() Backend {
	return s.backend
}

// Reset destroys the backend and replaces it with a new, empty one.
func (s *Session) Reset() error {
	if s.backend != nil {
		if err := s.backend.Close(); err != nil {
			return errors.Wrap(err, "close backend")
		}
		s.backend = nil
	}

	backend, err := s.factory()
	if err != nil {
		return errors.Wrapf(ErrSolverUnavailable, "create backend: %s", err)
	}
	s.backend = backend
	return nil
}

// Release closes the backend and frees the session slot. Safe to call more
// than once.
func (s *Session) Release() error {
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.active == s {
		session.active = nil
	}

	if s.backend == nil {
		return nil
	}
	err := s.backend.Close()
	s.backend = nil
	return err
}
