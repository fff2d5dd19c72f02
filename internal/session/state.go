package session

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"chat-client/internal/models"
)

// Phase is the lifecycle position of a State.
type Phase string

const (
	PhaseInit            Phase = "init"
	PhaseProbing         Phase = "probing"
	PhaseAuthenticated   Phase = "authenticated"
	PhaseUnauthenticated Phase = "unauthenticated"
	PhaseClosed          Phase = "closed"
)

// Authenticator is the part of the API client the session depends on.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (models.AuthResponse, error)
	Signup(ctx context.Context, username, password string) (models.AuthResponse, error)
	Logout(ctx context.Context) error
	Verify(ctx context.Context) error
}

// ChangeFunc is called after the logged-in flag changes.
type ChangeFunc func(loggedIn bool)

// State is the process-wide "is authenticated" flag. Only its own methods
// change it.
type State struct {
	auth   Authenticator
	logger logrus.FieldLogger

	mu        sync.RWMutex
	phase     Phase
	listeners []ChangeFunc
}

// NewState builds a State in the init phase, logged out.
func NewState(auth Authenticator, logger logrus.FieldLogger) *State {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &State{auth: auth, logger: logger, phase: PhaseInit}
}

// IsLoggedIn reports whether the client currently considers itself authenticated.
func (s *State) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase == PhaseAuthenticated
}

// Phase returns the current lifecycle phase.
func (s *State) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// OnChange registers fn to run whenever the logged-in flag flips.
func (s *State) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseClosed {
		return
	}
	s.listeners = append(s.listeners, fn)
}

// Probe checks the session cookie against the backend. Any failure,
// including a network failure, leaves the client logged out.
func (s *State) Probe(ctx context.Context) bool {
	if !s.setPhase(PhaseProbing, false) {
		return false
	}

	err := s.auth.Verify(ctx)
	if err != nil {
		s.logger.WithError(err).Info("session probe failed")
		s.setPhase(PhaseUnauthenticated, true)
		return false
	}
	s.setPhase(PhaseAuthenticated, true)
	return true
}

// Login authenticates and marks the session logged in on success.
func (s *State) Login(ctx context.Context, username, password string) error {
	if _, err := s.auth.Login(ctx, username, password); err != nil {
		return err
	}
	s.setPhase(PhaseAuthenticated, true)
	s.logger.WithField("username", username).Info("logged in")
	return nil
}

// Signup creates an account and marks the session logged in on success.
func (s *State) Signup(ctx context.Context, username, password string) error {
	if _, err := s.auth.Signup(ctx, username, password); err != nil {
		return err
	}
	s.setPhase(PhaseAuthenticated, true)
	s.logger.WithField("username", username).Info("signed up")
	return nil
}

// Logout signs out. The client flips to logged out even when the backend
// call fails; that error is returned so callers can surface it.
func (s *State) Logout(ctx context.Context) error {
	err := s.auth.Logout(ctx)
	s.setPhase(PhaseUnauthenticated, true)
	if err != nil {
		s.logger.WithError(err).Warn("logout request failed; client is logged out but the server session may still be valid")
	}
	return err
}

// Close tears the state down. Listeners are dropped and the client is logged out.
func (s *State) Close() {
	s.mu.Lock()
	wasLoggedIn := s.phase == PhaseAuthenticated
	s.phase = PhaseClosed
	listeners := s.listeners
	s.listeners = nil
	s.mu.Unlock()

	if wasLoggedIn {
		for _, fn := range listeners {
			fn(false)
		}
	}
}

// setPhase moves to next unless the state is closed. When notify is set and
// the logged-in flag flipped, listeners are called outside the lock.
func (s *State) setPhase(next Phase, notify bool) bool {
	s.mu.Lock()
	if s.phase == PhaseClosed {
		s.mu.Unlock()
		return false
	}
	before := s.phase == PhaseAuthenticated
	if next == PhaseProbing && before {
		// keep serving as authenticated while re-probing
		s.mu.Unlock()
		return true
	}
	s.phase = next
	after := s.phase == PhaseAuthenticated
	listeners := append([]ChangeFunc(nil), s.listeners...)
	s.mu.Unlock()

	if notify && before != after {
		for _, fn := range listeners {
			fn(after)
		}
	}
	return true
}
