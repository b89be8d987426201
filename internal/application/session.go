package application

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/storefront-admin/internal/domain/entity"
	repo "github.com/oksasatya/storefront-admin/internal/domain/repository"
)

// IdentityFunc observes identity changes. A nil identity means signed out.
type IdentityFunc func(*entity.Identity)

// SessionManager tracks the identity of one browser session and publishes
// every change to its subscribers.
//
// Listeners run on the goroutine that caused the change and must not call
// LoginWithCredentials, Logout, Restore or BootstrapAnonymous themselves.
type SessionManager struct {
	Provider repo.AuthProvider
	Logger   *logrus.Logger
	Timeout  time.Duration

	// emitMu keeps state changes and their notifications in order.
	emitMu sync.Mutex

	mu        sync.Mutex
	cred      *entity.Credential
	listeners map[int]IdentityFunc
	nextID    int
}

func NewSessionManager(provider repo.AuthProvider, logger *logrus.Logger, timeout time.Duration) *SessionManager {
	return &SessionManager{
		Provider:  provider,
		Logger:    logger,
		Timeout:   timeout,
		listeners: make(map[int]IdentityFunc),
	}
}

// SubscribeToIdentity registers fn and immediately calls it with the current
// identity. The returned function unsubscribes and may be called repeatedly.
func (s *SessionManager) SubscribeToIdentity(fn IdentityFunc) func() {
	s.emitMu.Lock()
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	current := s.currentLocked()
	s.mu.Unlock()
	fn(current)
	s.emitMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Current returns a copy of the active identity, or nil.
func (s *SessionManager) Current() *entity.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked()
}

// Credential returns a copy of the active credential, or nil.
func (s *SessionManager) Credential() *entity.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return nil
	}
	c := *s.cred
	return &c
}

// BootstrapAnonymous signs in anonymously when no identity is active.
// Failures are logged, never returned.
func (s *SessionManager) BootstrapAnonymous(ctx context.Context) {
	if s.Current() != nil {
		return
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cred, err := s.Provider.SignInAnonymously(ctx)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).Warn("anonymous sign-in failed")
		}
		return
	}
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	if s.cred != nil {
		// someone signed in while we were waiting
		s.mu.Unlock()
		return
	}
	s.cred = cred
	s.mu.Unlock()
	s.notify()
}

// Restore resumes a session from a token issued earlier by the provider.
func (s *SessionManager) Restore(ctx context.Context, token string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cred, err := s.Provider.Resolve(ctx, token)
	if err != nil {
		return err
	}
	s.set(cred)
	return nil
}

// LoginWithCredentials signs in with email and password. A rejected sign-in
// returns ErrInvalidCredentials and leaves the identity untouched.
func (s *SessionManager) LoginWithCredentials(ctx context.Context, email, password string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cred, err := s.Provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("email", email).Info("login rejected")
		}
		return fail(ErrInvalidCredentials, err)
	}
	s.set(cred)
	return nil
}

// Logout signs out and clears the identity. On failure the identity stays.
func (s *SessionManager) Logout(ctx context.Context) error {
	cur := s.Credential()
	if cur == nil {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.Provider.SignOut(ctx, cur); err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("uid", cur.Identity.ID).Warn("logout failed")
		}
		return fail(ErrLogoutFailed, err)
	}
	s.set(nil)
	return nil
}

// Close drops every subscriber.
func (s *SessionManager) Close() {
	s.mu.Lock()
	s.listeners = make(map[int]IdentityFunc)
	s.mu.Unlock()
}

func (s *SessionManager) set(cred *entity.Credential) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	s.cred = cred
	s.mu.Unlock()
	s.notify()
}

// notify must be called with emitMu held.
func (s *SessionManager) notify() {
	s.mu.Lock()
	current := s.currentLocked()
	fns := make([]IdentityFunc, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(cloneIdentity(current))
	}
}

func (s *SessionManager) currentLocked() *entity.Identity {
	if s.cred == nil {
		return nil
	}
	id := s.cred.Identity
	return &id
}

func (s *SessionManager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.Timeout)
}

func cloneIdentity(id *entity.Identity) *entity.Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
