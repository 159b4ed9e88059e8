package backend

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"axis-blue-backend/internal/localstate"
)

// AuthState is the sign-in indicator shown to the user.
type AuthState string

const (
	AuthNeedsConfig AuthState = "CFG"
	AuthSignedOut   AuthState = "OUT"
	AuthSignedIn    AuthState = "OK"
	AuthError       AuthState = "ERR"
)

// AuthStatus is a point-in-time view of the sign-in.
type AuthStatus struct {
	State     AuthState  `json:"state"`
	Email     string     `json:"email,omitempty"`
	UserID    string     `json:"user_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CheckedAt time.Time  `json:"checked_at"`
	Error     string     `json:"error,omitempty"`
}

// Auth holds the current session. The session is persisted locally so a
// restart keeps the user signed in.
type Auth struct {
	mu      sync.RWMutex
	storage Storage
	logger  *zap.Logger
	now     func() time.Time

	session   *Session
	state     AuthState
	lastErr   string
	checkedAt time.Time
}

// NewAuth restores a stored session, if any.
func NewAuth(storage Storage, logger *zap.Logger) *Auth {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Auth{storage: storage, logger: logger, now: time.Now, state: AuthSignedOut}
	var s Session
	found, err := storage.Load(localstate.KeyAuth, &s)
	if err != nil {
		logger.Warn("failed to read stored session", zap.Error(err))
	}
	if found && s.AccessToken != "" {
		a.session = &s
		// Unverified until the next poll.
		a.state = AuthError
		a.lastErr = "session not yet verified"
	}
	return a
}

// Token returns the current access token.
func (a *Auth) Token() (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil {
		return "", false
	}
	return a.session.AccessToken, true
}

// Set records a verified session. The stored copy is rewritten only when
// the session changed.
func (a *Auth) Set(s Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	changed := a.session == nil || *a.session != s
	a.session = &s
	a.mark(AuthSignedIn, "")
	if !changed {
		return
	}
	if err := a.storage.Save(localstate.KeyAuth, s); err != nil {
		a.logger.Error("failed to persist session", zap.Error(err))
	}
}

// Clear forgets the session.
func (a *Auth) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session = nil
	a.mark(AuthSignedOut, "")
	if err := a.storage.Delete(localstate.KeyAuth); err != nil {
		a.logger.Error("failed to delete stored session", zap.Error(err))
	}
}

// Mark records the outcome of a check without touching the session.
func (a *Auth) Mark(state AuthState, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	a.mark(state, msg)
}

func (a *Auth) mark(state AuthState, msg string) {
	if state != a.state {
		a.logger.Info("auth state changed", zap.String("from", string(a.state)), zap.String("to", string(state)))
	}
	a.state = state
	a.lastErr = msg
	a.checkedAt = a.now().UTC()
}

// Status returns the current indicator.
func (a *Auth) Status() AuthStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	st := AuthStatus{State: a.state, CheckedAt: a.checkedAt, Error: a.lastErr}
	if a.session != nil {
		st.Email = a.session.Email
		st.UserID = a.session.UserID
		if !a.session.ExpiresAt.IsZero() {
			exp := a.session.ExpiresAt
			st.ExpiresAt = &exp
		}
	}
	return st
}
