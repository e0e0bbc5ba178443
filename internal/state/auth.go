package state

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/avendal/go-chatroom-backend/internal/domain"
	"github.com/avendal/go-chatroom-backend/internal/store"
)

// Auth owns the single process-wide login session. Mutations persist the
// full session blob write-through, the same policy as the chat container.
// The generated OTP code itself is deliberately not part of this state; it
// is boundary-local and never persisted.
type Auth struct {
	mu      sync.Mutex
	session domain.AuthSession
	store   Persister
	log     zerolog.Logger
}

// NewAuth wraps an initial session (the caller substitutes the logged-out
// default on load failure). store may be nil for storage-free tests.
func NewAuth(initial domain.AuthSession, store Persister, log zerolog.Logger) *Auth {
	if initial.CountryCode == "" {
		initial = domain.NewAuthSession()
	}
	return &Auth{session: initial, store: store, log: log}
}

func (a *Auth) persist() {
	if a.store == nil {
		return
	}
	if err := a.store.Save(store.AuthStateKey, a.session); err != nil {
		a.log.Error().Err(err).Msg("persist auth state")
	}
}

// SetPhoneNumber records the full dialable number.
func (a *Auth) SetPhoneNumber(phone string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session.PhoneNumber = phone
	a.persist()
}

// SetCountryCode records the selected dialing code.
func (a *Auth) SetCountryCode(code string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session.CountryCode = code
	a.persist()
}

// MarkOTPSent flags that a code has been issued for this session.
func (a *Auth) MarkOTPSent() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session.IsOTPSent = true
	a.persist()
}

// MarkVerified flags the session as logged in.
func (a *Auth) MarkVerified() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session.IsVerified = true
	a.persist()
}

// Logout resets the session to the logged-out default and persists it.
func (a *Auth) Logout() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session = domain.NewAuthSession()
	a.persist()
}

// Session returns the current session snapshot.
func (a *Auth) Session() domain.AuthSession {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}
