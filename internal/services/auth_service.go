// Package services – AuthService
//
// Mock phone/OTP login. The auth state container persists only the four
// session flags; the generated code lives here, in memory, for the lifetime
// of one request/verify exchange. There is no token, no signature, no real
// identity: verification flips a persisted boolean, faithful to the client
// this backend serves.
package services

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"go.opentelemetry.io/otel"

	"github.com/avendal/go-chatroom-backend/internal/domain"
	"github.com/avendal/go-chatroom-backend/internal/state"
)

// MinPhoneDigits is the minimum number of digits a phone number must carry.
const MinPhoneDigits = 7

var (
	countryCodeRE = regexp.MustCompile(`^\+\d{1,4}$`)
	nonDigitRE    = regexp.MustCompile(`\D`)
)

// AuthService owns the OTP exchange and fronts the auth state container.
type AuthService struct {
	State *state.Auth
	Log   zerolog.Logger

	// OTPTTL bounds how long an issued code stays verifiable.
	OTPTTL time.Duration

	// now is a seam for expiry tests.
	now func() time.Time

	mu       sync.Mutex
	code     string
	issuedAt time.Time
}

// NewAuthService constructs an AuthService with a 5 minute code TTL.
func NewAuthService(st *state.Auth, log zerolog.Logger) *AuthService {
	return &AuthService{
		State:  st,
		Log:    log,
		OTPTTL: 5 * time.Minute,
		now:    time.Now,
	}
}

// SetPhoneNumber validates and records the subscriber part. The stored
// number is the dialing code plus the digits, the shape the session blob
// has always carried.
func (a *AuthService) SetPhoneNumber(ctx context.Context, phone string) error {
	digits := nonDigitRE.ReplaceAllString(phone, "")
	if len(digits) < MinPhoneDigits {
		return ErrInvalidPhone
	}
	a.State.SetPhoneNumber(a.State.Session().CountryCode + digits)
	return nil
}

// SetCountryCode validates and records the dialing code.
func (a *AuthService) SetCountryCode(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if !countryCodeRE.MatchString(code) {
		return ErrInvalidCountryCode
	}
	a.State.SetCountryCode(code)
	return nil
}

// RequestOTP issues a fresh 4-digit code, marks the session, and returns
// the code so the mock transport (a toast, here a JSON field) can show it.
// Re-requesting replaces the previous code.
func (a *AuthService) RequestOTP(ctx context.Context) string {
	tr := otel.Tracer("services/AuthService")
	_, span := tr.Start(ctx, "RequestOTP")
	defer span.End()

	code := fmt.Sprintf("%04d", 1000+rand.Intn(9000))

	a.mu.Lock()
	a.code = code
	a.issuedAt = a.now()
	a.mu.Unlock()

	a.State.MarkOTPSent()
	a.Log.Info().Msg("OTP issued")
	return code
}

// VerifyOTP compares the submitted code against the issued one and flips
// the session to verified on match. The comparison is deliberately not part
// of the persisted contract: only the verified flag survives.
func (a *AuthService) VerifyOTP(ctx context.Context, submitted string) error {
	a.mu.Lock()
	code, issuedAt := a.code, a.issuedAt
	a.mu.Unlock()

	if code == "" {
		return ErrOTPNotRequested
	}
	if a.OTPTTL > 0 && a.now().Sub(issuedAt) > a.OTPTTL {
		return ErrOTPExpired
	}
	if strings.TrimSpace(submitted) != code {
		return ErrOTPMismatch
	}

	a.State.MarkVerified()
	a.Log.Info().Msg("OTP verified")
	return nil
}

// Logout discards any issued code and resets the session to defaults.
func (a *AuthService) Logout(ctx context.Context) {
	a.mu.Lock()
	a.code = ""
	a.issuedAt = time.Time{}
	a.mu.Unlock()
	a.State.Logout()
}

// Session returns the current session snapshot.
func (a *AuthService) Session(ctx context.Context) domain.AuthSession {
	return a.State.Session()
}
