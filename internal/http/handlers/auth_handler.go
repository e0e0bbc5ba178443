// Auth HTTP handlers.
//
// Endpoints for the mock phone login flow:
//   - PUT  /auth/phone       (set phone number)
//   - PUT  /auth/country     (set country dialing code)
//   - POST /auth/otp         (generate a one-time password)
//   - POST /auth/otp/verify  (verify a submitted password)
//   - POST /auth/logout      (reset the session)
//   - GET  /auth/session     (current session state)
//   - GET  /countries        (country directory with dialing codes)
//
// The login is simulated end to end: the generated OTP is returned in the
// response body instead of being delivered over SMS.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/avendal/go-chatroom-backend/internal/domain"
	"github.com/avendal/go-chatroom-backend/internal/services"
)

//
// DTOs
//

// SetPhoneRequest is the JSON payload for storing the phone number.
type SetPhoneRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

// SetCountryRequest is the JSON payload for storing the dialing code.
type SetCountryRequest struct {
	CountryCode string `json:"countryCode"`
}

// OTPResponse returns the generated code. A real deployment would deliver it
// out of band; the simulation hands it straight back.
type OTPResponse struct {
	OTP string `json:"otp"`
}

// VerifyOTPRequest is the JSON payload for verifying a one-time password.
type VerifyOTPRequest struct {
	OTP string `json:"otp"`
}

// CountriesResponse wraps the country directory.
type CountriesResponse struct {
	Countries []domain.Country `json:"countries"`
}

//
// Handlers
//

// SetPhone stores the phone number on the session. Non-digits are stripped
// server side, mirroring the input mask a dialer UI would apply.
func (h *Handlers) SetPhone(c *gin.Context) {
	var req SetPhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.authSvc.SetPhoneNumber(c.Request.Context(), strings.TrimSpace(req.PhoneNumber)); err != nil {
		if errors.Is(err, services.ErrInvalidPhone) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "phone number is too short")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, h.authSvc.Session(c.Request.Context()))
}

// SetCountry stores the country dialing code, e.g. "+91".
func (h *Handlers) SetCountry(c *gin.Context) {
	var req SetCountryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.authSvc.SetCountryCode(c.Request.Context(), strings.TrimSpace(req.CountryCode)); err != nil {
		if errors.Is(err, services.ErrInvalidCountryCode) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "country code must look like +NN")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, h.authSvc.Session(c.Request.Context()))
}

// RequestOTP generates a fresh four-digit code and marks the session as
// awaiting verification.
func (h *Handlers) RequestOTP(c *gin.Context) {
	code := h.authSvc.RequestOTP(c.Request.Context())
	ok(c, http.StatusOK, OTPResponse{OTP: code})
}

// VerifyOTP checks the submitted code against the one issued last.
func (h *Handlers) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.authSvc.VerifyOTP(c.Request.Context(), strings.TrimSpace(req.OTP)); err != nil {
		switch {
		case errors.Is(err, services.ErrOTPNotRequested):
			fail(c, http.StatusBadRequest, ErrCodeOTPNotRequested, "no OTP has been requested")
		case errors.Is(err, services.ErrOTPExpired):
			fail(c, http.StatusBadRequest, ErrCodeOTPExpired, "OTP has expired, request a new one")
		case errors.Is(err, services.ErrOTPMismatch):
			fail(c, http.StatusBadRequest, ErrCodeOTPMismatch, "OTP does not match")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, h.authSvc.Session(c.Request.Context()))
}

// Logout resets the session back to its defaults.
func (h *Handlers) Logout(c *gin.Context) {
	h.authSvc.Logout(c.Request.Context())
	noContent(c)
}

// GetSession returns the current session state.
func (h *Handlers) GetSession(c *gin.Context) {
	ok(c, http.StatusOK, h.authSvc.Session(c.Request.Context()))
}

// ListCountries returns the country directory, sorted by name.
func (h *Handlers) ListCountries(c *gin.Context) {
	ok(c, http.StatusOK, CountriesResponse{Countries: h.countries.List(c.Request.Context())})
}
