// Package handlers defines HTTP-layer error codes used across all API
// endpoints. Codes are lowercase snake_case; generic ones mirror common HTTP
// status semantics, domain-specific ones cover cases status alone cannot
// convey (a throttled send is not just any 429).
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeReplyPending     = "reply_pending"
	ErrCodeOTPMismatch      = "otp_mismatch"
	ErrCodeOTPNotRequested  = "otp_not_requested"
	ErrCodeOTPExpired       = "otp_expired"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
