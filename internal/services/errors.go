// Package services defines the application logic for chatrooms, messages,
// the simulated responder flow, and the mock OTP login. This file
// centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

// Chat-related errors.
var (
	// ErrRoomNotFound indicates that the requested chatroom is not listed.
	ErrRoomNotFound = errors.New("chatroom not found")

	// ErrEmptyMessage is returned when a send request carries no text.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrMessageTooLong is returned when a send request exceeds the maximum
	// configured rune length.
	ErrMessageTooLong = errors.New("message too long")

	// ErrEmptyImage is returned when an image send carries no payload.
	ErrEmptyImage = errors.New("image is empty")

	// ErrReplyPending is returned when a text send arrives while a simulated
	// reply is still outstanding for the room. The send is dropped, not
	// queued.
	ErrReplyPending = errors.New("reply pending for this chatroom")

	// ErrHistoryExhausted is returned when a room has no more simulated
	// older pages for this session.
	ErrHistoryExhausted = errors.New("no more history")
)

// Auth-related errors.
var (
	// ErrInvalidPhone is returned when a phone number has fewer than the
	// minimum number of digits.
	ErrInvalidPhone = errors.New("phone number is too short")

	// ErrInvalidCountryCode is returned when a dialing code is not of the
	// form "+<1-4 digits>".
	ErrInvalidCountryCode = errors.New("invalid country code")

	// ErrOTPNotRequested is returned when verification is attempted before
	// any code was issued.
	ErrOTPNotRequested = errors.New("no OTP requested")

	// ErrOTPMismatch is returned when the submitted code does not match the
	// issued one.
	ErrOTPMismatch = errors.New("incorrect OTP")

	// ErrOTPExpired is returned when the issued code is past its TTL.
	ErrOTPExpired = errors.New("OTP expired")
)
