package domain

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("a user with that email or username already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrRecipientNotFound  = errors.New("recipient not found")

	// ErrMessageNotFound covers both a missing message and a message owned by someone else.
	ErrMessageNotFound = errors.New("message not found or you are not the sender")

	ErrEmptyContent    = errors.New("message content cannot be empty")
	ErrMissingFields   = errors.New("all fields are required")
	ErrPasswordLength  = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")

	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenRevoked   = errors.New("token revoked")
	ErrMalformedClaim = errors.New("invalid user ID in token")

	ErrStoreUnavailable = errors.New("token store unavailable")
)
