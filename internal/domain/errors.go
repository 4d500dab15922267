package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidID          = errors.New("invalid id")
	ErrUnauthorized       = errors.New("authentication required")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrBadEmailDomain     = errors.New("email must belong to the university domain")
	ErrResendThrottled    = errors.New("verification code requested too recently")
	ErrCodeExpired        = errors.New("verification code expired")
	ErrCodeMismatch       = errors.New("verification code does not match")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)
