package auth

import "errors"

// Sentinel errors for every way a request can fail authentication.
// Middleware maps each onto a wire status; nothing else inspects them.
var (
	ErrNoToken      = errors.New("auth: no token presented")
	ErrNoSecret     = errors.New("auth: signing secret is not configured")
	ErrTokenRevoked = errors.New("auth: token has been revoked")
	ErrInvalidToken = errors.New("auth: token is invalid or expired")
	ErrUserNotFound = errors.New("auth: subject not in directory")
	ErrSuspended    = errors.New("auth: account is suspended")
)
