package auth

import "errors"

var (
	ErrNotFound           = errors.New("auth: not found")
	ErrConflict           = errors.New("auth: already exists")
	ErrInvalidInput       = errors.New("auth: invalid input")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrUnauthorized       = errors.New("auth: unauthorized")
	ErrForbidden          = errors.New("auth: forbidden")
)

// Token verification failures. Callers collapse all three into a generic
// unauthorized response; the distinction exists for internal diagnostics.
var (
	ErrTokenExpired   = errors.New("auth: token expired")
	ErrTokenSignature = errors.New("auth: token signature invalid")
	ErrTokenMalformed = errors.New("auth: token malformed")
)
