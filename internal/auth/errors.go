package auth

import "errors"

var (
	// ErrTokenInvalid is returned when a token fails signature, expiry,
	// or claim validation.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrInvalidCredentials is returned when a login attempt fails.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)
