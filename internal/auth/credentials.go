package auth

import (
	"crypto/subtle"
	"fmt"
)

// Credentials verifies the single configured username/password pair.
// The plaintext password never leaves the constructor.
type Credentials struct {
	username     string
	passwordHash string
}

// NewCredentials hashes the configured password for later verification.
func NewCredentials(username, password string) (*Credentials, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("auth: username and password are required")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing configured password: %w", err)
	}
	return &Credentials{username: username, passwordHash: hash}, nil
}

// Verify checks a login attempt.
// Returns ErrInvalidCredentials on any mismatch; it does not reveal
// whether the username or the password was wrong.
func (c *Credentials) Verify(username, password string) error {
	usernameOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1

	passwordOK, err := VerifyPassword(password, c.passwordHash)
	if err != nil {
		return fmt.Errorf("verifying password: %w", err)
	}

	if !usernameOK || !passwordOK {
		return ErrInvalidCredentials
	}
	return nil
}
