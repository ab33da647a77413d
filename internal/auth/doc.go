// Package auth issues and verifies access tokens for the dashboard API.
//
// The deployment model is a single household: one set of credentials
// from the configuration file, hashed at startup, exchanged for a
// short-lived HS256 JWT at /auth/login and verified by middleware on
// every protected route.
package auth
