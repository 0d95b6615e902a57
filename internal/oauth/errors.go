package oauth

import (
	"errors"
	"fmt"
)

var (
	// ErrDiscovery wraps failures to load the provider's discovery document.
	ErrDiscovery = errors.New("failed to load discovery document")

	// ErrNotConfigured is returned when the client is used before Configure.
	ErrNotConfigured = errors.New("oauth client is not configured")

	// ErrNoRefreshToken is returned by Refresh when no refresh token is stored.
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrStateMismatch is returned when the authorization response does not
	// belong to the pending request.
	ErrStateMismatch = errors.New("state parameter mismatch")

	// ErrNonceMismatch is returned when the ID token was not issued for the
	// pending request.
	ErrNonceMismatch = errors.New("nonce mismatch in ID token")
)

// ProviderError is an error response from the authorization server.
type ProviderError struct {
	// Code is the OAuth error code, e.g. "access_denied".
	Code string

	// Description is the optional human-readable description.
	Description string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization failed: %s (%s)", e.Code, e.Description)
	}
	return fmt.Sprintf("authorization failed: %s", e.Code)
}
