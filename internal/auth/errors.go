package auth

import "errors"

// Sentinel errors for authentication operations. These are part of the
// Handler's public API and should be checked using errors.Is().
var (
	// ErrInvalidToken indicates the token is structurally invalid or its
	// signature does not verify.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired indicates a well-formed, correctly signed token whose
	// expiry is not strictly in the future.
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidCredentials indicates an unknown username or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnknownUser indicates the username has no credential record.
	ErrUnknownUser = errors.New("unknown user")
)
