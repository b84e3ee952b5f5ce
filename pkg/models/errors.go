package models

import "errors"

// Error taxonomy shared across the relay. Handlers map these onto HTTP status
// codes with errors.Is; services wrap them with context via fmt.Errorf("...: %w").
var (
	// ErrValidation indicates malformed or missing caller input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates an unknown device name or an unknown/expired
	// authorization code. Expired codes are deliberately indistinguishable
	// from unknown ones.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a duplicate device name.
	ErrConflict = errors.New("already exists")

	// ErrUnauthorized indicates a bad bearer token or a bad handshake signature.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConnect indicates the remote device was unreachable or rejected the
	// connection. Inside execute/status paths it becomes a success=false
	// Result rather than an HTTP error.
	ErrConnect = errors.New("connection failed")

	// ErrVault indicates the credential vault could not load its key or the
	// ciphertext failed authentication. Never recovered from silently.
	ErrVault = errors.New("vault failure")
)
