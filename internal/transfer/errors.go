package transfer

import (
	"errors"
	"fmt"
)

// ErrSessionNotReady is returned when an operation is attempted on a session
// that is not in the Ready state.
var ErrSessionNotReady = errors.New("transfer session not ready")

// ConnectionError means the remote endpoint could not be reached or the
// control channel could not be set up.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthError means the server rejected the configured credentials.
type AuthError struct {
	User string
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("login as %s rejected: %v", e.User, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// PermissionError records a remote directory segment that could neither be
// entered nor created. Provisioning continues past it best-effort; the error
// is surfaced, not swallowed.
type PermissionError struct {
	Segment string
	Err     error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("remote dir %q: %v", e.Segment, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// LocalReadError means a local file could not be opened for upload.
type LocalReadError struct {
	Path string
	Err  error
}

func (e *LocalReadError) Error() string {
	return fmt.Sprintf("read local file %s: %v", e.Path, e.Err)
}

func (e *LocalReadError) Unwrap() error { return e.Err }
