package hub

import (
	"errors"
	"fmt"
)

// ErrAuthFailed indicates the hub rejected the access token. This is fatal
// at startup; the reconnect loop keeps retrying in case the token is
// updated on the hub side.
var ErrAuthFailed = errors.New("hub authentication failed")

// ErrConnectionLost indicates the websocket dropped while a request was in
// flight. The request was not answered; callers retry at a higher layer.
var ErrConnectionLost = errors.New("hub connection lost")

// ErrNotConnected indicates a request was issued while no connection is
// established. The reconnect loop is already working on it.
var ErrNotConnected = errors.New("not connected to hub")

// ErrTimeout indicates a request did not receive a matching response within
// the per-request timeout.
var ErrTimeout = errors.New("hub request timed out")

// ErrClosed indicates the client has been shut down.
var ErrClosed = errors.New("hub client closed")

// CommandError is a command-level failure reported by the hub in an
// otherwise well-formed result envelope (success=false).
type CommandError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *CommandError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("hub command failed (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("hub command failed: %s", e.Message)
}

// RegistryError indicates a registry query was rejected or returned a shape
// we could not decode. Non-fatal: the caller treats the cycle as "no goals
// discoverable" and keeps serving the previous snapshot.
type RegistryError struct {
	Op  string
	Err error
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("registry %s: %v", e.Op, e.Err)
}

func (e *RegistryError) Unwrap() error { return e.Err }
