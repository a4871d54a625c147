package types

import "fmt"

// ErrorKind classifies mesh send failures.
type ErrorKind string

const (
	ErrorKindNotFound ErrorKind = "not_found"
	ErrorKindAPI      ErrorKind = "api"
	ErrorKindNetwork  ErrorKind = "network"
)

// Error is a typed mesh integration failure.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("mesh error (%s): %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsNotFound reports whether err is a mesh not-found failure.
func IsNotFound(err error) bool {
	merr, ok := err.(*Error)
	return ok && merr.Kind == ErrorKindNotFound
}

// ClientConfig holds the settings for a mesh client.
type ClientConfig struct {
	APIBaseURL string
	TimeoutSec int
}

// SendMessageRequest is the payload for a direct node send. Exactly one
// of NodeID or PubKeyPrefix is set.
type SendMessageRequest struct {
	NodeID       string `json:"node_id,omitempty"`
	PubKeyPrefix string `json:"pubkey_prefix,omitempty"`
	Message      string `json:"message"`
}

// SendChannelRequest is the payload for a channel broadcast.
type SendChannelRequest struct {
	ChannelIndex int    `json:"channel_idx"`
	Message      string `json:"message"`
}

// API error codes returned in the response envelope.
const (
	APICodeNodeNotFound = "node_not_found"
)

// APIResponse is the mesh integration's generic response envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}
