package types

import "fmt"

// ErrorKind classifies carrier failures so callers can branch on the
// failure class instead of matching error text.
type ErrorKind string

const (
	ErrorKindAuth             ErrorKind = "auth"
	ErrorKindInvalidRecipient ErrorKind = "invalid_recipient"
	ErrorKindRateLimited      ErrorKind = "rate_limited"
	ErrorKindAPI              ErrorKind = "api"
	ErrorKindNetwork          ErrorKind = "network"
)

// Error is a typed carrier failure.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	APICode    int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.APICode != 0 {
		return fmt.Sprintf("carrier error (%s, code %d): %s", e.Kind, e.APICode, e.Message)
	}
	return fmt.Sprintf("carrier error (%s): %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the carrier error kind, or ErrorKindAPI for untyped errors.
func KindOf(err error) ErrorKind {
	if cerr, ok := err.(*Error); ok {
		return cerr.Kind
	}
	return ErrorKindAPI
}

// ClientConfig holds the settings for a carrier client.
type ClientConfig struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	TimeoutSec int
}

// SendMessageRequest carries one outbound SMS.
type SendMessageRequest struct {
	From string
	To   string
	Body string
}

// SendMessageResponse is the carrier's acknowledgement of an accepted message.
type SendMessageResponse struct {
	MessageSID string `json:"sid"`
	Status     string `json:"status"`
}

// APIMessage mirrors Twilio's Messages resource response body.
type APIMessage struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	// Error response fields
	Code    int    `json:"code"`
	Message string `json:"message"`
}
