package validation

import (
	"fmt"
	"regexp"
	"strings"

	"meshgate/internal/constants"
	"meshgate/internal/errors"
)

// phoneRegex accepts E.164-like numbers: optional +, 7-15 digits, not
// starting with 0. The floor rejects short bare digit strings that are
// not dialable numbers.
var phoneRegex = regexp.MustCompile(`^\+?[1-9]\d{6,14}$`)

// ValidatePhoneNumber validates an E.164-like phone number.
func ValidatePhoneNumber(phone string) error {
	if phone == "" {
		return errors.New(errors.ErrCodeInvalidPhone, "phone number cannot be empty")
	}

	if !phoneRegex.MatchString(phone) {
		return errors.New(errors.ErrCodeInvalidPhone,
			fmt.Sprintf("invalid phone number format: %s", phone))
	}

	return nil
}

// IsHexIdentifier reports whether the identifier looks like a mesh node
// public-key prefix: at least 6 hexadecimal characters.
func IsHexIdentifier(id string) bool {
	if len(id) < constants.MinPubKeyPrefixLen {
		return false
	}
	for _, r := range strings.ToLower(id) {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// ValidateNodeIdentifier validates a mesh node identifier (a node name
// or a public-key prefix).
func ValidateNodeIdentifier(id string) error {
	if id == "" {
		return errors.New(errors.ErrCodeInvalidInput, "node identifier cannot be empty")
	}

	if len(id) > 64 {
		return errors.New(errors.ErrCodeInvalidInput, "node identifier too long (max 64 characters)")
	}

	for _, r := range id {
		if r == '\x00' || r == '\n' || r == '\r' {
			return errors.New(errors.ErrCodeInvalidInput, "node identifier contains invalid characters")
		}
	}

	return nil
}

// ValidateMessageBody validates a bridged message body.
func ValidateMessageBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return errors.New(errors.ErrCodeInvalidInput, "message body cannot be empty")
	}

	if len(body) > constants.MaxInboundBodyLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("message body too long (max %d characters)", constants.MaxInboundBodyLength))
	}

	return nil
}
