package privacy

import (
	"strings"
)

// MaskPhoneNumber masks a phone number for user-facing confirmations,
// keeping the first 3 and last 4 digits.
// Example: "+15551234567" -> "+15***4567"
func MaskPhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}

	if len(phone) <= 7 {
		return strings.Repeat("*", len(phone))
	}

	return phone[:3] + "***" + phone[len(phone)-4:]
}

// MaskPhoneForLog masks a phone number for log output, keeping only the
// last 4 digits.
// Example: "+15551234567" -> "********4567"
func MaskPhoneForLog(phone string) string {
	if phone == "" {
		return ""
	}

	if len(phone) <= 4 {
		return strings.Repeat("*", len(phone))
	}

	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

// PhoneSuffix returns the last 4 digits of a phone number, used when
// identifying an SMS sender to mesh users without exposing the full
// number over the radio.
func PhoneSuffix(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return phone[len(phone)-4:]
}

// MaskNodeID masks a mesh node identifier, keeping the last 4 characters.
func MaskNodeID(nodeID string) string {
	if nodeID == "" {
		return ""
	}

	if len(nodeID) <= 4 {
		return strings.Repeat("*", len(nodeID))
	}

	return strings.Repeat("*", len(nodeID)-4) + nodeID[len(nodeID)-4:]
}

// MaskSensitiveFields applies appropriate masking to common logging fields.
func MaskSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	masked := make(map[string]interface{})
	for k, v := range fields {
		switch k {
		case "phone", "phone_number", "from", "to", "counterpart":
			if s, ok := v.(string); ok {
				masked[k] = MaskPhoneForLog(s)
			} else {
				masked[k] = v
			}
		case "node_id", "nodeId", "recipient", "sender_id":
			if s, ok := v.(string); ok {
				masked[k] = MaskNodeID(s)
			} else {
				masked[k] = v
			}
		default:
			masked[k] = v
		}
	}

	return masked
}
