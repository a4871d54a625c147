package models

// CarrierWebhookPayload is the inbound SMS delivered by the carrier's
// webhook POST. Twilio sends form-encoded parameters; these are the
// fields the bridge consumes.
type CarrierWebhookPayload struct {
	MessageSID string
	From       string
	To         string
	Body       string
}

// Mesh event types delivered over the event stream
const (
	MeshEventMessageReceived = "message_received"
	MeshEventChannelMessage  = "channel_message"
	MeshEventNodeSeen        = "node_seen"
)

// MeshEvent is one event from the MeshCore integration's event stream.
// Only message_received events addressed to the configured bot identity
// are routed; everything else is ignored.
type MeshEvent struct {
	Type      string `json:"type"`
	Recipient string `json:"recipient"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}
