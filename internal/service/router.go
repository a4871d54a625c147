package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"meshgate/internal/constants"
	"meshgate/internal/models"
	"meshgate/internal/privacy"
	"meshgate/internal/validation"
	"meshgate/pkg/carrier"
	carriertypes "meshgate/pkg/carrier/types"
	"meshgate/pkg/meshcore"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Reply templates for the bot command path.
const (
	replyInvalidFormat = "❌ Invalid format. Use: SMS <phone> <message>\nExample: SMS +1234567890 Hello world"
	replySendFailed    = "❌ Failed to send SMS. Please try again."
	replyNoHistory     = "No recent messages"

	confirmationBody = "Message delivered to MeshCore network"
)

// CommandRouter interprets incoming text payloads from either side of
// the bridge and dispatches sends to the carrier or the mesh.
type CommandRouter struct {
	cfg     models.GatewayConfig
	carrier carrier.Client
	mesh    meshcore.Client
	usage   *UsageTracker
	logger  *logrus.Logger

	// Serializes routed commands: counters and history have a single
	// writer even when webhook and event deliveries overlap.
	mu sync.Mutex

	now func() time.Time
}

func NewCommandRouter(cfg models.GatewayConfig, carrierClient carrier.Client, meshClient meshcore.Client, usage *UsageTracker, logger *logrus.Logger) *CommandRouter {
	return &CommandRouter{
		cfg:     cfg,
		carrier: carrierClient,
		mesh:    meshClient,
		usage:   usage,
		logger:  logger,
		now:     time.Now,
	}
}

// HandleMeshEvent processes one event from the mesh event stream. Events
// not addressed to the configured bot identity are ignored.
func (r *CommandRouter) HandleMeshEvent(ctx context.Context, event *models.MeshEvent) error {
	if event.Type != models.MeshEventMessageReceived {
		return nil
	}
	if event.Recipient != r.cfg.BotName {
		return nil
	}

	text := strings.TrimSpace(event.Text)
	if text == "" || event.Sender == "" {
		return nil
	}

	r.mu.Lock()
	reply := r.routeCommand(ctx, event.Sender, text)
	r.mu.Unlock()

	if reply == "" {
		return nil
	}

	if err := r.mesh.SendToNode(ctx, event.Sender, reply); err != nil {
		r.logger.WithError(err).WithField("sender_id", privacy.MaskNodeID(event.Sender)).
			Error("Failed to deliver command reply to mesh")
		return err
	}
	return nil
}

// routeCommand parses a bot command and returns the reply text.
// Caller holds r.mu.
func (r *CommandRouter) routeCommand(ctx context.Context, senderID, text string) string {
	cmd := strings.ToUpper(strings.Fields(text)[0])

	switch cmd {
	case "HELP", "?":
		return r.helpReply(senderID)
	case "STATUS":
		return r.statusReply(senderID)
	case "LIST":
		return r.historyReply()
	case "SMS":
		return r.handleSMSCommand(ctx, senderID, text)
	default:
		return fmt.Sprintf("Unknown command '%s'. Send HELP for commands.", cmd)
	}
}

func (r *CommandRouter) helpReply(senderID string) string {
	used, limit := r.usage.Usage(senderID)

	var b strings.Builder
	b.WriteString("📱 SMS Gateway Commands:\n\n")
	b.WriteString("• HELP - Show available commands\n")
	b.WriteString("• SMS <phone> <message> - Send SMS\n")
	b.WriteString("• STATUS - Check gateway status\n")
	b.WriteString("• LIST - Show recent messages\n")
	fmt.Fprintf(&b, "\nDaily limit: %d messages", limit)
	fmt.Fprintf(&b, "\nUsed today: %d", used)
	return b.String()
}

func (r *CommandRouter) statusReply(senderID string) string {
	used, limit := r.usage.Usage(senderID)
	broadcast := "❌"
	if r.cfg.EnableBroadcast {
		broadcast = "✅"
	}

	return fmt.Sprintf(
		"📊 Gateway Status\n"+
			"Status: ✅ Online\n"+
			"Phone: %s\n"+
			"Messages today: %d\n"+
			"Your usage: %d/%d\n"+
			"Broadcast: %s",
		r.cfg.FromNumber, r.usage.TotalToday(), used, limit, broadcast)
}

func (r *CommandRouter) historyReply() string {
	entries := r.usage.RecentHistory(constants.HistoryListCount)
	if len(entries) == 0 {
		return replyNoHistory
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📜 Recent Messages (last %d):\n\n", constants.HistoryListCount)
	for _, entry := range entries {
		arrow := "←"
		if entry.Direction == models.DirectionOutbound {
			arrow = "→"
		}
		body := entry.Body
		if runes := []rune(body); len(runes) > constants.HistoryBodyPreview {
			body = string(runes[:constants.HistoryBodyPreview])
		}
		fmt.Fprintf(&b, "%s %s %s: %s...\n",
			entry.Timestamp.UTC().Format("15:04"), arrow, privacy.PhoneSuffix(entry.Counterpart), body)
	}
	return b.String()
}

// handleSMSCommand handles `SMS <phone> <message...>` from a mesh user.
func (r *CommandRouter) handleSMSCommand(ctx context.Context, senderID, text string) string {
	parts := splitArgs(text, 3)
	if len(parts) < 3 {
		return replyInvalidFormat
	}
	phone, smsBody := parts[1], parts[2]

	if err := validation.ValidatePhoneNumber(phone); err != nil {
		r.logger.WithField("sender_id", privacy.MaskNodeID(senderID)).Info("Rejected SMS command with invalid phone")
		return fmt.Sprintf("❌ Invalid phone number format: %s", phone)
	}

	if !r.usage.CheckAndReserve(senderID) {
		_, limit := r.usage.Usage(senderID)
		return fmt.Sprintf("⚠️ Daily limit reached (%d messages)", limit)
	}

	body := fmt.Sprintf("[MeshCore:%s] %s", senderPrefix(senderID), smsBody)
	resp, err := r.carrier.Send(ctx, carriertypes.SendMessageRequest{
		From: r.cfg.FromNumber,
		To:   phone,
		Body: body,
	})
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"sender_id": privacy.MaskNodeID(senderID),
			"to":        privacy.MaskPhoneForLog(phone),
			"kind":      carriertypes.KindOf(err),
		}).Error("Carrier send failed")
		return replySendFailed
	}

	r.usage.RecordHistory(models.HistoryEntry{
		Timestamp:     r.now().UTC(),
		Direction:     models.DirectionOutbound,
		Counterpart:   phone,
		Body:          smsBody,
		CorrelationID: resp.MessageSID,
	})
	r.saveState(ctx)

	r.logger.WithFields(logrus.Fields{
		"sender_id": privacy.MaskNodeID(senderID),
		"to":        privacy.MaskPhoneForLog(phone),
		"sid":       resp.MessageSID,
	}).Info("SMS sent")

	return fmt.Sprintf("✅ SMS sent to %s", privacy.MaskPhoneNumber(phone))
}

// HandleInboundSMS routes one inbound SMS toward the mesh. Failures are
// logged only: the carrier webhook is acknowledged regardless, so there
// is no user-visible error channel here.
func (r *CommandRouter) HandleInboundSMS(ctx context.Context, payload *models.CarrierWebhookPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()

	correlationID := payload.MessageSID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	// Every inbound SMS lands in history, whatever the routing outcome.
	r.usage.RecordHistory(models.HistoryEntry{
		Timestamp:     r.now().UTC(),
		Direction:     models.DirectionInbound,
		Counterpart:   payload.From,
		Body:          payload.Body,
		CorrelationID: correlationID,
	})
	defer r.saveState(ctx)

	recipient, message := parseInboundRecipient(payload.Body)
	forwarded := fmt.Sprintf("SMS from %s: %s", privacy.PhoneSuffix(payload.From), message)

	delivered := false
	switch {
	case recipient == "":
		if !r.cfg.EnableBroadcast {
			r.logger.WithField("from", privacy.MaskPhoneForLog(payload.From)).
				Info("Broadcast disabled, dropping SMS without @recipient")
			return
		}
		if err := r.mesh.SendToChannel(ctx, r.cfg.MeshChannelIndex, forwarded); err != nil {
			r.logger.WithError(err).WithField("channel", r.cfg.MeshChannelIndex).
				Error("Failed to broadcast inbound SMS to mesh channel")
		} else {
			delivered = true
		}
	default:
		delivered = r.deliverToNode(ctx, recipient, forwarded)
	}

	if delivered && r.cfg.DeliveryConfirmation {
		if _, err := r.carrier.Send(ctx, carriertypes.SendMessageRequest{
			From: r.cfg.FromNumber,
			To:   payload.From,
			Body: confirmationBody,
		}); err != nil {
			r.logger.WithError(err).Warn("Failed to send delivery confirmation SMS")
		}
	}
}

// deliverToNode tries a direct node-name send, then falls back to a
// public-key-prefix send when the identifier looks like hex.
func (r *CommandRouter) deliverToNode(ctx context.Context, recipient, message string) bool {
	err := r.mesh.SendToNode(ctx, recipient, message)
	if err == nil {
		return true
	}

	if validation.IsHexIdentifier(recipient) {
		r.logger.WithError(err).WithField("recipient", privacy.MaskNodeID(recipient)).
			Debug("Node-name send failed, retrying as pubkey prefix")
		retryErr := r.mesh.SendToPubKey(ctx, recipient, message)
		if retryErr == nil {
			return true
		}
		err = retryErr
	}

	r.logger.WithError(err).WithField("recipient", privacy.MaskNodeID(recipient)).
		Error("Could not deliver inbound SMS to mesh node")
	return false
}

// SendSMS sends an operator-initiated SMS (the /api/send path). It is
// subject to phone validation but not to per-sender rate limits.
func (r *CommandRouter) SendSMS(ctx context.Context, phone, message string) (string, error) {
	if err := validation.ValidatePhoneNumber(phone); err != nil {
		return "", err
	}
	if err := validation.ValidateMessageBody(message); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	resp, err := r.carrier.Send(ctx, carriertypes.SendMessageRequest{
		From: r.cfg.FromNumber,
		To:   phone,
		Body: fmt.Sprintf("[MeshCore:%s] %s", "api", message),
	})
	if err != nil {
		return "", err
	}

	r.usage.RecordHistory(models.HistoryEntry{
		Timestamp:     r.now().UTC(),
		Direction:     models.DirectionOutbound,
		Counterpart:   phone,
		Body:          message,
		CorrelationID: resp.MessageSID,
	})
	r.saveState(ctx)

	return resp.MessageSID, nil
}

// saveState persists the usage snapshot; persistence failures are
// non-fatal and the in-memory state stays authoritative.
func (r *CommandRouter) saveState(ctx context.Context) {
	if err := r.usage.Save(ctx); err != nil {
		r.logger.WithError(err).Warn("Failed to persist gateway state")
	}
}

// senderPrefix normalizes a mesh sender identifier for the SMS body tag.
func senderPrefix(senderID string) string {
	if senderID == "system" {
		return "System"
	}
	senderID = strings.TrimPrefix(senderID, "@")
	if len(senderID) > constants.SenderPrefixMaxLen {
		senderID = senderID[:constants.SenderPrefixMaxLen]
	}
	return senderID
}

// parseInboundRecipient splits an inbound SMS body into a mesh recipient
// and the message. A body without a leading @token (or with nothing
// after it) is a broadcast candidate: recipient is empty and the whole
// body is the message.
func parseInboundRecipient(body string) (recipient, message string) {
	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, "@") {
		return "", body
	}

	parts := splitArgs(body, 2)
	if len(parts) < 2 {
		return "", body
	}
	return strings.TrimPrefix(parts[0], "@"), parts[1]
}

// splitArgs splits text on runs of whitespace into at most n+1 fields,
// preserving the remainder after the nth split verbatim (modulo leading
// whitespace).
func splitArgs(text string, n int) []string {
	var parts []string
	rest := strings.TrimSpace(text)
	for i := 0; i < n-1 && rest != ""; i++ {
		idx := strings.IndexFunc(rest, isSpace)
		if idx < 0 {
			break
		}
		parts = append(parts, rest[:idx])
		rest = strings.TrimLeftFunc(rest[idx:], isSpace)
	}
	if rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
