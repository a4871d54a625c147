package meshcore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"meshgate/internal/constants"
	"meshgate/internal/privacy"
	"meshgate/pkg/meshcore/types"

	"github.com/sirupsen/logrus"
)

type Client interface {
	SendToNode(ctx context.Context, nodeID, message string) error
	SendToPubKey(ctx context.Context, pubkeyPrefix, message string) error
	SendToChannel(ctx context.Context, channelIndex int, message string) error
}

type MeshClient struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Logger
}

func NewClient(cfg types.ClientConfig) Client {
	return NewClientWithLogger(cfg, nil)
}

func NewClientWithLogger(cfg types.ClientConfig, logger *logrus.Logger) Client {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	timeout := cfg.TimeoutSec
	if timeout <= 0 {
		timeout = constants.DefaultMeshTimeoutSec
	}

	return &MeshClient{
		baseURL: strings.TrimSuffix(cfg.APIBaseURL, "/"),
		client:  &http.Client{Timeout: time.Duration(timeout) * time.Second},
		logger:  logger,
	}
}

// SendToNode delivers a direct message to a mesh node by its name.
func (c *MeshClient) SendToNode(ctx context.Context, nodeID, message string) error {
	payload := types.SendMessageRequest{
		NodeID:  nodeID,
		Message: message,
	}

	c.logger.WithField("node_id", privacy.MaskNodeID(nodeID)).Debug("Sending mesh direct message")
	return c.post(ctx, "/api/v1/messages", payload)
}

// SendToPubKey delivers a direct message to a mesh node addressed by a
// public-key prefix. Prefixes longer than the wire limit are truncated.
func (c *MeshClient) SendToPubKey(ctx context.Context, pubkeyPrefix, message string) error {
	if len(pubkeyPrefix) > constants.PubKeyPrefixSendLen {
		pubkeyPrefix = pubkeyPrefix[:constants.PubKeyPrefixSendLen]
	}

	payload := types.SendMessageRequest{
		PubKeyPrefix: strings.ToLower(pubkeyPrefix),
		Message:      message,
	}

	c.logger.WithField("pubkey_prefix", payload.PubKeyPrefix).Debug("Sending mesh message by pubkey prefix")
	return c.post(ctx, "/api/v1/messages", payload)
}

// SendToChannel broadcasts a message on a mesh channel.
func (c *MeshClient) SendToChannel(ctx context.Context, channelIndex int, message string) error {
	payload := types.SendChannelRequest{
		ChannelIndex: channelIndex,
		Message:      message,
	}

	c.logger.WithField("channel", channelIndex).Debug("Broadcasting mesh channel message")
	return c.post(ctx, fmt.Sprintf("/api/v1/channels/%d/messages", channelIndex), payload)
}

func (c *MeshClient) post(ctx context.Context, endpoint string, payload interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return &types.Error{Kind: types.ErrorKindAPI, Message: "failed to marshal payload", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return &types.Error{Kind: types.ErrorKindAPI, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &types.Error{Kind: types.ErrorKindNetwork, Message: "failed to reach mesh integration", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &types.Error{
			Kind:       types.ErrorKindNotFound,
			StatusCode: resp.StatusCode,
			Message:    "recipient not found",
		}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &types.Error{
			Kind:       types.ErrorKindAPI,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("mesh API error: status %d, body: %s", resp.StatusCode, string(bodyBytes)),
		}
	}

	var result types.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return &types.Error{Kind: types.ErrorKindAPI, Message: "failed to decode response", Cause: err}
	}

	if !result.Success {
		kind := types.ErrorKindAPI
		if result.Code == types.APICodeNodeNotFound {
			kind = types.ErrorKindNotFound
		}
		return &types.Error{
			Kind:       kind,
			StatusCode: resp.StatusCode,
			Message:    result.Error,
		}
	}

	return nil
}
