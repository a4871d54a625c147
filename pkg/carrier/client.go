package carrier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"meshgate/internal/constants"
	"meshgate/internal/privacy"
	"meshgate/pkg/carrier/types"

	"github.com/sirupsen/logrus"
)

// Twilio error codes the bridge cares about.
const (
	apiCodeInvalidTo       = 21211
	apiCodeUnreachable     = 21214
	apiCodeTooManyRequests = 20429
)

type Client interface {
	Send(ctx context.Context, req types.SendMessageRequest) (*types.SendMessageResponse, error)
}

type TwilioClient struct {
	baseURL    string
	accountSID string
	authToken  string
	client     *http.Client
	logger     *logrus.Logger
}

func NewClient(cfg types.ClientConfig) Client {
	return NewClientWithLogger(cfg, nil)
}

func NewClientWithLogger(cfg types.ClientConfig, logger *logrus.Logger) Client {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = constants.DefaultCarrierAPIBaseURL
	}

	timeout := cfg.TimeoutSec
	if timeout <= 0 {
		timeout = constants.DefaultCarrierTimeoutSec
	}

	return &TwilioClient{
		baseURL:    baseURL,
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		client:     &http.Client{Timeout: time.Duration(timeout) * time.Second},
		logger:     logger,
	}
}

// Send submits one SMS to the carrier's Messages endpoint.
func (c *TwilioClient) Send(ctx context.Context, req types.SendMessageRequest) (*types.SendMessageResponse, error) {
	endpoint := fmt.Sprintf("%s/%s/Accounts/%s/Messages.json",
		c.baseURL, constants.CarrierAPIVersion, url.PathEscape(c.accountSID))

	form := url.Values{}
	form.Set("From", req.From)
	form.Set("To", req.To)
	form.Set("Body", req.Body)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &types.Error{
			Kind:    types.ErrorKindAPI,
			Message: "failed to create request",
			Cause:   err,
		}
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(c.accountSID, c.authToken)

	c.logger.WithFields(logrus.Fields{
		"to":   privacy.MaskPhoneForLog(req.To),
		"from": privacy.MaskPhoneForLog(req.From),
	}).Debug("Sending SMS via carrier")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &types.Error{
			Kind:    types.ErrorKindNetwork,
			Message: "failed to reach carrier API",
			Cause:   err,
		}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.Error{
			Kind:       types.ErrorKindNetwork,
			StatusCode: resp.StatusCode,
			Message:    "failed to read carrier response",
			Cause:      err,
		}
	}

	var apiMsg types.APIMessage
	if err := json.Unmarshal(bodyBytes, &apiMsg); err != nil {
		return nil, &types.Error{
			Kind:       types.ErrorKindAPI,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to decode carrier response: %s", string(bodyBytes)),
			Cause:      err,
		}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, c.classifyError(resp.StatusCode, &apiMsg)
	}

	return &types.SendMessageResponse{
		MessageSID: apiMsg.SID,
		Status:     apiMsg.Status,
	}, nil
}

func (c *TwilioClient) classifyError(statusCode int, apiMsg *types.APIMessage) *types.Error {
	kind := types.ErrorKindAPI
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		kind = types.ErrorKindAuth
	case apiMsg.Code == apiCodeInvalidTo || apiMsg.Code == apiCodeUnreachable:
		kind = types.ErrorKindInvalidRecipient
	case statusCode == http.StatusTooManyRequests || apiMsg.Code == apiCodeTooManyRequests:
		kind = types.ErrorKindRateLimited
	}

	return &types.Error{
		Kind:       kind,
		StatusCode: statusCode,
		APICode:    apiMsg.Code,
		Message:    apiMsg.Message,
	}
}
