package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"meshgate/internal/constants"
	"meshgate/internal/models"
	"meshgate/internal/validation"
)

var (
	ErrMissingFromNumber = models.ConfigError{Message: "missing gateway from number"}
	ErrMissingMeshURL    = models.ConfigError{Message: "missing MeshCore API URL"}
	ErrMissingDBPath     = models.ConfigError{Message: "missing database path"}
)

func LoadConfig(path string) (*models.Config, error) {
	file, err := os.ReadFile(path) // #nosec G304 - path comes from the -config flag
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	if err := validateSecurity(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Gateway.FromNumber == "" {
		return ErrMissingFromNumber
	}
	if err := validation.ValidatePhoneNumber(c.Gateway.FromNumber); err != nil {
		return models.ConfigError{Message: fmt.Sprintf("invalid gateway from number: %v", err)}
	}
	if c.MeshCore.APIBaseURL == "" {
		return ErrMissingMeshURL
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if c.Carrier.AccountSID == "" {
		return models.ConfigError{Message: "missing carrier account SID (set TWILIO_ACCOUNT_SID)"}
	}
	if c.Carrier.AuthToken == "" {
		return models.ConfigError{Message: "missing carrier auth token (set TWILIO_AUTH_TOKEN)"}
	}

	if c.Gateway.BotName == "" {
		c.Gateway.BotName = constants.DefaultBotName
	}
	if c.Gateway.DailyLimit <= 0 {
		c.Gateway.DailyLimit = constants.DefaultDailyLimit
	}
	if c.Gateway.HistorySize <= 0 {
		c.Gateway.HistorySize = constants.DefaultHistorySize
	}
	if c.Gateway.MeshChannelIndex < 0 {
		return models.ConfigError{Message: "mesh channel index cannot be negative"}
	}
	if c.Carrier.APIBaseURL == "" {
		c.Carrier.APIBaseURL = constants.DefaultCarrierAPIBaseURL
	}
	if c.MeshCore.EventsURL == "" {
		c.MeshCore.ListenerEnabled = false
	}
	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}

	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if sid := os.Getenv("TWILIO_ACCOUNT_SID"); sid != "" {
		c.Carrier.AccountSID = sid
	}
	if token := os.Getenv("TWILIO_AUTH_TOKEN"); token != "" {
		c.Carrier.AuthToken = token
	}
	if url := os.Getenv("MESHCORE_API_URL"); url != "" {
		c.MeshCore.APIBaseURL = url
	}
	if url := os.Getenv("MESHCORE_EVENTS_URL"); url != "" {
		c.MeshCore.EventsURL = url
	}
	if path := os.Getenv("MESHGATE_DB_PATH"); path != "" {
		c.Database.Path = path
	}
	// SECURITY: the webhook secret should be set via environment
	if secret := os.Getenv("MESHGATE_WEBHOOK_SECRET"); secret != "" {
		c.Server.WebhookSecret = secret
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
}

// validateSecurity performs security-specific validation
func validateSecurity(c *models.Config) error {
	isProduction := os.Getenv("MESHGATE_ENV") == "production"

	if isProduction {
		if c.Server.WebhookSecret == "" {
			return models.ConfigError{Message: "webhook secret is required in production (set MESHGATE_WEBHOOK_SECRET environment variable)"}
		}
		if len(c.Server.WebhookSecret) < 32 {
			return models.ConfigError{Message: "webhook secret must be at least 32 characters long"}
		}
		if c.LogLevel == "debug" {
			return models.ConfigError{Message: "debug logging should not be used in production (security risk)"}
		}
		if c.Server.PublicURL == "" {
			return models.ConfigError{Message: "public URL is required in production for carrier signature validation"}
		}
	} else {
		if c.Server.WebhookSecret == "" {
			fmt.Fprintf(os.Stderr, "WARNING: webhook secret not set. Set MESHGATE_WEBHOOK_SECRET environment variable for security.\n")
		}
	}

	return nil
}
