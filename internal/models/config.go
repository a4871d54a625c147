package models

// Config holds the application configuration
type Config struct {
	Gateway  GatewayConfig  `json:"gateway"`
	Carrier  CarrierConfig  `json:"carrier"`
	MeshCore MeshCoreConfig `json:"meshcore"`
	Database DatabaseConfig `json:"database"`
	Server   ServerConfig   `json:"server"`
	Tracing  TracingConfig  `json:"tracing"`
	LogLevel string         `json:"log_level"`
}

// GatewayConfig holds the bridge behavior settings. It is immutable for
// the life of the process.
type GatewayConfig struct {
	BotName              string `json:"bot_name"`
	FromNumber           string `json:"from_number"`
	DailyLimit           int    `json:"daily_limit"`
	MeshChannelIndex     int    `json:"mesh_channel_index"`
	EnableBroadcast      bool   `json:"enable_broadcast"`
	DeliveryConfirmation bool   `json:"delivery_confirmation"`
	HistorySize          int    `json:"history_size"`
}

// CarrierConfig holds SMS carrier (Twilio) related configurations.
// AccountSID and AuthToken are normally supplied via environment.
type CarrierConfig struct {
	APIBaseURL string `json:"api_base_url"`
	AccountSID string `json:"account_sid"`
	AuthToken  string `json:"auth_token"`
	TimeoutSec int    `json:"timeout_sec"`
}

// MeshCoreConfig holds mesh integration related configurations
type MeshCoreConfig struct {
	APIBaseURL        string `json:"api_base_url"`
	EventsURL         string `json:"events_url"`
	TimeoutSec        int    `json:"timeout_sec"`
	ReconnectDelaySec int    `json:"reconnect_delay_sec"`
	ListenerEnabled   bool   `json:"listener_enabled"`
}

// DatabaseConfig holds database related configurations
type DatabaseConfig struct {
	Path string `json:"path"`
}

// ServerConfig holds HTTP server related configurations
type ServerConfig struct {
	Port          int    `json:"port"`
	WebhookSecret string `json:"webhook_secret"`
	PublicURL     string `json:"public_url"`
}

// TracingConfig holds OpenTelemetry related configurations
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	UseStdout      bool    `json:"use_stdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
