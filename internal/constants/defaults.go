package constants

// Default gateway configuration values
const (
	DefaultDailyLimit  = 50
	DefaultHistorySize = 50
	DefaultBotName     = "sms_bot"
	DefaultServerPort  = 8082
)

// Default timeout and scheduling values
const (
	DefaultCarrierTimeoutSec     = 30
	DefaultMeshTimeoutSec        = 15
	DefaultMeshReconnectDelaySec = 5
	DefaultResetCheckIntervalMin = 60
	DefaultGracefulShutdownSec   = 30
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	ServerErrorChannelSize       = 1
)

// Command parsing and display limits
const (
	HistoryListCount     = 5
	HistoryBodyPreview   = 30
	SenderPrefixMaxLen   = 10
	MinPubKeyPrefixLen   = 6
	PubKeyPrefixSendLen  = 6
	MaxInboundBodyLength = 1600
)

// Carrier API defaults
const (
	DefaultCarrierAPIBaseURL = "https://api.twilio.com"
	CarrierAPIVersion        = "2010-04-01"
)

// Encryption parameters for stored message data
const (
	EncryptionSalt       = "meshgate-db-salt-v1"
	EncryptionNonceSize  = 12
	EncryptionKeySize    = 32
	EncryptionIterations = 100000
)
