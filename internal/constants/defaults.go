package constants

// Segmentation
const (
	// MessageChunkSize is the maximum number of characters transmitted in
	// one physical SMS segment. The split is a plain character-count split,
	// not encoding aware.
	MessageChunkSize = 140
)

// Default serial configuration values
const (
	DefaultBaudRate          = 9600
	DefaultCommandTimeoutSec = 30
)

// Default server configuration values
const (
	DefaultServerPort            = 4000
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
)

// Event channel buffering
const (
	DefaultReceivedEventBuffer = 16
	DefaultSentEventBuffer     = 64
)

// Encryption settings
const (
	PBKDF2Iterations = 100000
	EncryptionKeyLen = 32
	NonceSize        = 12
)
