package config

// DefaultAddr is the default listen address for the WebSocket server.
const DefaultAddr = "127.0.0.1:7171"

// DefaultLogLevel is used when log_level is unset.
const DefaultLogLevel = "info"

// DefaultBothOrder puts the source-branch lines first for "both".
const DefaultBothOrder = "theirs_first"

// DefaultCommitMaxRetries bounds retries of a failed sync request.
const DefaultCommitMaxRetries = 3

// DefaultRequestTimeoutMs bounds one provider or sync request.
const DefaultRequestTimeoutMs = 10000

// DefaultRateLimit and DefaultRateBurst cap messages per second per client.
const (
	DefaultRateLimit = 20.0
	DefaultRateBurst = 40
)

// dataDirName is the directory under $HOME holding config and database.
const dataDirName = ".mergehost"
