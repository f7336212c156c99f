package config

type Config struct {
	Gateway GatewayConfig `yaml:"gateway" json:"gateway"`
	API     APIConfig     `yaml:"api" json:"api"`
	Auth    AuthConfig    `yaml:"auth" json:"auth"`
	Retry   RetryConfig   `yaml:"retry" json:"retry"`
	Stub    StubConfig    `yaml:"stub" json:"stub"`
}

// GatewayConfig locates the counterpart realtime channel endpoint.
type GatewayConfig struct {
	URL string `yaml:"url" json:"url" env:"CHATWIRE_GATEWAY_URL"`
}

// APIConfig locates the REST service-request collaborator (quotes, business
// data).
type APIConfig struct {
	URL string `yaml:"url" json:"url" env:"CHATWIRE_API_URL"`
}

type AuthConfig struct {
	Token string `yaml:"token" json:"token" env:"CHATWIRE_TOKEN"`
}

// RetryConfig is the channel reconnection policy. Owned here so it is
// observable and testable rather than an implicit transport default.
type RetryConfig struct {
	MaxAttempts             int `yaml:"maxAttempts" json:"maxAttempts" env:"CHATWIRE_RETRY_MAX_ATTEMPTS"`
	DelaySeconds            int `yaml:"delaySeconds" json:"delaySeconds" env:"CHATWIRE_RETRY_DELAY_SECONDS"`
	HandshakeTimeoutSeconds int `yaml:"handshakeTimeoutSeconds" json:"handshakeTimeoutSeconds" env:"CHATWIRE_RETRY_HANDSHAKE_TIMEOUT_SECONDS"`
}

// StubConfig drives the local counterpart-gateway emulation.
type StubConfig struct {
	Port  int    `yaml:"port" json:"port" env:"CHATWIRE_STUB_PORT"`
	Token string `yaml:"token" json:"token" env:"CHATWIRE_STUB_TOKEN"`
	// JanitorSchedule is a cron expression for pruning idle sessions.
	JanitorSchedule string `yaml:"janitorSchedule" json:"janitorSchedule" env:"CHATWIRE_STUB_JANITOR_SCHEDULE"`
	IdleTTLMinutes  int    `yaml:"idleTtlMinutes" json:"idleTtlMinutes" env:"CHATWIRE_STUB_IDLE_TTL_MINUTES"`
}
