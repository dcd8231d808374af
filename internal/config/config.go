package config

import "time"

// ClientConfig is the root configuration for a relaylink client instance.
type ClientConfig struct {
	Instance     InstanceConfig     `yaml:"instance"`
	Server       ServerConfig       `yaml:"server"`
	Auth         AuthConfig         `yaml:"auth"`
	Reachability ReachabilityConfig `yaml:"reachability"`
	Connection   ConnectionConfig   `yaml:"connection"`
	Recorder     RecorderConfig     `yaml:"recorder"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Log          LogConfig          `yaml:"log"`
}

// InstanceConfig identifies this client instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ServerConfig holds the realtime server endpoint.
type ServerConfig struct {
	// Host is the server host (host or host:port). The connect URL is
	// built as wss://<host>/ws/v1/connect?auth=<token>.
	Host string `yaml:"host"`
}

// AuthConfig holds credential source settings. Exactly one source is used,
// preferred in order: token, token_file, refresh_url.
type AuthConfig struct {
	Token          string        `yaml:"token"`           // literal token (supports ${VAR} expansion)
	TokenFile      string        `yaml:"token_file"`      // path to a file containing the token
	RefreshURL     string        `yaml:"refresh_url"`     // HTTP endpoint issuing short-lived tokens
	RefreshToken   string        `yaml:"refresh_token"`   // bearer credential for refresh_url
	RefreshTimeout time.Duration `yaml:"refresh_timeout"` // per-request timeout for refresh_url
}

// ReachabilityConfig holds network reachability probe settings.
type ReachabilityConfig struct {
	ProbeURL string        `yaml:"probe_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ConnectionConfig holds connection manager settings.
type ConnectionConfig struct {
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
	MaxQueueSize         int           `yaml:"max_queue_size"`
	PingInterval         time.Duration `yaml:"ping_interval"`
	PingTimeout          time.Duration `yaml:"ping_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
}

// RecorderConfig holds frame recorder settings.
type RecorderConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}
