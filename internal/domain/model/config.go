package model

import (
	"os"
	"path/filepath"
	"time"
)

// LogLevel defines logging levels
type LogLevel string

const (
	// LogLevelDebug is the level for debug messages
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the level for informational messages
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn is the level for warning messages
	LogLevelWarn LogLevel = "warn"
	// LogLevelError is the level for error messages
	LogLevelError LogLevel = "error"
)

// DeliveryMode selects how compressed bytes reach the client
type DeliveryMode string

const (
	// DeliveryStreamed flushes bytes as the transcoder produces them and sends
	// size metadata after the body
	DeliveryStreamed DeliveryMode = "streamed"
	// DeliveryBuffered holds the whole transcoded image in memory and sends
	// size metadata as headers
	DeliveryBuffered DeliveryMode = "buffered"
)

// Config is the configuration structure for the compression proxy
type Config struct {
	// ListenAddress is the address the HTTP server binds to
	ListenAddress string
	// LogLevel is the logging level (debug, info, warn, error)
	LogLevel LogLevel
	// LogFormat is the log output format (text or json)
	LogFormat string
	// LogFile is the path to log file (empty for stdout only)
	LogFile string
	// Delivery is the delivery strategy used for every request
	Delivery DeliveryMode
	// QueueDepth is the number of transcoded chunks buffered between the
	// transcoder and the client in streamed mode
	QueueDepth int
	// NoAnimate disables animated image handling
	NoAnimate bool
	// MaxPixels limits the decoded image area; 0 means unlimited
	MaxPixels int
	// DefaultQuality is used when the request carries no usable quality
	DefaultQuality int
	// MinCompressLength is the smallest origin size worth compressing
	MinCompressLength uint64
	// TrustedProxies lists CIDRs whose X-Forwarded-For header is honored
	TrustedProxies []string
	// Origin holds the outbound connection pool settings
	Origin OriginConfig
	// MetricsEnabled exposes Prometheus metrics on MetricsPath
	MetricsEnabled bool
	// MetricsPath is the HTTP path of the metrics endpoint
	MetricsPath string
	// WebSocketEnabled exposes the websocket delivery endpoint on /ws
	WebSocketEnabled bool
	// ShutdownTimeout bounds graceful server shutdown
	ShutdownTimeout time.Duration
}

// OriginConfig configures the outbound connection pools
type OriginConfig struct {
	// MaxConnsPerHost caps concurrent sockets per origin host
	MaxConnsPerHost int
	// MaxIdleConnsPerHost caps idle sockets kept per origin host
	MaxIdleConnsPerHost int
	// MaxIdleConns caps idle sockets across all hosts
	MaxIdleConns int
	// IdleConnTimeout is how long an idle socket stays in the pool
	IdleConnTimeout time.Duration
	// KeepAlive is the TCP keep-alive period of pooled sockets
	KeepAlive time.Duration
}

// NewConfig creates a new Config instance with default values
func NewConfig() *Config {
	return &Config{
		ListenAddress:     ":8080",
		LogLevel:          LogLevelInfo,
		LogFormat:         "text",
		LogFile:           "",
		Delivery:          DeliveryStreamed,
		QueueDepth:        8,
		NoAnimate:         false,
		MaxPixels:         0,
		DefaultQuality:    DefaultQuality,
		MinCompressLength: MinCompressLength,
		TrustedProxies:    []string{"127.0.0.0/8", "::1/128"},
		Origin: OriginConfig{
			MaxConnsPerHost:     50,
			MaxIdleConnsPerHost: 10,
			MaxIdleConns:        100,
			IdleConnTimeout:     30 * time.Second,
			KeepAlive:           30 * time.Second,
		},
		MetricsEnabled:   true,
		MetricsPath:      "/metrics",
		WebSocketEnabled: true,
		ShutdownTimeout:  10 * time.Second,
	}
}

// GetConfigFilePath returns the path to configuration file
func (c *Config) GetConfigFilePath() string {
	configDir := "/etc/bandwidth-hero"

	if os.Getuid() != 0 {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			configDir = filepath.Join(homeDir, ".bandwidth-hero")
		}
	}

	return filepath.Join(configDir, "config.yaml")
}
