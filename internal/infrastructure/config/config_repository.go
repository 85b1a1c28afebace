package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/model"
	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/port"
)

// EnvPrefix prefixes every environment override, e.g. BH_DELIVERY
const EnvPrefix = "BH"

// ConfigRepository is an implementation of port.ConfigRepository
type ConfigRepository struct{}

// NewConfigRepository creates a new ConfigRepository instance
func NewConfigRepository() *ConfigRepository {
	return &ConfigRepository{}
}

// newViper returns a viper instance holding the defaults and the
// environment bindings
func newViper() *viper.Viper {
	v := viper.New()
	setValues(v.SetDefault, model.NewConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed names understood by existing deployments
	_ = v.BindEnv("no_animate", EnvPrefix+"_NO_ANIMATE", "NO_ANIMATE")
	_ = v.BindEnv("port", EnvPrefix+"_PORT", "PORT")

	return v
}

// setValues writes every configuration key through set
func setValues(set func(key string, value interface{}), config *model.Config) {
	set("listen_address", config.ListenAddress)
	set("log_level", string(config.LogLevel))
	set("log_format", config.LogFormat)
	set("log_file", config.LogFile)
	set("delivery", string(config.Delivery))
	set("queue_depth", config.QueueDepth)
	set("no_animate", config.NoAnimate)
	set("max_pixels", config.MaxPixels)
	set("default_quality", config.DefaultQuality)
	set("min_compress_length", config.MinCompressLength)
	set("trusted_proxies", config.TrustedProxies)
	set("origin.max_conns_per_host", config.Origin.MaxConnsPerHost)
	set("origin.max_idle_conns_per_host", config.Origin.MaxIdleConnsPerHost)
	set("origin.max_idle_conns", config.Origin.MaxIdleConns)
	set("origin.idle_conn_timeout", config.Origin.IdleConnTimeout.String())
	set("origin.keep_alive", config.Origin.KeepAlive.String())
	set("metrics_enabled", config.MetricsEnabled)
	set("metrics_path", config.MetricsPath)
	set("websocket_enabled", config.WebSocketEnabled)
	set("shutdown_timeout", config.ShutdownTimeout.String())
}

// Load loads configuration from file, then applies environment overrides.
// A missing file yields the defaults.
func (r *ConfigRepository) Load(configPath string) (*model.Config, error) {
	if configPath == "" {
		var err error
		configPath, err = r.GetDefaultPath()
		if err != nil {
			return nil, err
		}
	}

	v := newViper()
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := model.NewConfig()
	config.ListenAddress = v.GetString("listen_address")
	if port := v.GetString("port"); port != "" {
		config.ListenAddress = ":" + port
	}
	config.LogLevel = model.LogLevel(v.GetString("log_level"))
	config.LogFormat = v.GetString("log_format")
	config.LogFile = v.GetString("log_file")
	config.Delivery = model.DeliveryMode(strings.ToLower(v.GetString("delivery")))
	config.QueueDepth = v.GetInt("queue_depth")
	config.NoAnimate = v.GetBool("no_animate")
	config.MaxPixels = v.GetInt("max_pixels")
	config.DefaultQuality = v.GetInt("default_quality")
	config.MinCompressLength = v.GetUint64("min_compress_length")
	config.TrustedProxies = v.GetStringSlice("trusted_proxies")
	config.Origin.MaxConnsPerHost = v.GetInt("origin.max_conns_per_host")
	config.Origin.MaxIdleConnsPerHost = v.GetInt("origin.max_idle_conns_per_host")
	config.Origin.MaxIdleConns = v.GetInt("origin.max_idle_conns")
	config.Origin.IdleConnTimeout = v.GetDuration("origin.idle_conn_timeout")
	config.Origin.KeepAlive = v.GetDuration("origin.keep_alive")
	config.MetricsEnabled = v.GetBool("metrics_enabled")
	config.MetricsPath = v.GetString("metrics_path")
	config.WebSocketEnabled = v.GetBool("websocket_enabled")
	config.ShutdownTimeout = v.GetDuration("shutdown_timeout")

	return config, nil
}

// Save saves configuration to file
func (r *ConfigRepository) Save(config *model.Config, configPath string) error {
	if configPath == "" {
		var err error
		configPath, err = r.GetDefaultPath()
		if err != nil {
			return err
		}
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	setValues(v.Set, config)

	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("error saving configuration: %w", err)
	}

	return nil
}

// GetDefaultPath returns the default path for configuration file
func (r *ConfigRepository) GetDefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error getting home directory: %w", err)
	}

	return filepath.Join(homeDir, ".bandwidth-hero", "config.yaml"), nil
}

// Ensure ConfigRepository implements port.ConfigRepository
var _ port.ConfigRepository = (*ConfigRepository)(nil)
