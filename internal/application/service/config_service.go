package service

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/model"
	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/port"
)

// ConfigService is a service for managing configuration
type ConfigService struct {
	configRepo port.ConfigRepository
	logger     port.Logger
}

// NewConfigService creates a new ConfigService instance
func NewConfigService(configRepo port.ConfigRepository, logger port.Logger) *ConfigService {
	return &ConfigService{
		configRepo: configRepo,
		logger:     logger,
	}
}

// LoadConfig loads configuration from a file
func (s *ConfigService) LoadConfig(configPath string) (*model.Config, error) {
	// If configPath is empty, use the default path
	if configPath == "" {
		var err error
		configPath, err = s.configRepo.GetDefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get default path: %w", err)
		}
	}

	config, err := s.configRepo.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}

	if err := s.Validate(config); err != nil {
		return nil, err
	}

	s.logger.Info("Configuration loaded from %s", configPath)

	return config, nil
}

// SaveConfig saves configuration to a file
func (s *ConfigService) SaveConfig(config *model.Config, configPath string) error {
	if err := s.Validate(config); err != nil {
		return err
	}

	// If configPath is empty, use the default path
	if configPath == "" {
		var err error
		configPath, err = s.configRepo.GetDefaultPath()
		if err != nil {
			return fmt.Errorf("failed to get default path: %w", err)
		}
	}

	if err := s.configRepo.Save(config, configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	s.logger.Info("Configuration saved to %s", configPath)

	return nil
}

// Validate checks a configuration for values the proxy cannot run with
func (s *ConfigService) Validate(config *model.Config) error {
	var problems []string

	if config.ListenAddress == "" {
		problems = append(problems, "listen_address must not be empty")
	}
	switch config.Delivery {
	case model.DeliveryStreamed, model.DeliveryBuffered:
	default:
		problems = append(problems, fmt.Sprintf("delivery must be %q or %q, got %q",
			model.DeliveryStreamed, model.DeliveryBuffered, config.Delivery))
	}
	if config.QueueDepth < 1 {
		problems = append(problems, "queue_depth must be at least 1")
	}
	if config.DefaultQuality < 1 || config.DefaultQuality > 100 {
		problems = append(problems, "default_quality must be between 1 and 100")
	}
	if config.MaxPixels < 0 {
		problems = append(problems, "max_pixels must not be negative")
	}
	if config.Origin.MaxConnsPerHost < 0 || config.Origin.MaxIdleConnsPerHost < 0 || config.Origin.MaxIdleConns < 0 {
		problems = append(problems, "origin connection limits must not be negative")
	}
	for _, cidr := range config.TrustedProxies {
		if _, err := netip.ParsePrefix(strings.TrimSpace(cidr)); err != nil {
			problems = append(problems, fmt.Sprintf("trusted_proxies: %q is not a CIDR", cidr))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// SetLogLevel sets the log level
func (s *ConfigService) SetLogLevel(config *model.Config, logLevel string) {
	config.LogLevel = model.LogLevel(logLevel)
}

// SetLogFile sets the log file
func (s *ConfigService) SetLogFile(config *model.Config, logFile string) {
	config.LogFile = logFile
}

// SetListenAddress sets the address the server binds to
func (s *ConfigService) SetListenAddress(config *model.Config, address string) {
	config.ListenAddress = address
}

// SetDelivery sets the delivery strategy
func (s *ConfigService) SetDelivery(config *model.Config, delivery string) {
	config.Delivery = model.DeliveryMode(delivery)
}
