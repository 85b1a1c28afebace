package di

import (
	"os"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/application/service"
	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/model"
	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/port"
	domainservice "github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/service"
	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/infrastructure/config"
	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/infrastructure/logger"
	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/infrastructure/metrics"
	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/infrastructure/server"
	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/infrastructure/transcoder"
	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/infrastructure/transport"
)

// Container is a container for dependency injection
type Container struct {
	// Logger
	Logger *logger.Logger

	// Repositories
	ConfigRepository *config.ConfigRepository

	// Services
	ConfigService   *service.ConfigService
	CompressService *service.CompressService
	ProxyService    *service.ProxyService

	// Infrastructure
	OriginClient *transport.OriginClient
	Transcoder   *transcoder.ImageTranscoder
	Metrics      *metrics.Collector
	Server       *server.Server

	// Config
	Config *model.Config
}

// NewContainer creates a new Container instance
func NewContainer() *Container {
	return &Container{}
}

// Initialize loads configuration and sets up logging
func (c *Container) Initialize(configPath string) error {
	c.Logger = logger.NewLogger(os.Stdout, "info", "text")

	c.ConfigRepository = config.NewConfigRepository()
	c.ConfigService = service.NewConfigService(c.ConfigRepository, c.Logger)

	var err error
	c.Config, err = c.ConfigService.LoadConfig(configPath)
	if err != nil {
		return err
	}

	// Log to file as well as stdout when configured
	if c.Config.LogFile != "" {
		fileLogger, err := logger.NewFileLogger(c.Config.LogFile, string(c.Config.LogLevel), c.Config.LogFormat)
		if err != nil {
			c.Logger.Error("Failed to create file logger: %v", err)
		} else {
			c.Logger = fileLogger
			c.Logger.Info("Logs will also be written to file: %s", c.Config.LogFile)
		}
	} else {
		c.Logger = logger.NewLogger(os.Stdout, string(c.Config.LogLevel), c.Config.LogFormat)
	}

	return nil
}

// InitializeProxy builds the compression pipeline and the HTTP server
func (c *Container) InitializeProxy() error {
	loopGuard, err := domainservice.NewLoopGuard(c.Config.TrustedProxies)
	if err != nil {
		return err
	}

	c.OriginClient = transport.NewOriginClient(c.Config.Origin, c.Logger)
	c.Transcoder = transcoder.NewImageTranscoder(c.Logger)
	c.CompressService = service.NewCompressService(c.Transcoder, c.Config, c.Logger)

	var recorder port.MetricsRecorder
	if c.Config.MetricsEnabled {
		c.Metrics = metrics.NewCollector(nil)
		recorder = c.Metrics
	}

	c.ProxyService = service.NewProxyService(
		c.OriginClient,
		c.CompressService,
		loopGuard,
		domainservice.NewEligibility(c.Config.MinCompressLength),
		recorder,
		c.Logger,
	)

	parser := domainservice.NewParamsParser(c.Config.DefaultQuality)
	handlers := server.Handlers{
		Compress: transport.NewHTTPHandler(parser, c.ProxyService, transport.NewRedirector(c.Logger)),
	}
	if c.Config.WebSocketEnabled {
		handlers.WebSocket = transport.NewWebSocketHandler(parser, c.ProxyService, c.Logger)
	}
	if c.Metrics != nil {
		handlers.Metrics = c.Metrics.Handler()
		handlers.MetricsPath = c.Config.MetricsPath
	}

	c.Server = server.New(c.Config.ListenAddress, c.Logger.Slog(), handlers)

	c.Logger.Debug("Proxy initialized: delivery=%s queue_depth=%d animated=%t",
		c.CompressService.Delivery(), c.Config.QueueDepth, !c.Config.NoAnimate)

	return nil
}

// Close closes all resources
func (c *Container) Close() {
	if c.OriginClient != nil {
		c.OriginClient.Close()
	}

	if c.Logger != nil {
		c.Logger.Close()
	}
}
