package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/model"
)

// configCmd is the command to manage configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage Bandwidth Hero proxy configuration.`,
}

// configShowCmd is the command to display configuration
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show configuration",
	Long:  `Display the effective configuration, after file and environment overrides.`,
	Run: func(cmd *cobra.Command, args []string) {
		c := Container.Config
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, "Bandwidth Hero Proxy Configuration:")
		fmt.Fprintf(out, "Listen Address: %s\n", c.ListenAddress)
		fmt.Fprintf(out, "Delivery: %s (queue depth %d)\n", c.Delivery, c.QueueDepth)
		fmt.Fprintf(out, "Default Quality: %d\n", c.DefaultQuality)
		fmt.Fprintf(out, "Min Compress Length: %d\n", c.MinCompressLength)
		fmt.Fprintf(out, "No Animate: %t\n", c.NoAnimate)
		fmt.Fprintf(out, "Max Pixels: %d\n", c.MaxPixels)
		fmt.Fprintf(out, "Trusted Proxies: %s\n", strings.Join(c.TrustedProxies, ", "))
		fmt.Fprintf(out, "Log Level: %s (%s)\n", c.LogLevel, c.LogFormat)
		fmt.Fprintf(out, "Log File: %s\n", c.LogFile)
		fmt.Fprintf(out, "WebSocket: %t\n", c.WebSocketEnabled)
		fmt.Fprintf(out, "Metrics: %t (%s)\n", c.MetricsEnabled, c.MetricsPath)

		fmt.Fprintln(out, "\nOrigin pools:")
		fmt.Fprintf(out, "  Max Conns Per Host: %d\n", c.Origin.MaxConnsPerHost)
		fmt.Fprintf(out, "  Max Idle Conns Per Host: %d\n", c.Origin.MaxIdleConnsPerHost)
		fmt.Fprintf(out, "  Max Idle Conns: %d\n", c.Origin.MaxIdleConns)
		fmt.Fprintf(out, "  Idle Conn Timeout: %s\n", c.Origin.IdleConnTimeout)
		fmt.Fprintf(out, "  Keep Alive: %s\n", c.Origin.KeepAlive)
	},
}

// configSetCmd is the command to set configuration
var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set configuration",
	Long: `Set Bandwidth Hero proxy configuration.
Examples:
  bandwidth-hero-proxy config set listen_address :9000
  bandwidth-hero-proxy config set delivery buffered
  bandwidth-hero-proxy config set no_animate true
  bandwidth-hero-proxy config set log_level debug`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		c := Container.Config

		switch key {
		case "listen_address":
			Container.ConfigService.SetListenAddress(c, value)
		case "delivery":
			Container.ConfigService.SetDelivery(c, value)
		case "log_level":
			Container.ConfigService.SetLogLevel(c, value)
		case "log_file":
			Container.ConfigService.SetLogFile(c, value)
		case "log_format":
			c.LogFormat = value
		case "queue_depth", "default_quality", "max_pixels":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("%s must be a number: %w", key, err)
			}
			setInt(c, key, n)
		case "min_compress_length":
			n, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return fmt.Errorf("%s must be a number: %w", key, err)
			}
			c.MinCompressLength = n
		case "no_animate", "metrics_enabled", "websocket_enabled":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("%s must be true or false: %w", key, err)
			}
			setBool(c, key, b)
		case "trusted_proxies":
			c.TrustedProxies = strings.Split(value, ",")
		default:
			return fmt.Errorf("invalid configuration key: %s", key)
		}

		if err := Container.ConfigService.SaveConfig(c, ConfigPath); err != nil {
			return fmt.Errorf("failed to save configuration: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Configuration %s successfully changed to %s\n", key, value)
		return nil
	},
}

// configInitCmd writes the defaults to the configuration file
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := Container.ConfigService.SaveConfig(model.NewConfig(), ConfigPath); err != nil {
			return fmt.Errorf("failed to write configuration: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Default configuration written")
		return nil
	},
}

func setInt(c *model.Config, key string, n int) {
	switch key {
	case "queue_depth":
		c.QueueDepth = n
	case "default_quality":
		c.DefaultQuality = n
	case "max_pixels":
		c.MaxPixels = n
	}
}

func setBool(c *model.Config, key string, b bool) {
	switch key {
	case "no_animate":
		c.NoAnimate = b
	case "metrics_enabled":
		c.MetricsEnabled = b
	case "websocket_enabled":
		c.WebSocketEnabled = b
	}
}

func init() {
	RootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
}
