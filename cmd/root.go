package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/di"
)

var (
	// Container is the dependency injection container
	Container *di.Container

	// ConfigPath is the path to the configuration file
	ConfigPath string

	// LogLevel overrides the configured logging level
	LogLevel string

	// RootCmd is the root command for CLI
	RootCmd = &cobra.Command{
		Use:   "bandwidth-hero-proxy",
		Short: "Bandwidth Hero - image compression proxy",
		Long: `Bandwidth Hero proxy fetches images on behalf of clients and returns
them re-encoded as low quality WebP or JPEG to save bandwidth.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env file is normal
			_ = godotenv.Load()

			Container = di.NewContainer()
			if err := Container.Initialize(ConfigPath); err != nil {
				return err
			}

			if LogLevel != "" {
				Container.Logger.SetLevel(LogLevel)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if Container != nil {
				Container.Close()
			}
		},
	}
)

// Execute runs the root command
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&ConfigPath, "config", "c", "", "Path to configuration file (default: ~/.bandwidth-hero/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&LogLevel, "log-level", "", "Override logging level (debug, info, warn, error)")
}
