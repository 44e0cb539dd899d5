package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"admin-console/internal/api_client"
	"admin-console/internal/config"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:          "console",
		Short:        "Admin console for the realty marketplace",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultPath, "config file path")

	rootCmd.AddCommand(
		newServeCommand(&configFile),
		newExportCommand(&configFile),
		newKeygenCommand(),
	)
	return rootCmd
}

func newLogger() (*zap.Logger, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

func newClient(cfg *config.Config, logger *zap.Logger) (*api_client.Client, error) {
	b := cfg.Backend
	return api_client.NewClient(api_client.Options{
		BaseURL:   b.URL,
		Timeout:   b.Timeout,
		LoginPath: b.LoginPath,
		Breaker: api_client.BreakerOptions{
			Enabled:      b.Breaker.Enabled,
			MaxRequests:  b.Breaker.MaxRequests,
			Interval:     b.Breaker.Interval,
			Timeout:      b.Breaker.Timeout,
			MinRequests:  b.Breaker.MinRequests,
			FailureRatio: b.Breaker.FailureRatio,
		},
	}, logger)
}
