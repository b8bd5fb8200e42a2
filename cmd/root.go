// Package cmd holds the messenger-api command line: serve, migrate and seed.
package cmd

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"messenger-api/config"
	"messenger-api/logger"
)

var (
	configFile string

	cfg *config.Config
	log *zap.Logger

	rootCmd = &cobra.Command{
		Use:           "messenger-api",
		Short:         "Messenger API server and maintenance commands",
		Long:          `messenger-api serves the messaging HTTP API and ships the maintenance commands that prepare its database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				if err := os.Setenv("CONFIG_FILE", configFile); err != nil {
					return errors.Wrap(err, "set CONFIG_FILE")
				}
			}
			loaded, err := config.Load()
			if err != nil {
				return errors.Wrap(err, "load configuration")
			}
			cfg = loaded
			log = logger.Init(cfg.LogLevel, cfg.IsDevelopment())
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file (overrides CONFIG_FILE)")
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if log != nil {
		_ = log.Sync()
	}
	return err
}
