package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/topolab/internal/config"
	"github.com/aretw0/topolab/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "topolab",
	Short: "topolab controls emulated network topologies",
	Long: `topolab drives compute agents running network emulators, keeps project
topologies in sync with them and moves projects between machines as portable archives.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "topolab.yaml", "Configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides the config file)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")
}

// setup loads the configuration and builds the logger for a command.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	level := cfg.LogLevel
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		level = v
	}
	var logger *slog.Logger
	if format, _ := cmd.Flags().GetString("log-format"); format == "json" {
		logger = logging.NewJSON(os.Stderr, logging.ParseLevel(level))
	} else {
		logger = logging.New(logging.ParseLevel(level))
	}
	return cfg, logger, nil
}
