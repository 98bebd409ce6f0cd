package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/nexus-trading/scout/internal/config"
)

var (
	configPath string
	envFile    string

	cfg *config.Config
)

// rootCmd is the base command for the scout CLI
var rootCmd = &cobra.Command{
	Use:   "scout",
	Short: "Token scoring engine for new crypto launches",
	Long: `scout evaluates token snapshots against configurable scoring models:
weighted rules behind hard gates, check-style A-F grading, a risk engine
and a moonshot engine with smart exit ladders.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}

		loaded, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg = loaded
		setupLogging(cfg.General)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/scout.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before the config")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads --config; a missing default path falls back to built-in defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	loaded, err := config.Load(configPath)
	if err == nil {
		return loaded, nil
	}
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		return config.Default(), nil
	}
	return nil, fmt.Errorf("load config from %s: %w", configPath, err)
}

func setupLogging(general config.GeneralConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	level, err := zerolog.ParseLevel(general.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Logs go to stderr so command output on stdout stays machine-readable.
	if general.LogFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			With().Timestamp().Str("service", "scout").
			Str("instance", general.InstanceID).Logger()
	} else {
		log.Logger = zerolog.New(os.Stderr).
			With().Timestamp().Str("service", "scout").
			Str("instance", general.InstanceID).Logger()
	}
}
