// Package cmd wires the cardforge subcommands.
package cmd

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cardforge/cardforge/internal/config"
	"github.com/cardforge/cardforge/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "cardforge",
	Short: "cardforge - card artwork pipeline for the Sui card game",
	Long: `cardforge watches the card contract for newly created cards,
generates artwork for them with Gemini, stores the images on Walrus
and writes the image URL back on-chain.

Run "cardforge watch" to start the pipeline daemon.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger from config.
func newLogger(cfg *config.Config) log.Logger {
	logger := log.New(log.Config{
		Level: parseLogLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
	if cfg.FileUsed != "" {
		logger.Debug("config file loaded", "path", cfg.FileUsed)
	} else {
		logger.Debug("no config file found, using defaults and environment")
	}
	return logger
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
