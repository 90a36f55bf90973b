package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"terrarisk/internal/analysis"
	"terrarisk/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	logLevel string
	envFile  string
}

var rootCmd = &cobra.Command{
	Use:   "terrarisk",
	Short: "Geospatial hazard analysis with provenance credentials",
	Long: "TerraRisk turns a risk query into a ranked report, geodata and portfolio diff,\n" +
		"each artifact hashed and bound to an action credential.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.StringVar(&rootFlags.envFile, "env-file", "", "Load variables from this file before the process environment")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(scenarioCmd)
	rootCmd.AddCommand(stressCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.Version = version
}

func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(rootFlags.logLevel))); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig() (*config.Config, error) {
	if rootFlags.envFile != "" {
		return config.LoadFile(rootFlags.envFile)
	}
	return config.Load()
}

// newService loads configuration and wires the pipeline.
func newService(ctx context.Context, logger *slog.Logger) (*analysis.Service, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	svc, err := analysis.New(ctx, cfg, analysis.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return svc, cfg, nil
}
