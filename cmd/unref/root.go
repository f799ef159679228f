package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"unref/internal/config"
	"unref/internal/slogutil"
	"unref/internal/version"
)

// Exit statuses.
const (
	// exitFindings is returned with --fail-on-findings when findings remain.
	exitFindings = 1
	exitFailure  = 2
)

// exitError ends the command with a status and no message.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

var (
	verbosity  int
	quiet      bool
	logFile    string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "unref",
	Short: "unref - find declarations nothing references",
	Long: `unref reports methods, properties and other declarations that are never
referenced anywhere in a codebase. Declarations are enumerated from the
sources with tree-sitter and their references are looked up in SCIP indexes.`,
	Version:       version.Info(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("unref version {{.Version}}\n")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress all logs")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default: .unref/config.{json,yaml,toml})")
}

// loadConfig reads --config, or the configuration of the working directory.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadConfigFile(configPath)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return config.LoadConfig(wd)
}

// newLogger builds the command logger. -v and --quiet take precedence over
// logging.level.
func newLogger(cmd *cobra.Command, cfg *config.Config, runID string) (*slog.Logger, io.Closer, error) {
	level := slogutil.LevelFromString(cfg.Logging.Level)
	if verbosity > 0 || quiet {
		level = slogutil.LevelFromVerbosity(verbosity, quiet)
	}
	file := cfg.Logging.File
	if cmd.Flags().Changed("log-file") {
		file = logFile
	}

	logger, closer, err := slogutil.Setup(slogutil.Options{
		Level:      level,
		Stderr:     cmd.ErrOrStderr(),
		File:       file,
		FileLevel:  slogutil.LevelFromString(cfg.Logging.FileLevel),
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		return nil, nil, err
	}
	if runID != "" {
		logger = logger.With("run", runID)
	}
	return logger, closer, nil
}
