package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"unref/internal/config"
)

var configFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Display the configuration unref runs with: .unref/config.{json,yaml,toml}
(or --config) merged over the defaults, with UNREF_* environment variables
applied. Keys map to variables by upper-casing and replacing dots, for
example analysis.maxInFlight is UNREF_ANALYSIS_MAXINFLIGHT.

Examples:
  unref config
  unref config --format yaml
  unref config init`,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to .unref/config.json",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	configCmd.Flags().StringVar(&configFormat, "format", "json", "Output format (json, yaml)")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

// ConfigShowResponse is the output of config.
type ConfigShowResponse struct {
	ConfigPath   string         `json:"configPath,omitempty" yaml:"configPath,omitempty"`
	UsedDefaults bool           `json:"usedDefaults" yaml:"usedDefaults"`
	Config       *config.Config `json:"config" yaml:"config"`
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
	}

	resp := ConfigShowResponse{
		ConfigPath:   cfg.Source(),
		UsedDefaults: cfg.Source() == "",
		Config:       cfg,
	}

	out := cmd.OutOrStdout()
	switch configFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(resp); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format: %s", configFormat)
	}
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	if existing, err := config.LoadConfig(wd); err == nil && existing.Source() != "" {
		return fmt.Errorf("configuration already exists: %s", existing.Source())
	}
	path, err := config.DefaultConfig().Save(wd)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
