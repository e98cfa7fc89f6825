package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"inferd/internal/config"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	log        zerolog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{log: zerolog.Nop()}
	root := &cobra.Command{
		Use:           "inferd",
		Short:         "Multi-provider inference daemon with a memory-budgeted model scheduler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("INFERD_CONFIG"), "Config file (.yaml, .json or .toml); defaults to INFERD_CONFIG")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error (overrides the config file)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "console", "Log format: console|json")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		switch opts.logFormat {
		case "console", "json":
		default:
			return fmt.Errorf("unknown log format %q", opts.logFormat)
		}
		return nil
	}

	root.AddCommand(newServeCmd(opts), newChainCmd(opts), newSlotsCmd(opts), newAskCmd(opts))
	return root
}

// loadConfig reads the config file when one is given and applies defaults.
// It also builds the process logger, since the level may come from the file.
func (o *rootOptions) loadConfig() (config.Config, error) {
	var cfg config.Config
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return cfg, err
		}
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	cfg.Defaults()
	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return cfg, fmt.Errorf("log level: %w", err)
	}
	o.log = newLogger(o.logFormat, lvl)
	return cfg, nil
}

func newLogger(format string, lvl zerolog.Level) zerolog.Logger {
	if format == "json" {
		return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()
}

// splitCSV splits a comma separated flag value, dropping empty items.
func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
