// Command widgetmarket runs widget trading agents and the market recorder.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rickgao/widget-market/internal/config"
	"github.com/rickgao/widget-market/internal/version"
)

// app holds what every subcommand needs after the root pre-run.
type app struct {
	configPath string
	envFile    string

	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "widgetmarket",
		Short:         "Widget trading agents and market recorder",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to config file (defaults only when empty)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the config")

	root.AddCommand(
		newAgentCmd(a),
		newSwarmCmd(a),
		newRecorderCmd(a),
		newWatchCmd(a),
		newVersionCmd(),
	)
	return root
}

// load reads the env file and config and builds the logger.
func (a *app) load(stderr io.Writer) error {
	if err := config.LoadEnvFile(a.envFile); err != nil {
		fmt.Fprintln(stderr, err)
		return err
	}

	cfg, err := config.LoadAndValidate(a.configPath)
	if err != nil {
		fmt.Fprintln(stderr, "failed to load config:", err)
		return err
	}

	logger, err := newLogger(cfg.Log, os.Stdout)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return err
	}
	slog.SetDefault(logger)

	a.cfg = cfg
	a.logger = logger
	return nil
}

// newLogger builds the process logger from the log section.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log.format must be text or json, got %q", cfg.Format)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// Skip config loading.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "widgetmarket", version.String())
		},
	}
}
