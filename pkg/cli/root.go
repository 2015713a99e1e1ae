// Package cli is the screenlist command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"screenlist/pkg/config"
	"screenlist/pkg/logger"
	"screenlist/pkg/telemetry"

	"github.com/spf13/cobra"
)

// ExitError carries a process exit status out of a command without printing anything
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// app holds what the persistent pre-run sets up for every command
type app struct {
	configFile string
	verbose    bool
	logFormat  string
	outputDir  string
	backend    string
	refresh    bool

	cfg *config.Config
	tel telemetry.Telemetry
}

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "screenlist",
		Short: "screenlist turns listing pages into enriched, filtered HTML reports.",
		Long: `screenlist reads titles from a listing (EZTV, the official film chart, an RSS
feed or a local file), looks each one up on a detail source, caches what it
finds and renders the titles that pass the filters as an HTML report.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown(cmd.Context())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default is ./screenlist.yaml or $HOME/screenlist.yaml)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: text or json")
	flags.StringVarP(&a.outputDir, "output", "o", "", "directory for reports (overrides output.dir)")
	flags.StringVar(&a.backend, "backend", "", "page backend: static or chrome (overrides browser.backend)")
	flags.BoolVar(&a.refresh, "refresh", false, "re-resolve titles even when they are cached")

	rootCmd.AddCommand(newTVShowsCmd(a))
	rootCmd.AddCommand(newRentalsCmd(a))
	rootCmd.AddCommand(newFeedCmd(a))
	rootCmd.AddCommand(newFileCmd(a))
	rootCmd.AddCommand(newCacheCmd(a))
	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newReplicateCmd(a))

	return rootCmd
}

// Execute runs the root command and exits with the run's status
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func (a *app) setup(ctx context.Context) error {
	config.Reset()
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	if a.verbose {
		cfg.App.LogLevel = "debug"
	}
	if a.logFormat != "" {
		cfg.App.LogFormat = a.logFormat
	}
	if a.outputDir != "" {
		cfg.Output.Dir = a.outputDir
	}
	if a.backend != "" {
		cfg.Browser.Backend = a.backend
	}
	if a.refresh {
		cfg.Cache.Refresh = true
	}
	a.cfg = cfg

	logger.Init(logger.Options{Level: cfg.App.LogLevel, Format: cfg.App.LogFormat})

	a.tel, err = telemetry.Setup(ctx, telemetry.Config{
		ServiceName:  cfg.Telemetry.ServiceName,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		logger.Warn("CLI: telemetry disabled", "error", err)
		a.tel = telemetry.Telemetry{}
	}
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	if err := a.tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("CLI: telemetry shutdown failed", "error", err)
	}
	a.tel = telemetry.Telemetry{}
	return nil
}
