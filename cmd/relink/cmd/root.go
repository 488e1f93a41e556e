// Package cmd provides the CLI commands for relink.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/relinkhq/relink/internal/config"
	"github.com/relinkhq/relink/internal/logging"
	"github.com/relinkhq/relink/pkg/reconciler"
	"github.com/relinkhq/relink/pkg/version"
)

var (
	configPath string
	dbPath     string
	debugMode  bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the relink CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relink",
		Short: "Bayesian reconciliation engine for lost-and-found matching",
		Long: `Relink fuses independent match signals about a newly observed object
into one calibrated probability with an uncertainty band, ranks the most
likely matching historical objects, and learns branch reliability from
confirmed feedback.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("relink version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.relink/config.yaml)")
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database file (default ~/.relink/relink.db)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.relink/logs/")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newRankCmd())
	cmd.AddCommand(newFeedbackCmd())
	cmd.AddCommand(newReliabilityCmd())
	cmd.AddCommand(newObjectsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func setupLogging(*cobra.Command, []string) error {
	level := "info"
	if debugMode {
		level = "debug"
	}
	cleanup, err := logging.SetupDefault(level)
	if err != nil {
		// Logging to file is best-effort for a CLI; fall back to stderr.
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
		return nil
	}
	loggingCleanup = cleanup
	return nil
}

// loadConfig resolves configuration from flags and the config file.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	return cfg, nil
}

// openReconciler assembles a Reconciler from the resolved configuration.
func openReconciler() (*reconciler.Reconciler, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	r, err := reconciler.New(cfg, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("open reconciler: %w", err)
	}
	return r, nil
}
