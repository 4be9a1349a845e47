package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	app "github.com/okian/profmatch/internal/app"
	"github.com/okian/profmatch/internal/config"
	"github.com/okian/profmatch/pkg/logger"
)

// cli carries state shared by every subcommand.
type cli struct {
	configPath string
	threshold  int
	workers    int

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	cmd := &cobra.Command{
		Use:   "profmatch",
		Short: "Reconcile instructor grade ratings with review-site profiles",
		Long: `profmatch joins two independently published instructor datasets:
grade-distribution ratings keyed by the registrar's name spelling, and
review-site profiles keyed by "first last". Names are matched through
manual overrides, identical normalized names and fuzzy similarity
confirmed by shared courses.

Configuration is layered: defaults, an optional YAML file
(--config or PROFMATCH_CONFIG), then PROFMATCH_* environment variables.
A .env file in the working directory is loaded first when present.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logger.Sync()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "YAML config file")
	flags.IntVar(&c.threshold, "threshold", 0, "fuzzy threshold 0..100 (overrides config)")
	flags.IntVar(&c.workers, "workers", 0, "fuzzy scoring workers (overrides config)")

	cmd.AddCommand(
		newReconcileCmd(c),
		newAggregateCmd(c),
		newScrapeCmd(c),
		newServeCmd(c),
	)
	return cmd
}

// setup loads the environment, the configuration and the logger.
func (c *cli) setup(cmd *cobra.Command) error {
	_ = godotenv.Load()

	if c.configPath != "" {
		if err := os.Setenv(config.EnvConfigFile, c.configPath); err != nil {
			return err
		}
	}
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("threshold") {
		cfg.FuzzyThreshold = c.threshold
	}
	if flags.Changed("workers") {
		cfg.WorkerCount = c.workers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Init(logger.WithWriter(cmd.ErrOrStderr()), logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	c.cfg = cfg
	return nil
}

// service builds and starts the application service.
func (c *cli) service(cmd *cobra.Command) (*app.Service, error) {
	svc := app.New(
		app.WithConfig(c.cfg),
		app.WithLogger(logger.Get()),
	)
	if err := svc.Start(cmd.Context()); err != nil {
		return nil, fmt.Errorf("failed to start service: %w", err)
	}
	return svc, nil
}
