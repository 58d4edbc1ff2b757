// Package cli defines the cargodesk command tree.
package cli

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/cargodesk/cargodesk/migrations"
	"github.com/cargodesk/cargodesk/pkg/config"
	"github.com/cargodesk/cargodesk/pkg/locking"
	"github.com/cargodesk/cargodesk/pkg/migrate"
	"github.com/cargodesk/cargodesk/pkg/observability/logger"
	obsmetrics "github.com/cargodesk/cargodesk/pkg/observability/metrics"
	"github.com/cargodesk/cargodesk/pkg/server"
	"github.com/cargodesk/cargodesk/pkg/store/postgres"
	"github.com/cargodesk/cargodesk/pkg/version"
)

const (
	serviceName = "cargodesk"
	envPrefix   = "CARGODESK"
)

// NewRootCommand builds the cargodesk CLI: serve, migrate, sweep, version.
func NewRootCommand() *cobra.Command {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:           serviceName,
		Short:         "CargoDesk delivery management backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config-file", "c", "", "config file path")

	rootCmd.AddCommand(newServeCommand(&cfgPath))
	rootCmd.AddCommand(newMigrateCommand(&cfgPath))
	rootCmd.AddCommand(newSweepCommand(&cfgPath))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newServeCommand(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the public and management HTTP servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfigAndLogger(*cfgPath)
			if err != nil {
				return err
			}

			app, err := server.NewApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			return app.RunWithSignals()
		},
	}
}

func newMigrateCommand(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [up|down|status] [steps]",
		Short: "Apply, revert, or inspect schema migrations",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			subcommand, steps, err := migrate.ParseArgs(args)
			if err != nil {
				return err
			}

			cfg, log, err := loadConfigAndLogger(*cfgPath)
			if err != nil {
				return err
			}

			db, err := sql.Open("postgres", cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			if err := db.PingContext(cmd.Context()); err != nil {
				return fmt.Errorf("ping database: %w", err)
			}

			return migrate.Run(cmd.Context(), db, migrate.Options{
				Files:  migrations.Files,
				Dir:    migrations.Dir,
				Logger: log,
			}, subcommand, steps)
		},
	}
}

// newSweepCommand deletes expired lock rows once and exits. The serve
// command runs the same sweep periodically under the scheduler lease.
func newSweepCommand(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired resource locks once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfigAndLogger(*cfgPath)
			if err != nil {
				return err
			}

			adapter, err := postgres.NewAdapter(postgres.Config{
				URL:          cfg.Database.URL,
				QueryTimeout: cfg.Database.QueryTimeout,
			}, log)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer adapter.Close()

			manager := locking.NewManager(
				locking.NewPostgresStore(adapter),
				adapter,
				cfg.Lock.Timeout,
				log,
				obsmetrics.NewLockRecorder(),
			)
			swept, err := manager.CleanupExpired(cmd.Context())
			if err != nil {
				return err
			}
			log.Info("sweep complete", "locks_removed", swept)
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build version metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Current(serviceName)
			_, err := fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return err
		},
	}
}

func loadConfigAndLogger(cfgPath string) (*config.Config, logger.Logger, error) {
	loader := config.NewViperLoader(cfgPath, envPrefix)
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := loader.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("validate config: %w", err)
	}

	level, err := logger.ParseLogLevel(cfg.Logger.Level)
	if err != nil {
		return nil, nil, err
	}
	format, err := logger.ParseLogFormat(cfg.Logger.Format)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.NewZapLogger(logger.Config{Level: level, Format: format})
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, log, nil
}
