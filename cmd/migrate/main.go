package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/db"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/angelmondragon/farmlink-backend/pkg/migrate"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var dir string
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the farmlink Postgres schema with goose",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dir, "dir", migrate.DefaultDir, "goose migrations directory")

	// Schema commands need a live database.
	schema := func(use, short string, args cobra.PositionalArgs, run func(context.Context, *migrate.Migrator, []string) ([]migrate.Applied, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  args,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd.Context(), cmd.Name(), dir, func(ctx context.Context, m *migrate.Migrator) error {
					done, err := run(ctx, m, args)
					printApplied(cmd.OutOrStdout(), done)
					return err
				})
			},
		}
	}
	root.AddCommand(
		schema("up", "Apply all pending migrations", cobra.NoArgs,
			func(ctx context.Context, m *migrate.Migrator, _ []string) ([]migrate.Applied, error) {
				return m.Up(ctx)
			}),
		schema("down", "Roll back the latest migration", cobra.NoArgs,
			func(ctx context.Context, m *migrate.Migrator, _ []string) ([]migrate.Applied, error) {
				return m.Down(ctx)
			}),
		schema("to <version>", "Migrate up or down to an exact version (YYYYMMDDHHMMSS)", cobra.ExactArgs(1),
			func(ctx context.Context, m *migrate.Migrator, args []string) ([]migrate.Applied, error) {
				return m.To(ctx, args[0])
			}),
	)
	root.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), "status", dir, func(ctx context.Context, m *migrate.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return err
				}
				for _, st := range statuses {
					state := "pending"
					if st.Applied {
						state = "applied"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%-8s %d  %s\n", state, st.Version, st.Path)
				}
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Write an empty SQL migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := migrate.CreateSQLMigration(dir, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "created", path)
			return nil
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check migration names and goose markers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := migrate.ValidateDir(dir); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations ok")
			return nil
		},
	})
	return root
}

func printApplied(w io.Writer, done []migrate.Applied) {
	for _, m := range done {
		fmt.Fprintf(w, "%-4s %d  %s\n", m.Direction, m.Version, m.Path)
	}
	if len(done) == 0 {
		fmt.Fprintln(w, "nothing to do")
	}
}

func withMigrator(ctx context.Context, command, dir string, fn func(context.Context, *migrate.Migrator) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": command, "dir": dir})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "database unavailable", err)
		return err
	}
	defer func() { _ = dbClient.Close() }()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	migrator, err := migrate.NewMigrator(sqlDB, dir)
	if err != nil {
		return err
	}
	if err := fn(ctx, migrator); err != nil {
		logg.Error(ctx, "migration failed", err)
		return err
	}
	logg.Info(ctx, "migration complete")
	return nil
}
