package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/uml-studio/engine/pkg/config"
	"github.com/uml-studio/engine/pkg/database"
	"github.com/uml-studio/engine/pkg/logger"
)

type openFunc func(ctx context.Context) (*gorm.DB, error)

func main() {
	cfg := config.MustLoad()
	if _, err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		panic(err)
	}
	defer logger.Sync()

	root := newRootCmd(func(ctx context.Context) (*gorm.DB, error) {
		return database.OpenPostgres(ctx, cfg.DatabaseURL)
	})
	if err := root.Execute(); err != nil {
		logger.L().Error("migrate failed", zap.Error(err))
		os.Exit(1)
	}
}

func newRootCmd(open openFunc) *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the UML studio database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newUpCmd(open), newStatusCmd(open))
	return root
}

func newUpCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Create or update every table and index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := open(cmd.Context())
			if err != nil {
				return err
			}
			if err := runMigrations(db); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			logger.L().Info("migrations completed", zap.String("dialect", db.Dialector.Name()))
			fmt.Fprintln(cmd.OutOrStdout(), "migrations completed")
			return nil
		},
	}
}

func newStatusCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report which tables exist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := open(cmd.Context())
			if err != nil {
				return err
			}
			missing := 0
			for _, name := range tableNames(db) {
				state := "ok"
				if !db.Migrator().HasTable(name) {
					state = "missing"
					missing++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", name, state)
			}
			if missing > 0 {
				return fmt.Errorf("%d table(s) missing, run migrate up", missing)
			}
			return nil
		},
	}
}
