package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the ledger schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := initDatabase(cfg.Database, cfg.Log.Level)
		if err != nil {
			return err
		}
		if err := migrate(db); err != nil {
			return err
		}
		zapLogger.Info("Schema migrated", zap.String("driver", cfg.Database.Driver))
		return nil
	},
}
