package commands

import (
	"context"
	"fmt"

	"chainlend-backend/internal/adapter/repository/mysql"
	"chainlend-backend/internal/config"
	"chainlend-backend/internal/infrastructure/db"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the ledger schema and seed protocol state",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	gdb, err := db.OpenGorm(cfg.MySQLDSN(), db.DefaultPool(), log.Named("gorm"))
	if err != nil {
		return err
	}
	if err := migrate(cmd.Context(), gdb, cfg); err != nil {
		return err
	}
	log.Info("schema migrated", zap.String("db", cfg.MySQLDB))
	return nil
}

// migrate is idempotent; serve --migrate runs it on every start.
func migrate(ctx context.Context, gdb *gorm.DB, cfg *config.Config) error {
	if err := mysql.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return mysql.Bootstrap(ctx, gdb, mysql.BootstrapParams{
		Treasury: cfg.TreasuryAddress(),
		Ledger:   cfg.LedgerAddress(),
	})
}
