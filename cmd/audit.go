package cmd

import (
	"fmt"

	"github.com/icastillejo/practice-management/internal/audit"
	auditPostgres "github.com/icastillejo/practice-management/internal/audit/postgres"
	"github.com/icastillejo/practice-management/pkg/logger"

	"github.com/spf13/cobra"
)

var auditCleanupDays int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit trail maintenance",
}

var auditCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete audit log entries older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(".")
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		db, err := initGorm(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to init db: %w", err)
		}

		days := auditCleanupDays
		if days <= 0 {
			days = cfg.App.AuditRetentionDays
		}

		svc := audit.NewService(auditPostgres.NewAuditRepository(db), logger.L())
		deleted, err := svc.CleanupOldLogs(days)
		if err != nil {
			return err
		}

		fmt.Printf("Deleted %d audit log entries older than %d days.\n", deleted, days)
		return nil
	},
}

func init() {
	auditCleanupCmd.Flags().IntVar(&auditCleanupDays, "days", 0, "Delete logs older than this many days (defaults to configured retention)")
	auditCmd.AddCommand(auditCleanupCmd)
}
