package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/rankpilot/delivery-engine/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createNotificationPreferences(),
		createNotifications(),
		createDeliveryAttempts(),
		createScheduledJobs(),
		createDeliveryStatsRollups(),
	})

	return m.Migrate()
}

func createNotificationPreferences() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_notification_preferences",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.PreferenceModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.PreferenceModel{})
		},
	}
}

func createNotifications() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_notifications",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.NotificationModel{}); err != nil {
				return err
			}
			// The daily-cap counter scans per tenant per day.
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_notifications_tenant_created ON notifications (tenant_id, created_at)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.NotificationModel{})
		},
	}
}

func createDeliveryAttempts() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_delivery_attempts",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.AttemptModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_attempts_tenant_created ON delivery_attempts (tenant_id, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_attempts_notification_id ON delivery_attempts (notification_id) WHERE notification_id IS NOT NULL`,
				`CREATE INDEX IF NOT EXISTS idx_attempts_job_id ON delivery_attempts (job_id) WHERE job_id IS NOT NULL`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.AttemptModel{})
		},
	}
}

func createScheduledJobs() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_scheduled_jobs",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.JobModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_jobs_due ON scheduled_jobs (due_at) WHERE status = 'PENDING'`,
				`CREATE INDEX IF NOT EXISTS idx_jobs_tenant_status ON scheduled_jobs (tenant_id, status)`,
				`CREATE INDEX IF NOT EXISTS idx_jobs_campaign_id ON scheduled_jobs (campaign_id) WHERE campaign_id IS NOT NULL`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.JobModel{})
		},
	}
}

func createDeliveryStatsRollups() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000005_create_delivery_stats_rollups",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.StatsRollupModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.StatsRollupModel{})
		},
	}
}
