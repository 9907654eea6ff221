package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/tiktuk/backend/internal/feed"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationClearDanglingPendingComments = "2026-08-10_clear_dangling_pending_comments"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationClearDanglingPendingComments, apply: clearDanglingPendingComments},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// clearDanglingPendingComments resets armed comment targets that reference a
// video no longer in the catalog. Rows written before delete cascading
// cleared the target could still point at removed records.
func clearDanglingPendingComments(db *gorm.DB) error {
	return db.Model(&feed.UserNavState{}).
		Where("pending_video_id IS NOT NULL AND pending_video_id NOT IN (?)",
			db.Model(&feed.VideoRecord{}).Select("id")).
		Update("pending_video_id", nil).Error
}
