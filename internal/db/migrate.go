package db

import (
	"civicsource/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Source{},
		&models.HealthProbe{},
		&models.Job{},
		&models.RawRecord{},
		&models.CanonicalRecord{},
		&models.RecordVote{},
		&models.Entity{},
		&models.Award{},
		&models.ScheduledPipeline{},
		&models.PipelineRun{},
		&models.Alert{},
		&models.Notification{},
	)
}
