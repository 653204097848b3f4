// Package model defines the gorm persistence models.
package model

import (
	"gorm.io/gorm"
)

// AutoMigrate creates or updates the schema for every model. The in-flight
// guard is the unique index on backup.active_project_id; NULLs are exempt
// from uniqueness on every supported engine, so terminal rows never collide.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Project{}, ScheduleSetting{}, Backup{}); err != nil {
		return err
	}
	return nil
}
