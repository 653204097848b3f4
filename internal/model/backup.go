package model

import (
	"time"

	"github.com/bubblevault/bubble-backup-service/pkg/timex"
)

// Backup is one backup job row. ActiveProjectID carries the at-most-one
// in-flight guard: it holds the project ID while the job is pending or
// processing and is set to NULL on the terminal transition, so the unique
// index rejects a second concurrent insert for the same project.
type Backup struct {
	ID           string     `gorm:"column:id;primaryKey;type:varchar(36)"`
	ProjectID    string     `gorm:"column:project_id;type:varchar(36);not null;index"`
	ScheduleType string     `gorm:"column:schedule_type;type:varchar(16);not null"`
	Status       string     `gorm:"column:status;type:varchar(16);not null;index"`
	SizeBytes    int64      `gorm:"column:size_bytes;not null;default:0"`
	RecordCount  int64      `gorm:"column:record_count;not null;default:0"`
	ErrorDetail  string     `gorm:"column:error_detail;type:text"` // JSON {kind, message}
	FilePath     string     `gorm:"column:file_path;type:varchar(512)"`
	ExpiresAt    *time.Time `gorm:"column:expires_at;index"`

	ActiveProjectID *string `gorm:"column:active_project_id;type:varchar(36);uniqueIndex:uk_backup_active_project"`

	CreatedAt timex.Time `gorm:"column:created_at;index"`
	UpdatedAt timex.Time `gorm:"column:updated_at"`
}

func (Backup) TableName() string {
	return "backup"
}
