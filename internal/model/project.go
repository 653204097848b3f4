package model

import (
	"time"

	"github.com/bubblevault/bubble-backup-service/pkg/timex"

	"gorm.io/gorm"
)

// Project is a registered Bubble.io application. Rows are soft-deleted so
// backup history keeps a valid reference.
type Project struct {
	ID            string         `gorm:"column:id;primaryKey;type:varchar(36)"`
	AppURL        string         `gorm:"column:app_url;type:varchar(255);not null"`
	APIKey        string         `gorm:"column:api_key;type:varchar(255);not null"`
	ServerRegion  string         `gorm:"column:server_region;type:varchar(64)"`
	Timezone      string         `gorm:"column:timezone;type:varchar(64);not null"`
	DataTypes     string         `gorm:"column:data_types;type:text"` // JSON array of type names
	Status        string         `gorm:"column:status;type:varchar(16);not null;default:active"`
	BackupEnabled int64          `gorm:"column:backup_enabled;not null;default:1"`
	CreatedAt     timex.Time     `gorm:"column:created_at"`
	UpdatedAt     timex.Time     `gorm:"column:updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (Project) TableName() string {
	return "project"
}

// ScheduleSetting is the 1:1 cadence state for a project.
type ScheduleSetting struct {
	ProjectID      string     `gorm:"column:project_id;primaryKey;type:varchar(36)"`
	ScheduleType   string     `gorm:"column:schedule_type;type:varchar(16);not null"`
	AnchorHour     int64      `gorm:"column:anchor_hour;not null;default:2"`
	AnchorMinute   int64      `gorm:"column:anchor_minute;not null;default:0"`
	CronExpression string     `gorm:"column:cron_expression;type:varchar(128)"`
	LastRunAt      *time.Time `gorm:"column:last_run_at"`
	NextRunAt      *time.Time `gorm:"column:next_run_at;index"`
	CreatedAt      timex.Time `gorm:"column:created_at"`
	UpdatedAt      timex.Time `gorm:"column:updated_at"`
}

func (ScheduleSetting) TableName() string {
	return "schedule_setting"
}
