package domain

import "time"

// Project statuses.
const (
	ProjectStatusActive = "active"
	ProjectStatusPaused = "paused"
)

// Schedule kinds. The persisted values are wire-stable.
const (
	ScheduleDaily   = "daily"
	ScheduleWeekly  = "weekly"
	ScheduleMonthly = "monthly"
	ScheduleManual  = "manual"
)

// ValidScheduleType reports whether s is a known schedule kind.
func ValidScheduleType(s string) bool {
	switch s {
	case ScheduleDaily, ScheduleWeekly, ScheduleMonthly, ScheduleManual:
		return true
	}
	return false
}

// Project is a registered Bubble.io application configured for backup.
type Project struct {
	ID            string
	AppURL        string
	APIKey        string
	ServerRegion  string
	Timezone      string
	DataTypes     []string
	Status        string // active | paused
	BackupEnabled bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ScheduleSetting is the per-project backup cadence state. NextRunAt is nil
// for manual schedules ("not scheduled"); when non-nil it is always the
// calculator's output for the project's time zone and kind, computed from a
// reference no older than LastRunAt.
type ScheduleSetting struct {
	ProjectID    string
	ScheduleType string
	AnchorHour   int
	AnchorMinute int
	// CronExpression, when set on a non-manual schedule, overrides the
	// kind's built-in cadence. Retention stays keyed by ScheduleType.
	CronExpression string
	LastRunAt      *time.Time
	NextRunAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DueTarget pairs a project with its schedule setting for dispatch.
type DueTarget struct {
	Project Project
	Setting ScheduleSetting
}
