// Package service implements the business services on top of the domain
// repositories.
package service

import (
	"time"

	"github.com/bubblevault/bubble-backup-service/internal/domain"
)

// BackupPolicy is the engine-wide scheduling and retention policy.
type BackupPolicy struct {
	// AnchorHour is a pointer so a configured midnight anchor (0) is
	// distinguishable from an absent one.
	AnchorHour   *int
	AnchorMinute int

	// StaleTimeout is how long a processing job may go without an update
	// before the sweep fails it.
	StaleTimeout time.Duration
	// MaxConcurrent bounds parallel backup executions.
	MaxConcurrent int

	DailyRetentionDays   int
	WeeklyRetentionDays  int
	MonthlyRetentionDays int
	ManualRetentionDays  int
}

// Normalize fills unset fields with the default policy.
func (p *BackupPolicy) Normalize() {
	if p.AnchorHour == nil {
		hour := 2
		p.AnchorHour = &hour
	}
	if p.StaleTimeout <= 0 {
		p.StaleTimeout = 30 * time.Minute
	}
	if p.MaxConcurrent <= 0 {
		p.MaxConcurrent = 5
	}
	if p.DailyRetentionDays <= 0 {
		p.DailyRetentionDays = 60
	}
	if p.WeeklyRetentionDays <= 0 {
		p.WeeklyRetentionDays = 90
	}
	if p.MonthlyRetentionDays <= 0 {
		p.MonthlyRetentionDays = 180
	}
	if p.ManualRetentionDays <= 0 {
		p.ManualRetentionDays = 60
	}
}

// RetentionFor returns the artifact retention span for a schedule kind.
func (p *BackupPolicy) RetentionFor(scheduleType string) time.Duration {
	days := p.ManualRetentionDays
	switch scheduleType {
	case domain.ScheduleDaily:
		days = p.DailyRetentionDays
	case domain.ScheduleWeekly:
		days = p.WeeklyRetentionDays
	case domain.ScheduleMonthly:
		days = p.MonthlyRetentionDays
	}
	return time.Duration(days) * 24 * time.Hour
}
