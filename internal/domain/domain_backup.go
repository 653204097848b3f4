package domain

import "time"

// Backup job statuses. pending and processing are the in-flight states;
// completed and failed are terminal and immutable.
const (
	BackupStatusPending    = "pending"
	BackupStatusProcessing = "processing"
	BackupStatusCompleted  = "completed"
	BackupStatusFailed     = "failed"
)

// Error detail kinds recorded on failed backups.
const (
	ErrorKindInvalidCredentials = "invalid_credentials"
	ErrorKindUnreachable        = "unreachable"
	ErrorKindExportFailed       = "export_failed"
	ErrorKindTimeout            = "timeout"
	ErrorKindInternal           = "internal"
)

// ErrorDetail is the structured failure message persisted on a backup.
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Backup is one backup job. ScheduleType is a snapshot of the kind active
// at creation time and does not follow later setting changes.
type Backup struct {
	ID           string
	ProjectID    string
	ScheduleType string
	Status       string
	SizeBytes    int64
	RecordCount  int64
	ErrorDetail  *ErrorDetail
	FilePath     string
	ExpiresAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// InFlight reports whether the job still holds the per-project slot.
func (b *Backup) InFlight() bool {
	return b.Status == BackupStatusPending || b.Status == BackupStatusProcessing
}

// Terminal reports whether the job reached a final state.
func (b *Backup) Terminal() bool {
	return b.Status == BackupStatusCompleted || b.Status == BackupStatusFailed
}

// BackupFilter narrows backup queries and stats aggregation.
type BackupFilter struct {
	ScheduleType string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
}

// StatsSnapshot is the derived per-project summary; it is never stored.
type StatsSnapshot struct {
	TotalBackups     int64
	TotalSizeBytes   int64
	LastBackupStatus string // empty when the project has no matching rows
}
