package domain

import (
	"context"
	"time"
)

// ProjectRepository persists projects and their schedule settings.
// Lookups return (nil, nil) for missing or soft-deleted rows.
type ProjectRepository interface {
	Create(ctx context.Context, project *Project, setting *ScheduleSetting) (*Project, error)
	GetByID(ctx context.Context, id string) (*Project, error)
	List(ctx context.Context) ([]*Project, error)
	Update(ctx context.Context, project *Project) error
	UpdateStatus(ctx context.Context, id string, status string) error
	UpdateDataTypes(ctx context.Context, id string, dataTypes []string) error
	SoftDelete(ctx context.Context, id string) error

	GetSetting(ctx context.Context, projectID string) (*ScheduleSetting, error)
	SaveSetting(ctx context.Context, setting *ScheduleSetting) error

	// ListDue returns enabled, active, non-manual targets whose
	// next_run_at is at or before now.
	ListDue(ctx context.Context, now time.Time) ([]*DueTarget, error)
}

// BackupRepository owns the backup state machine rows. All transitions are
// conditional updates so concurrent writers linearize in the database.
type BackupRepository interface {
	// Create inserts a pending job; it fails with
	// code.ErrorDuplicateActiveJob when the project already has an
	// in-flight job.
	Create(ctx context.Context, backup *Backup) (*Backup, error)
	GetByID(ctx context.Context, id string) (*Backup, error)

	// MarkProcessing transitions pending -> processing, failing with
	// code.ErrorInvalidTransition from any other state.
	MarkProcessing(ctx context.Context, id string) error
	// MarkCompleted transitions processing -> completed and records the
	// artifact facts plus the expiration instant.
	MarkCompleted(ctx context.Context, id string, sizeBytes, recordCount int64, filePath string, expiresAt time.Time) error
	// MarkFailed transitions processing -> failed with a structured
	// error detail.
	MarkFailed(ctx context.Context, id string, detail ErrorDetail, expiresAt time.Time) error
	// MarkAbandoned fails a stale job from its observed non-terminal
	// status. The conditional update means a claimer that progressed the
	// job in the meantime wins the race.
	MarkAbandoned(ctx context.Context, id, fromStatus string, detail ErrorDetail, expiresAt time.Time) error

	List(ctx context.Context, projectID string, filter BackupFilter, page, pageSize int) ([]*Backup, int64, error)
	Aggregate(ctx context.Context, projectID string, filter BackupFilter) (*StatsSnapshot, error)

	// ListStale returns pending and processing jobs whose last update is
	// older than cutoff, for the recovery sweep. Pending rows matter too:
	// a crash between create and claim would otherwise hold the
	// per-project slot forever.
	ListStale(ctx context.Context, cutoff time.Time) ([]*Backup, error)
	// ListExpired returns terminal jobs whose expiration instant passed
	// and that still reference an artifact.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*Backup, error)
	// ClearFilePath detaches a purged artifact from its job row.
	ClearFilePath(ctx context.Context, id string) error
}
