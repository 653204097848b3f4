package task

import (
	"context"
	"time"

	"github.com/bubblevault/bubble-backup-service/internal/service"
)

const cleanupBatchSize = 200

// ArtifactCleanupTask purges backup artifacts whose retention lapsed.
type ArtifactCleanupTask struct {
	backup   service.BackupService
	interval time.Duration
}

func NewArtifactCleanupTask(backup service.BackupService, interval time.Duration) *ArtifactCleanupTask {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ArtifactCleanupTask{backup: backup, interval: interval}
}

func (t *ArtifactCleanupTask) Name() string {
	return "ArtifactCleanup"
}

func (t *ArtifactCleanupTask) LoopInterval() time.Duration {
	return t.interval
}

func (t *ArtifactCleanupTask) IsStartupRun() bool {
	return false
}

func (t *ArtifactCleanupTask) Run(ctx context.Context) error {
	return t.backup.CleanupExpired(ctx, cleanupBatchSize)
}
