package task

import (
	"context"
	"time"

	"github.com/bubblevault/bubble-backup-service/internal/service"
)

// DispatchTask polls for due backup targets and launches their attempts.
type DispatchTask struct {
	backup   service.BackupService
	interval time.Duration
}

func NewDispatchTask(backup service.BackupService, interval time.Duration) *DispatchTask {
	if interval <= 0 {
		interval = time.Minute
	}
	return &DispatchTask{backup: backup, interval: interval}
}

func (t *DispatchTask) Name() string {
	return "BackupDispatch"
}

func (t *DispatchTask) LoopInterval() time.Duration {
	return t.interval
}

// IsStartupRun is true so targets that came due while the service was down
// are picked up immediately.
func (t *DispatchTask) IsStartupRun() bool {
	return true
}

func (t *DispatchTask) Run(ctx context.Context) error {
	return t.backup.RunDispatchCycle(ctx)
}
