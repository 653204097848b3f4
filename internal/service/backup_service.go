package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bubblevault/bubble-backup-service/internal/bubble"
	"github.com/bubblevault/bubble-backup-service/internal/domain"
	"github.com/bubblevault/bubble-backup-service/internal/dto"
	"github.com/bubblevault/bubble-backup-service/internal/schedule"
	"github.com/bubblevault/bubble-backup-service/pkg/app"
	"github.com/bubblevault/bubble-backup-service/pkg/code"
	"github.com/bubblevault/bubble-backup-service/pkg/storage"
	"github.com/bubblevault/bubble-backup-service/pkg/timex"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"go.uber.org/zap"
)

// BackupService defines the business service interface for the backup engine
// 定义备份业务服务接口
type BackupService interface {
	// RunDispatchCycle sweeps stale jobs and launches a backup attempt for
	// every due target. It returns once the attempts are spawned.
	RunDispatchCycle(ctx context.Context) error
	// SweepStale fails pending and processing jobs that outlived the
	// stale timeout.
	SweepStale(ctx context.Context) error
	// TriggerManual starts an on-demand backup. The pending row is created
	// synchronously so the caller sees duplicate-job conflicts; the export
	// itself runs in the background.
	TriggerManual(ctx context.Context, projectID string) (*dto.BackupDTO, error)

	ListBackups(ctx context.Context, projectID string, req *dto.BackupListRequest, pager *app.Pager) ([]*dto.BackupDTO, int64, error)
	GetBackup(ctx context.Context, projectID, backupID string) (*dto.BackupDTO, error)
	Stats(ctx context.Context, projectID string, req *dto.BackupListRequest) (*dto.BackupStatsDTO, error)

	// CleanupExpired purges artifacts whose retention lapsed.
	CleanupExpired(ctx context.Context, limit int) error
	Shutdown(ctx context.Context) error
}

type backupService struct {
	projectRepo domain.ProjectRepository
	backupRepo  domain.BackupRepository
	client      bubble.Client
	store       storage.Storager
	policy      BackupPolicy
	clock       clock.Clock
	logger      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	sem    chan struct{}
}

// NewBackupService creates BackupService instance
// 创建 BackupService 实例
func NewBackupService(
	projectRepo domain.ProjectRepository,
	backupRepo domain.BackupRepository,
	client bubble.Client,
	store storage.Storager,
	policy BackupPolicy,
	clk clock.Clock,
	logger *zap.Logger,
) BackupService {
	policy.Normalize()
	ctx, cancel := context.WithCancel(context.Background())
	return &backupService{
		projectRepo: projectRepo,
		backupRepo:  backupRepo,
		client:      client,
		store:       store,
		policy:      policy,
		clock:       clk,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		sem:         make(chan struct{}, policy.MaxConcurrent),
	}
}

func (s *backupService) toDTO(b *domain.Backup) *dto.BackupDTO {
	if b == nil {
		return nil
	}
	d := &dto.BackupDTO{
		ID:           b.ID,
		ProjectID:    b.ProjectID,
		ScheduleType: b.ScheduleType,
		Status:       b.Status,
		SizeBytes:    b.SizeBytes,
		RecordCount:  b.RecordCount,
		FilePath:     b.FilePath,
		CreatedAt:    timex.Time(b.CreatedAt),
		UpdatedAt:    timex.Time(b.UpdatedAt),
	}
	if b.ErrorDetail != nil {
		d.Error = &dto.BackupErrorDTO{Kind: b.ErrorDetail.Kind, Message: b.ErrorDetail.Message}
	}
	if b.ExpiresAt != nil {
		t := timex.Time(*b.ExpiresAt)
		d.ExpiresAt = &t
	}
	return d
}

// RunDispatchCycle is invoked by the scheduler tick. Attempts run on their
// own goroutines behind the concurrency semaphore so a slow export never
// delays the next tick.
func (s *backupService) RunDispatchCycle(ctx context.Context) error {
	if err := s.SweepStale(ctx); err != nil {
		s.logger.Error("stale sweep failed", zap.Error(err))
	}

	now := s.clock.Now()
	targets, err := s.projectRepo.ListDue(ctx, now)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return nil
	}

	s.logger.Info("dispatching due backups", zap.Int("targets", len(targets)))

	for _, target := range targets {
		s.wg.Add(1)
		go func(t *domain.DueTarget) {
			defer s.wg.Done()
			select {
			case s.sem <- struct{}{}:
				defer func() { <-s.sem }()
			case <-s.ctx.Done():
				return
			}
			s.attempt(s.ctx, t)
		}(target)
	}
	return nil
}

// attempt runs one scheduled backup for a due target. The schedule advances
// exactly once per attempt, on success and on failure alike. Losing the
// duplicate race leaves the schedule untouched so the target is retried
// once the in-flight job releases the slot.
func (s *backupService) attempt(ctx context.Context, target *domain.DueTarget) {
	project := &target.Project

	backup, err := s.backupRepo.Create(ctx, &domain.Backup{
		ID:           uuid.NewString(),
		ProjectID:    project.ID,
		ScheduleType: target.Setting.ScheduleType,
	})
	if err != nil {
		if errors.Is(err, code.ErrorDuplicateActiveJob) {
			s.logger.Debug("backup already in flight, skipping",
				zap.String("projectId", project.ID))
			return
		}
		s.logger.Error("failed to create backup job",
			zap.String("projectId", project.ID), zap.Error(err))
		return
	}

	s.finalize(ctx, project, backup)

	if err := s.advanceSchedule(ctx, project, &target.Setting); err != nil {
		s.logger.Error("failed to advance schedule",
			zap.String("projectId", project.ID), zap.Error(err))
	}
}

// finalize drives one pending job to a terminal state.
func (s *backupService) finalize(ctx context.Context, project *domain.Project, backup *domain.Backup) {
	start := s.clock.Now()

	if err := s.backupRepo.MarkProcessing(ctx, backup.ID); err != nil {
		s.logger.Error("failed to claim backup job",
			zap.String("backupId", backup.ID), zap.Error(err))
		return
	}

	size, records, filePath, err := s.export(ctx, project, backup)

	expiresAt := backup.CreatedAt.Add(s.policy.RetentionFor(backup.ScheduleType))

	if err != nil {
		detail := classifyError(err)
		if markErr := s.backupRepo.MarkFailed(ctx, backup.ID, detail, expiresAt); markErr != nil {
			s.logger.Error("failed to record backup failure",
				zap.String("backupId", backup.ID), zap.Error(markErr))
		}
		s.logger.Warn("backup failed",
			zap.String("projectId", project.ID),
			zap.String("backupId", backup.ID),
			zap.String("kind", detail.Kind),
			zap.Duration("duration", s.clock.Now().Sub(start)),
			zap.Error(err))
		return
	}

	if err := s.backupRepo.MarkCompleted(ctx, backup.ID, size, records, filePath, expiresAt); err != nil {
		s.logger.Error("failed to record backup completion",
			zap.String("backupId", backup.ID), zap.Error(err))
		return
	}

	s.logger.Info("backup completed",
		zap.String("projectId", project.ID),
		zap.String("backupId", backup.ID),
		zap.Int64("sizeBytes", size),
		zap.Int64("recordCount", records),
		zap.String("path", filePath),
		zap.Duration("duration", s.clock.Now().Sub(start)))
}

// export dumps every data type and persists the artifact.
func (s *backupService) export(ctx context.Context, project *domain.Project, backup *domain.Backup) (int64, int64, string, error) {
	dump, err := s.client.ExportAll(ctx, project.AppURL, project.APIKey, project.DataTypes)
	if err != nil {
		return 0, 0, "", err
	}

	payload, err := json.Marshal(dump)
	if err != nil {
		return 0, 0, "", code.ErrorExportFailed.WithDetails(err.Error())
	}

	filePath := fmt.Sprintf("backups/%s/%s.json",
		project.ID, s.clock.Now().UTC().Format("20060102T150405Z"))

	stored, err := s.store.SendContent(filePath, payload, s.clock.Now())
	if err != nil {
		return 0, 0, "", code.ErrorExportFailed.WithDetails(err.Error())
	}

	return int64(len(payload)), dump.RecordCount(), stored, nil
}

// advanceSchedule records the run and computes the next one from now, so a
// target that was due several periods back does not replay the backlog.
func (s *backupService) advanceSchedule(ctx context.Context, project *domain.Project, setting *domain.ScheduleSetting) error {
	if setting.ScheduleType == domain.ScheduleManual {
		return nil
	}

	now := s.clock.Now()
	next, err := schedule.NextRun(setting, project.Timezone, now)
	if err != nil {
		return err
	}

	nowUTC := now.UTC()
	nextUTC := next.UTC()
	setting.LastRunAt = &nowUTC
	setting.NextRunAt = &nextUTC
	return s.projectRepo.SaveSetting(ctx, setting)
}

// classifyError maps an export failure to the persisted detail.
func classifyError(err error) domain.ErrorDetail {
	kind := domain.ErrorKindInternal
	switch {
	case errors.Is(err, code.ErrorInvalidCredentials):
		kind = domain.ErrorKindInvalidCredentials
	case errors.Is(err, code.ErrorUnreachable):
		kind = domain.ErrorKindUnreachable
	case errors.Is(err, code.ErrorExportFailed):
		kind = domain.ErrorKindExportFailed
	case errors.Is(err, context.DeadlineExceeded):
		kind = domain.ErrorKindTimeout
	}
	return domain.ErrorDetail{Kind: kind, Message: err.Error()}
}

// SweepStale fails pending and processing jobs whose last update is older
// than the stale timeout. Runs at the top of every dispatch cycle so crashed
// attempts release the per-project slot; pending rows are swept too, since a
// crash between create and claim would otherwise hold the slot forever.
func (s *backupService) SweepStale(ctx context.Context) error {
	cutoff := s.clock.Now().Add(-s.policy.StaleTimeout)
	stale, err := s.backupRepo.ListStale(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, b := range stale {
		detail := domain.ErrorDetail{
			Kind:    domain.ErrorKindTimeout,
			Message: fmt.Sprintf("no progress for more than %s", s.policy.StaleTimeout),
		}
		expiresAt := b.CreatedAt.Add(s.policy.RetentionFor(b.ScheduleType))
		if err := s.backupRepo.MarkAbandoned(ctx, b.ID, b.Status, detail, expiresAt); err != nil {
			// Lost the race to a live worker finishing the job.
			if errors.Is(err, code.ErrorInvalidTransition) {
				continue
			}
			s.logger.Error("failed to fail stale backup",
				zap.String("backupId", b.ID), zap.Error(err))
			continue
		}
		s.logger.Warn("failed stale backup job",
			zap.String("projectId", b.ProjectID),
			zap.String("backupId", b.ID))
	}
	return nil
}

// TriggerManual starts an on-demand backup. Manual runs never touch the
// schedule: next_run_at stays whatever the calculator last produced.
func (s *backupService) TriggerManual(ctx context.Context, projectID string) (*dto.BackupDTO, error) {
	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, code.ErrorProjectNotFound
	}
	if project.Status == domain.ProjectStatusPaused {
		return nil, code.ErrorProjectPaused
	}

	backup, err := s.backupRepo.Create(ctx, &domain.Backup{
		ID:           uuid.NewString(),
		ProjectID:    project.ID,
		ScheduleType: domain.ScheduleManual,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("manual backup triggered",
		zap.String("projectId", project.ID),
		zap.String("backupId", backup.ID))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case s.sem <- struct{}{}:
			defer func() { <-s.sem }()
		case <-s.ctx.Done():
			return
		}
		s.finalize(s.ctx, project, backup)
	}()

	return s.toDTO(backup), nil
}

func parseFilter(req *dto.BackupListRequest) (domain.BackupFilter, error) {
	filter := domain.BackupFilter{}
	if req == nil {
		return filter, nil
	}
	filter.ScheduleType = req.ScheduleType
	if req.CreatedFrom != "" {
		t, err := time.Parse(time.RFC3339, req.CreatedFrom)
		if err != nil {
			return filter, code.ErrorInvalidParams.WithDetails("createdFrom: " + err.Error())
		}
		filter.CreatedFrom = &t
	}
	if req.CreatedTo != "" {
		t, err := time.Parse(time.RFC3339, req.CreatedTo)
		if err != nil {
			return filter, code.ErrorInvalidParams.WithDetails("createdTo: " + err.Error())
		}
		filter.CreatedTo = &t
	}
	return filter, nil
}

func (s *backupService) ListBackups(ctx context.Context, projectID string, req *dto.BackupListRequest, pager *app.Pager) ([]*dto.BackupDTO, int64, error) {
	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, 0, err
	}
	if project == nil {
		return nil, 0, code.ErrorProjectNotFound
	}

	filter, err := parseFilter(req)
	if err != nil {
		return nil, 0, err
	}

	backups, count, err := s.backupRepo.List(ctx, projectID, filter, pager.Page, pager.PageSize)
	if err != nil {
		return nil, 0, err
	}

	var results []*dto.BackupDTO
	for _, b := range backups {
		results = append(results, s.toDTO(b))
	}
	return results, count, nil
}

func (s *backupService) GetBackup(ctx context.Context, projectID, backupID string) (*dto.BackupDTO, error) {
	b, err := s.backupRepo.GetByID(ctx, backupID)
	if err != nil {
		return nil, err
	}
	if b == nil || b.ProjectID != projectID {
		return nil, code.ErrorBackupNotFound
	}
	return s.toDTO(b), nil
}

// Stats aggregates the project's backup history on demand.
func (s *backupService) Stats(ctx context.Context, projectID string, req *dto.BackupListRequest) (*dto.BackupStatsDTO, error) {
	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, code.ErrorProjectNotFound
	}

	filter, err := parseFilter(req)
	if err != nil {
		return nil, err
	}

	snap, err := s.backupRepo.Aggregate(ctx, projectID, filter)
	if err != nil {
		return nil, err
	}
	return &dto.BackupStatsDTO{
		TotalBackups:     snap.TotalBackups,
		TotalSizeBytes:   snap.TotalSizeBytes,
		LastBackupStatus: snap.LastBackupStatus,
	}, nil
}

// CleanupExpired deletes artifacts past retention and detaches them from
// their rows. The rows themselves stay as history.
func (s *backupService) CleanupExpired(ctx context.Context, limit int) error {
	expired, err := s.backupRepo.ListExpired(ctx, s.clock.Now(), limit)
	if err != nil {
		return err
	}

	for _, b := range expired {
		if err := s.store.Delete(b.FilePath); err != nil {
			s.logger.Warn("failed to delete expired artifact",
				zap.String("backupId", b.ID),
				zap.String("path", b.FilePath),
				zap.Error(err))
			continue
		}
		if err := s.backupRepo.ClearFilePath(ctx, b.ID); err != nil {
			s.logger.Error("failed to detach expired artifact",
				zap.String("backupId", b.ID), zap.Error(err))
			continue
		}
		s.logger.Info("purged expired artifact",
			zap.String("backupId", b.ID),
			zap.String("path", b.FilePath))
	}
	return nil
}

// Shutdown stops spawning new attempts and waits for in-flight exports.
func (s *backupService) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("all backup attempts drained")
		return nil
	case <-ctx.Done():
		s.logger.Warn("shutdown deadline reached with backup attempts still running")
		return ctx.Err()
	}
}

var _ BackupService = (*backupService)(nil)
