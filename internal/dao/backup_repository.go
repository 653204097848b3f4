package dao

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bubblevault/bubble-backup-service/internal/domain"
	"github.com/bubblevault/bubble-backup-service/internal/model"
	"github.com/bubblevault/bubble-backup-service/pkg/code"
	"github.com/bubblevault/bubble-backup-service/pkg/timex"

	"gorm.io/gorm"
)

type backupRepository struct {
	dao *Dao
}

// NewBackupRepository 创建 BackupRepository 实例
func NewBackupRepository(dao *Dao) domain.BackupRepository {
	return &backupRepository{dao: dao}
}

func (r *backupRepository) toDomain(m *model.Backup) *domain.Backup {
	if m == nil {
		return nil
	}
	var detail *domain.ErrorDetail
	if m.ErrorDetail != "" {
		detail = &domain.ErrorDetail{}
		if err := json.Unmarshal([]byte(m.ErrorDetail), detail); err != nil {
			detail = nil
		}
	}
	return &domain.Backup{
		ID:           m.ID,
		ProjectID:    m.ProjectID,
		ScheduleType: m.ScheduleType,
		Status:       m.Status,
		SizeBytes:    m.SizeBytes,
		RecordCount:  m.RecordCount,
		ErrorDetail:  detail,
		FilePath:     m.FilePath,
		ExpiresAt:    m.ExpiresAt,
		CreatedAt:    time.Time(m.CreatedAt),
		UpdatedAt:    time.Time(m.UpdatedAt),
	}
}

// Create inserts the job in pending state. The active_project_id guard
// column is set to the project ID so the unique index rejects a second
// in-flight job for the same project.
func (r *backupRepository) Create(ctx context.Context, backup *domain.Backup) (*domain.Backup, error) {
	now := timex.Now()
	active := backup.ProjectID
	m := &model.Backup{
		ID:              backup.ID,
		ProjectID:       backup.ProjectID,
		ScheduleType:    backup.ScheduleType,
		Status:          domain.BackupStatusPending,
		FilePath:        backup.FilePath,
		ActiveProjectID: &active,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := r.dao.Db.WithContext(ctx).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, code.ErrorDuplicateActiveJob
		}
		return nil, err
	}
	return r.toDomain(m), nil
}

func (r *backupRepository) GetByID(ctx context.Context, id string) (*domain.Backup, error) {
	var m model.Backup
	err := r.dao.Db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return r.toDomain(&m), nil
}

// MarkProcessing is a conditional update on the pending state so concurrent
// claimers linearize in the database.
func (r *backupRepository) MarkProcessing(ctx context.Context, id string) error {
	result := r.dao.Db.WithContext(ctx).Model(&model.Backup{}).
		Where("id = ? AND status = ?", id, domain.BackupStatusPending).
		Updates(map[string]any{
			"status":     domain.BackupStatusProcessing,
			"updated_at": timex.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return code.ErrorInvalidTransition
	}
	return nil
}

func (r *backupRepository) MarkCompleted(ctx context.Context, id string, sizeBytes, recordCount int64, filePath string, expiresAt time.Time) error {
	result := r.dao.Db.WithContext(ctx).Model(&model.Backup{}).
		Where("id = ? AND status = ?", id, domain.BackupStatusProcessing).
		Updates(map[string]any{
			"status":            domain.BackupStatusCompleted,
			"size_bytes":        sizeBytes,
			"record_count":      recordCount,
			"file_path":         filePath,
			"expires_at":        expiresAt,
			"active_project_id": nil,
			"updated_at":        timex.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return code.ErrorInvalidTransition
	}
	return nil
}

func (r *backupRepository) MarkFailed(ctx context.Context, id string, detail domain.ErrorDetail, expiresAt time.Time) error {
	raw, _ := json.Marshal(detail)
	result := r.dao.Db.WithContext(ctx).Model(&model.Backup{}).
		Where("id = ? AND status = ?", id, domain.BackupStatusProcessing).
		Updates(map[string]any{
			"status":            domain.BackupStatusFailed,
			"error_detail":      string(raw),
			"expires_at":        expiresAt,
			"active_project_id": nil,
			"updated_at":        timex.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return code.ErrorInvalidTransition
	}
	return nil
}

// MarkAbandoned fails a stale job only if it still sits in the status the
// sweep observed, so a live worker that claimed or finished it in the
// meantime keeps its result.
func (r *backupRepository) MarkAbandoned(ctx context.Context, id, fromStatus string, detail domain.ErrorDetail, expiresAt time.Time) error {
	if fromStatus != domain.BackupStatusPending && fromStatus != domain.BackupStatusProcessing {
		return code.ErrorInvalidTransition
	}
	raw, _ := json.Marshal(detail)
	result := r.dao.Db.WithContext(ctx).Model(&model.Backup{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(map[string]any{
			"status":            domain.BackupStatusFailed,
			"error_detail":      string(raw),
			"expires_at":        expiresAt,
			"active_project_id": nil,
			"updated_at":        timex.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return code.ErrorInvalidTransition
	}
	return nil
}

func (r *backupRepository) filtered(ctx context.Context, projectID string, filter domain.BackupFilter) *gorm.DB {
	q := r.dao.Db.WithContext(ctx).Model(&model.Backup{}).Where("project_id = ?", projectID)
	if filter.ScheduleType != "" {
		q = q.Where("schedule_type = ?", filter.ScheduleType)
	}
	if filter.CreatedFrom != nil {
		q = q.Where("created_at >= ?", timex.Time(*filter.CreatedFrom))
	}
	if filter.CreatedTo != nil {
		q = q.Where("created_at <= ?", timex.Time(*filter.CreatedTo))
	}
	return q
}

func (r *backupRepository) List(ctx context.Context, projectID string, filter domain.BackupFilter, page, pageSize int) ([]*domain.Backup, int64, error) {
	var count int64
	if err := r.filtered(ctx, projectID, filter).Count(&count).Error; err != nil {
		return nil, 0, err
	}

	var models []*model.Backup
	offset := (page - 1) * pageSize
	err := r.filtered(ctx, projectID, filter).
		Order("created_at DESC").
		Offset(offset).Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	var list []*domain.Backup
	for _, m := range models {
		list = append(list, r.toDomain(m))
	}
	return list, count, nil
}

// Aggregate derives the stats snapshot from the filtered rows. Size counts
// completed jobs only; the last status looks at the newest row overall.
func (r *backupRepository) Aggregate(ctx context.Context, projectID string, filter domain.BackupFilter) (*domain.StatsSnapshot, error) {
	snap := &domain.StatsSnapshot{}

	if err := r.filtered(ctx, projectID, filter).Count(&snap.TotalBackups).Error; err != nil {
		return nil, err
	}

	var total struct {
		Total int64
	}
	err := r.filtered(ctx, projectID, filter).
		Where("status = ?", domain.BackupStatusCompleted).
		Select("COALESCE(SUM(size_bytes), 0) AS total").
		Scan(&total).Error
	if err != nil {
		return nil, err
	}
	snap.TotalSizeBytes = total.Total

	var last model.Backup
	err = r.filtered(ctx, projectID, filter).
		Order("created_at DESC").
		First(&last).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return snap, nil
		}
		return nil, err
	}
	snap.LastBackupStatus = last.Status
	return snap, nil
}

func (r *backupRepository) ListStale(ctx context.Context, cutoff time.Time) ([]*domain.Backup, error) {
	var models []*model.Backup
	err := r.dao.Db.WithContext(ctx).
		Where("status IN ?", []string{domain.BackupStatusPending, domain.BackupStatusProcessing}).
		Where("updated_at < ?", timex.Time(cutoff)).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	var list []*domain.Backup
	for _, m := range models {
		list = append(list, r.toDomain(m))
	}
	return list, nil
}

func (r *backupRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Backup, error) {
	var models []*model.Backup
	err := r.dao.Db.WithContext(ctx).
		Where("status IN ?", []string{domain.BackupStatusCompleted, domain.BackupStatusFailed}).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Where("file_path <> ''").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	var list []*domain.Backup
	for _, m := range models {
		list = append(list, r.toDomain(m))
	}
	return list, nil
}

func (r *backupRepository) ClearFilePath(ctx context.Context, id string) error {
	return r.dao.Db.WithContext(ctx).Model(&model.Backup{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"file_path":  "",
			"updated_at": timex.Now(),
		}).Error
}

// 确保 backupRepository 实现了 domain.BackupRepository 接口
var _ domain.BackupRepository = (*backupRepository)(nil)
