package dao

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bubblevault/bubble-backup-service/internal/domain"
	"github.com/bubblevault/bubble-backup-service/internal/model"
	"github.com/bubblevault/bubble-backup-service/pkg/code"
	"github.com/bubblevault/bubble-backup-service/pkg/timex"

	"gorm.io/gorm"
)

type projectRepository struct {
	dao *Dao
}

// NewProjectRepository 创建 ProjectRepository 实例
func NewProjectRepository(dao *Dao) domain.ProjectRepository {
	return &projectRepository{dao: dao}
}

func (r *projectRepository) toDomain(m *model.Project) *domain.Project {
	if m == nil {
		return nil
	}
	var dataTypes []string
	if m.DataTypes != "" {
		_ = json.Unmarshal([]byte(m.DataTypes), &dataTypes)
	}
	return &domain.Project{
		ID:            m.ID,
		AppURL:        m.AppURL,
		APIKey:        m.APIKey,
		ServerRegion:  m.ServerRegion,
		Timezone:      m.Timezone,
		DataTypes:     dataTypes,
		Status:        m.Status,
		BackupEnabled: m.BackupEnabled == 1,
		CreatedAt:     time.Time(m.CreatedAt),
		UpdatedAt:     time.Time(m.UpdatedAt),
	}
}

func (r *projectRepository) toModel(d *domain.Project) *model.Project {
	if d == nil {
		return nil
	}
	enabled := int64(0)
	if d.BackupEnabled {
		enabled = 1
	}
	dataTypes, _ := json.Marshal(d.DataTypes)
	return &model.Project{
		ID:            d.ID,
		AppURL:        d.AppURL,
		APIKey:        d.APIKey,
		ServerRegion:  d.ServerRegion,
		Timezone:      d.Timezone,
		DataTypes:     string(dataTypes),
		Status:        d.Status,
		BackupEnabled: enabled,
		CreatedAt:     timex.Time(d.CreatedAt),
		UpdatedAt:     timex.Time(d.UpdatedAt),
	}
}

func (r *projectRepository) settingToDomain(m *model.ScheduleSetting) *domain.ScheduleSetting {
	if m == nil {
		return nil
	}
	return &domain.ScheduleSetting{
		ProjectID:      m.ProjectID,
		ScheduleType:   m.ScheduleType,
		AnchorHour:     int(m.AnchorHour),
		AnchorMinute:   int(m.AnchorMinute),
		CronExpression: m.CronExpression,
		LastRunAt:      m.LastRunAt,
		NextRunAt:      m.NextRunAt,
		CreatedAt:      time.Time(m.CreatedAt),
		UpdatedAt:      time.Time(m.UpdatedAt),
	}
}

func (r *projectRepository) settingToModel(d *domain.ScheduleSetting) *model.ScheduleSetting {
	if d == nil {
		return nil
	}
	return &model.ScheduleSetting{
		ProjectID:      d.ProjectID,
		ScheduleType:   d.ScheduleType,
		AnchorHour:     int64(d.AnchorHour),
		AnchorMinute:   int64(d.AnchorMinute),
		CronExpression: d.CronExpression,
		LastRunAt:      d.LastRunAt,
		NextRunAt:      d.NextRunAt,
		CreatedAt:      timex.Time(d.CreatedAt),
		UpdatedAt:      timex.Time(d.UpdatedAt),
	}
}

// Create inserts the project and its schedule setting in one transaction.
func (r *projectRepository) Create(ctx context.Context, project *domain.Project, setting *domain.ScheduleSetting) (*domain.Project, error) {
	m := r.toModel(project)
	m.CreatedAt = timex.Now()
	m.UpdatedAt = m.CreatedAt

	s := r.settingToModel(setting)
	s.ProjectID = m.ID
	s.CreatedAt = m.CreatedAt
	s.UpdatedAt = m.CreatedAt

	err := r.dao.Db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		return tx.Create(s).Error
	})
	if err != nil {
		return nil, err
	}
	return r.toDomain(m), nil
}

func (r *projectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	var m model.Project
	err := r.dao.Db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return r.toDomain(&m), nil
}

func (r *projectRepository) List(ctx context.Context) ([]*domain.Project, error) {
	var models []*model.Project
	err := r.dao.Db.WithContext(ctx).Order("created_at DESC").Find(&models).Error
	if err != nil {
		return nil, err
	}
	var result []*domain.Project
	for _, m := range models {
		result = append(result, r.toDomain(m))
	}
	return result, nil
}

func (r *projectRepository) Update(ctx context.Context, project *domain.Project) error {
	m := r.toModel(project)
	m.UpdatedAt = timex.Now()
	result := r.dao.Db.WithContext(ctx).Model(&model.Project{}).
		Where("id = ?", m.ID).
		Updates(map[string]any{
			"app_url":       m.AppURL,
			"api_key":       m.APIKey,
			"server_region": m.ServerRegion,
			"timezone":      m.Timezone,
			"updated_at":    m.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return code.ErrorProjectNotFound
	}
	return nil
}

func (r *projectRepository) UpdateStatus(ctx context.Context, id string, status string) error {
	result := r.dao.Db.WithContext(ctx).Model(&model.Project{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": timex.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return code.ErrorProjectNotFound
	}
	return nil
}

func (r *projectRepository) UpdateDataTypes(ctx context.Context, id string, dataTypes []string) error {
	raw, _ := json.Marshal(dataTypes)
	result := r.dao.Db.WithContext(ctx).Model(&model.Project{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"data_types": string(raw),
			"updated_at": timex.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return code.ErrorProjectNotFound
	}
	return nil
}

func (r *projectRepository) SoftDelete(ctx context.Context, id string) error {
	result := r.dao.Db.WithContext(ctx).Where("id = ?", id).Delete(&model.Project{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return code.ErrorProjectNotFound
	}
	return nil
}

func (r *projectRepository) GetSetting(ctx context.Context, projectID string) (*domain.ScheduleSetting, error) {
	var m model.ScheduleSetting
	err := r.dao.Db.WithContext(ctx).Where("project_id = ?", projectID).First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return r.settingToDomain(&m), nil
}

func (r *projectRepository) SaveSetting(ctx context.Context, setting *domain.ScheduleSetting) error {
	m := r.settingToModel(setting)
	m.UpdatedAt = timex.Now()
	result := r.dao.Db.WithContext(ctx).Model(&model.ScheduleSetting{}).
		Where("project_id = ?", m.ProjectID).
		Updates(map[string]any{
			"schedule_type":   m.ScheduleType,
			"anchor_hour":     m.AnchorHour,
			"anchor_minute":   m.AnchorMinute,
			"cron_expression": m.CronExpression,
			"last_run_at":     m.LastRunAt,
			"next_run_at":     m.NextRunAt,
			"updated_at":      m.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return code.ErrorProjectNotFound
	}
	return nil
}

// ListDue joins enabled active projects with settings whose next_run_at has
// arrived. Manual schedules carry a NULL next_run_at and never match.
func (r *projectRepository) ListDue(ctx context.Context, now time.Time) ([]*domain.DueTarget, error) {
	var settings []*model.ScheduleSetting
	err := r.dao.Db.WithContext(ctx).Model(&model.ScheduleSetting{}).
		Joins("JOIN project ON project.id = schedule_setting.project_id AND project.deleted_at IS NULL").
		Where("project.status = ?", domain.ProjectStatusActive).
		Where("project.backup_enabled = ?", 1).
		Where("schedule_setting.next_run_at IS NOT NULL").
		Where("schedule_setting.next_run_at <= ?", now).
		Find(&settings).Error
	if err != nil {
		return nil, err
	}

	if len(settings) == 0 {
		return nil, nil
	}

	// One batched fetch for the matched projects instead of a query per
	// setting row.
	ids := make([]string, 0, len(settings))
	for _, s := range settings {
		ids = append(ids, s.ProjectID)
	}
	var projects []*model.Project
	if err := r.dao.Db.WithContext(ctx).Where("id IN ?", ids).Find(&projects).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Project, len(projects))
	for _, p := range projects {
		byID[p.ID] = p
	}

	var targets []*domain.DueTarget
	for _, s := range settings {
		p, ok := byID[s.ProjectID]
		if !ok {
			// Deleted between the two reads.
			continue
		}
		targets = append(targets, &domain.DueTarget{
			Project: *r.toDomain(p),
			Setting: *r.settingToDomain(s),
		})
	}
	return targets, nil
}

// 确保 projectRepository 实现了 domain.ProjectRepository 接口
var _ domain.ProjectRepository = (*projectRepository)(nil)
