package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/bubblevault/bubble-backup-service/internal/bubble"
	"github.com/bubblevault/bubble-backup-service/internal/domain"
	"github.com/bubblevault/bubble-backup-service/internal/dto"
	"github.com/bubblevault/bubble-backup-service/internal/schedule"
	"github.com/bubblevault/bubble-backup-service/pkg/code"
	"github.com/bubblevault/bubble-backup-service/pkg/timex"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"go.uber.org/zap"
)

// ProjectService defines the business service interface for projects
// 定义项目业务服务接口
type ProjectService interface {
	Register(ctx context.Context, req *dto.ProjectCreateRequest) (*dto.ProjectDTO, error)
	Get(ctx context.Context, id string) (*dto.ProjectDTO, error)
	List(ctx context.Context) ([]*dto.ProjectDTO, error)
	Update(ctx context.Context, id string, req *dto.ProjectUpdateRequest) (*dto.ProjectDTO, error)
	Pause(ctx context.Context, id string) error
	Resume(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	RescanDataTypes(ctx context.Context, id string) (*dto.ProjectDTO, error)

	GetSchedule(ctx context.Context, id string) (*dto.ScheduleDTO, error)
	UpdateSchedule(ctx context.Context, id string, req *dto.ScheduleUpdateRequest) (*dto.ScheduleDTO, error)
}

type projectService struct {
	projectRepo domain.ProjectRepository
	client      bubble.Client
	policy      BackupPolicy
	clock       clock.Clock
	logger      *zap.Logger
}

// NewProjectService creates ProjectService instance
// 创建 ProjectService 实例
func NewProjectService(
	projectRepo domain.ProjectRepository,
	client bubble.Client,
	policy BackupPolicy,
	clk clock.Clock,
	logger *zap.Logger,
) ProjectService {
	policy.Normalize()
	return &projectService{
		projectRepo: projectRepo,
		client:      client,
		policy:      policy,
		clock:       clk,
		logger:      logger,
	}
}

func (s *projectService) toDTO(p *domain.Project) *dto.ProjectDTO {
	if p == nil {
		return nil
	}
	return &dto.ProjectDTO{
		ID:            p.ID,
		AppURL:        p.AppURL,
		ServerRegion:  p.ServerRegion,
		Timezone:      p.Timezone,
		DataTypes:     p.DataTypes,
		Status:        p.Status,
		BackupEnabled: p.BackupEnabled,
		CreatedAt:     timex.Time(p.CreatedAt),
		UpdatedAt:     timex.Time(p.UpdatedAt),
	}
}

func (s *projectService) settingToDTO(setting *domain.ScheduleSetting) *dto.ScheduleDTO {
	if setting == nil {
		return nil
	}
	d := &dto.ScheduleDTO{
		ProjectID:      setting.ProjectID,
		ScheduleType:   setting.ScheduleType,
		AnchorHour:     setting.AnchorHour,
		AnchorMinute:   setting.AnchorMinute,
		CronExpression: setting.CronExpression,
	}
	if setting.LastRunAt != nil {
		t := timex.Time(*setting.LastRunAt)
		d.LastRunAt = &t
	}
	if setting.NextRunAt != nil {
		t := timex.Time(*setting.NextRunAt)
		d.NextRunAt = &t
	}
	return d
}

// validateAppURL accepts absolute http(s) URLs without query or fragment.
func validateAppURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return code.ErrorInvalidParams.WithDetails("invalid app url: " + err.Error())
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return code.ErrorInvalidParams.WithDetails("app url must be absolute http(s)")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return code.ErrorInvalidParams.WithDetails("app url must not carry query or fragment")
	}
	return nil
}

// Register verifies the app is reachable with the given key, discovers its
// data types and stores the project with its initial schedule.
func (s *projectService) Register(ctx context.Context, req *dto.ProjectCreateRequest) (*dto.ProjectDTO, error) {
	if err := validateAppURL(req.AppURL); err != nil {
		return nil, err
	}
	if !domain.ValidScheduleType(req.ScheduleType) {
		return nil, code.ErrorInvalidParams.WithDetails("unknown schedule type: " + req.ScheduleType)
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		return nil, code.ErrorInvalidParams.WithDetails("unknown timezone: " + req.Timezone)
	}

	meta, err := s.client.FetchMeta(ctx, req.AppURL, req.APIKey)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	project := &domain.Project{
		ID:            uuid.NewString(),
		AppURL:        strings.TrimSuffix(req.AppURL, "/"),
		APIKey:        req.APIKey,
		ServerRegion:  req.ServerRegion,
		Timezone:      req.Timezone,
		DataTypes:     meta.Get,
		Status:        domain.ProjectStatusActive,
		BackupEnabled: true,
	}
	setting := &domain.ScheduleSetting{
		ProjectID:    project.ID,
		ScheduleType: req.ScheduleType,
		AnchorHour:   *s.policy.AnchorHour,
		AnchorMinute: s.policy.AnchorMinute,
	}
	if req.ScheduleType != domain.ScheduleManual {
		next, err := schedule.NextRun(setting, req.Timezone, now)
		if err != nil {
			return nil, err
		}
		nextUTC := next.UTC()
		setting.NextRunAt = &nextUTC
	}

	created, err := s.projectRepo.Create(ctx, project, setting)
	if err != nil {
		return nil, err
	}

	s.logger.Info("project registered",
		zap.String("projectId", created.ID),
		zap.String("schedule", req.ScheduleType),
		zap.Int("dataTypes", len(meta.Get)))

	return s.toDTO(created), nil
}

func (s *projectService) Get(ctx context.Context, id string) (*dto.ProjectDTO, error) {
	p, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, code.ErrorProjectNotFound
	}
	return s.toDTO(p), nil
}

func (s *projectService) List(ctx context.Context) ([]*dto.ProjectDTO, error) {
	projects, err := s.projectRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	var results []*dto.ProjectDTO
	for _, p := range projects {
		results = append(results, s.toDTO(p))
	}
	return results, nil
}

// Update changes connection settings. A new URL or key is verified against
// the live app before it is stored; a new time zone reschedules the next run.
func (s *projectService) Update(ctx context.Context, id string, req *dto.ProjectUpdateRequest) (*dto.ProjectDTO, error) {
	p, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, code.ErrorProjectNotFound
	}

	credentialsChanged := false
	if req.AppURL != "" && req.AppURL != p.AppURL {
		if err := validateAppURL(req.AppURL); err != nil {
			return nil, err
		}
		p.AppURL = strings.TrimSuffix(req.AppURL, "/")
		credentialsChanged = true
	}
	if req.APIKey != "" && req.APIKey != p.APIKey {
		p.APIKey = req.APIKey
		credentialsChanged = true
	}
	if req.ServerRegion != "" {
		p.ServerRegion = req.ServerRegion
	}

	timezoneChanged := false
	if req.Timezone != "" && req.Timezone != p.Timezone {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			return nil, code.ErrorInvalidParams.WithDetails("unknown timezone: " + req.Timezone)
		}
		p.Timezone = req.Timezone
		timezoneChanged = true
	}

	if credentialsChanged {
		meta, err := s.client.FetchMeta(ctx, p.AppURL, p.APIKey)
		if err != nil {
			return nil, err
		}
		p.DataTypes = meta.Get
		if err := s.projectRepo.UpdateDataTypes(ctx, id, meta.Get); err != nil {
			return nil, err
		}
	}

	if err := s.projectRepo.Update(ctx, p); err != nil {
		return nil, err
	}

	if timezoneChanged {
		if err := s.reschedule(ctx, p); err != nil {
			return nil, err
		}
	}

	return s.Get(ctx, id)
}

func (s *projectService) Pause(ctx context.Context, id string) error {
	p, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return code.ErrorProjectNotFound
	}
	return s.projectRepo.UpdateStatus(ctx, id, domain.ProjectStatusPaused)
}

// Resume reactivates the project and recomputes the next run from now, so a
// long pause does not trigger a burst of missed backups.
func (s *projectService) Resume(ctx context.Context, id string) error {
	p, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return code.ErrorProjectNotFound
	}
	if err := s.projectRepo.UpdateStatus(ctx, id, domain.ProjectStatusActive); err != nil {
		return err
	}
	return s.reschedule(ctx, p)
}

func (s *projectService) Delete(ctx context.Context, id string) error {
	return s.projectRepo.SoftDelete(ctx, id)
}

// RescanDataTypes refreshes the discovered type list from the live app.
func (s *projectService) RescanDataTypes(ctx context.Context, id string) (*dto.ProjectDTO, error) {
	p, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, code.ErrorProjectNotFound
	}

	meta, err := s.client.FetchMeta(ctx, p.AppURL, p.APIKey)
	if err != nil {
		return nil, err
	}
	if err := s.projectRepo.UpdateDataTypes(ctx, id, meta.Get); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *projectService) GetSchedule(ctx context.Context, id string) (*dto.ScheduleDTO, error) {
	setting, err := s.projectRepo.GetSetting(ctx, id)
	if err != nil {
		return nil, err
	}
	if setting == nil {
		return nil, code.ErrorProjectNotFound
	}
	return s.settingToDTO(setting), nil
}

// UpdateSchedule switches the cadence. Switching to manual clears the next
// run; any other switch recomputes it from now in the project's time zone.
func (s *projectService) UpdateSchedule(ctx context.Context, id string, req *dto.ScheduleUpdateRequest) (*dto.ScheduleDTO, error) {
	p, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, code.ErrorProjectNotFound
	}
	setting, err := s.projectRepo.GetSetting(ctx, id)
	if err != nil {
		return nil, err
	}
	if setting == nil {
		return nil, code.ErrorProjectNotFound
	}

	if req.ScheduleType == domain.ScheduleManual && req.CronExpression != "" {
		return nil, code.ErrorInvalidParams.WithDetails("manual schedules cannot carry a cron expression")
	}

	setting.ScheduleType = req.ScheduleType
	setting.CronExpression = req.CronExpression

	if req.ScheduleType == domain.ScheduleManual {
		setting.NextRunAt = nil
	} else {
		next, err := schedule.NextRun(setting, p.Timezone, s.clock.Now())
		if err != nil {
			return nil, err
		}
		nextUTC := next.UTC()
		setting.NextRunAt = &nextUTC
	}

	if err := s.projectRepo.SaveSetting(ctx, setting); err != nil {
		return nil, err
	}

	s.logger.Info("schedule updated",
		zap.String("projectId", id),
		zap.String("schedule", req.ScheduleType))

	return s.settingToDTO(setting), nil
}

// reschedule recomputes next_run_at from now for non-manual schedules.
func (s *projectService) reschedule(ctx context.Context, p *domain.Project) error {
	setting, err := s.projectRepo.GetSetting(ctx, p.ID)
	if err != nil {
		return err
	}
	if setting == nil || setting.ScheduleType == domain.ScheduleManual {
		return nil
	}
	next, err := schedule.NextRun(setting, p.Timezone, s.clock.Now())
	if err != nil {
		return err
	}
	nextUTC := next.UTC()
	setting.NextRunAt = &nextUTC
	return s.projectRepo.SaveSetting(ctx, setting)
}

var _ ProjectService = (*projectService)(nil)
