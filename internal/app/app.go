// Package app 提供应用容器，封装所有依赖和服务
package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bubblevault/bubble-backup-service/internal/bubble"
	"github.com/bubblevault/bubble-backup-service/internal/dao"
	"github.com/bubblevault/bubble-backup-service/internal/domain"
	"github.com/bubblevault/bubble-backup-service/internal/service"
	pkgapp "github.com/bubblevault/bubble-backup-service/pkg/app"
	"github.com/bubblevault/bubble-backup-service/pkg/storage"

	"github.com/juju/clock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App 应用容器，封装所有依赖和服务
type App struct {
	// 基础设施（注入的依赖）
	config *AppConfig
	logger *zap.Logger
	DB     *gorm.DB
	Dao    *dao.Dao

	StartTime time.Time

	// Repository 层
	ProjectRepo domain.ProjectRepository
	BackupRepo  domain.BackupRepository

	// 外部协作方
	BubbleClient bubble.Client
	Storage      storage.Storager

	// Service 层
	ProjectService service.ProjectService
	BackupService  service.BackupService
}

// NewApp 创建应用容器实例
// 初始化所有依赖并进行依赖注入
func NewApp(cfg *AppConfig, logger *zap.Logger, db *gorm.DB) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}

	a := &App{
		config:    cfg,
		logger:    logger,
		DB:        db,
		Dao:       dao.New(db),
		StartTime: time.Now(),
	}

	// Repository 层
	a.ProjectRepo = dao.NewProjectRepository(a.Dao)
	a.BackupRepo = dao.NewBackupRepository(a.Dao)

	// 外部协作方
	a.BubbleClient = bubble.NewClient(
		bubble.WithHTTPClient(&http.Client{Timeout: cfg.GetBubbleTimeout()}),
		bubble.WithLogger(logger),
	)

	store, err := storage.NewClient(&cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.Storage = store

	policy := service.BackupPolicy{
		AnchorHour:           cfg.Backup.AnchorHour,
		AnchorMinute:         cfg.Backup.AnchorMinute,
		StaleTimeout:         cfg.GetStaleTimeout(),
		MaxConcurrent:        cfg.Backup.MaxConcurrent,
		DailyRetentionDays:   cfg.Backup.DailyRetentionDays,
		WeeklyRetentionDays:  cfg.Backup.WeeklyRetentionDays,
		MonthlyRetentionDays: cfg.Backup.MonthlyRetentionDays,
		ManualRetentionDays:  cfg.Backup.ManualRetentionDays,
	}

	// Service 层（依赖注入）
	a.ProjectService = service.NewProjectService(a.ProjectRepo, a.BubbleClient, policy, clock.WallClock, logger)
	a.BackupService = service.NewBackupService(a.ProjectRepo, a.BackupRepo, a.BubbleClient, a.Storage, policy, clock.WallClock, logger)

	logger.Info("app container initialized",
		zap.String("database", cfg.Database.Type),
		zap.String("storage", cfg.Storage.Type),
		zap.Int("maxConcurrent", policy.MaxConcurrent))

	return a, nil
}

// Close 释放应用容器持有的资源
func (a *App) Close() error {
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err != nil {
			return fmt.Errorf("failed to get sql.DB: %w", err)
		}
		if err := sqlDB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
		a.logger.Info("database connection closed")
	}
	return nil
}

// Config 获取应用配置
func (a *App) Config() *AppConfig {
	return a.config
}

// Logger 获取日志器
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Version 获取版本信息
func (a *App) Version() pkgapp.VersionInfo {
	return pkgapp.VersionInfo{
		Version:   Version,
		GitTag:    GitTag,
		BuildTime: BuildTime,
	}
}
