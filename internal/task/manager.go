package task

import (
	"time"

	"github.com/bubblevault/bubble-backup-service/internal/service"
	"github.com/bubblevault/bubble-backup-service/pkg/safe_close"

	"go.uber.org/zap"
)

// Manager 任务管理器,负责创建和管理所有任务
type Manager struct {
	scheduler *Scheduler
	logger    *zap.Logger
}

// NewManager 创建任务管理器
func NewManager(logger *zap.Logger, sc *safe_close.SafeClose) *Manager {
	return &Manager{
		scheduler: NewScheduler(logger, sc),
		logger:    logger,
	}
}

// RegisterTasks 注册所有任务
func (m *Manager) RegisterTasks(backup service.BackupService, dispatchInterval, cleanupInterval time.Duration, cleanupEnabled bool) {
	m.scheduler.AddTask(NewDispatchTask(backup, dispatchInterval))

	if cleanupEnabled {
		m.scheduler.AddTask(NewArtifactCleanupTask(backup, cleanupInterval))
	} else {
		m.logger.Info("artifact cleanup task is disabled")
	}
}

// Start 启动所有已注册的任务
func (m *Manager) Start() {
	m.scheduler.Start()
}
