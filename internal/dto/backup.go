package dto

import "github.com/bubblevault/bubble-backup-service/pkg/timex"

// BackupListRequest 备份列表请求
type BackupListRequest struct {
	ScheduleType string `json:"scheduleType" form:"scheduleType" binding:"omitempty,oneof=daily weekly monthly manual"`
	CreatedFrom  string `json:"createdFrom" form:"createdFrom" binding:"omitempty" example:"2024-01-01T00:00:00Z"`
	CreatedTo    string `json:"createdTo" form:"createdTo" binding:"omitempty" example:"2024-12-31T23:59:59Z"`
}

// BackupErrorDTO 备份失败详情
type BackupErrorDTO struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// BackupDTO 备份任务 DTO
type BackupDTO struct {
	ID           string          `json:"id"`
	ProjectID    string          `json:"projectId"`
	ScheduleType string          `json:"scheduleType"`
	Status       string          `json:"status"` // pending | processing | completed | failed
	SizeBytes    int64           `json:"sizeBytes"`
	RecordCount  int64           `json:"recordCount"`
	Error        *BackupErrorDTO `json:"error,omitempty"`
	FilePath     string          `json:"filePath,omitempty"`
	ExpiresAt    *timex.Time     `json:"expiresAt"`
	CreatedAt    timex.Time      `json:"createdAt"`
	UpdatedAt    timex.Time      `json:"updatedAt"`
}

// BackupStatsDTO 备份统计 DTO，由历史记录实时汇总
type BackupStatsDTO struct {
	TotalBackups     int64  `json:"totalBackups"`
	TotalSizeBytes   int64  `json:"totalSizeBytes"`
	LastBackupStatus string `json:"lastBackupStatus,omitempty"`
}
