package dto

import "github.com/bubblevault/bubble-backup-service/pkg/timex"

// ProjectCreateRequest 项目注册请求
type ProjectCreateRequest struct {
	AppURL       string `json:"appUrl" form:"appUrl" binding:"required,url" example:"https://myapp.bubbleapps.io"`
	APIKey       string `json:"apiKey" form:"apiKey" binding:"required" example:"f0a1..."`
	ServerRegion string `json:"serverRegion" form:"serverRegion" example:"us-east-1"`
	Timezone     string `json:"timezone" form:"timezone" binding:"required" example:"America/New_York"`
	ScheduleType string `json:"scheduleType" form:"scheduleType" binding:"required,oneof=daily weekly monthly manual" example:"daily"`
}

// ProjectUpdateRequest 项目更新请求
type ProjectUpdateRequest struct {
	AppURL       string `json:"appUrl" form:"appUrl" binding:"omitempty,url"`
	APIKey       string `json:"apiKey" form:"apiKey"`
	ServerRegion string `json:"serverRegion" form:"serverRegion"`
	Timezone     string `json:"timezone" form:"timezone"`
}

// ScheduleUpdateRequest 调度设置更新请求
type ScheduleUpdateRequest struct {
	ScheduleType   string `json:"scheduleType" form:"scheduleType" binding:"required,oneof=daily weekly monthly manual" example:"daily"`
	CronExpression string `json:"cronExpression" form:"cronExpression" example:"30 4 * * 1-5"`
}

// ProjectDTO 项目 DTO
type ProjectDTO struct {
	ID            string     `json:"id"`
	AppURL        string     `json:"appUrl"`
	ServerRegion  string     `json:"serverRegion"`
	Timezone      string     `json:"timezone"`
	DataTypes     []string   `json:"dataTypes"`
	Status        string     `json:"status"`        // active | paused
	BackupEnabled bool       `json:"backupEnabled"` // 是否启用备份
	CreatedAt     timex.Time `json:"createdAt"`
	UpdatedAt     timex.Time `json:"updatedAt"`
}

// ScheduleDTO 调度设置 DTO
type ScheduleDTO struct {
	ProjectID      string      `json:"projectId"`
	ScheduleType   string      `json:"scheduleType"`
	AnchorHour     int         `json:"anchorHour"`
	AnchorMinute   int         `json:"anchorMinute"`
	CronExpression string      `json:"cronExpression,omitempty"`
	LastRunAt      *timex.Time `json:"lastRunAt"`
	NextRunAt      *timex.Time `json:"nextRunAt"` // manual 类型恒为 null
}
