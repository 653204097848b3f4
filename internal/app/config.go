// Package app 提供应用容器，封装所有依赖和服务
package app

import (
	"os"
	"path/filepath"
	"time"

	"github.com/bubblevault/bubble-backup-service/pkg/storage"

	"github.com/creasty/defaults"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// AppConfig 应用配置
type AppConfig struct {
	File     string         `yaml:"-"` // 配置文件路径，不序列化
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Backup   BackupConfig   `yaml:"backup"`
	Bubble   BubbleConfig   `yaml:"bubble"`
	Storage  storage.Config `yaml:"storage"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// RunMode 运行模式
	RunMode string `yaml:"run-mode" default:"release"`
	// HttpPort HTTP 端口
	HttpPort string `yaml:"http-port" default:":9000"`
	// ReadTimeout 读取超时（秒）
	ReadTimeout int `yaml:"read-timeout" default:"60"`
	// WriteTimeout 写入超时（秒）
	WriteTimeout int `yaml:"write-timeout" default:"60"`
	// PrivateHttpListen 私有 HTTP 监听地址
	PrivateHttpListen string `yaml:"private-http-listen" default:":9001"`
	// DefaultContextTimeout 默认上下文超时时间（秒）
	DefaultContextTimeout int `yaml:"default-context-timeout" default:"60"`
}

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别，参见 zapcore.ParseLevel
	Level string `yaml:"level" default:"info"`
	// File 日志文件路径，默认为 stderr
	File string `yaml:"file" default:"storage/logs/log.log"`
	// Production 是否启用 JSON 输出
	Production bool `yaml:"production" default:"true"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// Type 数据库类型: sqlite | mysql | postgres
	Type string `yaml:"type" default:"sqlite"`
	// Path SQLite 数据库文件路径
	Path string `yaml:"path" default:"storage/database/backup.db"`
	// Host 主机
	Host string `yaml:"host"`
	// Port 端口
	Port int `yaml:"port"`
	// UserName 用户名
	UserName string `yaml:"username"`
	// Password 密码
	Password string `yaml:"password"`
	// Name 数据库名
	Name string `yaml:"name"`
	// Charset 字符集
	Charset string `yaml:"charset" default:"utf8mb4"`
	// TablePrefix 表前缀
	TablePrefix string `yaml:"table-prefix"`
	// AutoMigrate 是否启用自动迁移
	AutoMigrate bool `yaml:"auto-migrate" default:"true"`
	// MaxIdleConns 最大闲置连接数
	MaxIdleConns int `yaml:"max-idle-conns" default:"10"`
	// MaxOpenConns 最大打开连接数
	MaxOpenConns int `yaml:"max-open-conns" default:"30"`
}

// BackupConfig 备份引擎配置
type BackupConfig struct {
	// DispatchInterval 调度轮询间隔
	DispatchInterval string `yaml:"dispatch-interval" default:"60s"`
	// StaleTimeout 处理中任务的失活超时
	StaleTimeout string `yaml:"stale-timeout" default:"30m"`
	// MaxConcurrent 并发导出上限
	MaxConcurrent int `yaml:"max-concurrent" default:"5"`
	// AnchorHour 计划任务锚点小时（项目时区）
	// 指针类型，显式配置 0 表示午夜，不会被默认值覆盖
	AnchorHour *int `yaml:"anchor-hour" default:"2"`
	// AnchorMinute 计划任务锚点分钟
	AnchorMinute int `yaml:"anchor-minute" default:"0"`

	// 按调度类型的制品保留天数
	DailyRetentionDays   int `yaml:"daily-retention-days" default:"60"`
	WeeklyRetentionDays  int `yaml:"weekly-retention-days" default:"90"`
	MonthlyRetentionDays int `yaml:"monthly-retention-days" default:"180"`
	ManualRetentionDays  int `yaml:"manual-retention-days" default:"60"`

	// CleanupEnabled 是否启用过期制品清理任务
	CleanupEnabled bool `yaml:"cleanup-enabled" default:"true"`
	// CleanupInterval 清理任务执行间隔
	CleanupInterval string `yaml:"cleanup-interval" default:"1h"`
}

// BubbleConfig Bubble.io Data API 客户端配置
type BubbleConfig struct {
	// RequestTimeout 单次导出请求超时
	RequestTimeout string `yaml:"request-timeout" default:"60s"`
}

// LoadConfig 加载配置文件，填充默认值
func LoadConfig(f string) (*AppConfig, string, error) {
	realpath, err := filepath.Abs(f)
	if err != nil {
		return nil, "", err
	}
	realpath = filepath.Clean(realpath)

	c := new(AppConfig)
	c.File = realpath

	if err := defaults.Set(c); err != nil {
		return nil, realpath, errors.Wrap(err, "set default config failed")
	}

	file, err := os.ReadFile(realpath)
	if err != nil {
		return nil, realpath, errors.Wrap(err, "read config file failed")
	}

	if err := yaml.Unmarshal(file, c); err != nil {
		return nil, realpath, errors.Wrap(err, "parse config file failed")
	}

	// 再次设置默认值，以填充 YAML 中存在但值为空的字段
	if err := defaults.Set(c); err != nil {
		return nil, realpath, errors.Wrap(err, "re-set default config failed")
	}

	return c, realpath, nil
}

// durationOrDefault parses a duration string, falling back when unset or bad.
func durationOrDefault(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetDispatchInterval 获取调度轮询间隔
func (c *AppConfig) GetDispatchInterval() time.Duration {
	return durationOrDefault(c.Backup.DispatchInterval, time.Minute)
}

// GetStaleTimeout 获取失活超时
func (c *AppConfig) GetStaleTimeout() time.Duration {
	return durationOrDefault(c.Backup.StaleTimeout, 30*time.Minute)
}

// GetCleanupInterval 获取清理任务间隔
func (c *AppConfig) GetCleanupInterval() time.Duration {
	return durationOrDefault(c.Backup.CleanupInterval, time.Hour)
}

// GetBubbleTimeout 获取 Bubble API 请求超时
func (c *AppConfig) GetBubbleTimeout() time.Duration {
	return durationOrDefault(c.Bubble.RequestTimeout, time.Minute)
}
