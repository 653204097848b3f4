// Package storage abstracts where backup artifacts are persisted.
// Supported backends: local filesystem and AWS S3.
package storage

import (
	"io"
	"time"

	"github.com/bubblevault/bubble-backup-service/pkg/code"
	"github.com/bubblevault/bubble-backup-service/pkg/storage/aws_s3"
	"github.com/bubblevault/bubble-backup-service/pkg/storage/local_fs"
)

type Type = string

const (
	LOCAL Type = "localfs"
	S3    Type = "s3"
)

var StorageTypeMap = map[Type]bool{
	LOCAL: true,
	S3:    true,
}

// Config is the unified storage configuration.
type Config struct {
	Type Type `yaml:"type" default:"localfs"`

	// Local FS
	SavePath string `yaml:"save-path" default:"storage/backups"`

	// S3
	Region          string `yaml:"region"`
	BucketName      string `yaml:"bucket-name"`
	AccessKeyID     string `yaml:"access-key-id"`
	AccessKeySecret string `yaml:"access-key-secret"`
	CustomPath      string `yaml:"custom-path"`
}

// Storager is the artifact sink used by the export pipeline.
type Storager interface {
	SendFile(pathKey string, file io.Reader, cType string, modTime time.Time) (string, error)
	SendContent(pathKey string, content []byte, modTime time.Time) (string, error)
	Delete(pathKey string) error
}

// NewClient builds a backend for the configured type.
func NewClient(config *Config) (Storager, error) {
	if config == nil {
		return nil, code.ErrorInvalidStorage
	}

	switch config.Type {
	case LOCAL:
		return local_fs.NewClient(&local_fs.Config{
			SavePath: config.SavePath,
		})
	case S3:
		return aws_s3.NewClient(&aws_s3.Config{
			Region:          config.Region,
			BucketName:      config.BucketName,
			AccessKeyID:     config.AccessKeyID,
			AccessKeySecret: config.AccessKeySecret,
			CustomPath:      config.CustomPath,
		})
	default:
		return nil, code.ErrorInvalidStorage
	}
}
