// Package aws_s3 stores backup artifacts in an AWS S3 bucket.
package aws_s3

import (
	"bytes"
	"context"
	"io"
	"path"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Config struct {
	Region          string `yaml:"region"`
	BucketName      string `yaml:"bucket-name"`
	AccessKeyID     string `yaml:"access-key-id"`
	AccessKeySecret string `yaml:"access-key-secret"`
	CustomPath      string `yaml:"custom-path"`
}

type S3 struct {
	S3Client  *s3.Client
	S3Manager *manager.Uploader
	Config    *Config
	logger    *zap.Logger
}

type Option func(*S3)

// WithLogger sets the logger used for upload diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(s *S3) {
		s.logger = logger
	}
}

func NewClient(cf *Config, opts ...Option) (*S3, error) {
	if cf == nil || cf.BucketName == "" {
		return nil, errors.New("aws_s3: bucket name is required")
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cf.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cf.AccessKeyID, cf.AccessKeySecret, ""),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "aws_s3: load config")
	}

	client := s3.NewFromConfig(cfg)
	st := &S3{
		S3Client:  client,
		S3Manager: manager.NewUploader(client),
		Config:    cf,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(st)
	}
	return st, nil
}

func (s *S3) objectKey(pathKey string) string {
	if s.Config.CustomPath != "" {
		return path.Join(s.Config.CustomPath, pathKey)
	}
	return pathKey
}

// SendFile uploads the reader under pathKey and returns the object key.
func (s *S3) SendFile(pathKey string, file io.Reader, cType string, modTime time.Time) (string, error) {
	key := s.objectKey(pathKey)
	_, err := s.S3Manager.Upload(context.TODO(), &s3.PutObjectInput{
		Bucket:      &s.Config.BucketName,
		Key:         &key,
		Body:        file,
		ContentType: &cType,
	})
	if err != nil {
		return "", errors.Wrap(err, "aws_s3: upload")
	}
	s.logger.Debug("artifact uploaded",
		zap.String("bucket", s.Config.BucketName),
		zap.String("key", key))
	return key, nil
}

func (s *S3) SendContent(pathKey string, content []byte, modTime time.Time) (string, error) {
	return s.SendFile(pathKey, bytes.NewReader(content), "application/json", modTime)
}

func (s *S3) Delete(pathKey string) error {
	key := s.objectKey(pathKey)
	_, err := s.S3Client.DeleteObject(context.TODO(), &s3.DeleteObjectInput{
		Bucket: &s.Config.BucketName,
		Key:    &key,
	})
	if err != nil {
		return errors.Wrap(err, "aws_s3: delete")
	}
	return nil
}
