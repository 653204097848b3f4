// Package local_fs stores backup artifacts on the local filesystem.
package local_fs

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

type Config struct {
	SavePath string `yaml:"save-path" default:"storage/backups"`
}

type LocalFS struct {
	Config *Config
}

func NewClient(cfg *Config) (*LocalFS, error) {
	if cfg == nil || cfg.SavePath == "" {
		return nil, errors.New("local_fs: save path is required")
	}
	return &LocalFS{Config: cfg}, nil
}

func (l *LocalFS) fullPath(pathKey string) string {
	return filepath.Join(l.Config.SavePath, filepath.FromSlash(pathKey))
}

// SendFile streams file into SavePath/pathKey and stamps modTime on it.
func (l *LocalFS) SendFile(pathKey string, file io.Reader, cType string, modTime time.Time) (string, error) {
	dst := l.fullPath(pathKey)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", errors.Wrap(err, "local_fs: mkdir")
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", errors.Wrap(err, "local_fs: create")
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		return "", errors.Wrap(err, "local_fs: write")
	}
	if err := out.Close(); err != nil {
		return "", errors.Wrap(err, "local_fs: close")
	}

	if !modTime.IsZero() {
		_ = os.Chtimes(dst, modTime, modTime)
	}
	return pathKey, nil
}

func (l *LocalFS) SendContent(pathKey string, content []byte, modTime time.Time) (string, error) {
	dst := l.fullPath(pathKey)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", errors.Wrap(err, "local_fs: mkdir")
	}
	if err := os.WriteFile(dst, content, 0o644); err != nil {
		return "", errors.Wrap(err, "local_fs: write")
	}
	if !modTime.IsZero() {
		_ = os.Chtimes(dst, modTime, modTime)
	}
	return pathKey, nil
}

func (l *LocalFS) Delete(pathKey string) error {
	err := os.Remove(l.fullPath(pathKey))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "local_fs: delete")
	}
	return nil
}
