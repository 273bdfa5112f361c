package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"snapnotes/core"

	"github.com/sirupsen/logrus"
)

// tempFilePrefix marks in-flight writes so they are never mistaken for keys.
const tempFilePrefix = ".snapnotes-tmp-"

type fsStore struct {
	basePath string
}

// NewStore creates a filesystem-backed store rooted at basePath, creating the directory if needed.
func NewStore(basePath string) (*fsStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}
	return &fsStore{basePath: basePath}, nil
}

// pathFor maps a key onto a file directly under basePath.
func (s *fsStore) pathFor(key string) (string, error) {
	if key == "" || key == "." || key == ".." || filepath.Base(key) != key ||
		strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, tempFilePrefix) {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidKey, key)
	}
	return filepath.Join(s.basePath, key), nil
}

func (s *fsStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	filePath, err := s.pathFor(key)
	if err != nil {
		return nil, false, err
	}
	log := logrus.WithFields(logrus.Fields{"key": key, "file_path": filePath})

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("Key file does not exist")
			return nil, false, nil
		}
		log.WithError(err).Error("Failed to read key file")
		return nil, false, err
	}

	log.Debug("Key file read successfully")
	return data, true, nil
}

func (s *fsStore) Set(ctx context.Context, key string, value []byte) error {
	filePath, err := s.pathFor(key)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{
		"key":         key,
		"file_path":   filePath,
		"data_length": len(value),
	})

	if err := writeFileAtomic(filePath, value, 0644); err != nil {
		log.WithError(err).Error("Failed to write key file")
		return err
	}

	log.Debug("Key file written successfully")
	return nil
}

// writeFileAtomic writes to a temp file in the target directory and renames it over filename,
// so readers see either the old or the new value, never a partial one.
func writeFileAtomic(filename string, data []byte, perm os.FileMode) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(filename), tempFilePrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpFile.Name(), perm); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), filename); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", filename, err)
	}
	return nil
}
