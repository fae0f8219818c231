package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	app "github.com/remitflow/backend/internal/application/reconciliation"
)

// Ensure LocalArchiver implements FileArchiver
var _ app.FileArchiver = (*LocalArchiver)(nil)

// LocalArchiver archives remittance files under a base directory on the local
// filesystem. Used in development and single-node deployments where no object
// store is available.
type LocalArchiver struct {
	baseDir string
}

// NewLocalArchiver creates a LocalArchiver rooted at baseDir, creating the
// directory if needed
func NewLocalArchiver(baseDir string) (*LocalArchiver, error) {
	if baseDir == "" {
		return nil, errors.New("storage base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &LocalArchiver{baseDir: baseDir}, nil
}

// Archive writes the file under baseDir using the key as a relative path
func (l *LocalArchiver) Archive(ctx context.Context, key string, content []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("failed to archive file: %w", err)
	}
	return nil
}

// Exists checks whether an archived file is present under the key
func (l *LocalArchiver) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path, err := l.resolve(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check archive existence: %w", err)
	}
	return true, nil
}

// resolve maps an archive key to a filesystem path, rejecting keys that would
// escape the base directory
func (l *LocalArchiver) resolve(key string) (string, error) {
	if key == "" {
		return "", errors.New("archive key is required")
	}
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid archive key: %s", key)
	}
	return filepath.Join(l.baseDir, cleaned), nil
}
