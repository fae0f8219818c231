package storage

import (
	"fmt"

	app "github.com/remitflow/backend/internal/application/reconciliation"
	infraconfig "github.com/remitflow/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewArchiver creates the FileArchiver selected by configuration. Provider
// "none" disables archiving and returns a nil archiver; the import flow then
// records no archive key.
func NewArchiver(cfg *infraconfig.StorageConfig, logger *zap.Logger) (app.FileArchiver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage configuration is required")
	}

	switch cfg.Provider {
	case "s3":
		return NewS3Archiver(cfg,
			WithLogger(logger),
			WithUploadTimeout(cfg.UploadTimeout))
	case "local":
		return NewLocalArchiver(cfg.LocalDir)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Provider)
	}
}
