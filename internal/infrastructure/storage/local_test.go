package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/remitflow/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalArchiver_Archive(t *testing.T) {
	archiver, err := NewLocalArchiver(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("writes file under nested key", func(t *testing.T) {
		key := "remittances/2026/08/abc_remit.835"
		content := []byte("ISA*00*~ST*835*0001~SE*2*0001~")

		err := archiver.Archive(ctx, key, content, "application/edi-x12")
		require.NoError(t, err)

		written, err := os.ReadFile(filepath.Join(archiver.baseDir, filepath.FromSlash(key)))
		require.NoError(t, err)
		assert.Equal(t, content, written)
	})

	t.Run("overwrites existing file", func(t *testing.T) {
		key := "remittances/dup.csv"
		require.NoError(t, archiver.Archive(ctx, key, []byte("first"), "text/csv"))
		require.NoError(t, archiver.Archive(ctx, key, []byte("second"), "text/csv"))

		written, err := os.ReadFile(filepath.Join(archiver.baseDir, "remittances", "dup.csv"))
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), written)
	})

	t.Run("empty key is rejected", func(t *testing.T) {
		err := archiver.Archive(ctx, "", []byte("data"), "text/csv")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "archive key is required")
	})

	t.Run("key escaping the base directory is rejected", func(t *testing.T) {
		err := archiver.Archive(ctx, "../outside.csv", []byte("data"), "text/csv")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid archive key")
	})

	t.Run("absolute key is rejected", func(t *testing.T) {
		err := archiver.Archive(ctx, "/etc/passwd", []byte("data"), "text/csv")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid archive key")
	})
}

func TestLocalArchiver_Exists(t *testing.T) {
	archiver, err := NewLocalArchiver(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, archiver.Archive(ctx, "remittances/present.csv", []byte("data"), "text/csv"))

	exists, err := archiver.Exists(ctx, "remittances/present.csv")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = archiver.Exists(ctx, "remittances/absent.csv")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestNewLocalArchiver(t *testing.T) {
	t.Run("creates the base directory", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "archive", "remittances")
		_, err := NewLocalArchiver(base)
		require.NoError(t, err)

		info, err := os.Stat(base)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("empty base directory is rejected", func(t *testing.T) {
		_, err := NewLocalArchiver("")
		require.Error(t, err)
	})
}

func TestNewArchiver(t *testing.T) {
	logger := zap.NewNop()

	t.Run("local provider", func(t *testing.T) {
		archiver, err := NewArchiver(&config.StorageConfig{
			Provider: "local",
			LocalDir: t.TempDir(),
		}, logger)
		require.NoError(t, err)
		assert.IsType(t, &LocalArchiver{}, archiver)
	})

	t.Run("s3 provider", func(t *testing.T) {
		archiver, err := NewArchiver(&config.StorageConfig{
			Provider: "s3",
			Bucket:   "remit-archive",
		}, logger)
		require.NoError(t, err)
		assert.IsType(t, &S3Archiver{}, archiver)
	})

	t.Run("none provider disables archiving", func(t *testing.T) {
		archiver, err := NewArchiver(&config.StorageConfig{Provider: "none"}, logger)
		require.NoError(t, err)
		assert.Nil(t, archiver)
	})

	t.Run("unknown provider is rejected", func(t *testing.T) {
		_, err := NewArchiver(&config.StorageConfig{Provider: "ftp"}, logger)
		require.Error(t, err)
	})
}
