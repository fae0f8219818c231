package cache

import (
	"testing"

	"github.com/remitflow/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReportCacheFactory_CreateCache(t *testing.T) {
	t.Run("redis disabled uses in-memory cache", func(t *testing.T) {
		factory := NewReportCacheFactory(config.RedisConfig{Enabled: false})

		cache, err := factory.CreateCache()
		require.NoError(t, err)
		assert.IsType(t, &InMemoryReportCache{}, cache)
	})

	t.Run("unreachable redis falls back to in-memory", func(t *testing.T) {
		factory := NewReportCacheFactory(config.RedisConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    1, // nothing listens here
		}, WithLogger(zap.NewNop()))

		cache, err := factory.CreateCache()
		require.NoError(t, err)
		assert.IsType(t, &InMemoryReportCache{}, cache)
	})

	t.Run("unreachable redis fails when fallback disabled", func(t *testing.T) {
		factory := NewReportCacheFactory(config.RedisConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    1,
		}, WithInMemoryFallback(false))

		_, err := factory.CreateCache()
		require.Error(t, err)
	})
}
