package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tieredsession/core/config"
)

type defaultsConfig struct {
	Timeout time.Duration `env:"CONFIG_TEST_DEFAULTS_TIMEOUT" envDefault:"30m"`
	Prefix  string        `env:"CONFIG_TEST_DEFAULTS_PREFIX" envDefault:"_ahs"`
}

type envConfig struct {
	Attempts int `env:"CONFIG_TEST_ENV_ATTEMPTS" envDefault:"10"`
}

type cachedConfig struct {
	Value string `env:"CONFIG_TEST_CACHED_VALUE"`
}

type requiredConfig struct {
	URL string `env:"CONFIG_TEST_REQUIRED_URL,required"`
}

type retryConfig struct {
	URL string `env:"CONFIG_TEST_RETRY_URL,required"`
}

type panicConfig struct {
	URL string `env:"CONFIG_TEST_PANIC_URL,required"`
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		var cfg defaultsConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, 30*time.Minute, cfg.Timeout)
		assert.Equal(t, "_ahs", cfg.Prefix)
	})

	t.Run("reads environment", func(t *testing.T) {
		t.Setenv("CONFIG_TEST_ENV_ATTEMPTS", "3")

		var cfg envConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, 3, cfg.Attempts)
	})

	t.Run("caches per type", func(t *testing.T) {
		t.Setenv("CONFIG_TEST_CACHED_VALUE", "first")

		var first cachedConfig
		require.NoError(t, config.Load(&first))

		t.Setenv("CONFIG_TEST_CACHED_VALUE", "second")

		var second cachedConfig
		require.NoError(t, config.Load(&second))
		assert.Equal(t, "first", second.Value)
	})

	t.Run("missing required variable", func(t *testing.T) {
		var cfg requiredConfig
		assert.Error(t, config.Load(&cfg))
	})

	t.Run("failed parse is not cached", func(t *testing.T) {
		var cfg retryConfig
		require.Error(t, config.Load(&cfg))

		t.Setenv("CONFIG_TEST_RETRY_URL", "redis://localhost:6379")
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "redis://localhost:6379", cfg.URL)
	})

	t.Run("nil target", func(t *testing.T) {
		assert.ErrorIs(t, config.Load[defaultsConfig](nil), config.ErrNilConfig)
	})
}

func TestMustLoad(t *testing.T) {
	assert.Panics(t, func() {
		var cfg panicConfig
		config.MustLoad(&cfg)
	})
}
