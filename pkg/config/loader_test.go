package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobilityhq/blueprint/pkg/config"
)

type testConfig struct {
	Name    string `env:"CONFIG_TEST_NAME" envDefault:"blueprint"`
	Port    int    `env:"CONFIG_TEST_PORT" envDefault:"8080"`
	Secret  string `env:"CONFIG_TEST_SECRET"`
	Require string `env:"CONFIG_TEST_REQUIRED,required"`
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults and env overrides", func(t *testing.T) {
		t.Setenv("CONFIG_TEST_REQUIRED", "set")
		t.Setenv("CONFIG_TEST_PORT", "9090")

		var cfg testConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "blueprint", cfg.Name)
		assert.Equal(t, 9090, cfg.Port)
		assert.Equal(t, "set", cfg.Require)
	})

	t.Run("fails on missing required variable", func(t *testing.T) {
		var cfg testConfig
		err := config.Load(&cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("rejects nil pointer", func(t *testing.T) {
		err := config.Load[testConfig](nil)
		assert.ErrorIs(t, err, config.ErrNilPointer)
	})
}

func TestMustLoad(t *testing.T) {
	t.Run("panics on missing required variable", func(t *testing.T) {
		var cfg testConfig
		assert.Panics(t, func() { config.MustLoad(&cfg) })
	})

	t.Run("succeeds when environment is complete", func(t *testing.T) {
		t.Setenv("CONFIG_TEST_REQUIRED", "set")

		var cfg testConfig
		assert.NotPanics(t, func() { config.MustLoad(&cfg) })
		assert.Equal(t, "set", cfg.Require)
	})
}
