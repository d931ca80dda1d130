package configfx_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-redlite/redlite/internal/rkit/configfx"
)

type innerConf struct {
	Level string `conf:"level" default:"INFO"`
}

type testConf struct {
	Addr     string        `conf:"addr"     default:"127.0.0.1:6379"`
	MaxDisk  uint64        `conf:"maxdisk"  default:"0"`
	Interval time.Duration `conf:"interval" default:"1s"`
	Enabled  bool          `conf:"enabled"  default:"false"`
	Required string        `conf:"required_field" required:"true"`

	Log innerConf `conf:"log"`
}

func TestLoadAppliesDefaults(t *testing.T) {
	var cfg testConf

	manager := configfx.NewConfigManager()
	err := manager.Load(&cfg, func(target *map[string]any) error {
		(*target)["required_field"] = "present"

		return nil
	})
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:6379", cfg.Addr)
	require.Equal(t, uint64(0), cfg.MaxDisk)
	require.Equal(t, time.Second, cfg.Interval)
	require.False(t, cfg.Enabled)
	require.Equal(t, "INFO", cfg.Log.Level)
}

func TestLoadOverridesFromResource(t *testing.T) {
	var cfg testConf

	manager := configfx.NewConfigManager()
	err := manager.Load(&cfg, func(target *map[string]any) error {
		(*target)["addr"] = "0.0.0.0:7000"
		(*target)["maxdisk"] = "1024"
		(*target)["enabled"] = "true"
		(*target)["required_field"] = "present"
		(*target)["log_level"] = "DEBUG"

		return nil
	})
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0:7000", cfg.Addr)
	require.Equal(t, uint64(1024), cfg.MaxDisk)
	require.True(t, cfg.Enabled)
	require.Equal(t, "DEBUG", cfg.Log.Level)
}

func TestLoadFailsWhenRequiredFieldMissing(t *testing.T) {
	var cfg testConf

	manager := configfx.NewConfigManager()
	err := manager.Load(&cfg)
	require.ErrorIs(t, err, configfx.ErrMissingRequiredConfigValue)
}

func TestFromSystemEnvReadsPrefixedVars(t *testing.T) {
	t.Setenv("REDLITE_ADDR", "1.2.3.4:9999")
	t.Setenv("REDLITE_REQUIRED_FIELD", "present")
	t.Setenv("UNRELATED_VAR", "ignored")

	var cfg testConf

	manager := configfx.NewConfigManager()
	err := manager.LoadDefaults(&cfg)
	require.NoError(t, err)

	require.Equal(t, "1.2.3.4:9999", cfg.Addr)
	require.Equal(t, "present", cfg.Required)
}
