package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-redlite/redlite/internal/config"
	"github.com/go-redlite/redlite/internal/rkit/configfx"
)

func TestLoadDefaultsPopulatesAllKnobs(t *testing.T) {
	var cfg config.Config

	mgr := configfx.NewConfigManager()
	require.NoError(t, mgr.LoadDefaults(&cfg))

	require.Equal(t, "127.0.0.1:6379", cfg.Addr)
	require.Equal(t, "redlite.db", cfg.DB)
	require.Equal(t, "noeviction", cfg.MaxMemoryPolicy)
	require.Equal(t, "off", cfg.AutoVacuum)
	require.EqualValues(t, 60000, cfg.AutoVacuumInterval)
}

func TestLoadOverridesAddrFromEnv(t *testing.T) {
	t.Setenv("REDLITE_ADDR", "0.0.0.0:7000")
	t.Setenv("REDLITE_PASSWORD", "hunter2")

	var cfg config.Config

	mgr := configfx.NewConfigManager()
	require.NoError(t, mgr.Load(&cfg, mgr.FromSystemEnv(true)))

	require.Equal(t, "0.0.0.0:7000", cfg.Addr)
	require.Equal(t, "hunter2", cfg.Password)
}
