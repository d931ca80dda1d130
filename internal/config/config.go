// Package config defines this server's top-level configuration struct,
// loaded by internal/rkit/configfx and bound to CLI flags by cmd/redlite
// through spf13/cobra (spec's AMBIENT STACK configuration section).
package config

import "github.com/go-redlite/redlite/internal/rkit/logfx"

// Config holds every CLI-surfaced knob plus the §6 configuration knobs
// that also exist as live CONFIG GET/SET targets (those are re-read into
// internal/dispatch.Config at startup; this struct only supplies their
// initial values).
type Config struct {
	Addr string `conf:"addr" default:"127.0.0.1:6379"`
	DB   string `conf:"db"   default:"redlite.db"`

	Password string `conf:"password" default:""`

	MaxDisk               uint64 `conf:"maxdisk"                 default:"0"`
	MaxMemory             uint64 `conf:"maxmemory"                default:"0"`
	MaxMemoryPolicy       string `conf:"maxmemory_policy"         default:"noeviction"`
	PersistAccessTracking bool   `conf:"persist_access_tracking"  default:"false"`
	AccessFlushInterval   int64  `conf:"access_flush_interval"    default:"1000"`

	AutoVacuum         string `conf:"autovacuum"          default:"off"`
	AutoVacuumInterval int64  `conf:"autovacuum_interval" default:"60000"`

	Log logfx.Config `conf:"log"`
}
