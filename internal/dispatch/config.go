package dispatch

import "sync"

// Config holds the mutable server-wide settings CONFIG GET/SET and AUTH
// operate on (spec §4.1 "Admin" and §6 "Configuration knobs"). All fields
// are guarded by mu since CLIENT/CONFIG commands run from any connection
// goroutine.
type Config struct {
	mu sync.RWMutex

	password string

	maxDisk               uint64
	maxMemory             uint64
	maxMemoryPolicy       string
	persistAccessTracking bool
	accessFlushInterval   int64

	autoVacuum         string // "off" or "on"; the background sweep runs only when "on"
	autoVacuumInterval int64  // milliseconds between sweeps while autoVacuum is "on"
}

// NewConfig constructs a Config with Redis-like defaults.
func NewConfig(password string) *Config {
	return &Config{ //nolint:exhaustruct
		password:            password,
		maxMemoryPolicy:     "noeviction",
		accessFlushInterval: 1000,
		autoVacuum:          "off",
	}
}

// RequiresAuth reports whether a password is configured.
func (c *Config) RequiresAuth() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.password != ""
}

// CheckPassword reports whether pass matches the configured password.
func (c *Config) CheckPassword(pass string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.password == pass
}

// configKeys lists the names CONFIG GET/SET recognizes (spec §4.1: "exactly
// {maxdisk, maxmemory, maxmemory-policy, persist-access-tracking,
// access-flush-interval}").
var configKeys = map[string]bool{ //nolint:gochecknoglobals
	"maxdisk":                 true,
	"maxmemory":               true,
	"maxmemory-policy":        true,
	"persist-access-tracking": true,
	"access-flush-interval":   true,
}

var maxMemoryPolicies = map[string]bool{ //nolint:gochecknoglobals
	"noeviction":      true,
	"allkeys-lru":     true,
	"allkeys-lfu":     true,
	"volatile-lru":    true,
	"volatile-lfu":    true,
	"allkeys-random":  true,
	"volatile-random": true,
	"volatile-ttl":    true,
}

// Get returns the string form of a recognized config key, ok=false if the
// key is not one CONFIG GET recognizes.
func (c *Config) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !configKeys[key] {
		return "", false
	}

	switch key {
	case "maxdisk":
		return formatUint(c.maxDisk), true
	case "maxmemory":
		return formatUint(c.maxMemory), true
	case "maxmemory-policy":
		return c.maxMemoryPolicy, true
	case "persist-access-tracking":
		return formatBool(c.persistAccessTracking), true
	case "access-flush-interval":
		return formatInt(c.accessFlushInterval), true
	default:
		return "", false
	}
}

// Set writes a recognized config key, returning false if the key is
// unrecognized or the value fails validation for that key.
func (c *Config) Set(key, value string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !configKeys[key] {
		return false
	}

	switch key {
	case "maxdisk":
		n, ok := parseUint(value)
		if !ok {
			return false
		}

		c.maxDisk = n
	case "maxmemory":
		n, ok := parseUint(value)
		if !ok {
			return false
		}

		c.maxMemory = n
	case "maxmemory-policy":
		if !maxMemoryPolicies[value] {
			return false
		}

		c.maxMemoryPolicy = value
	case "persist-access-tracking":
		b, ok := parseBool(value)
		if !ok {
			return false
		}

		c.persistAccessTracking = b
	case "access-flush-interval":
		n, ok := parseInt(value)
		if !ok {
			return false
		}

		c.accessFlushInterval = n
	}

	return true
}

// SetAutoVacuum applies AUTOVACUUM on|off|INTERVAL ms.
func (c *Config) SetAutoVacuum(mode string, intervalMillis int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.autoVacuum = mode
	c.autoVacuumInterval = intervalMillis
}

// AutoVacuum returns the current mode and interval.
func (c *Config) AutoVacuum() (string, int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.autoVacuum, c.autoVacuumInterval
}

// MaxMemory returns the configured byte ceiling, 0 meaning disabled.
func (c *Config) MaxMemory() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.maxMemory
}

// MaxMemoryPolicy returns the configured eviction policy name.
func (c *Config) MaxMemoryPolicy() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.maxMemoryPolicy
}
