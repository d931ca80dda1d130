package configfx

import (
	"os"
	"strings"
)

// FromSystemEnv overrides target with every REDLITE_-prefixed process
// environment variable, the prefix stripped and lower-cased to match
// `conf` tag keys (spec's AMBIENT STACK configuration section).
func (cl *ConfigManager) FromSystemEnv(keyCaseInsensitive bool) ConfigResource {
	return func(target *map[string]any) error {
		for _, kv := range os.Environ() {
			name, value, ok := strings.Cut(kv, "=")
			if !ok || !strings.HasPrefix(name, EnvPrefix) {
				continue
			}

			key := strings.TrimPrefix(name, EnvPrefix)
			if keyCaseInsensitive {
				key = strings.ToLower(key)
			}

			(*target)[key] = value
		}

		return nil
	}
}
