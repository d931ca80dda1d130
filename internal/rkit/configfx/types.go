// Package configfx is a small reflection-based config loader modeled on
// the teacher's pkg/ajan/configfx: a target struct is populated from
// struct `default:"..."` tags and then overridden by environment
// variables tagged `conf:"..."`, prefixed REDLITE_ (spec's AMBIENT
// STACK configuration section). The teacher's JSON-file and dotenv-file
// resources are dropped — this server has no config.json/​.env
// convention — keeping only the environment-variable resource (see
// DESIGN.md).
package configfx

import "reflect"

const (
	TagConf     = "conf"
	TagDefault  = "default"
	TagRequired = "required"

	Separator = "_"

	EnvPrefix = "REDLITE_"
)

// ConfigItemMeta describes one struct field discovered by reflection,
// together with its nested children for embedded/struct fields.
type ConfigItemMeta struct {
	Name            string
	Field           reflect.Value
	Type            reflect.Type
	IsRequired      bool
	HasDefaultValue bool
	DefaultValue    string

	Children []ConfigItemMeta
}

// ConfigResource populates target with raw string values keyed by the
// dotted/underscored path built from `conf` tags.
type ConfigResource func(target *map[string]any) error

// ConfigLoader is the interface internal/rkit/configfx.ConfigManager
// implements; kept distinct from the concrete type the way the teacher
// separates the two for testability.
type ConfigLoader interface {
	Load(i any, resources ...ConfigResource) error
	LoadDefaults(i any) error
}
