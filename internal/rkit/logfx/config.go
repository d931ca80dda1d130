package logfx

// Config holds the knobs bound through internal/rkit/configfx (spec's
// AMBIENT STACK logging section), matching the teacher's
// pkg/ajan/logfx.Config shape minus OTel collector toggles.
type Config struct {
	Level string `conf:"level" default:"INFO"`

	DefaultLogger bool `conf:"default"     default:"false"`
	PrettyMode    bool `conf:"pretty"      default:"true"`
	AddSource     bool `conf:"add_source"  default:"false"`
}
