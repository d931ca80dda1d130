// Package modules registers the argument surface of the optional Redis
// modules this server treats as external (spec §1, §7): full-text
// search (FT.*), geospatial (GEO*), vector (V*), and HISTORY. Each is
// wired into the dispatcher as an arity-checked stub that replies with a
// RESP Error rather than an unknown-command reply, so COMMAND
// introspection and client libraries that probe for these names don't
// get surprised. None of their underlying algorithms are implemented.
package modules

import "github.com/go-redlite/redlite/internal/dispatch"

// stub pairs a command name with its minimum argument count.
type stub struct {
	name    string
	minArgs int
}

var stubs = []stub{ //nolint:gochecknoglobals
	{"FT.CREATE", 1},
	{"FT.SEARCH", 2},
	{"FT.DROPINDEX", 1},
	{"FT.INFO", 1},
	{"FT.AGGREGATE", 2},
	{"GEOADD", 4},
	{"GEOSEARCH", 1},
	{"GEODIST", 3},
	{"GEOPOS", 2},
	{"GEOHASH", 2},
	{"VADD", 3},
	{"VSEARCH", 2},
	{"VSIM", 2},
	{"VREM", 2},
	{"HISTORY", 1},
}

func init() { //nolint:gochecknoinits
	for _, st := range stubs {
		dispatch.RegisterStub(st.name, st.minArgs)
	}
}
