package log

import (
	hclog "github.com/hashicorp/go-hclog"
)

// SetLevel accepts the level names hclog understands ("trace", "debug",
// ...), falling back to info for anything else.
func SetLevel(level string) {
	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		lvl = hclog.Info
	}
	L.SetLevel(lvl)
}
