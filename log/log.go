package log

import (
	"os"

	hclog "github.com/hashicorp/go-hclog"
)

var L hclog.Logger

func init() {
	L = hclog.New(&hclog.LoggerOptions{Name: "lisp"})
	L.SetLevel(hclog.Info)

	if str := os.Getenv("LISP_TRACE"); str != "" {
		L.SetLevel(hclog.Trace)
	}
}

// Named returns a sub-logger for one component of the runtime.
func Named(name string) hclog.Logger {
	return L.Named(name)
}
