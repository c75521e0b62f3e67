package runtime

import (
	"github.com/hashicorp/go-hclog"
	"github.com/wnxd/lispcore/layout"
)

const DefaultRecordCacheSize = 256

type Options struct {
	// Platform defaults to layout.DefaultPlatform.
	Platform *layout.Platform
	// Step overrides the platform's single-step mechanism.
	Step      layout.StepMechanism
	Flags     FlagStore
	Handlers  Handlers
	Observers []Observer
	// RecordCacheSize bounds the decoded trap record cache.
	RecordCacheSize int
	Logger          hclog.Logger
}

// Loader fills the spaces from a core. It reports whether the core is a
// saved image that resumes instead of calling the initial function.
type Loader interface {
	Load(rt Runtime) (restore bool, err error)
}

type LoaderFunc func(rt Runtime) (bool, error)

func (f LoaderFunc) Load(rt Runtime) (bool, error) {
	return f(rt)
}
