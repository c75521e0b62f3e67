package runtime

import (
	"github.com/wnxd/lispcore/layout"
	"github.com/wnxd/lispcore/runtime"
)

type stateManager struct {
	state  runtime.State
	booted bool
}

func (sm *stateManager) ctor(rt *Rt) {
	sm.globalsInit(rt.platform)
}

func (sm *stateManager) dtor() {
	sm.booted = false
}

// globalsInit puts the process-wide record in its startup state: native
// code active, stacks empty and the atomic bit set until managed code
// takes over.
func (sm *stateManager) globalsInit(p *layout.Platform) {
	sm.state = runtime.State{
		CurrentDynamicSpace: layout.Dynamic0Space,
		FreePointer:         p.Space(layout.Dynamic0Space).Start,
		ControlStackPointer: p.Space(layout.ControlStack).Initial(),
		BindingStackPointer: p.Space(layout.BindingStack).Initial(),
		ForeignCallActive:   true,
	}
	sm.state.SetFlag(runtime.FlagAtomic, true)
}

func (sm *stateManager) State() runtime.State {
	return sm.state
}

func (sm *stateManager) ForeignCallActive() bool {
	return sm.state.ForeignCallActive
}

func (rt *Rt) Phase() runtime.Phase {
	switch {
	case len(rt.frames) > 0:
		return runtime.PhaseTrapped
	case rt.stepping != nil:
		return runtime.PhaseSingleStepping
	}
	return runtime.PhaseRunning
}
