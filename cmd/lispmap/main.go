// Command lispmap prints and checks the address maps the runtime lays its
// spaces out with. With --boot it also brings a runtime up on the software
// machine and prints the resulting state.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	emu_x86 "github.com/wnxd/lispcore/emulator/x86"
	"github.com/wnxd/lispcore/layout"
	"github.com/wnxd/lispcore/lisp"
	clog "github.com/wnxd/lispcore/log"
	"github.com/wnxd/lispcore/runtime"
	_ "github.com/wnxd/lispcore/runtime/x86"
	"github.com/wnxd/lispcore/signals"
)

var (
	fPlatform = pflag.StringP("platform", "p", layout.DefaultPlatform, "built-in address map to use")
	fConfig   = pflag.StringP("config", "c", "", "TOML file overriding a built-in map")
	fStep     = pflag.String("step", "", "single-step mechanism: trace-flag or trampoline")
	fList     = pflag.BoolP("list", "l", false, "list the built-in maps and exit")
	fBoot     = pflag.BoolP("boot", "b", false, "boot a runtime and print its state")
	fLevel    = pflag.String("log-level", "info", "log level")
	fSignals  = pflag.StringSlice("signals", nil, "host signals to forward while booted (default: the platform's asynchronous signals)")
)

func main() {
	pflag.Parse()
	clog.SetLevel(*fLevel)

	if *fList {
		for _, name := range layout.Platforms() {
			fmt.Println(name)
		}
		return
	}
	p, err := platform()
	if err != nil {
		fail(err)
	}
	printPlatform(p)
	if !*fBoot {
		return
	}
	if err := boot(p, pflag.Args()); err != nil {
		fail(err)
	}
}

func platform() (*layout.Platform, error) {
	var (
		p   *layout.Platform
		err error
	)
	if *fConfig != "" {
		p, err = layout.Load(*fConfig)
	} else {
		p, err = layout.Lookup(*fPlatform)
	}
	if err != nil {
		return nil, err
	}
	if *fStep != "" {
		p.Step = layout.StepMechanism(*fStep)
	}
	return p, p.Validate()
}

func printPlatform(p *layout.Platform) {
	fmt.Printf("platform %s, trap % x, step %s\n", p.Name, p.TrapInsn, p.Step)
	for _, s := range p.Spaces {
		fmt.Println("  " + s.String())
	}
}

func boot(p *layout.Platform, args []string) error {
	machine := emu_x86.New()
	defer machine.Close()
	rt, err := runtime.New(machine, runtime.Options{Platform: p, Logger: clog.Named("runtime")})
	if err != nil {
		return err
	}
	defer rt.Close()
	sigs := p.AsyncSignals
	if len(*fSignals) > 0 {
		if sigs, err = signals.ParseList(*fSignals); err != nil {
			return err
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals.Forward(ctx, rt, sigs...)
	if _, err := rt.Boot(nil, args, os.Environ()); err != nil {
		return err
	}
	st := rt.State()
	fmt.Printf("dynamic %s, free %#x, control sp %#x, binding sp %#x\n",
		st.CurrentDynamicSpace, st.FreePointer, st.ControlStackPointer, st.BindingStackPointer)
	for _, sym := range lisp.StaticSymbols() {
		val, err := rt.SymbolValue(rt.StaticSymbol(sym))
		if err != nil {
			return err
		}
		fmt.Printf("  %-28s %v\n", sym, val)
	}
	argv, err := rt.SymbolValue(rt.StaticSymbol(lisp.LispCommandLineList))
	if err != nil {
		return err
	}
	objs, err := rt.ListSlice(argv)
	if err != nil {
		return err
	}
	for i, obj := range objs {
		s, err := rt.ReadString(obj)
		if err != nil {
			return err
		}
		fmt.Printf("  argv[%d] %q\n", i, s)
	}
	if pending := rt.Pending(); len(pending) > 0 {
		fmt.Printf("pending %v\n", pending)
	}
	return nil
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "lispmap:", err)
	var fatal *runtime.FatalError
	if errors.As(err, &fatal) {
		os.Exit(2)
	}
	os.Exit(1)
}
