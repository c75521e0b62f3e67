// Package signals relays host signals into a runtime's asynchronous
// interrupt path.
package signals

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/pkg/errors"
	"github.com/wnxd/lispcore/log"
	"github.com/wnxd/lispcore/runtime"
	"golang.org/x/sys/unix"
)

var ErrUnknownSignal = errors.New("unknown signal")

// Sink receives signals from another goroutine. runtime.Runtime is one.
type Sink interface {
	Interrupt(sig runtime.Signal)
}

// Forward relays sigs to sink until ctx is done. Delivery into managed
// code still goes through the pseudo-atomic check.
func Forward(ctx context.Context, sink Sink, sigs ...unix.Signal) {
	if len(sigs) == 0 {
		return
	}
	ch := make(chan os.Signal, 16)
	osSigs := make([]os.Signal, len(sigs))
	for i, sig := range sigs {
		osSigs[i] = sig
	}
	signal.Notify(ch, osSigs...)
	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-ch:
				sig, ok := s.(unix.Signal)
				if !ok {
					continue
				}
				log.L.Trace("host signal", "signal", unix.SignalName(sig))
				sink.Interrupt(runtime.Signal(sig))
			}
		}
	}()
}

// Parse accepts "SIGINT", "INT" or "int".
func Parse(name string) (unix.Signal, error) {
	name = strings.ToUpper(name)
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	if sig := unix.SignalNum(name); sig != 0 {
		return sig, nil
	}
	return 0, errors.Wrapf(ErrUnknownSignal, "%q", name)
}

func ParseList(names []string) ([]unix.Signal, error) {
	sigs := make([]unix.Signal, 0, len(names))
	for _, name := range names {
		sig, err := Parse(name)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}
