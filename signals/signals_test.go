package signals

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wnxd/lispcore/runtime"
	"golang.org/x/sys/unix"
)

func TestParse(t *testing.T) {
	for _, name := range []string{"SIGINT", "INT", "int", "sigint"} {
		sig, err := Parse(name)
		require.NoError(t, err, name)
		require.Equal(t, unix.SIGINT, sig)
	}
	_, err := Parse("SIGNOPE")
	require.ErrorIs(t, err, ErrUnknownSignal)

	sigs, err := ParseList([]string{"alrm", "SIGIO"})
	require.NoError(t, err)
	require.Equal(t, []unix.Signal{unix.SIGALRM, unix.SIGIO}, sigs)
	_, err = ParseList([]string{"alrm", "bogus"})
	require.ErrorIs(t, err, ErrUnknownSignal)
}

type chanSink chan runtime.Signal

func (c chanSink) Interrupt(sig runtime.Signal) {
	c <- sig
}

func TestForward(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := make(chanSink, 1)
	Forward(ctx, sink, unix.SIGUSR1)

	require.NoError(t, unix.Kill(unix.Getpid(), unix.SIGUSR1))
	select {
	case sig := <-sink:
		require.Equal(t, runtime.Signal(unix.SIGUSR1), sig)
	case <-time.After(5 * time.Second):
		t.Fatal("signal not forwarded")
	}
}
