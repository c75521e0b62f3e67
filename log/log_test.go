package log

import (
	"testing"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	prev := L.GetLevel()
	t.Cleanup(func() { L.SetLevel(prev) })

	SetLevel("debug")
	require.Equal(t, hclog.Debug, L.GetLevel())
	require.True(t, Named("runtime").IsDebug())

	SetLevel("nonsense")
	require.Equal(t, hclog.Info, L.GetLevel())
}
