package layout

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuiltinPlatformsValidate(t *testing.T) {
	names := Platforms()
	require.Equal(t, []string{"darwin-x86", "freebsd-x86", "linux-x86"}, names)
	for _, name := range names {
		p, err := Lookup(name)
		require.NoError(t, err)
		require.NoError(t, p.Validate(), name)
		require.Equal(t, p.Space(ControlStack).End(), p.Space(ControlStack).Initial())
		require.Equal(t, p.Space(Dynamic0Space).Start, p.Space(Dynamic0Space).Initial())
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	p, err := Lookup("linux-x86")
	require.NoError(t, err)
	p.Spaces[StaticSpace].Start = 0
	p.TrapInsn[0] = 0x90

	q, err := Lookup("linux-x86")
	require.NoError(t, err)
	require.EqualValues(t, 0x28000000, q.Space(StaticSpace).Start)
	require.Equal(t, []byte{0xCC}, q.TrapInsn)

	_, err = Lookup("vax")
	require.ErrorIs(t, err, ErrUnknownPlatform)
}

func TestValidateOverlap(t *testing.T) {
	p, err := Lookup("linux-x86")
	require.NoError(t, err)
	// The control stack base the C runtime used lands inside static space.
	p.Spaces[ControlStack].Start = 0x30001000
	require.ErrorIs(t, p.Validate(), ErrSpaceOverlap)
}

func TestValidateAlignment(t *testing.T) {
	p, err := Lookup("linux-x86")
	require.NoError(t, err)
	p.Spaces[Dynamic1Space].Size += 0x10
	require.ErrorIs(t, p.Validate(), ErrBadLayout)

	p, err = Lookup("linux-x86")
	require.NoError(t, err)
	p.Spaces[BindingStack].Size = 0
	require.ErrorIs(t, p.Validate(), ErrBadLayout)
}

func TestSpaceOf(t *testing.T) {
	p, err := Lookup("freebsd-x86")
	require.NoError(t, err)
	s, ok := p.SpaceOf(0x48000000)
	require.True(t, ok)
	require.Equal(t, Dynamic0Space, s.ID)
	s, ok = p.SpaceOf(0x47ffffff)
	require.True(t, ok)
	require.Equal(t, ControlStack, s.ID)
	_, ok = p.SpaceOf(0x0fffffff)
	require.False(t, ok)
}

func TestDecode(t *testing.T) {
	p, err := Decode(strings.NewReader(`
base = "darwin-x86"
name = "darwin-big"
step = "trace-flag"

[spaces.dynamic-0]
size = 0x02000000

[spaces.dynamic-1]
start = 0x4A000000
size  = 0x02000000
`))
	require.NoError(t, err)
	require.Equal(t, "darwin-big", p.Name)
	require.Equal(t, StepTraceFlag, p.Step)
	require.Equal(t, []byte{0x0F, 0x0B}, p.TrapInsn)
	require.EqualValues(t, 0x02000000, p.Space(Dynamic0Space).Size)
	require.EqualValues(t, 0x4A000000, p.Space(Dynamic1Space).Start)
}

func TestDecodeErrors(t *testing.T) {
	for _, doc := range []string{
		`step = "teleport"`,
		"[spaces.heap]\nsize = 0x1000",
		`base = "vax"`,
		"[spaces.static]\nstart = 0x48000000",
		`name = `,
	} {
		_, err := Decode(strings.NewReader(doc))
		require.Error(t, err, doc)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.toml")
	require.NoError(t, os.WriteFile(path, []byte("name = \"custom\"\n"), 0o644))
	p, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "custom", p.Name)
	require.Equal(t, StepTraceFlag, p.Step)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
