package layout

import (
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// File is the TOML form of an address map override:
//
//	base = "linux-x86"
//	name = "linux-x86-big"
//	step = "trampoline"
//
//	[spaces.dynamic-0]
//	start = 0x48000000
//	size  = 0x10000000
type File struct {
	Base   string                 `toml:"base"`
	Name   string                 `toml:"name"`
	Step   StepMechanism          `toml:"step"`
	Spaces map[string]SpaceConfig `toml:"spaces"`
}

type SpaceConfig struct {
	Start uint64 `toml:"start"`
	Size  uint64 `toml:"size"`
}

func Load(path string) (*Platform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	return p, nil
}

func Decode(r io.Reader) (*Platform, error) {
	var file File
	if _, err := toml.NewDecoder(r).Decode(&file); err != nil {
		return nil, err
	}
	return file.Platform()
}

// Platform applies the overrides to the base map and validates the
// result.
func (file *File) Platform() (*Platform, error) {
	base := file.Base
	if base == "" {
		base = DefaultPlatform
	}
	p, err := Lookup(base)
	if err != nil {
		return nil, err
	}
	if file.Name != "" {
		p.Name = file.Name
	}
	switch file.Step {
	case "":
	case StepTraceFlag, StepTrampoline:
		p.Step = file.Step
	default:
		return nil, errors.Wrapf(ErrBadLayout, "step mechanism %q", file.Step)
	}
	for name, cfg := range file.Spaces {
		id, ok := spaceByName(name)
		if !ok {
			return nil, errors.Wrapf(ErrBadLayout, "unknown space %q", name)
		}
		if cfg.Start != 0 {
			p.Spaces[id].Start = cfg.Start
		}
		if cfg.Size != 0 {
			p.Spaces[id].Size = cfg.Size
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func spaceByName(name string) (SpaceID, bool) {
	for _, id := range SpaceIDs() {
		if id.String() == name {
			return id, true
		}
	}
	return 0, false
}
