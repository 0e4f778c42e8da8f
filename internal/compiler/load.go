package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/scan/internal/cs"
	"github.com/roach88/scan/internal/mtl"
)

// Bundle is a compiled model directory.
type Bundle struct {
	Model    *cs.Model
	Property mtl.Property
	Plan     *mtl.Plan

	ModelFingerprint    string
	PropertyFingerprint string

	Files int // number of CUE files found
}

// Load compiles every .cue file of dir: the model field into a Channel
// System and the properties field into a monitor plan.
func Load(dir string) (*Bundle, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("model directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing model directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	b, err := FromValue(value)
	if err != nil {
		return nil, err
	}
	b.Files = len(files)
	return b, nil
}

// LoadSource compiles a single CUE document held in memory.
func LoadSource(filename, src string) (*Bundle, error) {
	value := cuecontext.New().CompileString(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	b, err := FromValue(value)
	if err != nil {
		return nil, err
	}
	b.Files = 1
	return b, nil
}

// FromValue compiles an evaluated CUE value with model and properties fields.
func FromValue(v cue.Value) (*Bundle, error) {
	modelVal := lookup(v, "model")
	if !modelVal.Exists() {
		return nil, &LoadError{Code: ErrCodeNoModel, Message: "no model field found", Pos: v.Pos()}
	}
	m, err := CompileModel(modelVal)
	if err != nil {
		return nil, err
	}

	var prop mtl.Property
	if pv := lookup(v, "properties"); pv.Exists() {
		if prop, err = CompileProperties(pv); err != nil {
			return nil, err
		}
	}
	return newBundle(m, prop)
}

func newBundle(m *cs.Model, prop mtl.Property) (*Bundle, error) {
	plan, err := mtl.Compile(m, prop)
	if err != nil {
		return nil, err
	}
	mfp, err := m.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("fingerprint model: %w", err)
	}
	pfp, err := prop.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("fingerprint properties: %w", err)
	}
	return &Bundle{
		Model:               m,
		Property:            prop,
		Plan:                plan,
		ModelFingerprint:    mfp,
		PropertyFingerprint: pfp,
	}, nil
}

// Select returns a bundle checking only the named guarantees. Assumes are
// kept. An empty names list returns b unchanged.
func (b *Bundle) Select(names ...string) (*Bundle, error) {
	if len(names) == 0 {
		return b, nil
	}
	prop := mtl.Property{Assumes: b.Property.Assumes}
	for _, name := range names {
		found := false
		for _, g := range b.Property.Guarantees {
			if g.Name == name {
				prop.Guarantee(g.Name, g.Formula)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("no guarantee named %q", name)
		}
	}
	sel, err := newBundle(b.Model, prop)
	if err != nil {
		return nil, err
	}
	sel.Files = b.Files
	return sel, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
