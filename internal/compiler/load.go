package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"gopkg.in/yaml.v3"

	"github.com/roach88/varpath/internal/ir"
)

// Format is a layout source encoding.
type Format string

const (
	FormatCUE  Format = "cue"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return FormatCUE, true
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".json":
		return FormatJSON, true
	}
	return "", false
}

// LoadFile reads and compiles a layout file. A directory is loaded as a single
// CUE package, so a layout may be split across several .cue files.
// The returned layout's Source is set to path unless the file declares one.
func LoadFile(path string) (*ir.Layout, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("layout %s: %w", path, err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}

	format, ok := FormatOf(path)
	if !ok {
		return nil, fmt.Errorf("layout %s: unsupported extension %q (want .cue, .yaml, .yml or .json)", path, filepath.Ext(path))
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("layout %s: %w", path, err)
	}
	return LoadBytes(path, format, src)
}

// LoadBytes compiles layout source already in memory. Name is used for
// error positions and as the default Source.
func LoadBytes(name string, format Format, src []byte) (*ir.Layout, error) {
	ctx := cuecontext.New()

	var v cue.Value
	switch format {
	case FormatCUE:
		v = ctx.CompileBytes(src, cue.Filename(name))
	case FormatYAML, FormatJSON:
		// JSON is valid YAML; both decode to plain Go values first.
		var data any
		if err := yaml.Unmarshal(src, &data); err != nil {
			return nil, fmt.Errorf("layout %s: %w", name, err)
		}
		if data == nil {
			return nil, fmt.Errorf("layout %s: empty document", name)
		}
		v = ctx.Encode(data)
	default:
		return nil, fmt.Errorf("layout %s: unknown format %q", name, format)
	}

	layout, err := CompileLayout(v)
	if err != nil {
		return nil, err
	}
	if layout.Source == "" {
		layout.Source = name
	}
	return layout, nil
}

// LoadDir loads every .cue file in dir as one package.
func LoadDir(dir string) (*ir.Layout, error) {
	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	layout, err := CompileLayout(v)
	if err != nil {
		return nil, err
	}
	if layout.Source == "" {
		layout.Source = dir
	}
	return layout, nil
}

// FindCUEFiles returns the .cue files directly inside dir.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}
