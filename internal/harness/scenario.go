package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines one harness run.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Layout is the layout file (or CUE package directory) to load.
	Layout string `yaml:"layout"`

	// Image describes the target memory the steps run against.
	Image ImageSpec `yaml:"image"`

	// Journal records every set in an in-memory journal. Required by the
	// replay step and the journal_count assertion.
	Journal bool `yaml:"journal,omitempty"`

	// SessionID pins the journal session id. Defaults to testutil.DefaultSessionID.
	SessionID string `yaml:"session_id,omitempty"`

	// CacheSize overrides the resolved-path cache size; zero keeps the default.
	CacheSize int `yaml:"cache_size,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ImageSpec describes the memory image. Either File is loaded (ELF, Intel
// HEX, or raw at Base) or a zeroed buffer of Size bytes at Base is created.
// Init patches are applied in both cases.
type ImageSpec struct {
	File string  `yaml:"file,omitempty"`
	Base uint64  `yaml:"base"`
	Size int     `yaml:"size,omitempty"`
	Init []Patch `yaml:"init,omitempty"`
}

// Patch is a byte run written into the image before the first step.
type Patch struct {
	Address uint64 `yaml:"address"`
	Bytes   []int  `yaml:"bytes"`
}

// Step is one operation against the variable store.
type Step struct {
	Op string `yaml:"op"`

	// Path is the variable path for resolve, get, set and follow.
	Path string `yaml:"path,omitempty"`

	// Tail is resolved from the pointer target (follow only), e.g. ".a".
	Tail string `yaml:"tail,omitempty"`

	// Value is written by set. Scalars, lists and maps map onto the value
	// model the same way JSON input does.
	Value any `yaml:"value,omitempty"`

	// Layout is the replacement layout (reload only).
	Layout string `yaml:"layout,omitempty"`

	// Expect validates the step outcome. Without it the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected step outcome. Unset fields are not checked.
type Expect struct {
	// Error is the expected error code, e.g. FIELD_NOT_FOUND.
	Error string `yaml:"error,omitempty"`

	// Message must be a substring of the error message.
	Message string `yaml:"message,omitempty"`

	Address *uint64 `yaml:"address,omitempty"`
	Size    *uint64 `yaml:"size,omitempty"`
	Type    string  `yaml:"type,omitempty"`

	// Value is compared after both sides are normalized to JSON input form.
	Value any `yaml:"value,omitempty"`

	// Applied and Relocated check replay counts.
	Applied   *int `yaml:"applied,omitempty"`
	Relocated *int `yaml:"relocated,omitempty"`
}

// Assertion validates the final image, journal or trace.
type Assertion struct {
	Type string `yaml:"type"`

	// memory
	Address uint64 `yaml:"address,omitempty"`
	Bytes   []int  `yaml:"bytes,omitempty"`

	// journal_count, trace_count
	Count int `yaml:"count,omitempty"`

	// trace_count
	Op   string `yaml:"op,omitempty"`
	Path string `yaml:"path,omitempty"`

	// trace_order
	Paths []string `yaml:"paths,omitempty"`
}

// Step operations.
const (
	OpResolve = "resolve"
	OpGet     = "get"
	OpSet     = "set"
	OpFollow  = "follow"
	OpReload  = "reload"
	OpReplay  = "replay"
)

// Assertion type constants.
const (
	AssertMemory       = "memory"
	AssertJournalCount = "journal_count"
	AssertTraceCount   = "trace_count"
	AssertTraceOrder   = "trace_order"
)

var validOps = []string{OpResolve, OpGet, OpSet, OpFollow, OpReload, OpReplay}

var validAssertions = []string{AssertMemory, AssertJournalCount, AssertTraceCount, AssertTraceOrder}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Relative layout and image paths are resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	scenario.resolvePaths(filepath.Dir(path))
	return scenario, nil
}

// ParseScenario parses scenario YAML with strict field validation. Paths are
// left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches typos like "assertion:" vs "assertions:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func (s *Scenario) resolvePaths(base string) {
	join := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	s.Layout = join(s.Layout)
	s.Image.File = join(s.Image.File)
	for i := range s.Steps {
		s.Steps[i].Layout = join(s.Steps[i].Layout)
	}
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Layout == "" {
		return fmt.Errorf("layout is required")
	}
	if s.Image.File == "" && s.Image.Size <= 0 {
		return fmt.Errorf("image needs a file or a positive size")
	}
	for i, p := range s.Image.Init {
		if err := checkBytes(p.Bytes); err != nil {
			return fmt.Errorf("image.init[%d]: %w", i, err)
		}
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(step, s.Journal); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a, s.Journal); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step, journal bool) error {
	if !slices.Contains(validOps, step.Op) {
		return fmt.Errorf("op %q must be one of %s", step.Op, strings.Join(validOps, ", "))
	}
	switch step.Op {
	case OpResolve, OpGet, OpFollow:
		if step.Path == "" {
			return fmt.Errorf("%s requires path", step.Op)
		}
	case OpSet:
		if step.Path == "" {
			return fmt.Errorf("set requires path")
		}
		if step.Value == nil {
			return fmt.Errorf("set requires value")
		}
	case OpReload:
		if step.Layout == "" {
			return fmt.Errorf("reload requires layout")
		}
	case OpReplay:
		if !journal {
			return fmt.Errorf("replay requires journal: true")
		}
	}
	return nil
}

func validateAssertion(a Assertion, journal bool) error {
	if !slices.Contains(validAssertions, a.Type) {
		return fmt.Errorf("type %q must be one of %s", a.Type, strings.Join(validAssertions, ", "))
	}
	switch a.Type {
	case AssertMemory:
		if len(a.Bytes) == 0 {
			return fmt.Errorf("memory requires bytes")
		}
		return checkBytes(a.Bytes)
	case AssertJournalCount:
		if !journal {
			return fmt.Errorf("journal_count requires journal: true")
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("trace_count requires op")
		}
	case AssertTraceOrder:
		if len(a.Paths) < 2 {
			return fmt.Errorf("trace_order requires at least two paths")
		}
	}
	return nil
}

func checkBytes(bs []int) error {
	for i, b := range bs {
		if b < 0 || b > 0xFF {
			return fmt.Errorf("bytes[%d] = %d is not a byte", i, b)
		}
	}
	return nil
}

func toBytes(bs []int) []byte {
	out := make([]byte, len(bs))
	for i, b := range bs {
		out[i] = byte(b)
	}
	return out
}

// FindScenarios returns the .yaml and .yml files directly under dir, sorted.
// filter, when set, is a glob matched against the file name without extension.
func FindScenarios(dir, filter string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenarios directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(e.Name(), ext))
			if err != nil {
				return nil, fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				continue
			}
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	slices.Sort(files)
	return files, nil
}
