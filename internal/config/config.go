// Package config loads varpath settings from a YAML file and the environment.
//
// Precedence, lowest first: defaults, config file, VARPATH_* environment
// variables, command-line flags (applied by the cli package).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/varpath/internal/ir"
	"github.com/roach88/varpath/internal/varstore"
)

const (
	// EnvConfigPath names a config file to load when --config is not given.
	EnvConfigPath = "VARPATH_CONFIG"

	// DefaultFile is looked for in the working directory as a last resort.
	DefaultFile = "varpath.yaml"
)

// Config holds every setting a varpath command may need.
type Config struct {
	// Layout is a layout file (.cue, .yaml, .json), a CUE package directory,
	// or an ELF with DWARF debug info.
	Layout string `yaml:"layout" env:"VARPATH_LAYOUT"`

	// Image is the memory image get/set operate on: an ELF, an Intel HEX
	// file, or a raw binary (see ImageBase).
	Image string `yaml:"image" env:"VARPATH_IMAGE"`

	// ImageBase is the load address of a raw binary image.
	ImageBase uint64 `yaml:"image_base" env:"VARPATH_IMAGE_BASE"`

	// Journal is the sqlite write journal. Empty disables journaling.
	Journal string `yaml:"journal" env:"VARPATH_JOURNAL"`

	// ByteOrder and PointerSize override what the layout declares.
	ByteOrder   string `yaml:"byte_order" env:"VARPATH_BYTE_ORDER"`
	PointerSize int64  `yaml:"pointer_size" env:"VARPATH_POINTER_SIZE"`

	// CacheSize bounds the number of resolved paths kept per snapshot.
	CacheSize int `yaml:"cache_size" env:"VARPATH_CACHE_SIZE"`

	Log LogConfig `yaml:"log"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" env:"VARPATH_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"VARPATH_LOG_PRETTY"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		CacheSize: varstore.DefaultCacheSize,
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// Load builds the effective configuration.
//
// path is the --config flag value. When empty, $VARPATH_CONFIG and then
// ./varpath.yaml are tried; a missing default file is not an error, a
// missing explicit one is. Environment overrides are applied last.
func Load(path string) (*Config, string, error) {
	cfg := Default()

	file, explicit := locate(path)
	if file != "" {
		data, err := os.ReadFile(file)
		switch {
		case err == nil:
			if err := Parse(data, cfg); err != nil {
				return nil, file, fmt.Errorf("config %s: %w", file, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
			file = ""
		default:
			return nil, file, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := LoadFromEnv(cfg); err != nil {
		return nil, file, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, file, err
	}
	return cfg, file, nil
}

func locate(path string) (string, bool) {
	if path != "" {
		return path, true
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env, true
	}
	return DefaultFile, false
}

// Parse decodes YAML into cfg, rejecting unknown keys. Fields absent from
// the document keep their current values.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks value ranges. It does not check that files exist.
func (c *Config) Validate() error {
	var problems []string

	switch strings.ToLower(c.ByteOrder) {
	case "", ir.LittleEndian, ir.BigEndian:
	default:
		problems = append(problems, fmt.Sprintf("byte_order %q must be %q or %q", c.ByteOrder, ir.LittleEndian, ir.BigEndian))
	}

	switch c.PointerSize {
	case 0, 2, 4, 8:
	default:
		problems = append(problems, fmt.Sprintf("pointer_size %d must be 2, 4 or 8", c.PointerSize))
	}

	if c.CacheSize < 0 {
		problems = append(problems, fmt.Sprintf("cache_size %d must not be negative", c.CacheSize))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ApplyOverrides applies the byte order and pointer size overrides to a
// freshly loaded layout.
func (c *Config) ApplyOverrides(l *ir.Layout) {
	if c.ByteOrder != "" {
		l.ByteOrder = strings.ToLower(c.ByteOrder)
	}
	if c.PointerSize != 0 {
		l.PointerSize = c.PointerSize
	}
}
