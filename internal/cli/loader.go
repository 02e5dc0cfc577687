package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/roach88/varpath/internal/compiler"
	"github.com/roach88/varpath/internal/elfinfo"
	"github.com/roach88/varpath/internal/ir"
	"github.com/roach88/varpath/internal/memlink"
	"github.com/roach88/varpath/internal/store"
	"github.com/roach88/varpath/internal/varstore"
)

// LoadError is a command-level failure while loading inputs.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *LoadError) Unwrap() error { return e.Err }

// InvalidLayoutError carries every validation problem of a layout file.
type InvalidLayoutError struct {
	Path   string
	Errors []compiler.ValidationError
}

func (e *InvalidLayoutError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, v := range e.Errors {
		msgs[i] = v.Error()
	}
	return fmt.Sprintf("layout %s is invalid:\n  %s", e.Path, strings.Join(msgs, "\n  "))
}

// loadLayout reads a layout file. Files and directories the compiler
// recognizes are compiled; anything else is treated as an ELF with DWARF.
// Compiled layouts are validated, so authoring mistakes come back with E2xx
// codes instead of the first graph error.
func (o *RootOptions) loadLayout(path string) (*ir.Layout, error) {
	if path == "" {
		return nil, &LoadError{Code: ErrCodeNoLayout, Message: "no layout: pass --layout or set layout in the config"}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: "layout not found", Err: err}
	}

	var layout *ir.Layout
	if _, ok := compiler.FormatOf(path); ok || info.IsDir() {
		layout, err = compiler.LoadFile(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "failed to compile layout", Err: err}
		}
		if errs := compiler.Validate(layout); len(errs) > 0 {
			return nil, &InvalidLayoutError{Path: path, Errors: errs}
		}
	} else {
		layout, err = elfinfo.Load(path, elfinfo.WithLogger(o.Logger))
		if err != nil {
			if elfinfo.IsNoDWARF(err) {
				return nil, err
			}
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "failed to read debug info", Err: err}
		}
	}

	if o.Config != nil {
		o.Config.ApplyOverrides(layout)
	}
	o.Logger.Debug().
		Str("layout", path).
		Int("types", len(layout.Types)).
		Int("symbols", len(layout.Symbols)).
		Msg("Layout loaded")
	return layout, nil
}

// snapshot loads the configured layout (or path, when set) and builds its
// type graph and symbol table.
func (o *RootOptions) snapshot(path string) (*varstore.Snapshot, error) {
	if path == "" && o.Config != nil {
		path = o.Config.Layout
	}
	layout, err := o.loadLayout(path)
	if err != nil {
		return nil, err
	}
	return varstore.NewSnapshot(*layout)
}

// openImage loads the configured memory image.
func (o *RootOptions) openImage() (*memlink.Image, memlink.Format, error) {
	if o.Config == nil || o.Config.Image == "" {
		return nil, "", &LoadError{Code: ErrCodeNoImage, Message: "no image: pass --image or set image in the config"}
	}
	img, format, err := memlink.Open(o.Config.Image, o.Config.ImageBase)
	if err != nil {
		return nil, "", &LoadError{Code: ErrCodeNotFound, Message: "failed to open image", Err: err}
	}
	o.Logger.Debug().
		Str("image", o.Config.Image).
		Str("format", string(format)).
		Int("regions", len(img.Regions())).
		Msg("Image loaded")
	return img, format, nil
}

// openJournal opens the configured journal. It returns nil, nil when no
// journal is configured and required is false.
func (o *RootOptions) openJournal(required bool) (*store.Store, error) {
	if o.Config == nil || o.Config.Journal == "" {
		if required {
			return nil, &LoadError{Code: ErrCodeJournal, Message: "no journal: pass --journal or set journal in the config"}
		}
		return nil, nil
	}
	st, err := store.Open(o.Config.Journal)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeJournal, Message: "failed to open journal", Err: err}
	}
	return st, nil
}

// newStore builds a variable store over img. journal may be nil.
func (o *RootOptions) newStore(snap *varstore.Snapshot, img *memlink.Image, journal *store.Store) *varstore.Store {
	opts := []varstore.Option{varstore.WithLogger(o.Logger)}
	if o.Config != nil && o.Config.CacheSize > 0 {
		opts = append(opts, varstore.WithCacheSize(o.Config.CacheSize))
	}
	if journal != nil {
		opts = append(opts, varstore.WithJournal(journal))
	}
	return varstore.New(snap, memlink.NewLogged(img, o.Logger), opts...)
}

// loadFailure reports a loader error with the right code and exit status.
func loadFailure(f *OutputFormatter, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		_ = f.Error(le.Code, le.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: le.Code, Err: err, Reported: true}
	}
	var ie *InvalidLayoutError
	if errors.As(err, &ie) {
		return outputValidationErrors(f, ie.Path, ie.Errors, ExitCommandError)
	}
	return f.Fail(ExitCommandError, ErrCodeLoadFailed, err)
}
