// Package elfinfo extracts a layout from the DWARF debug information of an
// ELF file: every global variable with a static address, plus the types
// needed to describe it.
//
// Variables declared inside functions are not included, static locals
// among them. Byte order and pointer size come from the ELF header.
package elfinfo

import (
	"debug/dwarf"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/roach88/varpath/internal/ir"
)

// opAddr is DW_OP_addr: the operand is the variable's absolute address.
const opAddr = 0x03

// Option configures Load.
type Option func(*options)

type options struct {
	names  map[string]bool
	logger zerolog.Logger
}

// WithNames limits the layout to the named variables.
func WithNames(names ...string) Option {
	return func(o *options) {
		if o.names == nil {
			o.names = make(map[string]bool, len(names))
		}
		for _, n := range names {
			o.names[n] = true
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Load opens the ELF file at path and extracts its layout.
func Load(path string, opts ...Option) (*ir.Layout, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file %s: %w", path, err)
	}
	defer f.Close()

	return FromELF(f, path, opts...)
}

// FromELF extracts the layout of an already open ELF file. Source is
// recorded as Layout.Source.
func FromELF(f *elf.File, source string, opts ...Option) (*ir.Layout, error) {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With().Str("component", "elfinfo").Logger()

	d, err := f.DWARF()
	if err != nil {
		return nil, &NoDWARFError{Path: source, Err: err}
	}

	layout := &ir.Layout{
		Source:      source,
		ByteOrder:   ir.LittleEndian,
		PointerSize: 4,
	}
	if f.ByteOrder == binary.BigEndian {
		layout.ByteOrder = ir.BigEndian
	}
	if f.Class == elf.ELFCLASS64 {
		layout.PointerSize = 8
	}

	w := &walker{
		data:     d,
		order:    f.ByteOrder,
		sections: f.Sections,
		names:    o.names,
		conv:     newConverter(logger),
		logger:   logger,
		seen:     make(map[string]bool),
	}
	if err := w.walk(); err != nil {
		return nil, err
	}

	if len(w.symbols) == 0 {
		if len(o.names) > 0 {
			return nil, fmt.Errorf("none of the requested variables found in %s", source)
		}
		return nil, fmt.Errorf("no global variables with static addresses in %s", source)
	}

	layout.Types = w.conv.types
	layout.Symbols = w.symbols
	sort.Slice(layout.Types, func(i, j int) bool { return layout.Types[i].Name < layout.Types[j].Name })
	sort.Slice(layout.Symbols, func(i, j int) bool {
		if layout.Symbols[i].Address != layout.Symbols[j].Address {
			return layout.Symbols[i].Address < layout.Symbols[j].Address
		}
		return layout.Symbols[i].Name < layout.Symbols[j].Name
	})

	logger.Info().
		Str("source", source).
		Int("symbols", len(layout.Symbols)).
		Int("types", len(layout.Types)).
		Int("skipped", w.skipped).
		Msg("Layout extracted")

	return layout, nil
}

// walker visits the debug entries of every compile unit.
type walker struct {
	data     *dwarf.Data
	order    binary.ByteOrder
	sections []*elf.Section
	names    map[string]bool
	conv     *converter
	logger   zerolog.Logger

	files   []*dwarf.LineFile // file table of the current unit
	seen    map[string]bool
	symbols []ir.SymbolDef
	skipped int
}

func (w *walker) walk() error {
	r := w.data.Reader()
	for {
		e, err := r.Next()
		if err != nil {
			return fmt.Errorf("reading DWARF: %w", err)
		}
		if e == nil {
			return nil
		}

		switch e.Tag {
		case dwarf.TagCompileUnit:
			w.files = nil
			if lr, err := w.data.LineReader(e); err == nil && lr != nil {
				w.files = lr.Files()
			}
		case dwarf.TagSubprogram:
			if e.Children {
				r.SkipChildren()
			}
		case dwarf.TagVariable:
			if err := w.variable(e, r.AddressSize()); err != nil {
				return err
			}
		}
	}
}

// variable records e when it has a DW_OP_addr location.
func (w *walker) variable(e *dwarf.Entry, addrSize int) error {
	loc, ok := e.Val(dwarf.AttrLocation).([]byte)
	if !ok || len(loc) != 1+addrSize || loc[0] != opAddr {
		return nil
	}

	decl := e
	if spec, ok := e.Val(dwarf.AttrSpecification).(dwarf.Offset); ok {
		// A definition that completes an earlier declaration carries only
		// the location; name and type live on the declaration.
		sr := w.data.Reader()
		sr.Seek(spec)
		if se, err := sr.Next(); err == nil && se != nil {
			decl = se
		}
	}

	name, _ := decl.Val(dwarf.AttrName).(string)
	if name == "" {
		name, _ = e.Val(dwarf.AttrName).(string)
	}
	if name == "" || (w.names != nil && !w.names[name]) {
		return nil
	}
	if w.seen[name] {
		w.logger.Warn().Str("variable", name).Msg("Duplicate variable skipped")
		w.skipped++
		return nil
	}

	typeOff, ok := decl.Val(dwarf.AttrType).(dwarf.Offset)
	if !ok {
		typeOff, ok = e.Val(dwarf.AttrType).(dwarf.Offset)
	}
	if !ok {
		w.skipped++
		return nil
	}
	dt, err := w.data.Type(typeOff)
	if err != nil {
		w.logger.Debug().Str("variable", name).Err(err).Msg("Variable type unreadable")
		w.skipped++
		return nil
	}

	ref, err := w.conv.ref(dt)
	if IsUnsupportedType(err) {
		w.logger.Debug().Str("variable", name).Err(err).Msg("Variable skipped")
		w.skipped++
		return nil
	}
	if err != nil {
		return fmt.Errorf("converting type of %s: %w", name, err)
	}

	addr := readAddr(loc[1:], w.order)
	sym := ir.SymbolDef{
		Name:    name,
		Type:    ref,
		Address: addr,
		Section: w.section(addr),
	}
	if idx, ok := decl.Val(dwarf.AttrDeclFile).(int64); ok && idx >= 0 && int(idx) < len(w.files) && w.files[idx] != nil {
		sym.File = w.files[idx].Name
	}
	if line, ok := decl.Val(dwarf.AttrDeclLine).(int64); ok {
		sym.Line = int(line)
	}

	w.seen[name] = true
	w.symbols = append(w.symbols, sym)
	return nil
}

// section names the allocated section holding addr.
func (w *walker) section(addr uint64) string {
	for _, s := range w.sections {
		if s.Flags&elf.SHF_ALLOC == 0 || s.Size == 0 {
			continue
		}
		if addr >= s.Addr && addr-s.Addr < s.Size {
			return s.Name
		}
	}
	return ""
}

func readAddr(b []byte, order binary.ByteOrder) uint64 {
	switch len(b) {
	case 4:
		return uint64(order.Uint32(b))
	case 8:
		return order.Uint64(b)
	case 2:
		return uint64(order.Uint16(b))
	}
	var v uint64
	for i := range b {
		if order == binary.BigEndian {
			v = v<<8 | uint64(b[i])
		} else {
			v |= uint64(b[i]) << (8 * i)
		}
	}
	return v
}
