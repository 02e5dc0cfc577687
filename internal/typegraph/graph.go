package typegraph

import (
	"encoding/binary"
	"math/bits"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/varpath/internal/ir"
)

// Graph is an immutable arena of type descriptors built from one Layout.
//
// Graph is safe for concurrent use: it is never mutated after Build returns.
type Graph struct {
	types    []Type
	names    []string          // display name per TypeID
	sizes    []uint64          // byte size per TypeID
	byName   map[string]TypeID // named definitions, typedef aliases, builtins
	interned map[string]TypeID // anonymous "*T" and "T[N]" references by canonical text

	pointerSize int
	bigEndian   bool
}

// Lookup returns the type for a definition name, a typedef alias, a builtin,
// or an inline reference text (such as "*Node" or "uint8_t[4]") already used by the layout.
func (g *Graph) Lookup(name string) (TypeID, bool) {
	if id, ok := g.byName[name]; ok && id != NoType {
		return id, true
	}
	if ref, ok := ir.ParseTypeRef(name); ok {
		if id, ok := g.interned[ref.String()]; ok {
			return id, true
		}
	}
	return NoType, false
}

// Type returns the descriptor for id, or nil if id is not in the graph.
func (g *Graph) Type(id TypeID) Type {
	if id < 0 || int(id) >= len(g.types) {
		return nil
	}
	return g.types[id]
}

// SizeOf returns the byte size of id.
func (g *Graph) SizeOf(id TypeID) uint64 {
	if id < 0 || int(id) >= len(g.sizes) {
		return 0
	}
	return g.sizes[id]
}

// Name returns the display name of id: the definition name for named types,
// the canonical reference text for anonymous ones.
func (g *Graph) Name(id TypeID) string {
	if id == NoType {
		return "void"
	}
	if id < 0 || int(id) >= len(g.names) {
		return "<invalid>"
	}
	return g.names[id]
}

// Len returns the number of nodes in the arena.
func (g *Graph) Len() int {
	return len(g.types)
}

// Fields returns the members of a struct type, nil for any other kind.
func (g *Graph) Fields(id TypeID) []Field {
	if s, ok := g.Type(id).(*Struct); ok {
		return s.Fields
	}
	return nil
}

// Names returns every name Lookup accepts without parsing, sorted.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.byName))
	for name, id := range g.byName {
		if id != NoType {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// PointerSize returns the target pointer width in bytes.
func (g *Graph) PointerSize() int {
	return g.pointerSize
}

// ByteOrder returns the target byte order.
func (g *Graph) ByteOrder() binary.ByteOrder {
	if g.bigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// buildState tracks a named definition through Build.
type buildState uint8

const (
	unreserved buildState = iota
	reserved              // slot allocated, descriptor not yet built
	building              // on the current recursion stack
	done
)

type builder struct {
	g        *Graph
	defs     map[string]*ir.TypeDef
	state    map[string]buildState
	typedefs map[string]TypeID // aliases being resolved, mapped to their reserved target
}

// Build constructs a Graph from layout metadata.
//
// Every named definition gets an arena slot before its references are
// resolved, and the slot is filled in once the descriptor is complete. A
// reference reached through a pointer only needs the slot, which is how
// self-referential and mutually referential structs terminate. A reference
// reached by value while its target is still being built means the type
// contains itself, which is rejected.
//
// Sizes are computed in a second pass once every slot is filled.
func Build(layout ir.Layout) (*Graph, error) {
	ptr := layout.EffectivePointerSize()
	if ptr < 1 || ptr > 8 {
		return nil, malformed("<layout>", "pointer_size", "pointer size %d outside 1..8", ptr)
	}
	switch strings.ToLower(layout.ByteOrder) {
	case "", ir.LittleEndian, ir.BigEndian:
	default:
		return nil, malformed("<layout>", "byte_order", "unknown byte order %q", layout.ByteOrder)
	}

	b := &builder{
		g: &Graph{
			byName:      make(map[string]TypeID),
			interned:    make(map[string]TypeID),
			pointerSize: int(ptr),
			bigEndian:   layout.IsBigEndian(),
		},
		defs:     make(map[string]*ir.TypeDef, len(layout.Types)),
		state:    make(map[string]buildState),
		typedefs: make(map[string]TypeID),
	}

	for i := range layout.Types {
		d := &layout.Types[i]
		if strings.TrimSpace(d.Name) == "" {
			return nil, malformed("types["+strconv.Itoa(i)+"]", "name", "definition without a name")
		}
		if _, dup := b.defs[d.Name]; dup {
			return nil, malformed(d.Name, "", "duplicate definition")
		}
		b.defs[d.Name] = d
	}

	// Layout definitions shadow builtins of the same name.
	for _, bt := range builtins {
		if _, defined := b.defs[bt.name]; defined {
			continue
		}
		prim := bt.prim
		id := b.alloc(bt.name, &prim)
		b.g.byName[bt.name] = id
		b.state[bt.name] = done
	}

	for _, d := range layout.Types {
		if _, err := b.resolveName(d.Name, d.Name, "", false); err != nil {
			return nil, err
		}
	}

	// Symbols may use inline references no definition mentions, such as
	// "NestedStruct[2]"; intern them so Lookup finds them.
	for _, sym := range layout.Symbols {
		if sym.Type == "" {
			continue
		}
		if _, err := b.resolveRef(sym.Type, sym.Name, "type", false); err != nil {
			return nil, err
		}
	}

	if err := b.computeSizes(); err != nil {
		return nil, err
	}
	return b.g, nil
}

// alloc appends a node to the arena.
func (b *builder) alloc(name string, t Type) TypeID {
	id := TypeID(len(b.g.types))
	b.g.types = append(b.g.types, t)
	b.g.names = append(b.g.names, name)
	return id
}

// resolveName returns the TypeID for a named type, building it if needed.
// owner and field locate the reference for error reporting.
func (b *builder) resolveName(name, owner, field string, viaPointer bool) (TypeID, error) {
	if b.state[name] == done {
		return b.g.byName[name], nil
	}

	d, ok := b.defs[name]
	if !ok {
		return NoType, malformed(owner, field, "unknown type %q", name)
	}
	if d.Kind == ir.KindTypedef {
		return b.resolveTypedef(d, viaPointer)
	}

	switch b.state[name] {
	case building:
		if viaPointer {
			return b.g.byName[name], nil
		}
		return NoType, malformed(owner, field, "%s contains itself by value", name)
	case unreserved:
		b.g.byName[name] = b.alloc(name, nil)
		b.state[name] = reserved
	}

	if viaPointer {
		// Built later, either by the top-level loop or by a by-value reference.
		return b.g.byName[name], nil
	}
	return b.build(d)
}

// build fills the reserved slot of a named definition.
func (b *builder) build(d *ir.TypeDef) (TypeID, error) {
	id := b.g.byName[d.Name]
	b.state[d.Name] = building

	t, err := b.buildDef(d)
	if err != nil {
		return NoType, err
	}

	b.g.types[id] = t
	b.state[d.Name] = done
	return id, nil
}

func (b *builder) buildDef(d *ir.TypeDef) (Type, error) {
	switch d.Kind {
	case ir.KindPrimitive:
		return b.buildPrimitive(d)
	case ir.KindStruct:
		return b.buildStruct(d)
	case ir.KindArray:
		if d.Elem == "" {
			return nil, malformed(d.Name, "elem", "array without element type")
		}
		if d.Count < 0 {
			return nil, malformed(d.Name, "count", "negative array count %d", d.Count)
		}
		elem, err := b.resolveRef(d.Elem, d.Name, "elem", false)
		if err != nil {
			return nil, err
		}
		return &Array{Elem: elem, Count: uint64(d.Count)}, nil
	case ir.KindEnum:
		return b.buildEnum(d)
	case ir.KindPointer:
		if d.To == "" {
			return nil, malformed(d.Name, "to", "pointer without pointee type")
		}
		width := int(d.Size)
		if width == 0 {
			width = b.g.pointerSize
		}
		if width < 1 || width > 8 {
			return nil, malformed(d.Name, "size", "pointer width %d outside 1..8", d.Size)
		}
		pointee, err := b.resolveRef(d.To, d.Name, "to", true)
		if err != nil {
			return nil, err
		}
		return &Pointer{Pointee: pointee, Width: width}, nil
	default:
		return nil, malformed(d.Name, "kind", "unknown kind %q", d.Kind)
	}
}

func (b *builder) buildPrimitive(d *ir.TypeDef) (Type, error) {
	if d.Float && d.Bool {
		return nil, malformed(d.Name, "", "primitive cannot be both float and bool")
	}
	if d.Size < 1 || d.Size > 8 {
		return nil, malformed(d.Name, "size", "primitive width %d outside 1..8", d.Size)
	}
	if d.Float && d.Size != 4 && d.Size != 8 {
		return nil, malformed(d.Name, "size", "float width must be 4 or 8, got %d", d.Size)
	}
	return &Primitive{
		Width:  int(d.Size),
		Signed: d.Signed && !d.Float && !d.Bool,
		Float:  d.Float,
		Bool:   d.Bool,
	}, nil
}

func (b *builder) buildStruct(d *ir.TypeDef) (Type, error) {
	if d.Size < 0 {
		return nil, malformed(d.Name, "size", "negative struct size %d", d.Size)
	}

	s := &Struct{
		Fields:       make([]Field, 0, len(d.Fields)),
		DeclaredSize: uint64(d.Size),
	}
	seen := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if f.Name == "" {
			return nil, malformed(d.Name, "", "field without a name")
		}
		if seen[f.Name] {
			return nil, malformed(d.Name, f.Name, "duplicate field")
		}
		seen[f.Name] = true
		if f.Offset < 0 {
			return nil, malformed(d.Name, f.Name, "negative offset %d", f.Offset)
		}

		ft, err := b.resolveRef(f.Type, d.Name, f.Name, false)
		if err != nil {
			return nil, err
		}
		s.Fields = append(s.Fields, Field{Name: f.Name, Type: ft, Offset: uint64(f.Offset)})
	}
	return s, nil
}

func (b *builder) buildEnum(d *ir.TypeDef) (Type, error) {
	width := d.Size
	if width == 0 {
		width = 4
	}
	switch width {
	case 1, 2, 4, 8:
	default:
		return nil, malformed(d.Name, "size", "enum width must be 1, 2, 4 or 8, got %d", d.Size)
	}

	e := &Enum{Width: int(width), Values: slices.Clone(d.Values)}
	seen := make(map[string]bool, len(d.Values))
	for _, v := range d.Values {
		if v.Name == "" {
			return nil, malformed(d.Name, "values", "enumerator without a name")
		}
		if seen[v.Name] {
			return nil, malformed(d.Name, v.Name, "duplicate enumerator")
		}
		seen[v.Name] = true
		if v.Value < 0 {
			e.Signed = true
		}
	}
	return e, nil
}

// resolveTypedef follows an alias to its target. Typedefs never get their own
// slot: the alias name maps to the target's TypeID.
func (b *builder) resolveTypedef(d *ir.TypeDef, viaPointer bool) (TypeID, error) {
	if pending, ok := b.typedefs[d.Name]; ok {
		// Re-entered from inside the target, e.g. a struct holding a pointer to its own alias.
		if pending == NoType {
			return NoType, malformed(d.Name, "to", "typedef cycle")
		}
		if !viaPointer && b.state[b.g.names[pending]] == building {
			return NoType, malformed(d.Name, "", "%s contains itself by value", b.g.names[pending])
		}
		return pending, nil
	}

	// Aliases of aliases are followed by name first so a pure typedef cycle
	// is caught before recursing.
	chain := []string{d.Name}
	target := d
	for {
		if target.To == "" {
			return NoType, malformed(target.Name, "to", "typedef without target type")
		}
		ref, ok := ir.ParseTypeRef(target.To)
		if !ok || !ref.IsNamed() {
			break
		}
		next := b.defs[ref.Name]
		if next == nil || next.Kind != ir.KindTypedef || b.state[ref.Name] == done {
			break
		}
		if slices.Contains(chain, ref.Name) {
			return NoType, malformed(d.Name, "to", "typedef cycle")
		}
		chain = append(chain, ref.Name)
		target = next
	}

	pending := NoType
	if ref, ok := ir.ParseTypeRef(target.To); ok && ref.IsNamed() {
		if def := b.defs[ref.Name]; def != nil && def.Kind != ir.KindTypedef {
			if b.state[ref.Name] == unreserved {
				b.g.byName[ref.Name] = b.alloc(ref.Name, nil)
				b.state[ref.Name] = reserved
			}
			pending = b.g.byName[ref.Name]
		}
	}
	for _, name := range chain {
		b.typedefs[name] = pending
	}
	defer func() {
		for _, name := range chain {
			delete(b.typedefs, name)
		}
	}()

	id, err := b.resolveRef(target.To, target.Name, "to", viaPointer)
	if err != nil {
		return NoType, err
	}
	for _, name := range chain {
		b.g.byName[name] = id
		b.state[name] = done
	}
	return id, nil
}

// resolveRef resolves a type reference string such as "SomeA", "*Node" or
// "uint8_t[2][3]", interning the anonymous pointer and array nodes it needs.
func (b *builder) resolveRef(text, owner, field string, viaPointer bool) (TypeID, error) {
	ref, ok := ir.ParseTypeRef(text)
	if !ok {
		return NoType, malformed(owner, field, "invalid type reference %q", text)
	}

	var (
		id  TypeID
		err error
	)
	behindPointer := viaPointer || ref.Pointers > 0
	if ref.Name == "void" && b.defs["void"] == nil {
		if ref.Pointers == 0 && (!viaPointer || len(ref.Dims) > 0) {
			return NoType, malformed(owner, field, "void used by value")
		}
		id = NoType
	} else {
		id, err = b.resolveName(ref.Name, owner, field, behindPointer)
		if err != nil {
			return NoType, err
		}
	}

	text = ref.Name
	for i := 0; i < ref.Pointers; i++ {
		text = "*" + text
		id = b.intern(text, &Pointer{Pointee: id, Width: b.g.pointerSize})
	}

	// T[2][3] is an array of 2 arrays of 3 T: build innermost first.
	for i := len(ref.Dims) - 1; i >= 0; i-- {
		n := ref.Dims[i]
		if n < 0 {
			return NoType, malformed(owner, field, "negative array count %d", n)
		}
		inner := ir.TypeRef{Name: text, Dims: ref.Dims[i:]}
		id = b.intern(inner.String(), &Array{Elem: id, Count: uint64(n)})
	}
	return id, nil
}

// intern returns the node for an anonymous reference, creating it once.
func (b *builder) intern(text string, t Type) TypeID {
	if id, ok := b.g.interned[text]; ok {
		return id
	}
	id := b.alloc(text, t)
	b.g.interned[text] = id
	return id
}

// computeSizes fills Graph.sizes and checks struct member placement.
func (b *builder) computeSizes() error {
	g := b.g
	g.sizes = make([]uint64, len(g.types))
	state := make([]uint8, len(g.types)) // 0 pending, 1 visiting, 2 done

	var sizeOf func(id TypeID) (uint64, error)
	sizeOf = func(id TypeID) (uint64, error) {
		switch state[id] {
		case 2:
			return g.sizes[id], nil
		case 1:
			return 0, malformed(g.names[id], "", "contains itself by value")
		}
		state[id] = 1

		var size uint64
		switch t := g.types[id].(type) {
		case *Primitive:
			size = uint64(t.Width)
		case *Enum:
			size = uint64(t.Width)
		case *Pointer:
			size = uint64(t.Width)
		case *Array:
			elem, err := sizeOf(t.Elem)
			if err != nil {
				return 0, err
			}
			hi, lo := bits.Mul64(elem, t.Count)
			if hi != 0 {
				return 0, malformed(g.names[id], "count", "array size overflows")
			}
			size = lo
		case *Struct:
			var err error
			size, err = b.structSize(g.names[id], t, sizeOf)
			if err != nil {
				return 0, err
			}
		default:
			return 0, malformed(g.names[id], "", "unresolved type")
		}

		g.sizes[id] = size
		state[id] = 2
		return size, nil
	}

	for id := range g.types {
		if _, err := sizeOf(TypeID(id)); err != nil {
			return err
		}
	}
	return nil
}

// structSize checks that members are in non-decreasing, non-overlapping order
// and returns the struct size: the declared size when metadata carries one,
// otherwise the end of the last member.
func (b *builder) structSize(name string, s *Struct, sizeOf func(TypeID) (uint64, error)) (uint64, error) {
	var end uint64
	for i, f := range s.Fields {
		fs, err := sizeOf(f.Type)
		if err != nil {
			return 0, err
		}
		if i > 0 {
			prev := s.Fields[i-1]
			if f.Offset < prev.Offset {
				return 0, malformed(name, f.Name, "offset %d goes backwards (previous field %s at %d)",
					f.Offset, prev.Name, prev.Offset)
			}
			if f.Offset < end {
				return 0, malformed(name, f.Name, "offset %d overlaps field %s ending at %d",
					f.Offset, prev.Name, end)
			}
		}
		if f.Offset+fs < f.Offset {
			return 0, malformed(name, f.Name, "field end overflows")
		}
		end = f.Offset + fs
	}

	if s.DeclaredSize == 0 {
		return end, nil
	}
	if s.DeclaredSize < end {
		return 0, malformed(name, "size", "declared size %d smaller than end of fields %d", s.DeclaredSize, end)
	}
	return s.DeclaredSize, nil
}
