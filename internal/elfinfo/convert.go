package elfinfo

import (
	"debug/dwarf"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/roach88/varpath/internal/ir"
)

// defKey identifies an emitted definition so the same named type seen in
// several compile units is emitted once.
type defKey struct {
	kind ir.Kind
	size int64
}

// converter turns DWARF types into layout type references, emitting a
// TypeDef for every named or composite type it meets.
//
// Conversions are cached by type identity: dwarf.Data.Type returns the same
// value for every read of one offset. Named types are cached before their
// members are converted so that a struct reaching itself through a pointer
// resolves to the name being built.
type converter struct {
	logger zerolog.Logger
	refs   map[dwarf.Type]string
	defs   map[string]defKey
	types  []ir.TypeDef
	seq    int // suffix for generated names
}

func newConverter(logger zerolog.Logger) *converter {
	return &converter{
		logger: logger,
		refs:   make(map[dwarf.Type]string),
		defs:   make(map[string]defKey),
	}
}

// unique returns a fresh generated name starting with prefix.
func (c *converter) unique(prefix string) string {
	c.seq++
	return fmt.Sprintf("%s_%d", prefix, c.seq)
}

// ref returns the type reference text for dt.
func (c *converter) ref(dt dwarf.Type) (string, error) {
	return c.refNamed(dt, "")
}

// refNamed converts dt. Hint names an anonymous struct or enum, as in
// "typedef struct { ... } SomeA;".
func (c *converter) refNamed(dt dwarf.Type, hint string) (string, error) {
	if dt == nil {
		return "", &UnsupportedTypeError{Type: "<nil>", Reason: "missing type"}
	}
	if r, ok := c.refs[dt]; ok {
		return r, nil
	}

	switch t := dt.(type) {
	case *dwarf.QualType:
		// const and volatile do not change the layout.
		r, err := c.refNamed(t.Type, hint)
		if err != nil {
			return "", err
		}
		c.refs[dt] = r
		return r, nil

	case *dwarf.VoidType:
		return "void", nil

	case *dwarf.BoolType:
		return c.primitive(dt, ir.TypeDef{Name: t.Name, Size: t.ByteSize, Bool: true}), nil
	case *dwarf.CharType:
		return c.primitive(dt, ir.TypeDef{Name: t.Name, Size: t.ByteSize, Signed: true}), nil
	case *dwarf.UcharType:
		return c.primitive(dt, ir.TypeDef{Name: t.Name, Size: t.ByteSize}), nil
	case *dwarf.IntType:
		return c.primitive(dt, ir.TypeDef{Name: t.Name, Size: t.ByteSize, Signed: true}), nil
	case *dwarf.UintType:
		return c.primitive(dt, ir.TypeDef{Name: t.Name, Size: t.ByteSize}), nil
	case *dwarf.FloatType:
		if t.ByteSize != 4 && t.ByteSize != 8 {
			return "", &UnsupportedTypeError{Type: t.String(), Reason: fmt.Sprintf("float of %d bytes", t.ByteSize)}
		}
		return c.primitive(dt, ir.TypeDef{Name: t.Name, Size: t.ByteSize, Float: true}), nil

	case *dwarf.EnumType:
		return c.enum(t, hint), nil

	case *dwarf.StructType:
		return c.structType(t, hint)

	case *dwarf.ArrayType:
		return c.array(t)

	case *dwarf.PtrType:
		return c.pointer(t)

	case *dwarf.TypedefType:
		return c.typedef(t)

	default:
		return "", &UnsupportedTypeError{Type: dt.String(), Reason: fmt.Sprintf("%T has no layout equivalent", dt)}
	}
}

// define reserves a definition name for dt. When an identical definition
// already holds the name it reports existing and the caller emits nothing.
func (c *converter) define(dt dwarf.Type, name string, kind ir.Kind, size int64) (string, bool) {
	name = sanitize(name)
	if name == "" {
		name = c.unique("anon")
	}
	key := defKey{kind: kind, size: size}
	if k, ok := c.defs[name]; ok {
		if k == key {
			c.refs[dt] = name
			return name, true
		}
		name = c.unique(name)
	}
	c.defs[name] = key
	c.refs[dt] = name
	return name, false
}

func (c *converter) primitive(dt dwarf.Type, td ir.TypeDef) string {
	td.Kind = ir.KindPrimitive
	name, existing := c.define(dt, td.Name, ir.KindPrimitive, td.Size)
	if !existing {
		td.Name = name
		c.types = append(c.types, td)
	}
	return name
}

func (c *converter) enum(t *dwarf.EnumType, hint string) string {
	tag := t.EnumName
	if tag == "" {
		tag = hint
	}
	name, existing := c.define(t, tag, ir.KindEnum, t.ByteSize)
	if existing {
		return name
	}

	td := ir.TypeDef{Name: name, Kind: ir.KindEnum, Size: t.ByteSize}
	for _, v := range t.Val {
		td.Values = append(td.Values, ir.EnumValue{Name: v.Name, Value: v.Val})
	}
	c.types = append(c.types, td)
	return name
}

func (c *converter) structType(t *dwarf.StructType, hint string) (string, error) {
	if t.Kind == "union" {
		return "", &UnsupportedTypeError{Type: t.String(), Reason: "unions have no layout equivalent"}
	}
	if t.Incomplete {
		return "", &UnsupportedTypeError{Type: t.String(), Reason: "declaration without definition"}
	}
	tag := t.StructName
	if tag == "" {
		tag = hint
	}
	name, existing := c.define(t, tag, ir.KindStruct, t.ByteSize)
	if existing {
		return name, nil
	}

	// Placeholder first: members may point back at this struct.
	idx := len(c.types)
	c.types = append(c.types, ir.TypeDef{Name: name, Kind: ir.KindStruct, Size: t.ByteSize})

	fields, err := c.fields(name, t, 0)
	if err != nil {
		return "", err
	}
	c.types[idx].Fields = fields
	return name, nil
}

// fields converts members at base. Anonymous struct members are flattened
// into the parent, matching how C code names them. Bitfields, anonymous
// unions and members of unsupported types are left out.
func (c *converter) fields(owner string, t *dwarf.StructType, base int64) ([]ir.FieldDef, error) {
	var out []ir.FieldDef
	for _, f := range t.Field {
		if f.BitSize != 0 {
			c.logger.Debug().Str("type", owner).Str("field", f.Name).Msg("Bitfield member skipped")
			continue
		}
		if f.Name == "" {
			inner, ok := unqualify(f.Type).(*dwarf.StructType)
			if !ok || inner.Incomplete {
				continue
			}
			if inner.Kind == "union" {
				c.logger.Debug().Str("type", owner).Int64("offset", base+f.ByteOffset).Msg("Anonymous union skipped")
				continue
			}
			sub, err := c.fields(owner, inner, base+f.ByteOffset)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
			continue
		}

		r, err := c.ref(f.Type)
		if IsUnsupportedType(err) {
			c.logger.Debug().Str("type", owner).Str("field", f.Name).Err(err).Msg("Member skipped")
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ir.FieldDef{Name: f.Name, Type: r, Offset: base + f.ByteOffset})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out, nil
}

func (c *converter) array(t *dwarf.ArrayType) (string, error) {
	elem, err := c.ref(t.Type)
	if err != nil {
		return "", err
	}
	ref, ok := ir.ParseTypeRef(elem)
	if !ok || ref.Name == "void" && ref.Pointers == 0 {
		return "", &UnsupportedTypeError{Type: t.String(), Reason: "array of " + elem}
	}

	count := t.Count
	if count < 0 {
		// Flexible array member.
		count = 0
	}
	ref.Dims = append([]int64{count}, ref.Dims...)

	r := ref.String()
	c.refs[t] = r
	return r, nil
}

func (c *converter) pointer(t *dwarf.PtrType) (string, error) {
	target, err := c.ref(t.Type)
	if IsUnsupportedType(err) {
		// Function pointers and opaque handles keep their width but cannot be followed.
		target, err = "void", nil
	}
	if err != nil {
		return "", err
	}

	ref, _ := ir.ParseTypeRef(target)
	if len(ref.Dims) > 0 {
		// "*T[4]" would read as an array of pointers, so a pointer to an
		// array needs a named definition.
		name, existing := c.define(t, c.unique("ptr"), ir.KindPointer, t.ByteSize)
		if !existing {
			c.types = append(c.types, ir.TypeDef{Name: name, Kind: ir.KindPointer, To: target, Size: t.ByteSize})
		}
		return name, nil
	}

	ref.Pointers++
	r := ref.String()
	c.refs[t] = r
	return r, nil
}

func (c *converter) typedef(t *dwarf.TypedefType) (string, error) {
	var (
		target string
		err    error
	)
	if isAnonymous(t.Type) {
		target, err = c.refNamed(t.Type, t.Name)
	} else {
		target, err = c.ref(t.Type)
	}
	if err != nil {
		return "", err
	}

	// The target may have reached this typedef through a pointer.
	if r, ok := c.refs[t]; ok {
		return r, nil
	}
	// typedef struct X X; and the anonymous case above need no alias.
	if target == sanitize(t.Name) {
		c.refs[t] = target
		return target, nil
	}
	if target == "void" {
		return "", &UnsupportedTypeError{Type: t.Name, Reason: "typedef of void"}
	}

	name, existing := c.define(t, t.Name, ir.KindTypedef, 0)
	if !existing {
		c.types = append(c.types, ir.TypeDef{Name: name, Kind: ir.KindTypedef, To: target})
	}
	return name, nil
}

func unqualify(dt dwarf.Type) dwarf.Type {
	for {
		q, ok := dt.(*dwarf.QualType)
		if !ok {
			return dt
		}
		dt = q.Type
	}
}

func isAnonymous(dt dwarf.Type) bool {
	switch t := unqualify(dt).(type) {
	case *dwarf.StructType:
		return t.StructName == ""
	case *dwarf.EnumType:
		return t.EnumName == ""
	}
	return false
}

var nameReplacer = strings.NewReplacer("[", "(", "]", ")")

// sanitize makes a DWARF type name usable as a definition name: brackets
// and a leading '*' would be read as array and pointer syntax.
func sanitize(name string) string {
	name = strings.TrimSpace(nameReplacer.Replace(name))
	if strings.HasPrefix(name, "*") {
		name = "ptr_" + strings.TrimLeft(name, "*")
	}
	return name
}
