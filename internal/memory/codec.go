package memory

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/varpath/internal/ir"
	"github.com/roach88/varpath/internal/typegraph"
)

// Decode converts raw bytes to a value of type id.
//
// Unsigned integers decode to ir.Uint, signed to ir.Int, floats to ir.Float,
// bools to ir.Bool, pointers to ir.Pointer. Enums decode to ir.Enum; a raw
// value no enumerator matches yields an Enum with an empty Name, never an
// error. An unsigned 8-byte enum keeps the slot's bits in Raw, so values from
// 1<<63 up read as negative and encode back unchanged. When enumerators share
// a value the first declared name is returned, so encoding a later alias and
// decoding it yields the same Raw under a different Name. Struct padding is
// ignored.
func (a *Accessor) Decode(data []byte, id typegraph.TypeID) (ir.Value, error) {
	if size := a.graph.SizeOf(id); uint64(len(data)) != size {
		return nil, &SizeMismatchError{Path: a.graph.Name(id), Want: size, Got: len(data)}
	}
	return a.decode(data, id), nil
}

func (a *Accessor) decode(data []byte, id typegraph.TypeID) ir.Value {
	switch t := a.graph.Type(id).(type) {
	case *typegraph.Primitive:
		raw := a.readUint(data[:t.Width])
		switch {
		case t.Float && t.Width == 4:
			return ir.Float(math.Float32frombits(uint32(raw)))
		case t.Float:
			return ir.Float(math.Float64frombits(raw))
		case t.Bool:
			return ir.Bool(raw != 0)
		case t.Signed:
			return ir.Int(signExtend(raw, t.Width))
		default:
			return ir.Uint(raw)
		}

	case *typegraph.Enum:
		raw := a.readUint(data[:t.Width])
		var v int64
		if t.Signed {
			v = signExtend(raw, t.Width)
		} else {
			v = int64(raw)
		}
		name, _ := t.NameOf(v)
		return ir.Enum{Name: name, Raw: v}

	case *typegraph.Pointer:
		return ir.Pointer(a.readUint(data[:t.Width]))

	case *typegraph.Array:
		stride := a.graph.SizeOf(t.Elem)
		out := make(ir.Array, t.Count)
		for i := uint64(0); i < t.Count; i++ {
			out[i] = a.decode(data[i*stride:(i+1)*stride], t.Elem)
		}
		return out

	case *typegraph.Struct:
		out := make(ir.Struct, len(t.Fields))
		for i, f := range t.Fields {
			size := a.graph.SizeOf(f.Type)
			out[i] = ir.Field{Name: f.Name, Value: a.decode(data[f.Offset:f.Offset+size], f.Type)}
		}
		return out
	}
	return nil
}

// Encode converts v to raw bytes of type id.
// Fails with *TypeMismatchError when v's shape does not fit id. Struct padding
// is written as zeros.
func (a *Accessor) Encode(v ir.Value, id typegraph.TypeID) ([]byte, error) {
	buf := make([]byte, a.graph.SizeOf(id))
	if err := a.encode(buf, v, id, ""); err != nil {
		return nil, err
	}
	return buf, nil
}

func (a *Accessor) encode(buf []byte, v ir.Value, id typegraph.TypeID, at string) error {
	mismatch := func(want, reason string) error {
		return &TypeMismatchError{Type: a.graph.Name(id), At: at, Want: want, Got: ir.KindOf(v), Reason: reason}
	}

	switch t := a.graph.Type(id).(type) {
	case *typegraph.Primitive:
		switch {
		case t.Float:
			f, ok := floatOf(v)
			if !ok {
				return mismatch("number", "")
			}
			if t.Width == 4 {
				if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
					return mismatch("number", "out of float32 range")
				}
				a.writeUint(buf[:4], uint64(math.Float32bits(float32(f))))
			} else {
				a.writeUint(buf[:8], math.Float64bits(f))
			}
			return nil

		case t.Bool:
			var b bool
			switch val := v.(type) {
			case ir.Bool:
				b = bool(val)
			case ir.Int:
				if val != 0 && val != 1 {
					return mismatch("bool", "integer bool must be 0 or 1")
				}
				b = val == 1
			case ir.Uint:
				if val != 0 && val != 1 {
					return mismatch("bool", "integer bool must be 0 or 1")
				}
				b = val == 1
			default:
				return mismatch("bool", "")
			}
			var raw uint64
			if b {
				raw = 1
			}
			a.writeUint(buf[:t.Width], raw)
			return nil

		default:
			raw, reason, ok := integerOf(v, t.Width, t.Signed)
			if !ok {
				return mismatch(intKind(t.Width, t.Signed), reason)
			}
			a.writeUint(buf[:t.Width], raw)
			return nil
		}

	case *typegraph.Enum:
		var (
			n      int64
			asBits bool // n is the slot's bit pattern, as Decode reports it
		)
		switch val := v.(type) {
		case ir.Enum:
			if val.Known() {
				x, ok := t.ValueOf(val.Name)
				if !ok {
					return mismatch("enum", "unknown enumerator "+strconv.Quote(val.Name))
				}
				n = x
			} else {
				n = val.Raw
			}
			asBits = true
		case ir.String:
			x, ok := t.ValueOf(string(val))
			if !ok {
				return mismatch("enum", "unknown enumerator "+strconv.Quote(string(val)))
			}
			n = x
			asBits = true
		case ir.Int:
			n = int64(val)
		case ir.Uint:
			if !t.Signed && t.Width == 8 {
				a.writeUint(buf[:8], uint64(val))
				return nil
			}
			if val > math.MaxInt64 {
				return mismatch("enum", "out of range")
			}
			n = int64(val)
		default:
			return mismatch("enum", "")
		}
		if asBits && !t.Signed && t.Width == 8 {
			a.writeUint(buf[:8], uint64(n))
			return nil
		}
		raw, reason, ok := integerOf(ir.Int(n), t.Width, t.Signed)
		if !ok {
			return mismatch("enum", reason)
		}
		a.writeUint(buf[:t.Width], raw)
		return nil

	case *typegraph.Pointer:
		var addr uint64
		switch val := v.(type) {
		case ir.Pointer:
			addr = uint64(val)
		case ir.Uint:
			addr = uint64(val)
		case ir.Int:
			if val < 0 {
				return mismatch("address", "negative address")
			}
			addr = uint64(val)
		case ir.String:
			s := strings.TrimSpace(string(val))
			parsed, err := strconv.ParseUint(s, 0, 64)
			if err != nil {
				return mismatch("address", "cannot parse "+strconv.Quote(s))
			}
			addr = parsed
		default:
			return mismatch("address", "")
		}
		if t.Width < 8 && addr>>(8*t.Width) != 0 {
			return mismatch("address", "does not fit "+strconv.Itoa(t.Width)+" bytes")
		}
		a.writeUint(buf[:t.Width], addr)
		return nil

	case *typegraph.Array:
		arr, ok := v.(ir.Array)
		if !ok {
			return mismatch("array", "")
		}
		if uint64(len(arr)) != t.Count {
			return mismatch("array", "want "+strconv.FormatUint(t.Count, 10)+" elements, got "+strconv.Itoa(len(arr)))
		}
		stride := a.graph.SizeOf(t.Elem)
		for i, elem := range arr {
			off := uint64(i) * stride
			if err := a.encode(buf[off:off+stride], elem, t.Elem, at+"["+strconv.Itoa(i)+"]"); err != nil {
				return err
			}
		}
		return nil

	case *typegraph.Struct:
		s, ok := v.(ir.Struct)
		if !ok {
			return mismatch("struct", "")
		}
		for _, member := range s {
			if _, ok := t.Field(member.Name); !ok {
				return mismatch("struct", "unknown field "+strconv.Quote(member.Name))
			}
		}
		for _, f := range t.Fields {
			fv, ok := s.Get(f.Name)
			if !ok {
				return mismatch("struct", "missing field "+strconv.Quote(f.Name))
			}
			size := a.graph.SizeOf(f.Type)
			if err := a.encode(buf[f.Offset:f.Offset+size], fv, f.Type, at+"."+f.Name); err != nil {
				return err
			}
		}
		return nil
	}

	return mismatch("known type", "type has no descriptor")
}

// readUint reads an unsigned integer of len(data) bytes (1..8).
func (a *Accessor) readUint(data []byte) uint64 {
	switch len(data) {
	case 1:
		return uint64(data[0])
	case 2:
		return uint64(a.order.Uint16(data))
	case 4:
		return uint64(a.order.Uint32(data))
	case 8:
		return a.order.Uint64(data)
	}

	var v uint64
	if a.order == binary.BigEndian {
		for _, b := range data {
			v = v<<8 | uint64(b)
		}
		return v
	}
	for i := len(data) - 1; i >= 0; i-- {
		v = v<<8 | uint64(data[i])
	}
	return v
}

// writeUint writes the low len(buf) bytes of v.
func (a *Accessor) writeUint(buf []byte, v uint64) {
	switch len(buf) {
	case 1:
		buf[0] = byte(v)
		return
	case 2:
		a.order.PutUint16(buf, uint16(v))
		return
	case 4:
		a.order.PutUint32(buf, uint32(v))
		return
	case 8:
		a.order.PutUint64(buf, v)
		return
	}

	n := len(buf)
	for i := 0; i < n; i++ {
		b := byte(v >> (8 * i))
		if a.order == binary.BigEndian {
			buf[n-1-i] = b
		} else {
			buf[i] = b
		}
	}
}

// signExtend interprets the low width bytes of raw as two's complement.
func signExtend(raw uint64, width int) int64 {
	shift := 64 - 8*uint(width)
	return int64(raw<<shift) >> shift
}

// integerOf converts an integer value to its raw representation, checking it
// fits width bytes with the given signedness.
func integerOf(v ir.Value, width int, signed bool) (uint64, string, bool) {
	bitsN := uint(8 * width)
	switch val := v.(type) {
	case ir.Int:
		n := int64(val)
		if signed {
			if width < 8 {
				lo, hi := -(int64(1) << (bitsN - 1)), int64(1)<<(bitsN-1)-1
				if n < lo || n > hi {
					return 0, "out of range for " + intKind(width, signed), false
				}
			}
			return uint64(n), "", true
		}
		if n < 0 {
			return 0, "negative value for unsigned slot", false
		}
		return checkUnsigned(uint64(n), width, signed)
	case ir.Uint:
		return checkUnsigned(uint64(val), width, signed)
	default:
		return 0, "", false
	}
}

func checkUnsigned(u uint64, width int, signed bool) (uint64, string, bool) {
	bitsN := uint(8 * width)
	limit := uint64(math.MaxUint64)
	if signed {
		limit = uint64(1)<<(bitsN-1) - 1
	} else if width < 8 {
		limit = uint64(1)<<bitsN - 1
	}
	if u > limit {
		return 0, "out of range for " + intKind(width, signed), false
	}
	return u, "", true
}

// floatOf accepts any numeric value for a float slot.
func floatOf(v ir.Value) (float64, bool) {
	switch val := v.(type) {
	case ir.Float:
		return float64(val), true
	case ir.Int:
		return float64(val), true
	case ir.Uint:
		return float64(val), true
	default:
		return 0, false
	}
}

func intKind(width int, signed bool) string {
	if signed {
		return "int" + strconv.Itoa(8*width)
	}
	return "uint" + strconv.Itoa(8*width)
}
