package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces canonical JSON for hashing.
// This is the only serialization used for content-addressed identity
// (layout hashes and journal write IDs).
//
// Differences from json.Marshal:
//  1. Object keys sorted by UTF-16 code units (RFC 8785)
//  2. No HTML escaping
//  3. Strings are NFC normalized
//  4. Floats use the shortest round-trip representation; NaN/Inf are rejected
//  5. null is rejected
func MarshalCanonical(v any) ([]byte, error) {
	return marshalCanonical(v)
}

func marshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	case Int:
		return []byte(strconv.FormatInt(int64(val), 10)), nil
	case Uint:
		return []byte(strconv.FormatUint(uint64(val), 10)), nil
	case Float:
		return marshalCanonicalFloat(float64(val))
	case Bool:
		return marshalCanonicalBool(bool(val)), nil
	case String:
		return marshalCanonicalString(string(val))
	case Pointer:
		return marshalCanonicalString(fmt.Sprintf("0x%x", uint64(val)))
	case Enum:
		obj := map[string]any{"raw": val.Raw}
		if val.Known() {
			obj["name"] = val.Name
		}
		return marshalCanonicalObject(obj)
	case Array:
		items := make([]any, len(val))
		for i, elem := range val {
			items[i] = elem
		}
		return marshalCanonicalArray(items)
	case Struct:
		obj := make(map[string]any, len(val))
		for _, f := range val {
			obj[f.Name] = f.Value
		}
		return marshalCanonicalObject(obj)
	case string:
		return marshalCanonicalString(val)
	case int:
		return []byte(strconv.Itoa(val)), nil
	case int64:
		return []byte(strconv.FormatInt(val, 10)), nil
	case uint64:
		return []byte(strconv.FormatUint(val, 10)), nil
	case bool:
		return marshalCanonicalBool(val), nil
	case []any:
		return marshalCanonicalArray(val)
	case map[string]any:
		return marshalCanonicalObject(val)
	case float64, float32:
		return nil, fmt.Errorf("bare floats are forbidden in canonical JSON, wrap in ir.Float: %v", val)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

func marshalCanonicalBool(b bool) []byte {
	if b {
		return []byte("true")
	}
	return []byte("false")
}

func marshalCanonicalFloat(f float64) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite float is forbidden in canonical JSON: %v", f)
	}
	return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

// marshalCanonicalString produces a canonical JSON string with NFC normalization.
// Only control characters, backslash and quote are escaped.
func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder adds a trailing newline.
	result := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))

	// Go escapes U+2028/U+2029 for JavaScript; RFC 8785 keeps them literal.
	return unescapeLineSeparators(result), nil
}

// unescapeLineSeparators turns \u2028 and \u2029 escapes back into literal
// characters, leaving \\u2028 (an escaped backslash followed by text) alone.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+5 < len(data) && data[i+1] == 'u' &&
			string(data[i+2:i+5]) == "202" && (data[i+5] == '8' || data[i+5] == '9') {
			// Count backslashes already emitted; an odd count means this one is escaped.
			run := 0
			for j := len(out) - 1; j >= 0 && out[j] == '\\'; j-- {
				run++
			}
			if run%2 == 0 {
				if data[i+5] == '8' {
					out = append(out, "\u2028"...)
				} else {
					out = append(out, "\u2029"...)
				}
				i += 5
				continue
			}
		}
		out = append(out, data[i])
	}
	return out
}

// marshalCanonicalArray marshals an array to canonical JSON.
func marshalCanonicalArray(arr []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := marshalCanonical(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// marshalCanonicalObject marshals an object to canonical JSON with RFC 8785 key ordering.
func marshalCanonicalObject(obj map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range SortedKeys(obj) {
		if i > 0 {
			buf.WriteByte(',')
		}

		keyBytes, err := marshalCanonicalString(k)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := marshalCanonical(obj[k])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalLayout renders a layout as canonical JSON, the exact bytes
// LayoutHash digests.
func MarshalLayout(l Layout) ([]byte, error) {
	return MarshalCanonical(layoutObject(l))
}

// layoutObject converts a Layout to plain maps for canonical marshaling.
// Source is excluded: the same metadata loaded from two paths hashes identically.
func layoutObject(l Layout) map[string]any {
	types := make([]any, len(l.Types))
	for i, t := range l.Types {
		obj := map[string]any{
			"name": t.Name,
			"kind": string(t.Kind),
		}
		if t.Size != 0 {
			obj["size"] = t.Size
		}
		if t.Signed {
			obj["signed"] = true
		}
		if t.Float {
			obj["float"] = true
		}
		if t.Bool {
			obj["bool"] = true
		}
		if len(t.Fields) > 0 {
			fields := make([]any, len(t.Fields))
			for j, f := range t.Fields {
				fields[j] = map[string]any{"name": f.Name, "type": f.Type, "offset": f.Offset}
			}
			obj["fields"] = fields
		}
		if t.Elem != "" {
			obj["elem"] = t.Elem
			obj["count"] = t.Count
		}
		if len(t.Values) > 0 {
			values := make([]any, len(t.Values))
			for j, ev := range t.Values {
				values[j] = map[string]any{"name": ev.Name, "value": ev.Value}
			}
			obj["values"] = values
		}
		if t.To != "" {
			obj["to"] = t.To
		}
		types[i] = obj
	}

	symbols := make([]any, len(l.Symbols))
	for i, s := range l.Symbols {
		obj := map[string]any{
			"name":    s.Name,
			"type":    s.Type,
			"address": s.Address,
		}
		if s.Section != "" {
			obj["section"] = s.Section
		}
		symbols[i] = obj
	}

	byteOrder := LittleEndian
	if l.IsBigEndian() {
		byteOrder = BigEndian
	}

	return map[string]any{
		"byte_order":   byteOrder,
		"pointer_size": l.EffectivePointerSize(),
		"types":        types,
		"symbols":      symbols,
	}
}
