package resolve

import (
	"math"
	"strconv"
	"strings"
)

// SegmentKind distinguishes the three kinds of path step.
type SegmentKind int

const (
	SegmentSymbol SegmentKind = iota // leading identifier
	SegmentField                     // .name
	SegmentIndex                     // [n]
)

// Segment is one parsed step of a path.
type Segment struct {
	Kind   SegmentKind
	Name   string // symbol or field name
	Index  uint64 // array index; math.MaxUint64 when the literal does not fit
	Offset int    // byte offset of the segment in the path string
}

// String renders the segment the way it appears in a path.
func (s Segment) String() string {
	switch s.Kind {
	case SegmentField:
		return "." + s.Name
	case SegmentIndex:
		return "[" + strconv.FormatUint(s.Index, 10) + "]"
	default:
		return s.Name
	}
}

// Format renders segments back into a path string.
func Format(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.String())
	}
	return b.String()
}

// Parse parses a variable path.
//
// Grammar:
//
//	path       := identifier ( '.' identifier | '[' integer ']' )*
//	identifier := [A-Za-z_][A-Za-z0-9_]*
//	integer    := [0-9]+
//
// No whitespace is allowed anywhere. An index literal too large for 64 bits
// parses to math.MaxUint64 so the resolver reports it against the array bound.
func Parse(path string) ([]Segment, error) {
	if path == "" {
		return nil, &SyntaxError{Path: path, Offset: 0, Reason: "empty path"}
	}

	name, end := scanIdent(path, 0)
	if name == "" {
		return nil, &SyntaxError{Path: path, Offset: 0, Reason: unexpected(path, 0, "identifier")}
	}

	segs := []Segment{{Kind: SegmentSymbol, Name: name, Offset: 0}}
	rest, err := parseSegments(path, end)
	if err != nil {
		return nil, err
	}
	return append(segs, rest...), nil
}

// ParseTail parses field and index steps without a leading symbol, such as
// ".a" or "[1].someA". The empty string is a valid, empty tail.
func ParseTail(tail string) ([]Segment, error) {
	return parseSegments(tail, 0)
}

func parseSegments(path string, pos int) ([]Segment, error) {
	var segs []Segment
	for pos < len(path) {
		start := pos
		switch path[pos] {
		case '.':
			name, end := scanIdent(path, pos+1)
			if name == "" {
				return nil, &SyntaxError{Path: path, Offset: pos + 1, Reason: unexpected(path, pos+1, "field name after '.'")}
			}
			segs = append(segs, Segment{Kind: SegmentField, Name: name, Offset: start})
			pos = end

		case '[':
			digitsEnd := pos + 1
			for digitsEnd < len(path) && isDigit(path[digitsEnd]) {
				digitsEnd++
			}
			if digitsEnd == pos+1 {
				return nil, &SyntaxError{Path: path, Offset: pos + 1, Reason: unexpected(path, pos+1, "decimal index")}
			}
			if digitsEnd >= len(path) || path[digitsEnd] != ']' {
				return nil, &SyntaxError{Path: path, Offset: digitsEnd, Reason: unexpected(path, digitsEnd, "']'")}
			}
			idx, err := strconv.ParseUint(path[pos+1:digitsEnd], 10, 64)
			if err != nil {
				idx = math.MaxUint64
			}
			segs = append(segs, Segment{Kind: SegmentIndex, Index: idx, Offset: start})
			pos = digitsEnd + 1

		default:
			return nil, &SyntaxError{Path: path, Offset: pos, Reason: unexpected(path, pos, "'.' or '['")}
		}
	}
	return segs, nil
}

// scanIdent reads an identifier starting at pos.
func scanIdent(s string, pos int) (string, int) {
	if pos >= len(s) || !isIdentStart(s[pos]) {
		return "", pos
	}
	end := pos + 1
	for end < len(s) && (isIdentStart(s[end]) || isDigit(s[end])) {
		end++
	}
	return s[pos:end], end
}

func unexpected(s string, pos int, want string) string {
	if pos >= len(s) {
		return "expected " + want + ", got end of path"
	}
	return "expected " + want + ", got " + strconv.QuoteRune(rune(s[pos]))
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
