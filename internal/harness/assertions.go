package harness

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/roach88/varpath/internal/memlink"
	"github.com/roach88/varpath/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", event.Step, event.Op, event.Path)
			if event.ErrorCode != "" {
				fmt.Fprintf(&buf, " (%s)", event.ErrorCode)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// AssertionContext provides what assertions inspect besides the trace.
type AssertionContext struct {
	Ctx       context.Context
	Image     *memlink.Image
	Journal   *store.Store // nil when the scenario does not journal
	SessionID string
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertMemory:
			if actx == nil || actx.Image == nil {
				err = fmt.Errorf("assertion[%d]: memory requires an image", i)
			} else {
				err = assertMemory(actx.Ctx, actx.Image, assertion)
			}
		case AssertJournalCount:
			if actx == nil || actx.Journal == nil {
				err = fmt.Errorf("assertion[%d]: journal_count requires a journal", i)
			} else {
				err = assertJournalCount(actx.Ctx, actx.Journal, actx.SessionID, assertion)
			}
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}

// assertMemory checks the raw bytes at an address.
func assertMemory(ctx context.Context, img *memlink.Image, assertion Assertion) error {
	want := toBytes(assertion.Bytes)
	got, err := img.ReadBytes(ctx, assertion.Address, len(want))
	if err != nil {
		return &AssertionError{
			Type:     AssertMemory,
			Expected: fmt.Sprintf("% x at 0x%x", want, assertion.Address),
			Actual:   fmt.Sprintf("read error: %v", err),
		}
	}
	if !bytes.Equal(got, want) {
		return &AssertionError{
			Type:     AssertMemory,
			Expected: fmt.Sprintf("% x at 0x%x", want, assertion.Address),
			Actual:   fmt.Sprintf("% x", got),
		}
	}
	return nil
}

// assertJournalCount checks the number of writes journaled in the session.
func assertJournalCount(ctx context.Context, st *store.Store, sessionID string, assertion Assertion) error {
	writes, err := st.ReadWrites(ctx, sessionID)
	if err != nil {
		return &AssertionError{
			Type:     AssertJournalCount,
			Expected: fmt.Sprintf("%d journaled writes", assertion.Count),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	if len(writes) != assertion.Count {
		paths := make([]string, len(writes))
		for i, w := range writes {
			paths[i] = w.Path
		}
		return &AssertionError{
			Type:     AssertJournalCount,
			Expected: fmt.Sprintf("%d journaled writes", assertion.Count),
			Actual:   fmt.Sprintf("%d: %v", len(writes), paths),
		}
	}
	return nil
}

// assertTraceCount checks how many successful steps have the op (and path,
// when given).
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Op != assertion.Op || event.ErrorCode != "" {
			continue
		}
		if assertion.Path != "" && event.Path != assertion.Path {
			continue
		}
		count++
	}

	if count != assertion.Count {
		target := assertion.Op
		if assertion.Path != "" {
			target += " " + assertion.Path
		}
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d successful %s", assertion.Count, target),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that paths first appear in the specified order.
// Paths don't need to be consecutive (intervening steps are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Path]; !seen && event.Path != "" {
			positions[event.Path] = i + 1 // 1-indexed for readability
		}
	}

	for _, path := range assertion.Paths {
		if positions[path] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all paths present: %v", assertion.Paths),
				Actual:   fmt.Sprintf("missing path: %s", path),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Paths); i++ {
		prev := assertion.Paths[i-1]
		curr := assertion.Paths[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("paths in order: %v", assertion.Paths),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}
