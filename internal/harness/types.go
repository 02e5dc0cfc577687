package harness

import (
	"fmt"

	"github.com/roach88/varpath/internal/ir"
)

// TraceEvent records the outcome of one step.
type TraceEvent struct {
	Step    int      `json:"step"`
	Op      string   `json:"op"`
	Path    string   `json:"path,omitempty"`
	Address *uint64  `json:"address,omitempty"`
	Size    uint64   `json:"size,omitempty"`
	Type    string   `json:"type,omitempty"`
	Value   ir.Value `json:"value,omitempty"`
	Seq     int64    `json:"seq,omitempty"` // journal seq of a set

	// reload
	Generation uint64 `json:"generation,omitempty"`
	LayoutHash string `json:"layout_hash,omitempty"`

	// replay
	Applied   int `json:"applied,omitempty"`
	Relocated int `json:"relocated,omitempty"`

	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds one event per executed step.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddErrorf is AddError with formatting.
func (r *Result) AddErrorf(format string, args ...any) {
	r.AddError(fmt.Sprintf(format, args...))
}

// canonical converts the event to a map accepted by ir.MarshalCanonical.
// Zero fields are omitted so golden files only show what a step produced.
func (e TraceEvent) canonical() map[string]any {
	m := map[string]any{
		"step": e.Step,
		"op":   e.Op,
	}
	if e.Path != "" {
		m["path"] = e.Path
	}
	if e.Address != nil {
		m["address"] = fmt.Sprintf("0x%08x", *e.Address)
	}
	if e.Size != 0 {
		m["size"] = e.Size
	}
	if e.Type != "" {
		m["type"] = e.Type
	}
	if e.Value != nil {
		m["value"] = e.Value
	}
	if e.Seq != 0 {
		m["seq"] = e.Seq
	}
	if e.Generation != 0 {
		m["generation"] = e.Generation
	}
	if e.LayoutHash != "" {
		m["layout_hash"] = e.LayoutHash
	}
	if e.Op == OpReplay {
		m["applied"] = e.Applied
		m["relocated"] = e.Relocated
	}
	if e.ErrorCode != "" {
		m["error_code"] = e.ErrorCode
	}
	if e.Error != "" {
		m["error"] = e.Error
	}
	return m
}
