package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/rs/zerolog"

	"github.com/roach88/varpath/internal/compiler"
	"github.com/roach88/varpath/internal/ir"
	"github.com/roach88/varpath/internal/memlink"
	"github.com/roach88/varpath/internal/store"
	"github.com/roach88/varpath/internal/testutil"
	"github.com/roach88/varpath/internal/typegraph"
	"github.com/roach88/varpath/internal/varstore"
)

// codeUncoded marks an error that carries no stable code.
const codeUncoded = "ERROR"

// Harness is the scenario execution engine for one run.
type Harness struct {
	vars      *varstore.Store
	image     *memlink.Image
	journal   *store.Store
	sessionID string
	logger    zerolog.Logger
}

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	logger zerolog.Logger
}

// WithLogger sets the logger passed to the variable store. The default
// discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(c *runConfig) {
		c.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// Step and assertion failures are reported in the Result; the returned error
// is reserved for scenarios that cannot run at all (unreadable layout or
// image, journal setup failure).
//
// Execution flow:
//  1. Load and validate the layout
//  2. Build the image and apply init patches
//  3. Open a fresh in-memory journal when requested
//  4. Execute steps, checking expectations
//  5. Evaluate assertions
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	snap, err := loadSnapshot(scenario.Layout)
	if err != nil {
		return nil, err
	}

	img, err := buildImage(ctx, scenario.Image)
	if err != nil {
		return nil, err
	}

	sessionID := scenario.SessionID
	if sessionID == "" {
		sessionID = testutil.DefaultSessionID
	}

	h := &Harness{
		image:     img,
		sessionID: sessionID,
		logger:    cfg.logger.With().Str("component", "harness").Str("scenario", scenario.Name).Logger(),
	}

	storeOpts := []varstore.Option{
		varstore.WithClock(varstore.NewClock()),
		varstore.WithSessionGenerator(testutil.NewFixedSessionGenerator(sessionID)),
		varstore.WithLogger(cfg.logger),
	}
	if scenario.CacheSize != 0 {
		storeOpts = append(storeOpts, varstore.WithCacheSize(scenario.CacheSize))
	}
	if scenario.Journal {
		st, err := store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
		}
		defer st.Close()
		h.journal = st
		storeOpts = append(storeOpts, varstore.WithJournal(st))
	}
	h.vars = varstore.New(snap, img, storeOpts...)

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		event := h.execute(ctx, i, step)
		result.Trace = append(result.Trace, event)
		checkExpect(result, i, step, event)
	}

	actx := &AssertionContext{
		Ctx:       ctx,
		Image:     h.image,
		Journal:   h.journal,
		SessionID: h.sessionID,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	h.logger.Debug().Bool("pass", result.Pass).Int("steps", len(result.Trace)).Msg("Scenario finished")
	return result, nil
}

// loadSnapshot compiles and validates a layout file.
func loadSnapshot(path string) (*varstore.Snapshot, error) {
	layout, err := compiler.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if errs := compiler.Validate(layout); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("layout %s is invalid:\n  %s", path, strings.Join(msgs, "\n  "))
	}
	snap, err := varstore.NewSnapshot(*layout)
	if err != nil {
		return nil, fmt.Errorf("layout %s: %w", path, err)
	}
	return snap, nil
}

func buildImage(ctx context.Context, spec ImageSpec) (*memlink.Image, error) {
	var img *memlink.Image
	if spec.File != "" {
		var err error
		img, _, err = memlink.Open(spec.File, spec.Base)
		if err != nil {
			return nil, err
		}
	} else {
		img = memlink.NewBuffer(spec.Base, spec.Size)
	}

	for i, p := range spec.Init {
		if err := img.WriteBytes(ctx, p.Address, toBytes(p.Bytes)); err != nil {
			return nil, fmt.Errorf("image.init[%d]: %w", i, err)
		}
	}
	return img, nil
}

// execute runs one step. Errors are recorded in the event, never returned.
func (h *Harness) execute(ctx context.Context, i int, step Step) TraceEvent {
	event := TraceEvent{Step: i, Op: step.Op, Path: step.Path}

	var err error
	switch step.Op {
	case OpResolve:
		err = h.resolve(&event, step)
	case OpGet:
		err = h.get(ctx, &event, step)
	case OpSet:
		err = h.set(ctx, &event, step)
	case OpFollow:
		err = h.follow(ctx, &event, step)
	case OpReload:
		err = h.reload(&event, step)
	case OpReplay:
		err = h.replay(ctx, &event)
	default:
		err = fmt.Errorf("unknown op %q", step.Op)
	}

	if err != nil {
		event.ErrorCode = ir.ErrorCode(err)
		if event.ErrorCode == "" {
			event.ErrorCode = codeUncoded
		}
		event.Error = err.Error()
	}

	h.logger.Debug().
		Int("step", i).
		Str("op", step.Op).
		Str("path", step.Path).
		Str("error_code", event.ErrorCode).
		Msg("Step executed")
	return event
}

func (h *Harness) resolve(event *TraceEvent, step Step) error {
	loc, err := h.vars.Resolve(step.Path)
	if err != nil {
		return err
	}
	h.fillLocation(event, loc.Address, loc.Size, loc.Type)
	return nil
}

func (h *Harness) get(ctx context.Context, event *TraceEvent, step Step) error {
	loc, err := h.vars.Resolve(step.Path)
	if err != nil {
		return err
	}
	h.fillLocation(event, loc.Address, loc.Size, loc.Type)

	v, err := h.vars.Get(ctx, step.Path)
	if err != nil {
		return err
	}
	event.Value = v
	return nil
}

func (h *Harness) set(ctx context.Context, event *TraceEvent, step Step) error {
	v, err := inputValue(step.Value)
	if err != nil {
		return fmt.Errorf("value: %w", err)
	}

	loc, err := h.vars.Resolve(step.Path)
	if err != nil {
		return err
	}
	h.fillLocation(event, loc.Address, loc.Size, loc.Type)

	if err := h.vars.Set(ctx, step.Path, v); err != nil {
		return err
	}
	if stored, ok := h.vars.LastValue(step.Path); ok {
		event.Value = stored
	}
	if h.journal != nil {
		event.Seq = h.lastSeq(ctx)
	}
	return nil
}

func (h *Harness) follow(ctx context.Context, event *TraceEvent, step Step) error {
	loc, err := h.vars.Follow(ctx, step.Path, step.Tail)
	if err != nil {
		return err
	}
	if step.Tail != "" {
		event.Path = step.Path + "->" + strings.TrimPrefix(step.Tail, ".")
	}
	h.fillLocation(event, loc.Address, loc.Size, loc.Type)
	return nil
}

func (h *Harness) reload(event *TraceEvent, step Step) error {
	snap, err := loadSnapshot(step.Layout)
	if err != nil {
		return err
	}
	h.vars.Reload(snap)
	event.Generation = h.vars.Generation()
	event.LayoutHash = snap.LayoutHash
	return nil
}

func (h *Harness) replay(ctx context.Context, event *TraceEvent) error {
	res, err := h.journal.Replay(ctx, h.sessionID, h.vars, store.ReplayOptions{
		LayoutHash: h.vars.Snapshot().LayoutHash,
	})
	if err != nil {
		return err
	}
	event.Applied = res.Applied
	event.Relocated = res.Relocated
	if len(res.Failed) > 0 {
		return res.Failed[0].Err
	}
	return nil
}

func (h *Harness) fillLocation(event *TraceEvent, addr, size uint64, id typegraph.TypeID) {
	a := addr
	event.Address = &a
	event.Size = size
	event.Type = h.vars.Snapshot().Graph.Name(id)
}

// lastSeq returns the seq of the newest journaled write of this session.
func (h *Harness) lastSeq(ctx context.Context) int64 {
	writes, err := h.journal.ReadWrites(ctx, h.sessionID)
	if err != nil || len(writes) == 0 {
		return 0
	}
	return writes[len(writes)-1].Seq
}

// checkExpect compares a step's event against its expect clause.
func checkExpect(result *Result, i int, step Step, event TraceEvent) {
	prefix := fmt.Sprintf("step %d (%s %s)", i, step.Op, step.Path)
	exp := step.Expect

	if exp == nil || exp.Error == "" {
		if event.ErrorCode != "" {
			result.AddErrorf("%s: unexpected error: %s", prefix, event.Error)
			return
		}
	} else {
		if event.ErrorCode != exp.Error {
			result.AddErrorf("%s: expected error %s, got %s", prefix, exp.Error, describe(event))
			return
		}
		if exp.Message != "" && !strings.Contains(event.Error, exp.Message) {
			result.AddErrorf("%s: error %q does not mention %q", prefix, event.Error, exp.Message)
		}
	}
	if exp == nil {
		return
	}

	if exp.Address != nil && (event.Address == nil || *event.Address != *exp.Address) {
		result.AddErrorf("%s: address = %s, want 0x%x", prefix, formatAddress(event.Address), *exp.Address)
	}
	if exp.Size != nil && event.Size != *exp.Size {
		result.AddErrorf("%s: size = %d, want %d", prefix, event.Size, *exp.Size)
	}
	if exp.Type != "" && event.Type != exp.Type {
		result.AddErrorf("%s: type = %s, want %s", prefix, event.Type, exp.Type)
	}
	if exp.Value != nil {
		if err := compareValue(exp.Value, event.Value); err != nil {
			result.AddErrorf("%s: %v", prefix, err)
		}
	}
	if exp.Applied != nil && event.Applied != *exp.Applied {
		result.AddErrorf("%s: applied = %d, want %d", prefix, event.Applied, *exp.Applied)
	}
	if exp.Relocated != nil && event.Relocated != *exp.Relocated {
		result.AddErrorf("%s: relocated = %d, want %d", prefix, event.Relocated, *exp.Relocated)
	}
}

func describe(event TraceEvent) string {
	if event.ErrorCode == "" {
		return "success"
	}
	return event.Error
}

func formatAddress(addr *uint64) string {
	if addr == nil {
		return "none"
	}
	return fmt.Sprintf("0x%x", *addr)
}

// inputValue converts a YAML-decoded value to the value model through JSON,
// so scenario values behave exactly like values given on the command line.
func inputValue(raw any) (ir.Value, error) {
	if raw == nil {
		return nil, errors.New("null is not a valid value")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return ir.UnmarshalValue(data)
}

// compareValue checks got against the expected YAML value. Both are brought
// to JSON input form first: enums as names, integers untyped, struct members
// sorted.
func compareValue(want any, got ir.Value) error {
	if got == nil {
		return fmt.Errorf("no value to compare, want %v", want)
	}
	w, err := inputValue(want)
	if err != nil {
		return fmt.Errorf("expected value: %w", err)
	}
	data, err := ir.MarshalValue(got)
	if err != nil {
		return err
	}
	g, err := ir.UnmarshalValue(data)
	if err != nil {
		return err
	}
	if !reflect.DeepEqual(w, g) {
		return fmt.Errorf("value = %s, want %s", ir.FormatValue(got), ir.FormatValue(w))
	}
	return nil
}
