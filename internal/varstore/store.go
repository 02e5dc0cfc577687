// Package varstore is the orchestration layer callers talk to: it resolves
// paths against the current snapshot, reads and writes through a memory
// link, remembers resolved locations and last-known values, and journals
// writes.
//
// Concurrency model:
//   - Get, Set, Resolve: safe from any goroutine
//   - Reload: swaps the snapshot atomically; calls already in flight finish
//     against the snapshot they started with
//   - only the cache takes a lock; resolution never does
package varstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/roach88/varpath/internal/ir"
	"github.com/roach88/varpath/internal/memory"
	"github.com/roach88/varpath/internal/resolve"
	"github.com/roach88/varpath/internal/typegraph"
)

// DefaultCacheSize is the number of paths remembered when no size is configured.
const DefaultCacheSize = 1024

// Journal receives every successful Set.
// Implemented by store.Store (sqlite).
type Journal interface {
	WriteSession(ctx context.Context, s ir.Session) error
	WriteRecord(ctx context.Context, rec ir.WriteRecord) error
}

// loaded pairs a snapshot with its generation and an accessor over it.
type loaded struct {
	snap *Snapshot
	gen  uint64
	acc  *memory.Accessor
}

// Store composes PathResolver and MemoryAccessor behind path-keyed Get/Set.
type Store struct {
	link    memory.Link
	current atomic.Pointer[loaded]
	nextGen atomic.Uint64
	cache   *lruCache

	clock    SeqSource
	sessions SessionGenerator
	journal  Journal
	logger   zerolog.Logger
	accOpts  []memory.AccessorOption

	// Session is opened lazily on the first journaled write.
	sessionMu sync.Mutex
	sessionID string
}

// Option configures a Store.
type Option func(*Store)

// WithCacheSize bounds the number of cached paths. Zero disables caching.
func WithCacheSize(n int) Option {
	return func(s *Store) {
		s.cache = newLRUCache(n)
	}
}

// WithClock sets the seq source for journal records.
func WithClock(c SeqSource) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// WithSessionGenerator sets how journal session ids are created.
func WithSessionGenerator(g SessionGenerator) Option {
	return func(s *Store) {
		s.sessions = g
	}
}

// WithJournal enables journaling of writes.
func WithJournal(j Journal) Option {
	return func(s *Store) {
		s.journal = j
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithAccessorOptions passes options to every Accessor the store creates.
func WithAccessorOptions(opts ...memory.AccessorOption) Option {
	return func(s *Store) {
		s.accOpts = append(s.accOpts, opts...)
	}
}

// New creates a Store serving snap over link.
func New(snap *Snapshot, link memory.Link, opts ...Option) *Store {
	s := &Store{
		link:     link,
		cache:    newLRUCache(DefaultCacheSize),
		clock:    NewClock(),
		sessions: UUIDv7Generator{},
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "varstore").Logger()
	s.install(snap)
	return s
}

func (s *Store) install(snap *Snapshot) *loaded {
	l := &loaded{
		snap: snap,
		gen:  s.nextGen.Add(1),
		acc:  memory.New(snap.Graph, s.link, s.accOpts...),
	}
	s.current.Store(l)
	return l
}

// Snapshot returns the snapshot new calls resolve against.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load().snap
}

// Generation returns the number of snapshots installed so far, starting at 1.
func (s *Store) Generation() uint64 {
	return s.current.Load().gen
}

// Reload installs snap and invalidates every cached path.
func (s *Store) Reload(snap *Snapshot) {
	prev := s.current.Load()
	l := s.install(snap)
	s.cache.purge()

	s.logger.Info().
		Uint64("generation", l.gen).
		Str("layout_hash", snap.LayoutHash).
		Bool("layout_changed", prev.snap.LayoutHash != snap.LayoutHash).
		Msg("Snapshot reloaded")
}

// Resolve returns the location of path under the current snapshot.
func (s *Store) Resolve(path string) (resolve.Location, error) {
	loc, _, err := s.resolve(s.current.Load(), path)
	return loc, err
}

func (s *Store) resolve(l *loaded, path string) (resolve.Location, cacheEntry, error) {
	if e, ok := s.cache.get(path, l.gen); ok {
		return e.loc, e, nil
	}
	loc, err := l.snap.Resolver.Resolve(path)
	if err != nil {
		return resolve.Location{}, cacheEntry{}, err
	}
	e := cacheEntry{gen: l.gen, loc: loc}
	s.cache.put(path, e)
	return loc, e, nil
}

// Get reads and decodes the value at path.
func (s *Store) Get(ctx context.Context, path string) (ir.Value, error) {
	l := s.current.Load()
	loc, e, err := s.resolve(l, path)
	if err != nil {
		return nil, err
	}

	v, err := l.acc.Get(ctx, loc)
	if err != nil {
		return nil, err
	}

	e.value = v
	s.cache.put(path, e)
	return v, nil
}

// Set encodes v for path and writes it. When a journal is configured the
// write is recorded after it reaches the target; a journal failure is
// returned even though target memory already holds the new value.
func (s *Store) Set(ctx context.Context, path string, v ir.Value) error {
	l := s.current.Load()
	loc, e, err := s.resolve(l, path)
	if err != nil {
		return err
	}

	data, err := l.acc.Encode(v, loc.Type)
	if err != nil {
		return err
	}
	if err := l.acc.Write(ctx, loc, data); err != nil {
		return err
	}

	// Normalized form: enum names filled in, integers typed by slot.
	stored, err := l.acc.Decode(data, loc.Type)
	if err != nil {
		return err
	}
	e.value = stored
	s.cache.put(path, e)

	s.logger.Debug().
		Str("path", path).
		Uint64("address", loc.Address).
		Uint64("size", loc.Size).
		Msg("Value written")

	if s.journal == nil {
		return nil
	}
	if err := s.record(ctx, l, loc, stored); err != nil {
		return fmt.Errorf("journal write of %s: %w", path, err)
	}
	return nil
}

// LastValue returns the last value read or written for path under the
// current snapshot, without touching the target.
func (s *Store) LastValue(path string) (ir.Value, bool) {
	e, ok := s.cache.get(path, s.current.Load().gen)
	if !ok || e.value == nil {
		return nil, false
	}
	return e.value, true
}

// Follow reads the pointer stored at path and resolves tail (such as ".a",
// possibly empty) from the address it holds, interpreted as the pointee type.
func (s *Store) Follow(ctx context.Context, path, tail string) (resolve.Location, error) {
	l := s.current.Load()
	loc, _, err := s.resolve(l, path)
	if err != nil {
		return resolve.Location{}, err
	}

	ptr, ok := l.snap.Graph.Type(loc.Type).(*typegraph.Pointer)
	if !ok || ptr.Pointee == typegraph.NoType {
		return resolve.Location{}, &NotPointerError{Path: path, Type: l.snap.Graph.Name(loc.Type)}
	}

	v, err := l.acc.Get(ctx, loc)
	if err != nil {
		return resolve.Location{}, err
	}
	return l.snap.Resolver.ResolveAt(uint64(v.(ir.Pointer)), l.snap.Graph.Name(ptr.Pointee), tail)
}

// SessionID returns the journal session id, or "" before the first journaled write.
func (s *Store) SessionID() string {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	return s.sessionID
}

func (s *Store) record(ctx context.Context, l *loaded, loc resolve.Location, v ir.Value) error {
	sessionID, err := s.ensureSession(ctx, l.snap)
	if err != nil {
		return err
	}

	seq := s.clock.Next()
	id, err := ir.WriteID(sessionID, seq, loc.Path, v)
	if err != nil {
		return err
	}

	return s.journal.WriteRecord(ctx, ir.WriteRecord{
		ID:         id,
		SessionID:  sessionID,
		Seq:        seq,
		Path:       loc.Path,
		Value:      v,
		Address:    loc.Address,
		Size:       int64(loc.Size),
		LayoutHash: l.snap.LayoutHash,
	})
}

func (s *Store) ensureSession(ctx context.Context, snap *Snapshot) (string, error) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	if s.sessionID != "" {
		return s.sessionID, nil
	}

	id := s.sessions.Generate()
	if err := s.journal.WriteSession(ctx, ir.Session{
		ID:         id,
		LayoutHash: snap.LayoutHash,
		Source:     snap.Layout.Source,
	}); err != nil {
		return "", err
	}
	s.sessionID = id
	s.logger.Info().Str("session", id).Msg("Journal session started")
	return id, nil
}
