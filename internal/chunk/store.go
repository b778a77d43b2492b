// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package chunk implements the bounded cache of result windows.
//
// A Store maps chunk indices of the current query epoch to loaded row windows.
// It bounds memory to Capacity chunks with least-recently-used eviction that
// never removes a pinned (visible) chunk, collapses concurrent requests for the
// same (index, epoch) into one load, and silently drops results that arrive
// after the epoch moved on.
//
// A Store is owned by a single goroutine and is not safe for concurrent use,
// except for Stats and Len which may be read from any goroutine.
package chunk

import (
	"errors"
	"time"

	"rowscope/cli/internal/model"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Chunk is an immutable window of rows starting at Index*chunkSize.
type Chunk struct {
	Index   int
	Epoch   int64
	Columns []string
	Rows    []model.Row
}

// Offset returns the absolute row offset of the first row.
func (c Chunk) Offset(chunkSize int) int64 { return int64(c.Index) * int64(chunkSize) }

// Loader starts an asynchronous load. Implementations must not block.
type Loader interface {
	Load(index int, epoch int64)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(index int, epoch int64)

func (f LoaderFunc) Load(index int, epoch int64) { f(index, epoch) }

// EpochSource reports the current query epoch.
type EpochSource interface {
	Current() int64
}

// Options configures a Store.
type Options struct {
	Capacity  int
	ChunkSize int
}

type entry struct {
	chunk      Chunk
	lastAccess time.Time
}

type flight struct {
	index int
	epoch int64
}

// Store is the chunk cache.
type Store struct {
	opts   Options
	epochs EpochSource
	loader Loader

	// entries keeps recency order; eviction is done by hand so pins can be honored.
	entries *simplelru.LRU[int, *entry]
	// epoch of the cached entries
	epoch    int64
	inflight map[flight]struct{}
	failed   *roaring64.Bitmap
	failures map[int]error

	pinned  bool
	pinLo   int
	pinHi   int
	now     func() time.Time
	counter counters
}

// New creates a Store. Options must be positive; callers validate configuration
// before constructing the engine.
func New(opts Options, epochs EpochSource, loader Loader) *Store {
	if opts.Capacity <= 0 {
		opts.Capacity = 1
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1
	}
	// One spare slot: the just-inserted chunk is admitted before a victim is chosen.
	lru, _ := simplelru.NewLRU[int, *entry](opts.Capacity+1, nil)
	return &Store{
		opts:     opts,
		epochs:   epochs,
		loader:   loader,
		entries:  lru,
		epoch:    epochs.Current(),
		inflight: make(map[flight]struct{}),
		failed:   roaring64.New(),
		failures: make(map[int]error),
		now:      time.Now,
	}
}

// Options returns the configuration the store was built with.
func (s *Store) Options() Options { return s.opts }

// Get returns the cached chunk for index when it belongs to epoch.
// A hit refreshes recency. A stale entry found under index is evicted.
func (s *Store) Get(index int, epoch int64) (Chunk, bool) {
	e, ok := s.entries.Peek(index)
	if !ok {
		s.counter.misses.Add(1)
		return Chunk{}, false
	}
	if e.chunk.Epoch != epoch {
		if e.chunk.Epoch != s.epochs.Current() {
			s.entries.Remove(index)
			s.syncSize()
		}
		s.counter.misses.Add(1)
		return Chunk{}, false
	}
	s.entries.Get(index)
	e.lastAccess = s.now()
	s.counter.hits.Add(1)
	return e.chunk, true
}

// LastAccess returns when index was last inserted or hit.
func (s *Store) LastAccess(index int) (time.Time, bool) {
	e, ok := s.entries.Peek(index)
	if !ok {
		return time.Time{}, false
	}
	return e.lastAccess, true
}

// Request makes sure a load for (index, epoch) is cached or in flight.
// It reports whether a new load was handed to the Loader. Requests for a
// non-current epoch are ignored.
func (s *Store) Request(index int, epoch int64) bool {
	if index < 0 || epoch != s.epochs.Current() {
		return false
	}
	if e, ok := s.entries.Peek(index); ok && e.chunk.Epoch == epoch {
		return false
	}
	key := flight{index: index, epoch: epoch}
	if _, ok := s.inflight[key]; ok {
		return false
	}
	s.inflight[key] = struct{}{}
	s.clearFailure(index)
	s.counter.loads.Add(1)
	s.syncSize()
	s.loader.Load(index, epoch)
	return true
}

// OnLoaded admits a successful load. Results for a stale epoch are discarded
// and never become visible. It reports whether the chunk was cached.
func (s *Store) OnLoaded(index int, epoch int64, w model.Window) bool {
	delete(s.inflight, flight{index: index, epoch: epoch})
	defer s.syncSize()

	if epoch != s.epochs.Current() {
		s.counter.discarded.Add(1)
		return false
	}
	if s.epoch != epoch {
		s.entries.Purge()
		s.epoch = epoch
	}

	rows := w.Rows
	if len(rows) > s.opts.ChunkSize {
		rows = rows[:s.opts.ChunkSize]
	}
	s.clearFailure(index)
	s.entries.Add(index, &entry{
		chunk:      Chunk{Index: index, Epoch: epoch, Columns: w.Columns, Rows: rows},
		lastAccess: s.now(),
	})
	return s.evict(index)
}

// evict restores the capacity bound after inserting index. It reports whether
// index itself survived.
func (s *Store) evict(inserted int) bool {
	for s.entries.Len() > s.opts.Capacity {
		victim, ok := s.victim(inserted)
		if !ok {
			// Everything else is pinned. A visible newcomer displaces the oldest
			// pinned entry; an invisible one is dropped.
			if !s.isPinned(inserted) {
				s.entries.Remove(inserted)
				s.counter.evictions.Add(1)
				return false
			}
			victim, ok = s.oldestExcept(inserted)
			if !ok {
				return true
			}
		}
		s.entries.Remove(victim)
		s.counter.evictions.Add(1)
	}
	return true
}

// victim returns the least recently used index that is neither inserted nor pinned.
func (s *Store) victim(inserted int) (int, bool) {
	for _, k := range s.entries.Keys() {
		if k != inserted && !s.isPinned(k) {
			return k, true
		}
	}
	return 0, false
}

func (s *Store) oldestExcept(inserted int) (int, bool) {
	for _, k := range s.entries.Keys() {
		if k != inserted {
			return k, true
		}
	}
	return 0, false
}

// OnFailed records a failed load. Only failures of the current epoch are
// kept; there is no automatic retry.
func (s *Store) OnFailed(index int, epoch int64, err error) bool {
	delete(s.inflight, flight{index: index, epoch: epoch})
	defer s.syncSize()

	if epoch != s.epochs.Current() {
		s.counter.discarded.Add(1)
		return false
	}
	if err == nil {
		err = errors.New("load failed")
	}
	s.failed.Add(uint64(index))
	s.failures[index] = err
	s.counter.failures.Add(1)
	return true
}

// Failure returns the load error recorded for index in the current epoch,
// or nil.
func (s *Store) Failure(index int) error {
	if index < 0 || !s.failed.Contains(uint64(index)) {
		return nil
	}
	return s.failures[index]
}

// FailedCount returns how many indices currently carry a load error.
func (s *Store) FailedCount() int { return int(s.failed.GetCardinality()) }

func (s *Store) clearFailure(index int) {
	if s.failed.Contains(uint64(index)) {
		s.failed.Remove(uint64(index))
		delete(s.failures, index)
	}
}

// InvalidateEpoch drops all entries, in-flight records, failures and pins.
// It is called right after the epoch is bumped.
func (s *Store) InvalidateEpoch() {
	s.entries.Purge()
	s.inflight = make(map[flight]struct{})
	s.failed.Clear()
	s.failures = make(map[int]error)
	s.pinned = false
	s.epoch = s.epochs.Current()
	s.counter.invalidations.Add(1)
	s.syncSize()
}

// Pin marks chunk indices [first, last] as visible. Pinned chunks are never
// chosen as eviction victims while another candidate exists.
func (s *Store) Pin(first, last int) {
	if last < first {
		first, last = last, first
	}
	s.pinned, s.pinLo, s.pinHi = true, first, last
}

// Unpin clears the visible range.
func (s *Store) Unpin() { s.pinned = false }

func (s *Store) isPinned(index int) bool {
	return s.pinned && index >= s.pinLo && index <= s.pinHi
}

// Len returns the number of cached chunks.
func (s *Store) Len() int { return int(s.counter.size.Load()) }

// InFlight reports whether a load for (index, epoch) is executing.
func (s *Store) InFlight(index int, epoch int64) bool {
	_, ok := s.inflight[flight{index: index, epoch: epoch}]
	return ok
}

// InFlightCount returns the number of executing loads.
func (s *Store) InFlightCount() int { return int(s.counter.inflight.Load()) }

// Indices returns the cached chunk indices from least to most recently used.
func (s *Store) Indices() []int { return s.entries.Keys() }

func (s *Store) syncSize() {
	s.counter.size.Store(int64(s.entries.Len()))
	s.counter.inflight.Store(int64(len(s.inflight)))
}
