// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package session is the control component of the result browser.
//
// A Session owns the epoch counter, the chunk cache, the viewport controller,
// the mode decider and the loader pool for one backend connection. All of its
// methods must be called from a single goroutine; workers only reach it
// through the Completions channel, whose values are handed back to Apply.
package session

import (
	"context"
	"log/slog"
	"time"

	"rowscope/cli/internal/backend"
	"rowscope/cli/internal/chunk"
	"rowscope/cli/internal/config"
	xerrors "rowscope/cli/internal/errors"
	"rowscope/cli/internal/loader"
	"rowscope/cli/internal/metrics"
	"rowscope/cli/internal/mode"
	"rowscope/cli/internal/model"
	"rowscope/cli/internal/query"
	"rowscope/cli/internal/viewport"

	"github.com/google/uuid"
)

// Options carries optional collaborators.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Stats is a snapshot of engine activity.
type Stats struct {
	Cache   chunk.Stats
	Queued  int
	Running int
	Epoch   int64
	State   State
	Mode    model.Mode
}

// Session runs queries against one backend and answers cell lookups.
type Session struct {
	// ID identifies the session in logs.
	ID string

	cfg     config.LazyConfig
	port    backend.Port
	rw      query.Rewriter
	log     *slog.Logger
	metrics *metrics.Metrics

	epochs  *query.Epochs
	store   *chunk.Store
	view    *viewport.Controller
	decider *mode.Decider
	pool    *loader.Pool

	state    State
	desc     query.Descriptor
	decision mode.Decision
	estimate model.Estimate
	columns  []string
	warnings []error
	lastErr  error

	// eager holds the whole result once the eager load completes.
	eager      model.Window
	eagerReady bool

	// schemaStale is set after a run that changed tables, views or indexes.
	schemaStale bool

	started time.Time
	elapsed time.Duration
}

// New validates cfg and wires the engine around port.
func New(cfg config.LazyConfig, port backend.Port, opts Options) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Session{
		ID:      uuid.NewString(),
		cfg:     cfg,
		port:    port,
		rw:      query.NewRewriter(port.Dialect()),
		metrics: opts.Metrics,
		epochs:  &query.Epochs{},
	}
	s.log = log.With("session", s.ID)

	s.store = chunk.New(chunk.Options{Capacity: cfg.CacheCapacity, ChunkSize: cfg.ChunkSize}, s.epochs, chunk.LoaderFunc(s.submitWindow))
	s.view = viewport.New(s.store, viewport.Options{
		ChunkSize:      cfg.ChunkSize,
		PrefetchAfter:  cfg.PrefetchAfter,
		PrefetchBefore: cfg.PrefetchBefore,
	})
	s.decider = &mode.Decider{
		Port:         port,
		Rewriter:     s.rw,
		Threshold:    cfg.Threshold,
		Enabled:      cfg.Enabled,
		ProbeTimeout: cfg.ProbeTimeout.Std(),
		Metrics:      opts.Metrics,
	}
	pool, err := loader.New(port, s.rw, loader.Options{
		Workers:     cfg.Workers,
		ChunkSize:   cfg.ChunkSize,
		LoadTimeout: cfg.LoadTimeout.Std(),
		Epochs:      s.epochs,
		Logger:      s.log,
	})
	if err != nil {
		return nil, err
	}
	s.pool = pool
	s.metrics.RegisterCache(s.store.Stats)
	return s, nil
}

// submitWindow is the chunk store's loader. A refused submit is recorded as
// a failure of that chunk.
func (s *Session) submitWindow(index int, epoch int64) {
	job := loader.Job{Kind: loader.KindWindow, Index: index, Epoch: epoch, Query: s.desc}
	if err := s.pool.Submit(job); err != nil {
		s.store.OnFailed(index, epoch, xerrors.Wrap(xerrors.WindowLoadFailure, "could not schedule load", err))
	}
}

// Run starts a new logical query and resets the viewport to the top.
func (s *Session) Run(ctx context.Context, sql string) error {
	return s.start(ctx, query.NewDescriptor(sql, model.SortSpec{}, 0), true)
}

// Sort re-runs the current query ordered by column. The viewport returns to
// the top of the result.
func (s *Session) Sort(ctx context.Context, column string, dir model.SortDirection) error {
	if s.state == StateIdle {
		return xerrors.New(xerrors.RewriteFailure, "no query to sort")
	}
	if column == "" {
		return xerrors.New(xerrors.RewriteFailure, "sort column is empty")
	}
	return s.start(ctx, s.desc.WithSort(model.SortSpec{Column: column, Direction: dir}, 0), true)
}

// Rerun executes the current query again under a new epoch. The visible
// range is kept.
func (s *Session) Rerun(ctx context.Context) error {
	if s.state == StateIdle {
		return xerrors.New(xerrors.RewriteFailure, "no query to re-run")
	}
	return s.start(ctx, s.desc, false)
}

func (s *Session) start(ctx context.Context, d query.Descriptor, top bool) error {
	epoch := s.epochs.Bump()
	s.store.InvalidateEpoch()

	s.desc = d.WithEpoch(epoch)
	s.state = StateCounting
	s.decision = mode.Decision{}
	s.estimate = model.Estimate{Epoch: epoch}
	s.columns = nil
	s.warnings = nil
	s.lastErr = nil
	s.eager = model.Window{}
	s.eagerReady = false
	s.started = time.Now()
	s.elapsed = 0

	log := s.log.With("epoch", epoch)
	log.Debug("query started", "sort", s.desc.Sort.String())

	dec, err := s.decider.Decide(ctx, s.desc)
	if err != nil {
		s.fail(err)
		log.Warn("query rejected", "error", err)
		return err
	}
	s.decision = dec
	s.estimate = dec.Estimate
	if dec.Warning != nil {
		s.warnings = append(s.warnings, dec.Warning)
		log.Warn("count probe fell back to eager", "kind", xerrors.KindOf(dec.Warning), "error", dec.Warning)
	}
	if query.IsSchemaChange(s.desc.Base) {
		s.schemaStale = true
	}
	log.Info("mode decided", "mode", dec.Mode.String(), "estimate", dec.Estimate.String(), "probe", dec.Elapsed)

	first, last, ok := s.view.Range()
	if ok && top {
		first, last = 0, last-first
		s.view.Remember(first, last)
	}

	if dec.Mode == model.ModeWindowed {
		s.state = StateWindowedActive
		if ok {
			s.view.OnVisibleRangeChanged(first, last, epoch, s.estimate)
		}
		return nil
	}

	s.state = StateEagerLoaded
	if err := s.pool.Submit(loader.Job{Kind: loader.KindEager, Epoch: epoch, Query: s.desc}); err != nil {
		err = xerrors.Wrap(xerrors.EagerLoadFailure, "could not schedule load", err)
		s.fail(err)
		return err
	}
	return nil
}

func (s *Session) fail(err error) {
	s.state = StateFailed
	s.lastErr = err
}

// Completions delivers loader results for Apply.
func (s *Session) Completions() <-chan loader.Result { return s.pool.Results() }

// Apply routes one loader result into the session. Results of a stale epoch
// never become visible.
func (s *Session) Apply(res loader.Result) Event {
	job := res.Job
	ev := Event{Index: job.Index, Epoch: job.Epoch, Err: res.Err}
	s.metrics.ObserveLoad(job.Kind.String(), res.Elapsed, res.Err, res.Stale)

	if job.Kind == loader.KindWindow {
		if res.Err != nil {
			if s.store.OnFailed(job.Index, job.Epoch, res.Err) {
				s.log.Warn("chunk load failed", "epoch", job.Epoch, "index", job.Index, "error", res.Err)
				ev.Kind = EventChunkFailed
				return ev
			}
			ev.Kind = EventDiscarded
			return ev
		}
		if job.Epoch == s.epochs.Current() && s.columns == nil && len(res.Window.Columns) > 0 {
			s.columns = res.Window.Columns
		}
		if s.store.OnLoaded(job.Index, job.Epoch, res.Window) {
			ev.Kind = EventChunkLoaded
			return ev
		}
		ev.Kind = EventDiscarded
		return ev
	}

	if job.Epoch != s.epochs.Current() || res.Stale {
		ev.Kind = EventDiscarded
		return ev
	}
	if res.Err != nil {
		s.fail(res.Err)
		s.log.Error("eager load failed", "epoch", job.Epoch, "error", res.Err)
		ev.Kind = EventEagerFailed
		return ev
	}
	s.eager = res.Window
	s.eagerReady = true
	s.columns = res.Window.Columns
	s.elapsed = time.Since(s.started)
	s.estimate = model.Estimate{Value: int64(len(res.Window.Rows)), Known: true, ComputedAt: time.Now(), Epoch: job.Epoch}
	s.log.Info("eager load finished", "epoch", job.Epoch, "rows", len(res.Window.Rows), "elapsed", s.elapsed)
	ev.Kind = EventEagerLoaded
	return ev
}

// Next waits for one completion and applies it.
func (s *Session) Next(ctx context.Context) (Event, error) {
	select {
	case res, ok := <-s.pool.Results():
		if !ok {
			return Event{}, loader.ErrClosed
		}
		return s.Apply(res), nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// CheckRange rejects a visible range of more rows than the cache can pin at
// once. Pushing such a range could evict one of its own chunks.
func (s *Session) CheckRange(first, last int64) error {
	if last < first {
		first, last = last, first
	}
	return s.cfg.CheckSpan(last - first + 1)
}

// MaxVisibleRows returns the widest range CheckRange accepts.
func (s *Session) MaxVisibleRows() int64 { return s.cfg.MaxVisibleRows() }

// OnVisibleRangeChanged reports the rows on screen. It only has an effect in
// windowed mode, where it pins, requests and prefetches chunks.
func (s *Session) OnVisibleRangeChanged(first, last int64) viewport.Plan {
	if s.state != StateWindowedActive {
		s.view.Remember(first, last)
		return viewport.Plan{}
	}
	return s.view.OnVisibleRangeChanged(first, last, s.desc.Epoch, s.estimate)
}

// Cell returns the value at (row, col) without blocking.
func (s *Session) Cell(row int64, col int) model.Cell {
	switch s.state {
	case StateWindowedActive:
		return s.view.Cell(row, col, s.desc.Epoch, s.estimate)
	case StateEagerLoaded:
		if row < 0 || col < 0 {
			return model.Cell{State: model.CellOutOfRange}
		}
		if !s.eagerReady {
			return model.Cell{State: model.CellLoading}
		}
		if row >= int64(len(s.eager.Rows)) || col >= len(s.eager.Rows[row]) {
			return model.Cell{State: model.CellOutOfRange}
		}
		return model.Cell{State: model.CellValue, Value: s.eager.Rows[row][col]}
	case StateCounting:
		return model.Cell{State: model.CellLoading}
	case StateFailed:
		return model.Cell{State: model.CellError, Err: s.lastErr}
	default:
		return model.Cell{State: model.CellOutOfRange}
	}
}

// TotalRowEstimate returns the row count of the current epoch. In eager mode
// it is exact once the load completes.
func (s *Session) TotalRowEstimate() model.Estimate { return s.estimate }

// ModeIndicator returns the active loading mode.
func (s *Session) ModeIndicator() model.Mode {
	switch s.state {
	case StateEagerLoaded, StateWindowedActive:
		return s.decision.Mode
	default:
		return model.ModeUnknown
	}
}

// Columns returns the result columns known so far. In windowed mode they
// come from the first loaded chunk.
func (s *Session) Columns() []string { return s.columns }

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// Query returns the current query version.
func (s *Session) Query() query.Descriptor { return s.desc }

// Epoch returns the current epoch.
func (s *Session) Epoch() int64 { return s.epochs.Current() }

// Warnings returns recovered problems of the current epoch.
func (s *Session) Warnings() []error { return s.warnings }

// Err returns the error that moved the session to FAILED.
func (s *Session) Err() error { return s.lastErr }

// Ready reports whether the whole eager result is available.
func (s *Session) Ready() bool { return s.eagerReady }

// Elapsed returns how long the last eager run took.
func (s *Session) Elapsed() time.Duration { return s.elapsed }

// SchemaStale reports whether a run changed the schema since the last call
// to MarkSchemaFresh.
func (s *Session) SchemaStale() bool { return s.schemaStale }

// MarkSchemaFresh clears the stale-schema flag.
func (s *Session) MarkSchemaFresh() { s.schemaStale = false }

// Dialect returns the backend dialect.
func (s *Session) Dialect() query.Dialect { return s.port.Dialect() }

// Stats returns a snapshot of cache and pool activity.
func (s *Session) Stats() Stats {
	return Stats{
		Cache:   s.store.Stats(),
		Queued:  s.pool.Queued(),
		Running: s.pool.Running(),
		Epoch:   s.epochs.Current(),
		State:   s.state,
		Mode:    s.ModeIndicator(),
	}
}

// Config returns the lazy-loading configuration in use.
func (s *Session) Config() config.LazyConfig { return s.cfg }

// Close stops the loader pool. The backend port is left open.
func (s *Session) Close() error { return s.pool.Close() }
