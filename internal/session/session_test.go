package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"rowscope/cli/internal/backend/backendtest"
	"rowscope/cli/internal/config"
	xerrors "rowscope/cli/internal/errors"
	"rowscope/cli/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, fake *backendtest.Fake, tweak func(*config.LazyConfig)) *Session {
	t.Helper()
	cfg := config.DefaultLazy()
	if tweak != nil {
		tweak(&cfg)
	}
	s, err := New(cfg, fake, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// drain applies n completions and returns the resulting events.
func drain(t *testing.T, s *Session, n int) []Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var events []Event
	for i := 0; i < n; i++ {
		ev, err := s.Next(ctx)
		require.NoError(t, err)
		events = append(events, ev)
	}
	return events
}

func countKind(events []Event, kind EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func TestSession_InitialState(t *testing.T) {
	s := newSession(t, backendtest.New(10), nil)
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, model.ModeUnknown, s.ModeIndicator())
	assert.Equal(t, model.CellOutOfRange, s.Cell(0, 0).State)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, int64(0), s.Epoch())
}

func TestSession_NewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultLazy()
	cfg.ChunkSize = 0
	_, err := New(cfg, backendtest.New(10), Options{})
	assert.True(t, xerrors.Is(err, xerrors.InvalidConfiguration))
}

func TestSession_WindowedRun(t *testing.T) {
	fake := backendtest.New(10_000_000)
	s := newSession(t, fake, nil)

	require.NoError(t, s.Run(context.Background(), "SELECT * FROM big;"))
	assert.Equal(t, StateWindowedActive, s.State())
	assert.Equal(t, model.ModeWindowed, s.ModeIndicator())
	assert.Equal(t, int64(1), s.Epoch())
	assert.Equal(t, int64(10_000_000), s.TotalRowEstimate().Value)

	plan := s.OnVisibleRangeChanged(0, 999)
	assert.Equal(t, []int{0, 1, 2}, plan.Issued)
	assert.Equal(t, model.CellLoading, s.Cell(5, 1).State)

	events := drain(t, s, 3)
	assert.Equal(t, 3, countKind(events, EventChunkLoaded))

	cell := s.Cell(5, 1)
	require.Equal(t, model.CellValue, cell.State)
	assert.Equal(t, "row-5", cell.Value)
	assert.Equal(t, []string{"id", "label"}, s.Columns())
	assert.Equal(t, int64(0), fake.QueryCalls())
}

func TestSession_EagerRunLoadsEverythingAtOnce(t *testing.T) {
	fake := backendtest.New(50000)
	s := newSession(t, fake, nil)
	s.OnVisibleRangeChanged(0, 39)

	require.NoError(t, s.Run(context.Background(), "SELECT * FROM small"))
	assert.Equal(t, StateEagerLoaded, s.State())
	assert.Equal(t, model.ModeEager, s.ModeIndicator())
	assert.Equal(t, model.CellLoading, s.Cell(0, 0).State)

	events := drain(t, s, 1)
	assert.Equal(t, EventEagerLoaded, events[0].Kind)
	assert.True(t, s.Ready())

	total := s.TotalRowEstimate()
	assert.True(t, total.Known)
	assert.Equal(t, int64(50000), total.Value)

	assert.Equal(t, int64(49999), s.Cell(49999, 0).Value)
	assert.Equal(t, model.CellOutOfRange, s.Cell(50000, 0).State)
	assert.Equal(t, model.CellOutOfRange, s.Cell(0, 2).State)

	assert.Empty(t, fake.Calls(), "no window fetches in eager mode")
	assert.Equal(t, int64(1), fake.QueryCalls())
	assert.Equal(t, int64(0), s.Stats().Cache.Loads)
	assert.Equal(t, int64(0), s.Stats().Cache.Size)
}

func TestSession_ResortDiscardsLateLoads(t *testing.T) {
	fake := backendtest.New(10_000_000)
	s := newSession(t, fake, nil)
	ctx := context.Background()

	require.NoError(t, s.Run(ctx, "SELECT * FROM big"))
	fake.Hold()
	plan := s.OnVisibleRangeChanged(3000, 3999)
	assert.Equal(t, []int{3, 4, 5}, plan.Issued)
	before := s.Epoch()

	require.NoError(t, s.Sort(ctx, "label", model.Desc))
	assert.Equal(t, before+1, s.Epoch())
	assert.Equal(t, StateWindowedActive, s.State())
	first, last, ok := s.view.Range()
	require.True(t, ok)
	assert.Equal(t, int64(0), first)
	assert.Equal(t, int64(999), last)

	fake.Release()
	events := drain(t, s, 6)
	assert.Equal(t, 3, countKind(events, EventDiscarded))
	assert.Equal(t, 3, countKind(events, EventChunkLoaded))
	for _, ev := range events {
		if ev.Kind == EventChunkLoaded {
			assert.Equal(t, s.Epoch(), ev.Epoch)
		}
	}

	assert.ElementsMatch(t, []int{0, 1, 2}, s.store.Indices())
	assert.Equal(t, int64(3), s.Stats().Cache.Discarded)
	assert.Equal(t, "row-0", s.Cell(0, 1).Value)

	var sorted bool
	for _, c := range fake.Calls() {
		if strings.Contains(c.SQL, `ORDER BY "label" DESC`) {
			sorted = true
		}
	}
	assert.True(t, sorted)
	assert.Equal(t, model.SortSpec{Column: "label", Direction: model.Desc}, s.Query().Sort)
}

func TestSession_RerunKeepsRange(t *testing.T) {
	fake := backendtest.New(10_000_000)
	s := newSession(t, fake, nil)
	ctx := context.Background()

	require.NoError(t, s.Run(ctx, "SELECT * FROM big"))
	s.OnVisibleRangeChanged(5000, 5999)
	drain(t, s, 3)

	require.NoError(t, s.Rerun(ctx))
	assert.Equal(t, int64(2), s.Epoch())
	first, _, _ := s.view.Range()
	assert.Equal(t, int64(5000), first)
	assert.Equal(t, model.CellLoading, s.Cell(5000, 0).State)

	drain(t, s, 3)
	assert.Equal(t, int64(5000), s.Cell(5000, 0).Value)
}

func TestSession_ProbeTimeoutRunsEager(t *testing.T) {
	fake := backendtest.New(10_000_000)
	fake.DelayCount(time.Second)
	s := newSession(t, fake, func(c *config.LazyConfig) {
		c.ProbeTimeout = config.Duration(20 * time.Millisecond)
	})

	require.NoError(t, s.Run(context.Background(), "SELECT * FROM big"))
	assert.Equal(t, model.ModeEager, s.ModeIndicator())
	require.Len(t, s.Warnings(), 1)
	assert.True(t, xerrors.Is(s.Warnings()[0], xerrors.ProbeTimeout))
	assert.False(t, s.TotalRowEstimate().Known)
}

func TestSession_RewriteFailure(t *testing.T) {
	s := newSession(t, backendtest.New(10), nil)
	err := s.Run(context.Background(), "  ; ")
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, xerrors.RewriteFailure))
	assert.Equal(t, StateFailed, s.State())
	assert.Equal(t, model.CellError, s.Cell(0, 0).State)
	assert.Equal(t, err, s.Err())
}

func TestSession_SortWithoutQuery(t *testing.T) {
	s := newSession(t, backendtest.New(10), nil)
	assert.Error(t, s.Sort(context.Background(), "id", model.Asc))
	assert.Error(t, s.Rerun(context.Background()))
}

func TestSession_WindowFailureIsScopedToChunk(t *testing.T) {
	fake := backendtest.New(10_000_000)
	fake.FailWindow(1000, errors.New("connection reset"))
	s := newSession(t, fake, func(c *config.LazyConfig) { c.PrefetchAfter = 0 })
	ctx := context.Background()

	require.NoError(t, s.Run(ctx, "SELECT * FROM big"))
	s.OnVisibleRangeChanged(900, 1100)
	events := drain(t, s, 2)
	assert.Equal(t, 1, countKind(events, EventChunkFailed))
	assert.Equal(t, 1, countKind(events, EventChunkLoaded))

	assert.Equal(t, model.CellValue, s.Cell(900, 0).State)
	failed := s.Cell(1000, 0)
	assert.Equal(t, model.CellError, failed.State)
	assert.True(t, xerrors.Is(failed.Err, xerrors.WindowLoadFailure))

	fake.ClearFailures()
	plan := s.OnVisibleRangeChanged(900, 1100)
	assert.Equal(t, []int{1}, plan.Issued)
	drain(t, s, 1)
	assert.Equal(t, int64(1000), s.Cell(1000, 0).Value)
}

func TestSession_SchemaChangeMarksStale(t *testing.T) {
	s := newSession(t, backendtest.New(0), nil)
	require.NoError(t, s.Run(context.Background(), "CREATE TABLE t (id INTEGER)"))
	assert.True(t, s.SchemaStale())
	assert.Equal(t, model.ModeEager, s.ModeIndicator())
	s.MarkSchemaFresh()
	assert.False(t, s.SchemaStale())
}

func TestSession_DisabledLazyLoading(t *testing.T) {
	fake := backendtest.New(10_000_000)
	s := newSession(t, fake, func(c *config.LazyConfig) { c.Enabled = false })
	require.NoError(t, s.Run(context.Background(), "SELECT * FROM big"))
	assert.Equal(t, model.ModeEager, s.ModeIndicator())
	assert.Equal(t, int64(0), fake.CountCalls())
}

func TestSession_CheckRangeRejectsSpansWiderThanCache(t *testing.T) {
	fake := backendtest.New(10_000)
	s := newSession(t, fake, func(c *config.LazyConfig) {
		c.Threshold = 100
		c.ChunkSize = 100
		c.CacheCapacity = 2
		c.PrefetchAfter = 0
	})
	require.NoError(t, s.Run(context.Background(), "SELECT * FROM big"))
	require.Equal(t, StateWindowedActive, s.State())

	assert.Equal(t, int64(101), s.MaxVisibleRows())
	err := s.CheckRange(0, 299)
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, xerrors.InvalidConfiguration))
	assert.True(t, xerrors.Is(s.CheckRange(50, 151), xerrors.InvalidConfiguration))

	// The widest accepted range spans two chunks and stays fully cached.
	require.NoError(t, s.CheckRange(50, 150))
	plan := s.OnVisibleRangeChanged(50, 150)
	assert.Equal(t, []int{0, 1}, plan.Pinned)
	drain(t, s, len(plan.Issued))
	for _, row := range []int64{50, 99, 100, 150} {
		cell := s.Cell(row, 0)
		require.Equal(t, model.CellValue, cell.State, "row %d", row)
		assert.Equal(t, row, cell.Value)
	}
	assert.Equal(t, int64(0), s.Stats().Cache.InFlight)
}
