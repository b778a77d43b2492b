package chunk

import (
	"errors"
	"testing"
	"time"

	"rowscope/cli/internal/model"
	"rowscope/cli/internal/query"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type load struct {
	index int
	epoch int64
}

type recordingLoader struct {
	calls []load
}

func (l *recordingLoader) Load(index int, epoch int64) {
	l.calls = append(l.calls, load{index: index, epoch: epoch})
}

func (l *recordingLoader) indices() []int {
	out := make([]int, 0, len(l.calls))
	for _, c := range l.calls {
		out = append(out, c.index)
	}
	return out
}

// window builds rows whose only value is their absolute offset.
func window(index, chunkSize int) model.Window {
	rows := make([]model.Row, chunkSize)
	for j := range rows {
		rows[j] = model.Row{int64(index*chunkSize + j)}
	}
	return model.Window{Columns: []string{"offset"}, Rows: rows}
}

func newStore(t *testing.T, capacity, chunkSize int) (*Store, *query.Epochs, *recordingLoader) {
	t.Helper()
	epochs := &query.Epochs{}
	epochs.Bump()
	loader := &recordingLoader{}
	s := New(Options{Capacity: capacity, ChunkSize: chunkSize}, epochs, loader)
	clock := time.Unix(0, 0)
	s.now = func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	}
	return s, epochs, loader
}

func TestStore_RequestIsSingleFlight(t *testing.T) {
	t.Parallel()

	s, epochs, loader := newStore(t, 50, 10)
	e := epochs.Current()

	assert.True(t, s.Request(4, e))
	assert.False(t, s.Request(4, e))
	assert.False(t, s.Request(4, e))
	require.Len(t, loader.calls, 1)
	assert.True(t, s.InFlight(4, e))
	assert.Equal(t, 1, s.InFlightCount())

	require.True(t, s.OnLoaded(4, e, window(4, 10)))
	assert.False(t, s.InFlight(4, e))
	assert.False(t, s.Request(4, e), "cached chunk must not be reloaded")
	assert.Len(t, loader.calls, 1)
}

func TestStore_RowsMatchAbsoluteOffsets(t *testing.T) {
	t.Parallel()

	const chunkSize = 25
	s, epochs, _ := newStore(t, 10, chunkSize)
	e := epochs.Current()
	for i := 0; i < 5; i++ {
		s.Request(i, e)
		s.OnLoaded(i, e, window(i, chunkSize))
	}
	for i := 0; i < 5; i++ {
		c, ok := s.Get(i, e)
		require.True(t, ok)
		for j, row := range c.Rows {
			assert.Equal(t, c.Offset(chunkSize)+int64(j), row[0])
		}
	}
}

func TestStore_TruncatesOversizedWindows(t *testing.T) {
	t.Parallel()

	s, epochs, _ := newStore(t, 10, 5)
	e := epochs.Current()
	s.OnLoaded(0, e, window(0, 8))
	c, ok := s.Get(0, e)
	require.True(t, ok)
	assert.Len(t, c.Rows, 5)
}

func TestStore_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	s, epochs, _ := newStore(t, 3, 10)
	e := epochs.Current()
	for i := 0; i < 3; i++ {
		s.OnLoaded(i, e, window(i, 10))
	}
	_, ok := s.Get(0, e)
	require.True(t, ok)

	s.OnLoaded(3, e, window(3, 10))
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []int{2, 0, 3}, s.Indices())
	_, ok = s.Get(1, e)
	assert.False(t, ok, "index 1 was least recently used")
	assert.Equal(t, int64(1), s.Stats().Evictions)
}

func TestStore_GetRefreshesLastAccess(t *testing.T) {
	t.Parallel()

	s, epochs, _ := newStore(t, 3, 10)
	e := epochs.Current()
	s.OnLoaded(0, e, window(0, 10))
	before, ok := s.LastAccess(0)
	require.True(t, ok)

	_, ok = s.Get(0, e)
	require.True(t, ok)
	after, _ := s.LastAccess(0)
	assert.True(t, after.After(before))
}

func TestStore_NeverEvictsPinned(t *testing.T) {
	t.Parallel()

	s, epochs, _ := newStore(t, 3, 10)
	e := epochs.Current()
	s.Pin(0, 1)
	for i := 0; i < 5; i++ {
		s.OnLoaded(i, e, window(i, 10))
		assert.LessOrEqual(t, s.Len(), 3)
	}
	_, ok0 := s.Get(0, e)
	_, ok1 := s.Get(1, e)
	_, ok4 := s.Get(4, e)
	assert.True(t, ok0)
	assert.True(t, ok1)
	assert.True(t, ok4)
}

func TestStore_CapacityWinsWhenEverythingIsPinned(t *testing.T) {
	t.Parallel()

	s, epochs, _ := newStore(t, 2, 10)
	e := epochs.Current()
	s.Pin(0, 2)
	s.OnLoaded(0, e, window(0, 10))
	s.OnLoaded(1, e, window(1, 10))
	assert.True(t, s.OnLoaded(2, e, window(2, 10)), "a visible chunk displaces the oldest pinned one")
	assert.Equal(t, []int{1, 2}, s.Indices())

	s.Pin(1, 2)
	assert.False(t, s.OnLoaded(7, e, window(7, 10)), "an invisible chunk is dropped")
	assert.Equal(t, []int{1, 2}, s.Indices())
	assert.Equal(t, 2, s.Len())
}

func TestStore_SequentialScrollStabilizesAtCapacity(t *testing.T) {
	t.Parallel()

	s, epochs, _ := newStore(t, 50, 1000)
	e := epochs.Current()
	for i := 0; i < 60; i++ {
		s.Pin(i, i)
		require.True(t, s.Request(i, e))
		require.True(t, s.OnLoaded(i, e, window(i, 1)))
		_, ok := s.Get(i, e)
		require.True(t, ok)
		require.LessOrEqual(t, s.Len(), 50)
	}
	assert.Equal(t, 50, s.Len())
	want := make([]int, 0, 50)
	for i := 10; i < 60; i++ {
		want = append(want, i)
	}
	assert.Equal(t, want, s.Indices(), "chunks 0..9 were evicted in visitation order")
	assert.Equal(t, int64(10), s.Stats().Evictions)
}

func TestStore_InvalidateEpochDiscardsLateLoads(t *testing.T) {
	t.Parallel()

	s, epochs, loader := newStore(t, 50, 10)
	old := epochs.Current()
	for i := 0; i < 4; i++ {
		s.Request(i, old)
	}
	s.OnLoaded(0, old, window(0, 10))
	s.OnLoaded(1, old, window(1, 10))

	next := epochs.Bump()
	s.InvalidateEpoch()
	assert.Equal(t, old+1, next)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.InFlightCount())

	assert.False(t, s.OnLoaded(3, old, window(3, 10)), "late load from the old epoch")
	_, ok := s.Get(3, old)
	assert.False(t, ok)
	_, ok = s.Get(3, next)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, int64(1), s.Stats().Discarded)

	// The new epoch requests index 3 again.
	assert.True(t, s.Request(3, next))
	assert.Equal(t, load{index: 3, epoch: next}, loader.calls[len(loader.calls)-1])
}

func TestStore_RequestForStaleEpochIsIgnored(t *testing.T) {
	t.Parallel()

	s, epochs, loader := newStore(t, 50, 10)
	old := epochs.Current()
	epochs.Bump()
	s.InvalidateEpoch()
	assert.False(t, s.Request(0, old))
	assert.Empty(t, loader.calls)
}

func TestStore_FailureIsScopedAndRetriedOnRequest(t *testing.T) {
	t.Parallel()

	s, epochs, loader := newStore(t, 50, 10)
	e := epochs.Current()
	s.Request(0, e)
	s.Request(1, e)
	s.OnLoaded(0, e, window(0, 10))
	boom := errors.New("connection reset")
	assert.True(t, s.OnFailed(1, e, boom))

	assert.ErrorIs(t, s.Failure(1), boom)
	assert.NoError(t, s.Failure(0))
	_, ok := s.Get(0, e)
	assert.True(t, ok, "other chunks remain usable")
	assert.False(t, s.InFlight(1, e))
	assert.Equal(t, 1, s.FailedCount())
	assert.Equal(t, []int{0, 1}, loader.indices(), "no automatic retry")

	assert.True(t, s.Request(1, e))
	assert.NoError(t, s.Failure(1), "a re-request clears the error mark")
	assert.Equal(t, []int{0, 1, 1}, loader.indices())
}

func TestStore_StaleFailureIsDiscarded(t *testing.T) {
	t.Parallel()

	s, epochs, _ := newStore(t, 50, 10)
	old := epochs.Current()
	s.Request(2, old)
	epochs.Bump()
	s.InvalidateEpoch()
	assert.False(t, s.OnFailed(2, old, errors.New("late")))
	assert.NoError(t, s.Failure(2))
}

func TestStore_GetWithOldEpochKeepsCurrentEntry(t *testing.T) {
	t.Parallel()

	s, epochs, _ := newStore(t, 50, 10)
	old := epochs.Current()
	next := epochs.Bump()
	s.InvalidateEpoch()
	s.OnLoaded(0, next, window(0, 10))

	_, ok := s.Get(0, old)
	assert.False(t, ok)
	_, ok = s.Get(0, next)
	assert.True(t, ok)
}

func TestStats_HitRate(t *testing.T) {
	t.Parallel()

	assert.Zero(t, Stats{}.HitRate())
	assert.InDelta(t, 0.75, Stats{Hits: 3, Misses: 1}.HitRate(), 1e-9)
}
