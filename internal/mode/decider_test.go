package mode

import (
	"context"
	"errors"
	"testing"
	"time"

	"rowscope/cli/internal/backend/backendtest"
	xerrors "rowscope/cli/internal/errors"
	"rowscope/cli/internal/metrics"
	"rowscope/cli/internal/model"
	"rowscope/cli/internal/query"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDecider(fake *backendtest.Fake) *Decider {
	return &Decider{
		Port:         fake,
		Rewriter:     query.NewRewriter(query.DialectSQLite),
		Threshold:    100000,
		Enabled:      true,
		ProbeTimeout: time.Second,
	}
}

func TestDecide_Threshold(t *testing.T) {
	tests := []struct {
		name  string
		total int64
		want  model.Mode
	}{
		{"small result", 50000, model.ModeEager},
		{"exactly threshold", 100000, model.ModeEager},
		{"one over threshold", 100001, model.ModeWindowed},
		{"ten million", 10_000_000, model.ModeWindowed},
		{"empty", 0, model.ModeEager},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := backendtest.New(tt.total)
			d := query.NewDescriptor("SELECT * FROM t", model.SortSpec{}, 3)

			dec, err := newDecider(fake).Decide(context.Background(), d)
			require.NoError(t, err)
			assert.Equal(t, tt.want, dec.Mode)
			assert.True(t, dec.Estimate.Known)
			assert.Equal(t, tt.total, dec.Estimate.Value)
			assert.Equal(t, int64(3), dec.Estimate.Epoch)
			assert.NoError(t, dec.Warning)
			assert.Equal(t, "SELECT COUNT(*) FROM (SELECT * FROM t) AS rowscope_count", fake.LastCount())
		})
	}
}

func TestDecide_ProbeTimeoutFallsBackToEager(t *testing.T) {
	fake := backendtest.New(10_000_000)
	fake.DelayCount(time.Second)
	dc := newDecider(fake)
	dc.ProbeTimeout = 20 * time.Millisecond

	start := time.Now()
	dec, err := dc.Decide(context.Background(), query.NewDescriptor("SELECT * FROM t", model.SortSpec{}, 1))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, model.ModeEager, dec.Mode)
	assert.False(t, dec.Estimate.Known)
	assert.True(t, xerrors.Is(dec.Warning, xerrors.ProbeTimeout))
}

func TestDecide_ProbeFailureFallsBackToEager(t *testing.T) {
	fake := backendtest.New(10_000_000)
	fake.FailCount(errors.New("permission denied"))

	dec, err := newDecider(fake).Decide(context.Background(), query.NewDescriptor("SELECT * FROM t", model.SortSpec{}, 1))
	require.NoError(t, err)
	assert.Equal(t, model.ModeEager, dec.Mode)
	assert.True(t, xerrors.Is(dec.Warning, xerrors.ProbeFailure))
	assert.ErrorContains(t, dec.Warning, "permission denied")
}

func TestDecide_DisabledSkipsProbe(t *testing.T) {
	fake := backendtest.New(10_000_000)
	dc := newDecider(fake)
	dc.Enabled = false

	dec, err := dc.Decide(context.Background(), query.NewDescriptor("SELECT * FROM t", model.SortSpec{}, 1))
	require.NoError(t, err)
	assert.Equal(t, model.ModeEager, dec.Mode)
	assert.Equal(t, int64(0), fake.CountCalls())
}

func TestDecide_NonSelectRunsEager(t *testing.T) {
	fake := backendtest.New(10_000_000)
	dec, err := newDecider(fake).Decide(context.Background(), query.NewDescriptor("PRAGMA table_info(t)", model.SortSpec{}, 1))
	require.NoError(t, err)
	assert.Equal(t, model.ModeEager, dec.Mode)
	assert.Equal(t, query.ShapeOther, dec.Shape)
	assert.Equal(t, int64(0), fake.CountCalls())
}

func TestDecide_RewriteFailureIsReturned(t *testing.T) {
	fake := backendtest.New(10)
	_, err := newDecider(fake).Decide(context.Background(), query.NewDescriptor("  ;  ", model.SortSpec{}, 1))
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, xerrors.RewriteFailure))
	assert.Equal(t, int64(0), fake.CountCalls())
}

func TestDecide_RequiresProbeTimeout(t *testing.T) {
	dc := newDecider(backendtest.New(10))
	dc.ProbeTimeout = 0
	_, err := dc.Decide(context.Background(), query.NewDescriptor("SELECT 1", model.SortSpec{}, 1))
	assert.True(t, xerrors.Is(err, xerrors.InvalidConfiguration))
}

func TestDecide_CallerCancellation(t *testing.T) {
	fake := backendtest.New(10)
	fake.DelayCount(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newDecider(fake).Decide(ctx, query.NewDescriptor("SELECT 1", model.SortSpec{}, 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecide_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	dc := newDecider(backendtest.New(200000))
	dc.Metrics = metrics.New(reg)

	_, err := dc.Decide(context.Background(), query.NewDescriptor("SELECT 1", model.SortSpec{}, 1))
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "rowscope_mode_decisions_total", "rowscope_count_probe_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
