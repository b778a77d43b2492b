package sqlexec

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDemo(t *testing.T) {
	ctx := context.Background()
	p, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "demo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	var progress []int64
	require.NoError(t, GenerateDemo(ctx, p, 2500, func(n int64) { progress = append(progress, n) }))
	assert.Equal(t, []int64{2500}, progress)

	n, err := p.Count(ctx, "SELECT COUNT(*) FROM large_sales_data")
	require.NoError(t, err)
	assert.Equal(t, int64(2500), n)

	w, err := p.Query(ctx, "SELECT status FROM large_sales_data WHERE status NOT IN ('Completed', 'Pending', 'Cancelled')")
	require.NoError(t, err)
	assert.Empty(t, w.Rows)

	schema, err := p.Schema(ctx)
	require.NoError(t, err)
	var names []string
	for _, ix := range schema.Indexes {
		names = append(names, ix.Name)
	}
	assert.ElementsMatch(t, []string{"idx_sales_customer", "idx_sales_date", "idx_sales_status"}, names)

	// Running again replaces the table.
	require.NoError(t, GenerateDemo(ctx, p, 10, nil))
	n, err = p.Count(ctx, "SELECT COUNT(*) FROM large_sales_data")
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
}

func TestGenerateDemo_RejectsEmpty(t *testing.T) {
	p, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "demo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	assert.Error(t, GenerateDemo(context.Background(), p, 0, nil))
}
