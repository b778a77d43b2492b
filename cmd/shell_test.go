package cmd

import (
	"context"
	"strings"
	"testing"

	"rowscope/cli/internal/backend/backendtest"
	"rowscope/cli/internal/config"
	xerrors "rowscope/cli/internal/errors"
	"rowscope/cli/internal/model"
	"rowscope/cli/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShell_FeedAccumulatesUntilSemicolon(t *testing.T) {
	sh := &shell{}
	var buf strings.Builder

	_, ok := sh.feed(&buf, "SELECT *")
	assert.False(t, ok)
	_, ok = sh.feed(&buf, "  FROM t")
	assert.False(t, ok)
	stmt, ok := sh.feed(&buf, "WHERE id > 1;")
	require.True(t, ok)
	assert.Equal(t, "SELECT *\n  FROM t\nWHERE id > 1;", stmt)
	assert.Zero(t, buf.Len())

	stmt, ok = sh.feed(&buf, `  \sort id desc  `)
	require.True(t, ok)
	assert.Equal(t, `\sort id desc`, stmt)

	_, ok = sh.feed(&buf, "   ")
	assert.False(t, ok)
}

func TestParseSortArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		column  string
		dir     model.SortDirection
		wantErr bool
	}{
		{name: "column only", args: []string{"price"}, column: "price", dir: model.Asc},
		{name: "descending", args: []string{"price", "DESC"}, column: "price", dir: model.Desc},
		{name: "bad direction", args: []string{"price", "sideways"}, wantErr: true},
		{name: "missing column", args: nil, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			column, dir, err := parseSortArgs(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.column, column)
			assert.Equal(t, tt.dir, dir)
		})
	}
}

func TestShell_CompleteAndCommands(t *testing.T) {
	fake := backendtest.New(30)
	s, err := session.New(config.DefaultLazy(), fake, session.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	sh := &shell{s: s, port: fake, pageSize: 10}

	assert.Equal(t, []string{`\sort`, `\stats`}, sh.complete(`\s`))

	ctx := context.Background()
	_, err = sh.exec(ctx, `\page 1`)
	assert.Error(t, err, "no query yet")

	quit, err := sh.exec(ctx, "SELECT * FROM t;")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Equal(t, model.ModeEager, s.ModeIndicator())
	assert.Equal(t, []string{`\sort label`}, sh.complete(`\sort la`))

	_, err = sh.exec(ctx, `\page 3`)
	assert.NoError(t, err)
	_, err = sh.exec(ctx, `\page 4`)
	assert.Error(t, err, "past the end")

	_, err = sh.exec(ctx, `\sort label desc`)
	require.NoError(t, err)
	assert.Equal(t, model.SortSpec{Column: "label", Direction: model.Desc}, s.Query().Sort)

	_, err = sh.exec(ctx, `\bogus`)
	assert.Error(t, err)

	quit, err = sh.exec(ctx, `\q`)
	require.NoError(t, err)
	assert.True(t, quit)
}

func TestShell_PageWiderThanCacheIsRejected(t *testing.T) {
	cfg := config.DefaultLazy()
	cfg.Threshold = 100
	cfg.ChunkSize = 100
	cfg.CacheCapacity = 2
	cfg.PrefetchAfter = 0
	fake := backendtest.New(10_000)
	s, err := session.New(cfg, fake, session.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	sh := &shell{s: s, port: fake, pageSize: 300}
	ctx := context.Background()
	_, err = sh.exec(ctx, "SELECT * FROM t;")
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, xerrors.InvalidConfiguration))
	assert.Equal(t, model.ModeWindowed, s.ModeIndicator())

	sh.pageSize = 100
	_, err = sh.exec(ctx, `\page 3`)
	require.NoError(t, err)
	assert.Equal(t, int64(250), s.Cell(250, 0).Value)
}

func TestResolveDSN_Precedence(t *testing.T) {
	t.Setenv("ROWSCOPE_DSN", "sqlite:///tmp/env.db")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db")

	old := dsnFlag
	t.Cleanup(func() { dsnFlag = old })

	dsnFlag = "sqlite:///tmp/flag.db"
	raw, source, err := resolveDSN()
	require.NoError(t, err)
	assert.Equal(t, "sqlite:///tmp/flag.db", raw)
	assert.Equal(t, "--dsn flag", source)

	dsnFlag = ""
	raw, source, err = resolveDSN()
	require.NoError(t, err)
	assert.Equal(t, "sqlite:///tmp/env.db", raw)
	assert.Contains(t, source, "ROWSCOPE_DSN")

	t.Setenv("ROWSCOPE_DSN", "")
	raw, _, err = resolveDSN()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost/db", raw)
}
