// Package backendtest provides an in-memory backend.Port for tests.
package backendtest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"rowscope/cli/internal/model"
	"rowscope/cli/internal/query"
)

// Call records one FetchWindow invocation.
type Call struct {
	SQL    string
	Offset int64
	Limit  int64
}

// Fake serves a synthetic result of Total rows. Row i is {i, "row-i"}.
// Fields may be set before first use; hooks are read under a lock.
type Fake struct {
	Total   int64
	Columns []string

	mu         sync.Mutex
	countErr   error
	countDelay time.Duration
	failAt     map[int64]error
	gate       chan struct{}
	calls      []Call
	counts     atomic.Int64
	queries    atomic.Int64
	dialect    query.Dialect
	lastQuery  string
	lastCount  string
	fetchPanic bool
}

// New returns a fake with total rows and columns id, label.
func New(total int64) *Fake {
	return &Fake{
		Total:   total,
		Columns: []string{"id", "label"},
		failAt:  map[int64]error{},
		dialect: query.DialectSQLite,
	}
}

// FailCount makes Count return err.
func (f *Fake) FailCount(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countErr = err
}

// DelayCount makes Count sleep for d or until ctx is done.
func (f *Fake) DelayCount(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countDelay = d
}

// FailWindow makes FetchWindow at offset return err.
func (f *Fake) FailWindow(offset int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAt[offset] = err
}

// ClearFailures removes all window failures.
func (f *Fake) ClearFailures() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAt = map[int64]error{}
}

// PanicOnFetch makes FetchWindow panic.
func (f *Fake) PanicOnFetch() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchPanic = true
}

// Hold makes FetchWindow block until Release is called.
func (f *Fake) Hold() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
}

// Release unblocks fetches held by Hold.
func (f *Fake) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
}

// Calls returns the FetchWindow calls made so far.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Offsets returns the offsets of FetchWindow calls made so far.
func (f *Fake) Offsets() []int64 {
	calls := f.Calls()
	out := make([]int64, len(calls))
	for i, c := range calls {
		out[i] = c.Offset
	}
	return out
}

// CountCalls returns how many count probes ran.
func (f *Fake) CountCalls() int64 { return f.counts.Load() }

// QueryCalls returns how many full queries ran.
func (f *Fake) QueryCalls() int64 { return f.queries.Load() }

// LastQuery returns the SQL of the last Query call.
func (f *Fake) LastQuery() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastQuery
}

// LastCount returns the SQL of the last Count call.
func (f *Fake) LastCount() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastCount
}

func (f *Fake) Count(ctx context.Context, sql string) (int64, error) {
	f.counts.Add(1)
	f.mu.Lock()
	err, delay := f.countErr, f.countDelay
	f.lastCount = sql
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if err != nil {
		return 0, err
	}
	return f.Total, nil
}

func (f *Fake) FetchWindow(ctx context.Context, sql string, offset, limit int64) (model.Window, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{SQL: sql, Offset: offset, Limit: limit})
	gate, err, boom := f.gate, f.failAt[offset], f.fetchPanic
	f.mu.Unlock()
	if boom {
		panic(fmt.Sprintf("fetch at offset %d", offset))
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return model.Window{}, ctx.Err()
		}
	}
	if err != nil {
		return model.Window{}, err
	}
	return f.rows(offset, limit), nil
}

func (f *Fake) Query(ctx context.Context, sql string) (model.Window, error) {
	f.queries.Add(1)
	f.mu.Lock()
	f.lastQuery = sql
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return model.Window{}, err
	}
	return f.rows(0, f.Total), nil
}

func (f *Fake) rows(offset, limit int64) model.Window {
	end := min(offset+limit, f.Total)
	w := model.Window{Columns: f.Columns}
	for i := offset; i < end; i++ {
		w.Rows = append(w.Rows, model.Row{i, fmt.Sprintf("row-%d", i)})
	}
	return w
}

// SetDialect changes the reported dialect.
func (f *Fake) SetDialect(d query.Dialect) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dialect = d
}

func (f *Fake) Dialect() query.Dialect {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dialect
}

func (f *Fake) Close() error { return nil }
