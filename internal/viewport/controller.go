// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package viewport turns visible row ranges into chunk requests.
//
// The Controller is pushed the visible range on every scroll or resize. It pins
// the visible chunks, requests them plus a prefetch margin around them, and
// answers cell lookups from whatever is cached. It never waits for a load: a
// chunk that is not cached yet renders as a loading placeholder.
package viewport

import (
	"rowscope/cli/internal/chunk"
	"rowscope/cli/internal/model"
)

// Options configures a Controller.
type Options struct {
	ChunkSize      int
	PrefetchAfter  int
	PrefetchBefore int
}

// Plan describes what one visible-range push did.
type Plan struct {
	FirstIndex int
	LastIndex  int
	Pinned     []int
	Prefetch   []int
	// Issued lists indices for which a backend load was started.
	Issued []int
}

// Controller maps visible rows to chunk indices.
type Controller struct {
	store *chunk.Store
	opts  Options

	first, last int64
	hasRange    bool
}

// New creates a Controller over store.
func New(store *chunk.Store, opts Options) *Controller {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = store.Options().ChunkSize
	}
	return &Controller{store: store, opts: opts}
}

// IndexOf returns the chunk index holding row.
func (c *Controller) IndexOf(row int64) int { return int(row / int64(c.opts.ChunkSize)) }

// Range returns the last pushed visible range.
func (c *Controller) Range() (first, last int64, ok bool) {
	return c.first, c.last, c.hasRange
}

// Remember records [first, last] as the visible range without loading
// anything. Windowed runs started later push it.
func (c *Controller) Remember(first, last int64) {
	if last < first {
		first, last = last, first
	}
	c.first, c.last, c.hasRange = max(first, 0), max(last, 0), true
}

// Reset forgets the visible range.
func (c *Controller) Reset() {
	c.first, c.last, c.hasRange = 0, 0, false
}

// OnVisibleRangeChanged pins and requests the chunks for rows [first, last]
// of epoch. When total is known, indices past the end are skipped.
func (c *Controller) OnVisibleRangeChanged(first, last, epoch int64, total model.Estimate) Plan {
	if last < first {
		first, last = last, first
	}
	first = max(first, 0)
	last = max(last, 0)
	c.first, c.last, c.hasRange = first, last, true

	maxIndex := -1 // unbounded
	if total.Known {
		if total.Value <= 0 {
			c.store.Unpin()
			return Plan{FirstIndex: 0, LastIndex: -1}
		}
		maxIndex = c.IndexOf(total.Value - 1)
		if last >= total.Value {
			last = total.Value - 1
		}
		if first > last {
			first = last
		}
	}

	plan := Plan{FirstIndex: c.IndexOf(first), LastIndex: c.IndexOf(last)}
	inRange := func(i int) bool { return i >= 0 && (maxIndex < 0 || i <= maxIndex) }

	for i := plan.FirstIndex; i <= plan.LastIndex; i++ {
		plan.Pinned = append(plan.Pinned, i)
	}
	for k := 1; k <= c.opts.PrefetchAfter; k++ {
		if i := plan.LastIndex + k; inRange(i) {
			plan.Prefetch = append(plan.Prefetch, i)
		}
	}
	for k := 1; k <= c.opts.PrefetchBefore; k++ {
		if i := plan.FirstIndex - k; inRange(i) {
			plan.Prefetch = append(plan.Prefetch, i)
		}
	}

	c.store.Pin(plan.FirstIndex, plan.LastIndex)
	for _, i := range plan.Pinned {
		if c.store.Request(i, epoch) {
			plan.Issued = append(plan.Issued, i)
		}
	}
	for _, i := range plan.Prefetch {
		if c.store.Request(i, epoch) {
			plan.Issued = append(plan.Issued, i)
		}
	}
	for _, i := range plan.Pinned {
		c.store.Get(i, epoch)
	}
	return plan
}

// Cell returns the value at (row, col) of epoch without blocking.
func (c *Controller) Cell(row int64, col int, epoch int64, total model.Estimate) model.Cell {
	if row < 0 || col < 0 || (total.Known && row >= total.Value) {
		return model.Cell{State: model.CellOutOfRange}
	}
	index := c.IndexOf(row)
	ch, ok := c.store.Get(index, epoch)
	if !ok {
		if err := c.store.Failure(index); err != nil {
			return model.Cell{State: model.CellError, Err: err}
		}
		return model.Cell{State: model.CellLoading}
	}
	j := row - ch.Offset(c.opts.ChunkSize)
	if j >= int64(len(ch.Rows)) || col >= len(ch.Rows[j]) {
		return model.Cell{State: model.CellOutOfRange}
	}
	return model.Cell{State: model.CellValue, Value: ch.Rows[j][col]}
}
