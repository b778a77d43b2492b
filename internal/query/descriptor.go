// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package query owns the text transformations applied to a user query and the
// epoch counter that versions it.
//
// The rewriter never plans or optimizes SQL: a base query is only ever wrapped
// as a subquery under COUNT(*), under ORDER BY, or under LIMIT/OFFSET. Every
// change to the logical query (re-run, re-sort) bumps the epoch, and work tagged
// with an older epoch is discarded when it completes.
package query

import (
	"sync/atomic"

	"rowscope/cli/internal/model"
)

// Descriptor is an immutable version of a logical query.
type Descriptor struct {
	Base  string
	Sort  model.SortSpec
	Epoch int64
}

// NewDescriptor builds a descriptor for base text and sort at the given epoch.
func NewDescriptor(base string, sort model.SortSpec, epoch int64) Descriptor {
	return Descriptor{Base: base, Sort: sort, Epoch: epoch}
}

// SameQuery reports whether two descriptors describe the same logical query.
// Epochs are ignored.
func (d Descriptor) SameQuery(other Descriptor) bool {
	return d.Base == other.Base && d.Sort == other.Sort
}

// WithSort returns a copy with a new sort and epoch.
func (d Descriptor) WithSort(sort model.SortSpec, epoch int64) Descriptor {
	return Descriptor{Base: d.Base, Sort: sort, Epoch: epoch}
}

// WithEpoch returns a copy tagged with a new epoch.
func (d Descriptor) WithEpoch(epoch int64) Descriptor {
	return Descriptor{Base: d.Base, Sort: d.Sort, Epoch: epoch}
}

// Epochs is a strictly increasing version counter. Values are never reused.
// The zero value is ready to use and reports epoch 0.
type Epochs struct {
	n atomic.Int64
}

// Current returns the current epoch.
func (e *Epochs) Current() int64 { return e.n.Load() }

// Bump advances to and returns the next epoch.
func (e *Epochs) Bump() int64 { return e.n.Add(1) }

// IsCurrent reports whether epoch is still current.
func (e *Epochs) IsCurrent(epoch int64) bool { return e.n.Load() == epoch }
