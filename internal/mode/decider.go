// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package mode decides whether a query result is loaded whole or paged
// through the chunk cache.
package mode

import (
	"context"
	"errors"
	"time"

	"rowscope/cli/internal/backend"
	xerrors "rowscope/cli/internal/errors"
	"rowscope/cli/internal/metrics"
	"rowscope/cli/internal/model"
	"rowscope/cli/internal/query"
)

// Decision is the outcome of Decide.
type Decision struct {
	Mode     model.Mode
	Shape    query.Shape
	Estimate model.Estimate
	// Warning is set when the probe failed or timed out and the decision fell
	// back to EAGER.
	Warning error
	Elapsed time.Duration
}

// Decider runs the count probe and applies the threshold.
type Decider struct {
	Port         backend.Port
	Rewriter     query.Rewriter
	Threshold    int64
	Enabled      bool
	ProbeTimeout time.Duration
	Metrics      *metrics.Metrics

	now func() time.Time
}

// Decide picks the loading mode for d.
func (dc *Decider) Decide(ctx context.Context, d query.Descriptor) (Decision, error) {
	if dc.ProbeTimeout <= 0 {
		return Decision{}, xerrors.New(xerrors.InvalidConfiguration, "probe timeout must be positive")
	}
	shape, err := dc.Rewriter.Classify(d.Base)
	if err != nil {
		return Decision{}, err
	}
	dec := Decision{Mode: model.ModeEager, Shape: shape, Estimate: model.Estimate{Epoch: d.Epoch}}
	if !dc.Enabled || shape != query.ShapeSelect {
		dc.Metrics.ObserveProbe(metrics.ProbeSkipped, 0)
		dc.Metrics.ObserveDecision(dec.Mode)
		return dec, nil
	}

	countSQL, err := dc.Rewriter.CountQuery(d.Base)
	if err != nil {
		return Decision{}, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, dc.ProbeTimeout)
	defer cancel()
	start := dc.clock()
	n, err := dc.Port.Count(probeCtx, countSQL)
	dec.Elapsed = dc.clock().Sub(start)

	switch {
	case err == nil:
		dec.Estimate.Value = n
		dec.Estimate.Known = true
		dec.Estimate.ComputedAt = dc.clock()
		if n > dc.Threshold {
			dec.Mode = model.ModeWindowed
		}
		dc.Metrics.ObserveProbe(metrics.ProbeOK, dec.Elapsed)
	case ctx.Err() != nil:
		// The caller gave up; this is not a probe problem.
		return Decision{}, ctx.Err()
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(probeCtx.Err(), context.DeadlineExceeded):
		dec.Warning = xerrors.Wrap(xerrors.ProbeTimeout, "row count timed out, loading all rows", err)
		dc.Metrics.ObserveProbe(metrics.ProbeTimeout, dec.Elapsed)
	default:
		dec.Warning = xerrors.Wrap(xerrors.ProbeFailure, "row count failed, loading all rows", err)
		dc.Metrics.ObserveProbe(metrics.ProbeFailure, dec.Elapsed)
	}
	dc.Metrics.ObserveDecision(dec.Mode)
	return dec, nil
}

func (dc *Decider) clock() time.Time {
	if dc.now != nil {
		return dc.now()
	}
	return time.Now()
}
