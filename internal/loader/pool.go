// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package loader runs backend fetches on a bounded worker pool.
//
// Submit never blocks the caller: jobs are appended to a queue that a
// dispatcher goroutine drains into an ants pool of fixed size. Completed jobs
// are delivered on the Results channel so the goroutine owning the cache
// applies every mutation itself. A job whose epoch is no longer current when
// it reaches the front of the queue is completed as stale without calling the
// backend.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"rowscope/cli/internal/backend"
	xerrors "rowscope/cli/internal/errors"
	"rowscope/cli/internal/model"
	"rowscope/cli/internal/query"

	"github.com/panjf2000/ants/v2"
)

// Kind distinguishes window fetches from full loads.
type Kind int

const (
	KindWindow Kind = iota
	KindEager
)

func (k Kind) String() string {
	if k == KindEager {
		return "eager"
	}
	return "window"
}

// Job is one unit of backend work.
type Job struct {
	Kind  Kind
	Index int
	Epoch int64
	Query query.Descriptor
}

// Result is the outcome of a Job.
type Result struct {
	Job     Job
	Window  model.Window
	Err     error
	Stale   bool
	Elapsed time.Duration
}

// EpochSource reports the current query epoch.
type EpochSource interface {
	Current() int64
}

// Options configures a Pool.
type Options struct {
	Workers      int
	ChunkSize    int
	LoadTimeout  time.Duration
	ResultBuffer int
	Epochs       EpochSource
	Logger       *slog.Logger
}

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("loader: pool closed")

// Pool executes jobs against a backend Port.
type Pool struct {
	port    backend.Port
	rw      query.Rewriter
	opts    Options
	log     *slog.Logger
	workers *ants.Pool

	mu     sync.Mutex
	queue  []Job
	closed bool
	wake   chan struct{}

	results chan Result
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// New starts a pool with opts.Workers goroutines.
func New(port backend.Port, rw query.Rewriter, opts Options) (*Pool, error) {
	if opts.Workers <= 0 {
		return nil, xerrors.New(xerrors.InvalidConfiguration, "workers must be positive")
	}
	if opts.ChunkSize <= 0 {
		return nil, xerrors.New(xerrors.InvalidConfiguration, "chunk size must be positive")
	}
	if opts.ResultBuffer <= 0 {
		opts.ResultBuffer = opts.Workers * 4
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	p := &Pool{
		port:    port,
		rw:      rw,
		opts:    opts,
		log:     log,
		wake:    make(chan struct{}, 1),
		results: make(chan Result, opts.ResultBuffer),
		done:    make(chan struct{}),
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())

	workers, err := ants.NewPool(opts.Workers, ants.WithPanicHandler(func(v any) {
		p.log.Error("loader worker panic", "panic", v)
	}))
	if err != nil {
		p.cancel()
		return nil, err
	}
	p.workers = workers
	go p.dispatch()
	return p, nil
}

// Results delivers completed jobs.
func (p *Pool) Results() <-chan Result { return p.results }

// Submit queues a job and returns immediately.
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.queue = append(p.queue, job)
	p.mu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Queued returns the number of jobs waiting for a worker.
func (p *Pool) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Running returns the number of busy workers.
func (p *Pool) Running() int { return p.workers.Running() }

func (p *Pool) pop() (Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return Job{}, false
	}
	job := p.queue[0]
	p.queue[0] = Job{}
	p.queue = p.queue[1:]
	return job, true
}

func (p *Pool) dispatch() {
	defer close(p.done)
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.wake:
		}
		for {
			job, ok := p.pop()
			if !ok {
				break
			}
			if p.opts.Epochs != nil && p.opts.Epochs.Current() != job.Epoch {
				p.deliver(Result{Job: job, Stale: true})
				continue
			}
			// Submit blocks while every worker is busy; the queue keeps
			// accepting jobs meanwhile.
			if err := p.workers.Submit(func() { p.run(job) }); err != nil {
				p.deliver(Result{Job: job, Err: p.wrapErr(job, err)})
			}
			if p.ctx.Err() != nil {
				return
			}
		}
	}
}

func (p *Pool) run(job Job) {
	start := time.Now()
	res := Result{Job: job}
	defer func() {
		if r := recover(); r != nil {
			res.Window = model.Window{}
			res.Err = p.wrapErr(job, fmt.Errorf("panic: %v", r))
		}
		res.Elapsed = time.Since(start)
		p.deliver(res)
	}()

	ctx := p.ctx
	if p.opts.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.LoadTimeout)
		defer cancel()
	}

	var err error
	switch job.Kind {
	case KindEager:
		res.Window, err = p.loadAll(ctx, job)
	default:
		res.Window, err = p.loadWindow(ctx, job)
	}
	if err != nil {
		res.Err = p.wrapErr(job, err)
		p.log.Debug("load failed", "kind", job.Kind, "index", job.Index, "epoch", job.Epoch, "error", err)
		return
	}
	p.log.Debug("load done", "kind", job.Kind, "index", job.Index, "epoch", job.Epoch, "rows", len(res.Window.Rows))
}

func (p *Pool) loadWindow(ctx context.Context, job Job) (model.Window, error) {
	limit := int64(p.opts.ChunkSize)
	offset := int64(job.Index) * limit
	sql, err := p.rw.WindowQuery(job.Query.Base, job.Query.Sort, limit, offset)
	if err != nil {
		return model.Window{}, err
	}
	return p.port.FetchWindow(ctx, sql, offset, limit)
}

func (p *Pool) loadAll(ctx context.Context, job Job) (model.Window, error) {
	sql := job.Query.Base
	if shape, err := p.rw.Classify(sql); err == nil && shape == query.ShapeSelect {
		if sql, err = p.rw.SortedQuery(sql, job.Query.Sort); err != nil {
			return model.Window{}, err
		}
	}
	return p.port.Query(ctx, query.Normalize(sql))
}

func (p *Pool) wrapErr(job Job, err error) error {
	if xerrors.KindOf(err) != "" {
		return err
	}
	if job.Kind == KindEager {
		return xerrors.Wrap(xerrors.EagerLoadFailure, "full result load failed", err)
	}
	return xerrors.Wrap(xerrors.WindowLoadFailure, fmt.Sprintf("chunk %d load failed", job.Index), err)
}

func (p *Pool) deliver(res Result) {
	select {
	case p.results <- res:
	case <-p.ctx.Done():
	}
}

// Close stops dispatching and waits up to three seconds for running loads.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.queue = nil
	p.mu.Unlock()

	p.cancel()
	<-p.done
	return p.workers.ReleaseTimeout(3 * time.Second)
}
