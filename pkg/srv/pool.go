package srv

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sandevgo/rpgai/pkg/log"
)

var (
	ErrPoolFull   = errors.New("background queue is full")
	ErrPoolClosed = errors.New("background pool is closed")
)

type Job func(ctx context.Context) error

type task struct {
	name    string
	timeout time.Duration
	fn      Job
}

// Pool runs detached background jobs on a fixed number of workers. Jobs
// never inherit the submitter's cancellation; they get their own timeout.
type Pool struct {
	workers int
	queue   chan task
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	started chan struct{}
	baseCtx context.Context
}

func NewPool(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{
		workers: workers,
		queue:   make(chan task, queueSize),
		started: make(chan struct{}),
	}
}

// Submit enqueues fn without blocking. A full queue drops the job.
func (p *Pool) Submit(ctx context.Context, name string, timeout time.Duration, fn Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.queue <- task{name: name, timeout: timeout, fn: fn}:
		return nil
	default:
		log.FromCtx(ctx).Warn().Str("job", name).Msg("background queue full, job dropped")
		return ErrPoolFull
	}
}

func (p *Pool) Start(ctx context.Context) error {
	p.baseCtx = context.WithoutCancel(ctx)
	// Shutdown waits on wg once started is closed
	p.wg.Add(p.workers)
	close(p.started)

	for i := 0; i < p.workers; i++ {
		go p.work()
	}

	<-ctx.Done()
	return nil
}

func (p *Pool) work() {
	defer p.wg.Done()
	for t := range p.queue {
		p.run(t)
	}
}

func (p *Pool) run(t task) {
	ctx := p.baseCtx
	var cancel context.CancelFunc
	if t.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	logger := log.FromCtx(ctx)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Str("job", t.name).Interface("panic", r).Msg("background job panicked")
		}
	}()

	if err := t.fn(ctx); err != nil {
		logger.Warn().Err(err).Str("job", t.name).Dur("took", time.Since(start)).Msg("background job failed")
		return
	}
	logger.Debug().Str("job", t.name).Dur("took", time.Since(start)).Msg("background job done")
}

// Shutdown stops accepting work and waits for queued jobs until ctx ends.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.started:
	default:
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
