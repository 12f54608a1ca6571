package model

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Pool holds a fixed set of long-lived interpreters. Each interpreter runs at
// most one Invoke at a time; callers beyond the pool size wait in Acquire.
// Pool itself is safe for concurrent use.
type Pool struct {
	logger *zap.Logger
	sem    *semaphore.Weighted
	size   int

	mu     sync.Mutex
	idle   []Interpreter
	all    []Interpreter
	closed bool
}

// NewPool loads size interpreters up front. If any load fails the ones
// already loaded are closed.
func NewPool(ctx context.Context, loader Loader, size int, logger *zap.Logger) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("pool size must be positive, got %d", size)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pool{
		logger: logger,
		sem:    semaphore.NewWeighted(int64(size)),
		size:   size,
	}
	for i := 0; i < size; i++ {
		interp, err := loader.Load(ctx)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.all = append(p.all, interp)
		p.idle = append(p.idle, interp)
	}
	logger.Info("interpreter pool ready", zap.Int("size", size))
	return p, nil
}

func (p *Pool) Size() int {
	return p.size
}

// Invoke runs input on an idle interpreter, waiting for one if all are busy.
func (p *Pool) Invoke(ctx context.Context, input []byte) ([]byte, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: waiting for interpreter: %w", ErrInterpreter, err)
	}
	defer p.sem.Release(1)

	interp, err := p.take()
	if err != nil {
		return nil, err
	}
	defer p.put(interp)

	return interp.Invoke(ctx, input)
}

func (p *Pool) take() (Interpreter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("%w: pool closed", ErrInterpreter)
	}
	n := len(p.idle)
	interp := p.idle[n-1]
	p.idle = p.idle[:n-1]
	return interp, nil
}

func (p *Pool) put(interp Interpreter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idle = append(p.idle, interp)
}

// Close waits for in-flight invocations and closes every interpreter.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	// drain: once all permits are held nothing is running
	if err := p.sem.Acquire(context.Background(), int64(p.size)); err != nil {
		return err
	}
	defer p.sem.Release(int64(p.size))

	var firstErr error
	for _, interp := range p.all {
		if err := interp.Close(); err != nil {
			p.logger.Warn("closing interpreter", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	p.all, p.idle = nil, nil
	return firstErr
}

// PerRequest loads a fresh interpreter for every Invoke and closes it before
// returning. Nothing is shared between calls.
type PerRequest struct {
	Loader Loader
}

func (p PerRequest) Invoke(ctx context.Context, input []byte) ([]byte, error) {
	interp, err := p.Loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	defer interp.Close()
	return interp.Invoke(ctx, input)
}

func (PerRequest) Close() error {
	return nil
}
