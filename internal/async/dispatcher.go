// Package async runs functions in the background with a bounded number of
// concurrent workers.
package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/getout/app/internal/logger"
)

// ErrClosed is returned by Submit after Shutdown has been called.
var ErrClosed = errors.New("async dispatcher is shut down")

// Func is a unit of asynchronous work.
type Func func(ctx context.Context) error

// Dispatcher executes submitted functions on at most maxWorkers goroutines.
// Failures are logged and never propagated to other work.
type Dispatcher struct {
	logger *slog.Logger
	group  *errgroup.Group
	slots  chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewDispatcher creates a dispatcher. Work receives a context that is
// cancelled when Shutdown gives up waiting.
func NewDispatcher(log *slog.Logger, maxWorkers int) *Dispatcher {
	if log == nil {
		log = logger.Discard()
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		logger: log.With("component", "async"),
		group:  &errgroup.Group{},
		slots:  make(chan struct{}, maxWorkers),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Submit queues fn under name. It blocks while all workers are busy and
// returns ErrClosed if Shutdown is called before a worker frees up.
func (d *Dispatcher) Submit(name string, fn Func) error {
	select {
	case d.slots <- struct{}{}:
	case <-d.done:
		return ErrClosed
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		<-d.slots
		return ErrClosed
	}

	d.group.Go(func() error {
		defer func() { <-d.slots }()
		d.run(name, fn)
		return nil
	})
	return nil
}

func (d *Dispatcher) run(name string, fn Func) {
	log := d.logger.With("job", name)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("Async job panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()

	log.Debug("Running async job")
	if err := fn(d.ctx); err != nil {
		log.Error("Async job failed", "error", err, "duration", time.Since(start))
		return
	}
	log.Debug("Finished async job", "duration", time.Since(start))
}

// Shutdown stops accepting work and waits for in-flight jobs. If ctx expires
// first, running jobs see their context cancelled and ctx.Err() is returned.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.done)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = d.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		d.logger.Info("Async dispatcher drained.")
		return nil
	case <-ctx.Done():
		d.cancel()
		d.logger.Warn("Async dispatcher shutdown timed out, cancelled running jobs", "error", ctx.Err())
		return ctx.Err()
	}
}
