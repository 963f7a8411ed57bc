package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/events"
)

const defaultLoopQueueSize = 256

var (
	ErrLoopStopped = errors.New("task loop stopped")
	ErrLoopBusy    = errors.New("task loop queue full")
)

// TaskLoop runs submitted tasks one at a time on a single goroutine. It is
// the only place engine operations execute.
type TaskLoop struct {
	mu      sync.Mutex
	tasks   chan Task
	quit    chan struct{}
	done    chan struct{}
	stopped bool
	started bool

	pub    events.Publisher
	logger *slog.Logger
}

// LoopOption configures a TaskLoop.
type LoopOption func(*TaskLoop)

// WithQueueSize sets how many tasks may wait before Submit reports
// ErrLoopBusy.
func WithQueueSize(n int) LoopOption {
	return func(l *TaskLoop) {
		if n > 0 {
			l.tasks = make(chan Task, n)
		}
	}
}

// WithLogger sets the loop's logger.
func WithLogger(logger *slog.Logger) LoopOption {
	return func(l *TaskLoop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewTaskLoop creates a loop that reports task failures through pub.
func NewTaskLoop(pub events.Publisher, opts ...LoopOption) *TaskLoop {
	if pub == nil {
		pub = events.Discard
	}
	l := &TaskLoop{
		tasks:  make(chan Task, defaultLoopQueueSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		pub:    pub,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Submit queues task for execution. It never blocks.
func (l *TaskLoop) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return ErrLoopStopped
	}
	select {
	case l.tasks <- task:
		return nil
	default:
		return ErrLoopBusy
	}
}

// Start runs the loop on a new goroutine.
func (l *TaskLoop) Start(ctx context.Context) {
	go func() {
		if err := l.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			l.logger.Warn("task loop exited", "err", err)
		}
	}()
}

// Run executes tasks until ctx is cancelled or Stop is called. After Stop,
// tasks accepted before it still run. After cancellation, they are
// reported as discarded. Run may only be called once.
func (l *TaskLoop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return errors.New("task loop already running")
	}
	l.started = true
	l.mu.Unlock()

	defer close(l.done)

	for {
		select {
		case <-ctx.Done():
			l.markStopped()
			l.discardQueued()
			return ctx.Err()
		case <-l.quit:
			l.drain(ctx)
			return nil
		case task := <-l.tasks:
			if ctx.Err() != nil {
				l.discard()
				continue
			}
			l.exec(ctx, task)
		}
	}
}

// drain runs what was queued before Stop. Submit refuses new tasks once
// stopped, so the queue only shrinks.
func (l *TaskLoop) drain(ctx context.Context) {
	for {
		select {
		case task := <-l.tasks:
			if ctx.Err() != nil {
				l.discard()
				continue
			}
			l.exec(ctx, task)
		default:
			return
		}
	}
}

func (l *TaskLoop) discardQueued() {
	for {
		select {
		case <-l.tasks:
			l.discard()
		default:
			return
		}
	}
}

func (l *TaskLoop) discard() {
	l.pub.Publish(events.Status("❌", "Input error: automation session ended before the input ran"))
}

func (l *TaskLoop) exec(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("task panicked", "panic", r, "stack", string(debug.Stack()))
			l.pub.Publish(events.Status("❌", fmt.Sprintf("Automation task crashed: %v", r)))
		}
	}()

	if err := task(ctx); err != nil {
		l.logger.Warn("task failed", "err", err)
		l.pub.Publish(events.Status("❌", fmt.Sprintf("Input error: %v", err)))
	}
}

// Stop rejects further submissions and ends Run once the queue is empty.
// It does not wait. Safe to call more than once.
func (l *TaskLoop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	close(l.quit)
}

func (l *TaskLoop) markStopped() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.stopped {
		l.stopped = true
		close(l.quit)
	}
}

// Done is closed once Run has returned.
func (l *TaskLoop) Done() <-chan struct{} { return l.done }
