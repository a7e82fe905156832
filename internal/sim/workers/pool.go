// Package workers runs chunk preparation jobs off the consumer goroutine.
package workers

import (
	"errors"
	"log"
	"runtime"
	"runtime/debug"

	"github.com/alitto/pond/v2"
)

var ErrStopped = errors.New("worker pool stopped")

type Stats struct {
	Running   int64  `json:"running"`
	Waiting   uint64 `json:"waiting"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
}

// Pool is a fixed-concurrency executor backed by pond.
type Pool struct {
	pool   pond.Pool
	logger *log.Logger
}

// New starts a pool with n workers; n <= 0 means one per CPU.
func New(n int, logger *log.Logger) *Pool {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Pool{pool: pond.NewPool(n), logger: logger}
}

// Submit queues task. A panicking task is logged and counted as failed; it
// never takes down the worker.
func (p *Pool) Submit(task func()) error {
	if p.pool.Stopped() {
		return ErrStopped
	}
	return p.submit(task)
}

// submit reports ErrStopped when a concurrent stop made pond reject the
// task, so callers never wait on work that will not run.
func (p *Pool) submit(task func()) error {
	t := p.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Printf("task panic: %v\n%s", r, debug.Stack())
				panic(r)
			}
		}()
		task()
	})
	select {
	case <-t.Done():
		if errors.Is(t.Wait(), pond.ErrPoolStopped) {
			return ErrStopped
		}
	default:
	}
	return nil
}

// StopAndWait stops accepting tasks and waits for queued ones to finish.
func (p *Pool) StopAndWait() { p.pool.StopAndWait() }

func (p *Pool) Stats() Stats {
	return Stats{
		Running:   p.pool.RunningWorkers(),
		Waiting:   p.pool.WaitingTasks(),
		Completed: p.pool.SuccessfulTasks(),
		Failed:    p.pool.FailedTasks(),
	}
}

// Inline runs every task on the calling goroutine. Used by tests and replay
// tooling that need deterministic ordering.
type Inline struct{}

func (Inline) Submit(task func()) error {
	func() {
		defer func() { _ = recover() }()
		task()
	}()
	return nil
}
