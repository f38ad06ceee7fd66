package pool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/yungbote/graphrag-core/internal/platform/logger"
)

var (
	ErrPoolClosed   = errors.New("pool: closed")
	ErrPoolOverload = errors.New("pool: overloaded")
)

type Config struct {
	// Capacity is the maximum number of concurrently running workers.
	Capacity int
	// MaxBlockingTasks is how many submitters may wait for a free worker before the pool
	// reports overload.
	MaxBlockingTasks int
	// Nonblocking reports overload immediately instead of queueing submitters.
	Nonblocking    bool
	ExpiryDuration time.Duration
	PreAlloc       bool
}

// Named pool sizes for the three workloads of the pipeline.
func InteractiveConfig() Config {
	return Config{Capacity: 20, MaxBlockingTasks: 100, ExpiryDuration: 60 * time.Second}
}

func BackgroundConfig() Config {
	return Config{Capacity: 10, MaxBlockingTasks: 50, ExpiryDuration: 60 * time.Second}
}

func EmbeddingConfig() Config {
	return Config{Capacity: 8, MaxBlockingTasks: 30, ExpiryDuration: 30 * time.Second}
}

type Pool struct {
	name     string
	pool     *ants.Pool
	log      *logger.Logger
	stats    counters
	closed   atomic.Bool
	closedMu sync.Mutex
}

type counters struct {
	submitted atomic.Int64
	completed atomic.Int64
	inline    atomic.Int64
	panics    atomic.Int64
}

type Stats struct {
	Name      string `json:"name"`
	Capacity  int    `json:"capacity"`
	Running   int    `json:"running"`
	Waiting   int    `json:"waiting"`
	Submitted int64  `json:"submitted"`
	Completed int64  `json:"completed"`
	Inline    int64  `json:"inline"`
	Panics    int64  `json:"panics"`
}

func New(name string, cfg Config, log *logger.Logger) (*Pool, error) {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("pool %s: capacity must be positive", name)
	}
	p := &Pool{name: name, log: log.With("component", "WorkerPool", "pool", name)}
	ap, err := ants.NewPool(cfg.Capacity,
		ants.WithExpiryDuration(cfg.ExpiryDuration),
		ants.WithPreAlloc(cfg.PreAlloc),
		ants.WithNonblocking(cfg.Nonblocking),
		ants.WithMaxBlockingTasks(cfg.MaxBlockingTasks),
		ants.WithPanicHandler(func(r interface{}) {
			p.stats.panics.Add(1)
			p.log.Error("worker panic recovered", "panic", r)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", name, err)
	}
	p.pool = ap
	return p, nil
}

func (p *Pool) Name() string { return p.name }

// Submit queues task. It returns ErrPoolOverload when the pool and its wait queue are full.
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	p.stats.submitted.Add(1)
	err := p.pool.Submit(func() {
		defer p.stats.completed.Add(1)
		task()
	})
	if err == nil {
		return nil
	}
	p.stats.submitted.Add(-1)
	if errors.Is(err, ants.ErrPoolOverload) {
		return ErrPoolOverload
	}
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

// Go submits task and falls back to running it on the caller's goroutine when the pool is
// saturated, so work is delayed rather than dropped. Only a closed pool is an error.
func (p *Pool) Go(task func()) error {
	err := p.Submit(task)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPoolOverload) {
		p.stats.inline.Add(1)
		p.log.Debug("pool saturated, running on caller")
		p.runInline(task)
		return nil
	}
	return err
}

func (p *Pool) runInline(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.stats.panics.Add(1)
			p.log.Error("inline task panic recovered", "panic", r)
		}
	}()
	task()
}

func (p *Pool) Stats() Stats {
	return Stats{
		Name:      p.name,
		Capacity:  p.pool.Cap(),
		Running:   p.pool.Running(),
		Waiting:   p.pool.Waiting(),
		Submitted: p.stats.submitted.Load(),
		Completed: p.stats.completed.Load(),
		Inline:    p.stats.inline.Load(),
		Panics:    p.stats.panics.Load(),
	}
}

// Release waits up to timeout for running tasks, then frees the workers.
func (p *Pool) Release(timeout time.Duration) error {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()
	if p.closed.Load() {
		return nil
	}
	p.closed.Store(true)
	if timeout <= 0 {
		p.pool.Release()
		return nil
	}
	return p.pool.ReleaseTimeout(timeout)
}
