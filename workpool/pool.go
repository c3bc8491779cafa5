// Package workpool implements a fixed pool of worker goroutines with
// per-worker task deques and work stealing.
//
// Every worker owns a double-ended queue. Tasks submitted from inside
// a running task go to the front of the current worker's queue and
// are popped from the front (LIFO). Tasks submitted from outside go
// to a shared FIFO queue. Idle workers steal from the back of their
// peers' queues.
package workpool

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/gammazero/deque"
	"github.com/op/go-logging"
	"github.com/prometheus/client_golang/prometheus"
)

var log = logging.MustGetLogger("workpool")

// ErrClosed is returned by futures of tasks which never ran because
// the pool was closed.
var ErrClosed = errors.New("workpool: pool is closed")

// defaultSpin is the number of empty scans a worker performs before
// parking on the condition variable.
const defaultSpin = 64

// Spawner accepts tasks. It is implemented by *Pool (tasks go to the
// shared queue) and by *Worker (tasks go to the worker's own queue).
type Spawner interface {
	spawn(t *task)
}

// task is a unit of work. run is called exactly once by a worker;
// fail is called instead if the pool is closed before the task ran.
type task struct {
	run  func(w *Worker)
	fail func(err error)
}

// Pool is a work-stealing pool of goroutines.
type Pool struct {
	workers []*Worker

	mu     sync.Mutex
	cond   *sync.Cond
	shared deque.Deque[*task]
	closed bool

	// pending counts tasks sitting in any queue.
	pending atomic.Int64
	done    atomic.Bool

	spin    int
	reg     prometheus.Registerer
	metrics *metrics
	wg      sync.WaitGroup
}

// Option configures a Pool.
type Option func(*Pool)

// WithRegisterer registers pool metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(p *Pool) {
		p.reg = reg
	}
}

// WithSpin sets the number of empty scans before an idle worker
// parks.
func WithSpin(n int) Option {
	return func(p *Pool) {
		p.spin = n
	}
}

// New creates a pool with n workers. n=0 selects GOMAXPROCS, larger
// values are clamped to it.
func New(n int, opts ...Option) (*Pool, error) {
	if n < 0 {
		return nil, fmt.Errorf("workpool: invalid number of workers %d", n)
	}
	max := runtime.GOMAXPROCS(0)
	if n == 0 || n > max {
		n = max
	}

	p := &Pool{
		spin: defaultSpin,
	}
	p.cond = sync.NewCond(&p.mu)
	for _, opt := range opts {
		opt(p)
	}

	m, err := newMetrics(p.reg)
	if err != nil {
		return nil, err
	}
	p.metrics = m

	p.workers = make([]*Worker, n)
	for i := range p.workers {
		p.workers[i] = &Worker{pool: p, index: i}
	}
	p.wg.Add(n)
	for _, w := range p.workers {
		go w.run()
	}
	log.Debugf("started %d workers", n)
	return p, nil
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

func (p *Pool) spawn(t *task) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		t.fail(ErrClosed)
		return
	}
	p.shared.PushBack(t)
	p.pending.Add(1)
	p.metrics.submitted.WithLabelValues("shared").Inc()
	p.cond.Signal()
	p.mu.Unlock()
}

// wake unparks one worker after a task was pushed to a local queue.
func (p *Pool) wake() {
	p.mu.Lock()
	p.cond.Signal()
	p.mu.Unlock()
}

// park blocks an idle worker until some queue is non-empty or the
// pool is closed.
func (p *Pool) park() {
	p.mu.Lock()
	for p.pending.Load() == 0 && !p.closed {
		p.cond.Wait()
	}
	p.mu.Unlock()
}

func (p *Pool) popShared() *task {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shared.Len() == 0 {
		return nil
	}
	p.pending.Add(-1)
	return p.shared.PopFront()
}

// Close stops all the workers and waits for them to exit. Tasks which
// are still queued are failed with ErrClosed. Close is idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.done.Store(true)
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()

	var left []*task
	p.mu.Lock()
	for p.shared.Len() > 0 {
		left = append(left, p.shared.PopFront())
	}
	p.mu.Unlock()
	for _, w := range p.workers {
		w.mu.Lock()
		for w.queue.Len() > 0 {
			left = append(left, w.queue.PopFront())
		}
		w.mu.Unlock()
	}
	if len(left) > 0 {
		log.Warningf("pool closed with %d queued tasks", len(left))
	}
	for _, t := range left {
		p.pending.Add(-1)
		t.fail(ErrClosed)
	}
	log.Debug("all workers stopped")
}

// Worker is a single pool goroutine. A task receives the worker it
// runs on and may submit child tasks to it.
type Worker struct {
	pool  *Pool
	index int

	mu    sync.Mutex
	queue deque.Deque[*task]

	// victim is the rotating offset of the first peer to steal from.
	victim int
}

// Index returns the worker position in the pool.
func (w *Worker) Index() int {
	return w.index
}

func (w *Worker) spawn(t *task) {
	if w.pool.done.Load() {
		t.fail(ErrClosed)
		return
	}
	w.mu.Lock()
	w.queue.PushFront(t)
	w.mu.Unlock()
	w.pool.pending.Add(1)
	w.pool.metrics.submitted.WithLabelValues("local").Inc()
	w.pool.wake()
}

func (w *Worker) popLocal() *task {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.queue.Len() == 0 {
		return nil
	}
	w.pool.pending.Add(-1)
	return w.queue.PopFront()
}

// steal takes a task from the back of the queue.
func (w *Worker) steal() *task {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.queue.Len() == 0 {
		return nil
	}
	w.pool.pending.Add(-1)
	return w.queue.PopBack()
}

// next returns the next task to run or nil: own queue first, then the
// shared queue, then the peers.
func (w *Worker) next() *task {
	if t := w.popLocal(); t != nil {
		return t
	}
	if t := w.pool.popShared(); t != nil {
		return t
	}
	n := len(w.pool.workers)
	for i := 0; i < n; i++ {
		peer := w.pool.workers[(w.index+w.victim+i+1)%n]
		if peer == w {
			continue
		}
		if t := peer.steal(); t != nil {
			w.pool.metrics.stolen.Inc()
			return t
		}
	}
	w.victim = (w.victim + 1) % n
	return nil
}

func (w *Worker) execute(t *task) {
	w.pool.metrics.executed.Inc()
	t.run(w)
}

func (w *Worker) run() {
	defer w.pool.wg.Done()
	idle := 0
	for !w.pool.done.Load() {
		if t := w.next(); t != nil {
			w.execute(t)
			idle = 0
			continue
		}
		idle++
		if idle < w.pool.spin {
			runtime.Gosched()
			continue
		}
		w.pool.park()
		idle = 0
	}
}
