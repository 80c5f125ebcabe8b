package toolbox

import (
	"sync"
	"time"
)

// StdMutexFamily builds LockGuard/RwLockGuard values backed by the
// standard library's sync.Mutex/sync.RWMutex. No code in this module
// constructs one; a host is free to supply a different family (e.g. one
// backed by a spinlock on a bare-metal target).
type StdMutexFamily struct{}

// NewMutex returns a sync.Mutex-backed LockGuard.
func (StdMutexFamily) NewMutex() LockGuard {
	return &sync.Mutex{}
}

// NewRwMutex returns a sync.RWMutex-backed RwLockGuard.
func (StdMutexFamily) NewRwMutex() RwLockGuard {
	return &sync.RWMutex{}
}

var (
	_ MutexFamily  = StdMutexFamily{}
	_ RwLockFamily = StdMutexFamily{}
)

// StdClock reports wall-clock time via time.Now.
type StdClock struct{}

// Now returns the current time.
func (StdClock) Now() time.Time { return time.Now() }

var _ Clock = StdClock{}

// InlineExecutor runs every task synchronously on the calling goroutine.
// It is the degenerate, single-threaded host, suited to deterministic
// tests or a bare interrupt-driven loop that pumps tasks itself.
type InlineExecutor struct{}

// Execute runs task immediately and returns nil.
func (InlineExecutor) Execute(task Task) error {
	task()
	return nil
}

var _ Executor = InlineExecutor{}

// PoolExecutor is a bounded goroutine-pool executor: a fixed number of
// worker goroutines pull tasks from a buffered channel. It generalizes
// the one-goroutine-per-actor model into a shared pool the host owns,
// so a large actor system does not require one OS thread per cell.
type PoolExecutor struct {
	tasks     chan Task
	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

// NewPoolExecutor starts workers goroutines pulling from a queue of the
// given depth. workers and queueDepth are both clamped to at least 1.
func NewPoolExecutor(workers, queueDepth int) *PoolExecutor {
	if workers < 1 {
		workers = 1
	}
	if queueDepth < 1 {
		queueDepth = 1
	}

	p := &PoolExecutor{
		tasks:  make(chan Task, queueDepth),
		closed: make(chan struct{}),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	return p
}

func (p *PoolExecutor) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.closed:
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			task()
		}
	}
}

// Execute enqueues task for a worker to run. It returns
// ErrExecutorUnavailable once Shutdown has been called, and
// ErrRejectedExecution if the queue is momentarily full.
func (p *PoolExecutor) Execute(task Task) error {
	select {
	case <-p.closed:
		return ErrExecutorUnavailable
	default:
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrRejectedExecution
	}
}

// Shutdown stops accepting new tasks and waits for in-flight workers to
// drain their current task. Queued-but-not-started tasks are discarded.
func (p *PoolExecutor) Shutdown() {
	p.closeOnce.Do(func() {
		close(p.closed)
	})
	p.wg.Wait()
}

var _ Executor = (*PoolExecutor)(nil)

// TickerSource is a TickSource backed by a real time.Ticker, accumulating
// a count of elapsed quanta between NextTick calls so a slow consumer
// observes the backlog instead of silently missing ticks.
type TickerSource struct {
	ticker *time.Ticker

	mu      sync.Mutex
	cond    *sync.Cond
	pending uint64
	closed  bool
	done    chan struct{}
}

// NewTickerSource starts a ticker firing every quantum and returns a
// TickSource over it. Stop must be called to release the underlying
// timer.
func NewTickerSource(quantum time.Duration) *TickerSource {
	t := &TickerSource{
		ticker: time.NewTicker(quantum),
		done:   make(chan struct{}),
	}
	t.cond = sync.NewCond(&t.mu)

	go t.pump()

	return t
}

func (t *TickerSource) pump() {
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.C:
			t.mu.Lock()
			t.pending++
			t.mu.Unlock()
			t.cond.Signal()
		}
	}
}

// NextTick blocks until at least one quantum has elapsed, then returns
// the number of quanta accumulated since the last call.
func (t *TickerSource) NextTick() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	for t.pending == 0 && !t.closed {
		t.cond.Wait()
	}

	n := t.pending
	t.pending = 0
	return n
}

// Stop halts the underlying ticker and unblocks any goroutine parked in
// NextTick.
func (t *TickerSource) Stop() {
	t.ticker.Stop()
	close(t.done)

	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.cond.Broadcast()
}

var _ TickSource = (*TickerSource)(nil)
