// Package scheduler implements the timer wheel: one-shot and periodic
// jobs that Tell a target actor when due. Its only sources of time are
// toolbox.Clock and toolbox.TickSource, so the identical code drives a
// real wall-clock deployment and a deterministic test fed by
// ManualTickDriver. Scheduler satisfies actor.TimerService structurally;
// the actor package never imports this one.
package scheduler

import (
	"container/heap"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/roasbeef/actorcore/actor"
	"github.com/roasbeef/actorcore/toolbox"
)

// Mode selects a scheduled job's repeat semantics.
type Mode uint8

const (
	// OneShot fires exactly once, after the initial delay.
	OneShot Mode = iota

	// FixedRate fires every period measured from the job's own
	// schedule, so a late fire does not push later ones back.
	FixedRate

	// FixedDelay fires period after the previous fire's Tell returned,
	// so a slow target naturally spreads its own load out.
	FixedDelay
)

// String renders the mode's name for logging.
func (m Mode) String() string {
	switch m {
	case OneShot:
		return "OneShot"
	case FixedRate:
		return "FixedRate"
	case FixedDelay:
		return "FixedDelay"
	default:
		return "Unknown"
	}
}

var (
	// ErrInvalidDelay is returned for a negative initial delay or a
	// non-positive period on a periodic job.
	ErrInvalidDelay = errors.New("scheduler: invalid delay")

	// ErrClosed is returned by Schedule* once Close has been called.
	ErrClosed = errors.New("scheduler: closed")

	// ErrBackpressured is not returned by any function in this package;
	// a fire that finds the concurrent-fire semaphore full is requeued
	// or skipped instead (see fire).
	ErrBackpressured = errors.New("scheduler: backpressured")

	// ErrCapacityExceeded is returned by Schedule* once the scheduler's
	// job count has reached its configured ceiling.
	ErrCapacityExceeded = errors.New("scheduler: capacity exceeded")
)

const (
	defaultMaxBacklog     = 3
	defaultMaxConcurrency = 32
	defaultMaxJobs        = 0 // unbounded
)

type jobState uint8

const (
	stateScheduled jobState = iota
	stateCancelled
)

// job is one entry in the scheduler's heap, keyed by nextFire.
type job struct {
	mode       Mode
	period     time.Duration
	target     actor.TellOnlyRef
	msg        actor.AnyMessage
	nextFire   time.Time
	maxBacklog uint64
	state      jobState
	index      int
}

// jobHeap is a min-heap over job.nextFire, implementing container/heap.
type jobHeap []*job

func (h jobHeap) Len() int            { return len(h) }
func (h jobHeap) Less(i, j int) bool  { return h[i].nextFire.Before(h[j].nextFire) }
func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x any) {
	j := x.(*job)
	j.index = len(*h)
	*h = append(*h, j)
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	j.index = -1
	*h = old[:n-1]
	return j
}

// Handle is a cancellable reference to a scheduled job, satisfying
// actor.ScheduledHandle.
type Handle struct {
	sched *Scheduler
	job   *job
}

// Cancel marks the job cancelled, removing it from the queue if it is
// still pending. Cancelling an already-cancelled or already-fired
// one-shot job returns false.
func (h *Handle) Cancel() bool {
	h.sched.mu.Lock()
	defer h.sched.mu.Unlock()

	if h.job.state == stateCancelled {
		return false
	}
	if h.job.mode == OneShot && h.job.index < 0 {
		// Already taken off the queue to fire.
		return false
	}
	h.job.state = stateCancelled
	if h.job.index >= 0 {
		heap.Remove(&h.sched.queue, h.job.index)
	}
	return true
}

var _ actor.ScheduledHandle = (*Handle)(nil)

// Scheduler is a tick-driven timer wheel. Each background tick checks the
// queue for jobs whose nextFire has passed and fires them, bounding how
// many fire concurrently with a semaphore so a large backlog can't
// stampede the host executor.
type Scheduler struct {
	mu     sync.Mutex
	clock  toolbox.Clock
	ticks  toolbox.TickSource
	events *actor.EventStream
	queue  jobHeap
	sem    *semaphore.Weighted

	maxBacklog uint64
	maxJobs    int

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Option customizes a Scheduler at construction.
type Option func(*Scheduler)

// WithMaxBacklog overrides the default of 3 missed periods before a
// periodic job is cancelled with BacklogExceeded.
func WithMaxBacklog(n uint64) Option {
	return func(s *Scheduler) { s.maxBacklog = n }
}

// WithMaxConcurrentFires bounds how many due jobs fire concurrently,
// defaulting to 32.
func WithMaxConcurrentFires(n int64) Option {
	return func(s *Scheduler) { s.sem = semaphore.NewWeighted(n) }
}

// WithMaxJobs caps the number of outstanding jobs; Schedule* returns
// ErrCapacityExceeded once reached. Zero (the default) means unbounded.
func WithMaxJobs(n int) Option {
	return func(s *Scheduler) { s.maxJobs = n }
}

// New builds a Scheduler driven by ticks and starts its background loop.
// Call Close to stop it. events may be nil, in which case backlog
// warnings are simply not published.
func New(clock toolbox.Clock, ticks toolbox.TickSource, events *actor.EventStream, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:      clock,
		ticks:      ticks,
		events:     events,
		maxBacklog: defaultMaxBacklog,
		maxJobs:    defaultMaxJobs,
		sem:        semaphore.NewWeighted(defaultMaxConcurrency),
		closed:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.run()

	return s
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	for {
		select {
		case <-s.closed:
			return
		default:
		}

		s.ticks.NextTick()

		select {
		case <-s.closed:
			return
		default:
		}

		s.processDue()
	}
}

func (s *Scheduler) schedule(
	mode Mode, initial, period time.Duration, target actor.TellOnlyRef,
	msg actor.AnyMessage,
) (*Handle, error) {

	if initial < 0 || (mode != OneShot && period <= 0) {
		return nil, ErrInvalidDelay
	}

	select {
	case <-s.closed:
		return nil, ErrClosed
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxJobs > 0 && s.queue.Len() >= s.maxJobs {
		return nil, ErrCapacityExceeded
	}

	j := &job{
		mode:       mode,
		period:     period,
		target:     target,
		msg:        msg,
		nextFire:   s.clock.Now().Add(initial),
		maxBacklog: s.maxBacklog,
		index:      -1,
	}
	heap.Push(&s.queue, j)

	return &Handle{sched: s, job: j}, nil
}

// ScheduleOnce arranges a single Tell of msg to target after delay.
func (s *Scheduler) ScheduleOnce(
	delay time.Duration, target actor.TellOnlyRef, msg actor.AnyMessage,
) (actor.ScheduledHandle, error) {

	return s.schedule(OneShot, delay, 0, target, msg)
}

// ScheduleFixedRate arranges a repeating Tell every period starting after
// initial, measured from the job's own nominal schedule so a slow
// consumer accumulates backlog rather than drifting the cadence.
func (s *Scheduler) ScheduleFixedRate(
	initial, period time.Duration, target actor.TellOnlyRef, msg actor.AnyMessage,
) (actor.ScheduledHandle, error) {

	return s.schedule(FixedRate, initial, period, target, msg)
}

// ScheduleFixedDelay arranges a repeating Tell, each fire scheduled
// period after the previous one's Tell returned rather than its nominal
// deadline.
func (s *Scheduler) ScheduleFixedDelay(
	initial, period time.Duration, target actor.TellOnlyRef, msg actor.AnyMessage,
) (actor.ScheduledHandle, error) {

	return s.schedule(FixedDelay, initial, period, target, msg)
}

var _ actor.TimerService = (*Scheduler)(nil)

func (s *Scheduler) processDue() {
	now := s.clock.Now()

	var due []*job
	s.mu.Lock()
	for s.queue.Len() > 0 && !s.queue[0].nextFire.After(now) {
		j := heap.Pop(&s.queue).(*job)
		if j.state == stateCancelled {
			continue
		}
		due = append(due, j)
	}
	s.mu.Unlock()

	for _, j := range due {
		s.fire(j, now)
	}
}

// missedPeriods reports how many whole periods have elapsed beyond a
// job's nominal nextFire, used both to decide BurstFire/BacklogExceeded
// and to compute FixedRate's next deadline. A OneShot or non-periodic job
// is never backlogged.
func missedPeriods(mode Mode, period time.Duration, nextFire, now time.Time) uint64 {
	if mode == OneShot || period <= 0 {
		return 0
	}
	overdue := now.Sub(nextFire)
	if overdue <= 0 {
		return 0
	}
	return uint64(overdue / period)
}

func (s *Scheduler) fire(j *job, now time.Time) {
	missed := missedPeriods(j.mode, j.period, j.nextFire, now)

	if missed > j.maxBacklog {
		s.publishLog("warn", "scheduler: backlog exceeded, job cancelled", map[string]any{
			"mode": j.mode.String(), "missed": missed,
		})
		s.mu.Lock()
		j.state = stateCancelled
		s.mu.Unlock()
		return
	}
	if missed > 0 {
		s.publishLog("warn", "scheduler: job missed ticks, continuing", map[string]any{
			"mode": j.mode.String(), "missed": missed,
		})
	}

	if j.mode == FixedRate {
		s.requeue(j, j.nextFire.Add(j.period*time.Duration(missed+1)))
	}

	if !s.sem.TryAcquire(1) {
		// The semaphore is saturated. A OneShot or FixedDelay job goes
		// back on the queue due now, so the next tick retries it; a
		// FixedRate job is already requeued at its next deadline, so
		// this fire of it is skipped.
		if j.mode != FixedRate {
			s.requeue(j, now)
		}
		return
	}

	go func() {
		defer s.sem.Release(1)
		_ = j.target.Tell(j.msg)

		if j.mode == FixedDelay {
			s.requeue(j, s.clock.Now().Add(j.period))
		}
	}()
}

func (s *Scheduler) requeue(j *job, nextFire time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j.state == stateCancelled {
		return
	}
	j.nextFire = nextFire
	heap.Push(&s.queue, j)
}

func (s *Scheduler) publishLog(level, message string, fields map[string]any) {
	if s.events == nil {
		return
	}
	s.events.Publish(actor.LogEvent{Level: level, Message: message, Fields: fields})
}

// Close stops the scheduler's background loop and waits for it to exit.
// Jobs already firing are allowed to finish their Tell; jobs still queued
// never fire. If the scheduler is driven by a ManualTickDriver that is
// currently parked in NextTick, the driver must be Tick'd or Close'd
// concurrently or this call blocks forever waiting for the loop to wake.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
	s.wg.Wait()
}
