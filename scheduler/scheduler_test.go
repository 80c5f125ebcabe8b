package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roasbeef/actorcore/actor"
)

// fakeClock is a manually advanced toolbox.Clock paired with
// ManualTickDriver for fully deterministic scheduler tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(0, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingRef counts Tell calls and captures their payload.
type recordingRef struct {
	pid     actor.PID
	count   atomic.Int64
	mu      sync.Mutex
	payload []any
}

func (r *recordingRef) Tell(msg actor.AnyMessage) error {
	r.count.Add(1)
	r.mu.Lock()
	r.payload = append(r.payload, msg.Payload())
	r.mu.Unlock()
	return nil
}

func (r *recordingRef) PID() actor.PID { return r.pid }

var _ actor.TellOnlyRef = (*recordingRef)(nil)

func newTestScheduler(t *testing.T, clock *fakeClock, driver *ManualTickDriver) *Scheduler {
	t.Helper()
	events := actor.NewEventStream()
	s := New(clock, driver, events)
	t.Cleanup(func() {
		driver.Close()
		s.Close()
	})
	return s
}

func TestScheduleOnceFires(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	driver := NewManualTickDriver()
	s := newTestScheduler(t, clock, driver)

	target := &recordingRef{}
	_, err := s.ScheduleOnce(10*time.Millisecond, target, actor.NewAnyMessage("fire"))
	require.NoError(t, err)

	clock.Advance(20 * time.Millisecond)
	driver.Tick()

	require.Eventually(t, func() bool {
		return target.count.Load() == 1
	}, time.Second, time.Millisecond)
}

func TestScheduleOnceNotYetDue(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	driver := NewManualTickDriver()
	s := newTestScheduler(t, clock, driver)

	target := &recordingRef{}
	_, err := s.ScheduleOnce(time.Hour, target, actor.NewAnyMessage("fire"))
	require.NoError(t, err)

	driver.Tick()
	time.Sleep(10 * time.Millisecond)

	require.Equal(t, int64(0), target.count.Load())
}

func TestCancelPreventsFire(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	driver := NewManualTickDriver()
	s := newTestScheduler(t, clock, driver)

	target := &recordingRef{}
	handle, err := s.ScheduleOnce(10*time.Millisecond, target, actor.NewAnyMessage("fire"))
	require.NoError(t, err)

	require.True(t, handle.Cancel())
	require.False(t, handle.Cancel())

	clock.Advance(time.Hour)
	driver.Tick()
	time.Sleep(10 * time.Millisecond)

	require.Equal(t, int64(0), target.count.Load())
}

func TestFixedRateFiresWithinBacklogBudget(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	driver := NewManualTickDriver()
	s := newTestScheduler(t, clock, driver)

	target := &recordingRef{}
	_, err := s.ScheduleFixedRate(0, 10*time.Millisecond, target, actor.NewAnyMessage("tick"))
	require.NoError(t, err)

	// Jump far enough ahead that several periods have elapsed at once,
	// but stay within the default backlog budget.
	clock.Advance(25 * time.Millisecond)
	driver.Tick()

	require.Eventually(t, func() bool {
		return target.count.Load() >= 1
	}, time.Second, time.Millisecond)
}

func TestFixedRateExceedsBacklogCancels(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	driver := NewManualTickDriver()
	events := actor.NewEventStream()
	s := New(clock, driver, events, WithMaxBacklog(1))
	t.Cleanup(func() {
		driver.Close()
		s.Close()
	})

	logs := make(chan actor.Event, 8)
	sub := events.Subscribe(logs, func(e actor.Event) bool {
		_, ok := e.(actor.LogEvent)
		return ok
	})
	t.Cleanup(sub.Unsubscribe)

	target := &recordingRef{}
	_, err := s.ScheduleFixedRate(0, 10*time.Millisecond, target, actor.NewAnyMessage("tick"))
	require.NoError(t, err)

	// Many periods overdue at once exceeds maxBacklog of 1.
	clock.Advance(time.Second)
	driver.Tick()

	select {
	case evt := <-logs:
		logEvt := evt.(actor.LogEvent)
		require.Contains(t, logEvt.Message, "backlog exceeded")
	case <-time.After(time.Second):
		t.Fatal("expected a backlog-exceeded log event")
	}
}

func TestScheduleRejectsInvalidDelay(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	driver := NewManualTickDriver()
	s := newTestScheduler(t, clock, driver)

	target := &recordingRef{}
	_, err := s.ScheduleOnce(-time.Second, target, actor.NewAnyMessage("x"))
	require.ErrorIs(t, err, ErrInvalidDelay)

	_, err = s.ScheduleFixedRate(0, 0, target, actor.NewAnyMessage("x"))
	require.ErrorIs(t, err, ErrInvalidDelay)
}

func TestScheduleAfterCloseReturnsErrClosed(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	driver := NewManualTickDriver()
	events := actor.NewEventStream()
	s := New(clock, driver, events)

	driver.Close()
	s.Close()

	target := &recordingRef{}
	_, err := s.ScheduleOnce(time.Second, target, actor.NewAnyMessage("x"))
	require.ErrorIs(t, err, ErrClosed)
}

func TestScheduleCapacityExceeded(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	driver := NewManualTickDriver()
	events := actor.NewEventStream()
	s := New(clock, driver, events, WithMaxJobs(1))
	t.Cleanup(func() {
		driver.Close()
		s.Close()
	})

	target := &recordingRef{}
	_, err := s.ScheduleOnce(time.Hour, target, actor.NewAnyMessage("a"))
	require.NoError(t, err)

	_, err = s.ScheduleOnce(time.Hour, target, actor.NewAnyMessage("b"))
	require.ErrorIs(t, err, ErrCapacityExceeded)
}
