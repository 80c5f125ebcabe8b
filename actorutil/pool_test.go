package actorutil

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/roasbeef/actorcore/actor"
)

// poolTestBehavior tracks which pool member handled each message and
// echoes value*2 back to whoever asked.
type poolTestBehavior struct {
	idx      int
	handled  *atomic.Int64
	received []int
	mu       sync.Mutex
}

func newPoolTestBehavior(idx int) *poolTestBehavior {
	return &poolTestBehavior{idx: idx, handled: &atomic.Int64{}}
}

func (b *poolTestBehavior) Receive(ctx *actor.Context, view actor.AnyMessageView) error {
	msg, ok := actor.Downcast[pingMsg](view)
	if !ok {
		return nil
	}

	b.mu.Lock()
	b.received = append(b.received, msg.value)
	b.mu.Unlock()
	b.handled.Add(1)

	if sender, ok := ctx.SenderRef(); ok {
		_ = sender.Tell(actor.NewAnyMessage(pongMsg{value: msg.value * 2}))
	}
	return nil
}

func (b *poolTestBehavior) ReceivedValues() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	result := make([]int, len(b.received))
	copy(result, b.received)
	return result
}

func poolFactory(behaviors *[]*poolTestBehavior, mu *sync.Mutex) func(idx int) actor.ActorFactory {
	return func(idx int) actor.ActorFactory {
		b := newPoolTestBehavior(idx)
		mu.Lock()
		*behaviors = append(*behaviors, b)
		mu.Unlock()
		return func() actor.Actor { return b }
	}
}

func TestNewPool(t *testing.T) {
	t.Parallel()

	system := newTestSystem(t)
	var behaviors []*poolTestBehavior
	var mu sync.Mutex

	pool, err := NewPool(PoolConfig[pingMsg, pongMsg]{
		ID:      "test-pool",
		Size:    3,
		System:  system,
		Factory: poolFactory(&behaviors, &mu),
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Stop(system)

	if pool.Size() != 3 {
		t.Errorf("expected pool size 3, got %d", pool.Size())
	}
	if pool.ID() != "test-pool" {
		t.Errorf("expected pool ID 'test-pool', got '%s'", pool.ID())
	}
	if got := len(pool.Actors()); got != 3 {
		t.Errorf("expected 3 actors, got %d", got)
	}
}

func TestPoolAsk(t *testing.T) {
	t.Parallel()

	const poolSize = 3
	const numMessages = 9

	system := newTestSystem(t)
	var behaviors []*poolTestBehavior
	var mu sync.Mutex

	pool, err := NewPool(PoolConfig[pingMsg, pongMsg]{
		ID:      "test-pool-ask",
		Size:    poolSize,
		System:  system,
		Factory: poolFactory(&behaviors, &mu),
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Stop(system)

	ctx := context.Background()
	for i := 0; i < numMessages; i++ {
		result := pool.Ask(ctx, pingMsg{value: i + 1}).Await(ctx)
		val, err := result.Unpack()
		if err != nil {
			t.Errorf("message %d: unexpected error: %v", i, err)
			continue
		}
		expected := (i + 1) * 2
		if val.value != expected {
			t.Errorf("message %d: expected %d, got %d", i, expected, val.value)
		}
	}

	for i, b := range behaviors {
		if b.handled.Load() != 3 {
			t.Errorf("behavior %d: expected 3 messages, handled %d", i, b.handled.Load())
		}
	}
}

func TestPoolTell(t *testing.T) {
	t.Parallel()

	const poolSize = 3
	const numMessages = 6

	system := newTestSystem(t)
	var behaviors []*poolTestBehavior
	var mu sync.Mutex

	pool, err := NewPool(PoolConfig[pingMsg, pongMsg]{
		ID:      "test-pool-tell",
		Size:    poolSize,
		System:  system,
		Factory: poolFactory(&behaviors, &mu),
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Stop(system)

	for i := 0; i < numMessages; i++ {
		if err := pool.Tell(pingMsg{value: i + 1}); err != nil {
			t.Errorf("Tell %d: %v", i, err)
		}
	}

	deadline := time.After(time.Second)
	for {
		total := int64(0)
		for _, b := range behaviors {
			total += b.handled.Load()
		}
		if total == numMessages {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d messages, saw %d", numMessages, total)
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestPoolBroadcast(t *testing.T) {
	t.Parallel()

	const poolSize = 4

	system := newTestSystem(t)
	var behaviors []*poolTestBehavior
	var mu sync.Mutex

	pool, err := NewPool(PoolConfig[pingMsg, pongMsg]{
		ID:      "test-pool-broadcast",
		Size:    poolSize,
		System:  system,
		Factory: poolFactory(&behaviors, &mu),
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Stop(system)

	pool.Broadcast(pingMsg{value: 42})

	deadline := time.After(time.Second)
	for _, b := range behaviors {
		for b.handled.Load() == 0 {
			select {
			case <-deadline:
				t.Fatal("timed out waiting for broadcast delivery")
			default:
				time.Sleep(time.Millisecond)
			}
		}
		values := b.ReceivedValues()
		if len(values) != 1 || values[0] != 42 {
			t.Errorf("expected value [42], got %v", values)
		}
	}
}

func TestPoolBroadcastAsk(t *testing.T) {
	t.Parallel()

	const poolSize = 3

	system := newTestSystem(t)
	var behaviors []*poolTestBehavior
	var mu sync.Mutex

	pool, err := NewPool(PoolConfig[pingMsg, pongMsg]{
		ID:      "test-pool-broadcast-ask",
		Size:    poolSize,
		System:  system,
		Factory: poolFactory(&behaviors, &mu),
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Stop(system)

	ctx := context.Background()
	results := pool.BroadcastAsk(ctx, pingMsg{value: 5})
	if len(results) != poolSize {
		t.Fatalf("expected %d results, got %d", poolSize, len(results))
	}

	for i, r := range results {
		val, err := r.Unpack()
		if err != nil {
			t.Errorf("result %d: unexpected error: %v", i, err)
			continue
		}
		if val.value != 10 {
			t.Errorf("result %d: expected 10, got %d", i, val.value)
		}
	}
}

func TestPoolDefaultSize(t *testing.T) {
	t.Parallel()

	system := newTestSystem(t)
	var behaviors []*poolTestBehavior
	var mu sync.Mutex

	pool, err := NewPool(PoolConfig[pingMsg, pongMsg]{
		ID:      "test-pool-default",
		Size:    0,
		System:  system,
		Factory: poolFactory(&behaviors, &mu),
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Stop(system)

	if pool.Size() != 1 {
		t.Errorf("expected default pool size 1, got %d", pool.Size())
	}
}

func TestPoolStop(t *testing.T) {
	t.Parallel()

	const poolSize = 3

	system := newTestSystem(t)
	var behaviors []*poolTestBehavior
	var mu sync.Mutex

	pool, err := NewPool(PoolConfig[pingMsg, pongMsg]{
		ID:      "test-pool-stop",
		Size:    poolSize,
		System:  system,
		Factory: poolFactory(&behaviors, &mu),
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	for i := 0; i < 5; i++ {
		_ = pool.Tell(pingMsg{value: i})
	}
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		pool.Stop(system)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool.Stop() timed out")
	}
}

func TestPoolRef(t *testing.T) {
	t.Parallel()

	system := newTestSystem(t)
	var behaviors []*poolTestBehavior
	var mu sync.Mutex

	pool, err := NewPool(PoolConfig[pingMsg, pongMsg]{
		ID:      "test-poolref",
		Size:    2,
		System:  system,
		Factory: poolFactory(&behaviors, &mu),
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Stop(system)

	ref := NewPoolRef(pool)

	if err := ref.Tell(pingMsg{value: 1}); err != nil {
		t.Fatalf("PoolRef.Tell: %v", err)
	}

	ctx := context.Background()
	result := ref.Ask(ctx, pingMsg{value: 2}).Await(ctx)
	val, err := result.Unpack()
	if err != nil {
		t.Fatalf("PoolRef.Ask returned error: %v", err)
	}
	if val.value != 4 {
		t.Errorf("expected 4, got %d", val.value)
	}

	deadline := time.After(time.Second)
	for {
		total := int64(0)
		for _, b := range behaviors {
			total += b.handled.Load()
		}
		if total == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for 2 messages, saw %d", total)
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestPoolConcurrentAccess(t *testing.T) {
	t.Parallel()

	const poolSize = 4
	const numGoroutines = 10
	const messagesPerGoroutine = 50

	system := newTestSystem(t)
	var behaviors []*poolTestBehavior
	var mu sync.Mutex

	pool, err := NewPool(PoolConfig[pingMsg, pongMsg]{
		ID:      "test-pool-concurrent",
		Size:    poolSize,
		System:  system,
		Factory: poolFactory(&behaviors, &mu),
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Stop(system)

	ctx := context.Background()
	var wg sync.WaitGroup

	for g := 0; g < numGoroutines; g++ {
		wg.Add(1)
		go func(goroutineID int) {
			defer wg.Done()
			for i := 0; i < messagesPerGoroutine; i++ {
				msg := pingMsg{value: goroutineID*1000 + i}
				if i%2 == 0 {
					_ = pool.Tell(msg)
				} else {
					result := pool.Ask(ctx, msg).Await(ctx)
					if _, err := result.Unpack(); err != nil {
						t.Errorf("goroutine %d message %d: error: %v", goroutineID, i, err)
					}
				}
			}
		}(g)
	}

	wg.Wait()
	time.Sleep(100 * time.Millisecond)
}
