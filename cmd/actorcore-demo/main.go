// Command actorcore-demo spawns a small actor tree and drives it through
// tell, ask, scheduled timers, a worker pool, and dead-letter
// routing, logging every lifecycle transition along the way. It exists to
// give the actor, actorutil, and scheduler packages a real host binary to
// be exercised from.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/btcsuite/btclog/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roasbeef/actorcore/actor"
	"github.com/roasbeef/actorcore/actorutil"
	"github.com/roasbeef/actorcore/internal/build"
	"github.com/roasbeef/actorcore/internal/log"
	"github.com/roasbeef/actorcore/scheduler"
	"github.com/roasbeef/actorcore/toolbox"
)

var (
	logDir         string
	maxLogFiles    int
	maxLogFileSize int
	workerCount    int
	tickQuantum    time.Duration
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "actorcore-demo",
	Short: "Drives a small actor tree through its full lifecycle",
	Long: `actorcore-demo spawns a greeter actor, a stateless worker pool,
and a timer-driven heartbeat, then tears everything down on
SIGINT/SIGTERM. It is a runnable tour of the actor system, not a
long-lived service.`,
	RunE: runDemo,
}

func init() {
	rootCmd.Flags().StringVar(
		&logDir, "log-dir", "",
		"directory for rotating log files (empty disables file logging)",
	)
	rootCmd.Flags().IntVar(
		&maxLogFiles, "max-log-files", build.DefaultMaxLogFiles,
		"maximum number of rotated log files to keep",
	)
	rootCmd.Flags().IntVar(
		&maxLogFileSize, "max-log-file-size", build.DefaultMaxLogFileSize,
		"maximum log file size in MB before rotation",
	)
	rootCmd.Flags().IntVar(
		&workerCount, "workers", 4,
		"number of actors in the demo worker pool",
	)
	rootCmd.Flags().DurationVar(
		&tickQuantum, "tick-quantum", 50*time.Millisecond,
		"scheduler tick resolution",
	)
}

func runDemo(cmd *cobra.Command, args []string) error {
	teardown, err := setupLogging()
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer teardown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	installSignalHandler(cancel)

	ticks := toolbox.NewTickerSource(tickQuantum)
	defer ticks.Stop()

	schedulerEvents := actor.NewEventStream()
	sched := scheduler.New(toolbox.StdClock{}, ticks, schedulerEvents)
	defer sched.Close()
	watchEventStream(ctx, schedulerEvents)

	cfg := actor.DefaultConfig()
	cfg.Timers = sched
	system, err := actor.NewActorSystemWithConfig(cfg)
	if err != nil {
		return fmt.Errorf("starting actor system: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(
			context.Background(), 5*time.Second,
		)
		defer shutdownCancel()
		if err := system.Shutdown(shutdownCtx); err != nil {
			log.WarnS(ctx, "actor system shutdown incomplete", err)
		}
	}()

	watchEventStream(ctx, system.EventStream())

	greeter, err := spawnGreeter(system)
	if err != nil {
		return fmt.Errorf("spawning greeter: %w", err)
	}

	pool, err := spawnWorkerPool(system, workerCount)
	if err != nil {
		return fmt.Errorf("spawning worker pool: %w", err)
	}
	defer pool.Stop(system)

	if err := runGreetings(ctx, greeter, pool); err != nil {
		return fmt.Errorf("running greeting round: %w", err)
	}

	// Address a PID that was never spawned, so the dead-letter path
	// lights up in the event log alongside the real traffic above.
	ghost := system.ResolveRef(actor.PID{Value: 999999, Generation: 1})
	_ = ghost.Tell(actor.NewAnyMessage("nobody is listening"))

	log.InfoS(ctx, "demo running, press ctrl-c to stop")

	<-ctx.Done()
	log.InfoS(ctx, "shutting down")

	return nil
}

// setupLogging wires internal/log onto a HandlerSet fanning out to the
// console and, when logDir is set, a rotating log file.
func setupLogging() (func(), error) {
	var handlers []btclog.Handler
	handlers = append(handlers, btclog.NewDefaultHandler(os.Stdout))

	var rotator *build.RotatingLogWriter
	if logDir != "" {
		rotator = build.NewRotatingLogWriter()
		err := rotator.InitLogRotator(&build.LogRotatorConfig{
			LogDir:         logDir,
			MaxLogFiles:    maxLogFiles,
			MaxLogFileSize: maxLogFileSize,
			Filename:       "actorcore-demo.log",
		})
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, btclog.NewDefaultHandler(rotator))
	}

	set := build.NewHandlerSet(handlers...)
	log.SetBackend(btclog.NewSLogger(set))
	log.SetLevel(btclog.LevelInfo)

	return func() {
		if rotator != nil {
			_ = rotator.Close()
		}
	}, nil
}

func installSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.InfoS(context.Background(), "received signal, cancelling", "signal", sig.String())
		cancel()

		sig = <-sigCh
		log.InfoS(context.Background(), "received second signal, forcing exit", "signal", sig.String())
		os.Exit(1)
	}()
}

// watchEventStream subscribes a logging sink to every event category on
// stream and drains it until ctx is cancelled, giving an operator a live
// feed of lifecycle, dead-letter, mailbox-pressure, and scheduler backlog
// events.
func watchEventStream(ctx context.Context, stream *actor.EventStream) {
	sink := make(chan actor.Event, 256)
	sub := stream.Subscribe(sink, func(actor.Event) bool { return true })

	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-sink:
				logEvent(ctx, evt)
			}
		}
	}()
}

func logEvent(ctx context.Context, evt actor.Event) {
	switch e := evt.(type) {
	case actor.LifecycleEvent:
		log.InfoS(ctx, "lifecycle", "pid", e.PID.String(), "stage", e.Stage.String())
	case actor.DeadLetterEvent:
		log.WarnS(ctx, "dead letter", nil, "reason", e.Entry.Reason.String())
	case actor.MailboxEvent:
		log.InfoS(ctx, "mailbox pressure", "pid", e.PID.String())
	case actor.LogEvent:
		log.InfoS(ctx, e.Message, "level", e.Level)
	default:
		log.InfoS(ctx, "event", "type", fmt.Sprintf("%T", evt))
	}
}

// greetMsg asks the greeter to produce a salutation for Name.
type greetMsg struct {
	Name string
}

// heartbeatMsg is what the greeter schedules itself on a fixed rate once
// it has processed its first message.
type heartbeatMsg struct{}

// greeterActor greets callers and, from its first Receive call onward,
// ticks a heartbeat through the system's wired TimerService. The once
// guard is needed because ScheduleRepeatedly requires a live Context,
// which only exists inside a Receive call, not at construction time.
type greeterActor struct {
	scheduleOnce sync.Once
	beats        int
}

func (g *greeterActor) Receive(ctx *actor.Context, view actor.AnyMessageView) error {
	g.scheduleOnce.Do(func() {
		self := ctx.Self()
		_, err := ctx.ScheduleRepeatedly(time.Second, time.Second, self, actor.NewAnyMessage(heartbeatMsg{}))
		if err != nil {
			log.WarnS(context.Background(), "heartbeat scheduling failed", err)
		}
	})

	if msg, ok := actor.Downcast[greetMsg](view); ok {
		reply := fmt.Sprintf("hello, %s", msg.Name)
		if sender, senderOK := ctx.SenderRef(); senderOK {
			return sender.Tell(actor.NewAnyMessage(reply))
		}
		return nil
	}

	if _, ok := actor.Downcast[heartbeatMsg](view); ok {
		g.beats++
		log.InfoS(context.Background(), "greeter heartbeat", "beats", g.beats)
	}

	return nil
}

func spawnGreeter(system *actor.ActorSystem) (actor.ActorRef, error) {
	return system.Spawn(actor.NewProps(
		func() actor.Actor { return &greeterActor{} },
		actor.WithName("greeter"),
		actor.WithSupervisor(actor.SupervisorOptions{
			Strategy:      actor.OneForOne,
			Decider:       actor.DefaultDecider,
			MaxRestarts:   3,
			RestartWindow: time.Minute,
		}),
	))
}

func runGreetings(ctx context.Context, greeter actor.ActorRef, pool *actorutil.Pool[greetMsg, string]) error {
	names := []string{"ada", "grace", "margaret", "barbara"}

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		g.Go(func() error {
			askCtx, cancel := context.WithTimeout(gctx, time.Second)
			defer cancel()

			resp := greeter.Ask(askCtx, actor.NewAnyMessage(greetMsg{Name: name}))
			reply, err := resp.Await(askCtx).Unpack()
			if err != nil {
				return fmt.Errorf("greeting %s: %w", name, err)
			}

			text, _ := actor.Downcast[string](reply.View())
			log.InfoS(ctx, "greeting received", "text", text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	poolCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	results := pool.BroadcastAsk(poolCtx, greetMsg{Name: "pool"})
	for i, res := range results {
		val, err := res.Unpack()
		if err != nil {
			log.WarnS(ctx, "pool member failed", err, "index", i)
			continue
		}
		log.InfoS(ctx, "pool reply", "index", i, "text", val)
	}

	return nil
}

func spawnWorkerPool(system *actor.ActorSystem, size int) (*actorutil.Pool[greetMsg, string], error) {
	return actorutil.NewPool(actorutil.PoolConfig[greetMsg, string]{
		ID:     "greeter-pool",
		Size:   size,
		System: system,
		Factory: func(idx int) actor.ActorFactory {
			return func() actor.Actor {
				return actor.NewFunctionActor(func(ctx *actor.Context, view actor.AnyMessageView) error {
					msg, ok := actor.Downcast[greetMsg](view)
					if !ok {
						return nil
					}
					reply := fmt.Sprintf("worker %d says hi to %s", idx, msg.Name)
					if sender, ok := ctx.SenderRef(); ok {
						return sender.Tell(actor.NewAnyMessage(reply))
					}
					return nil
				})
			}
		},
	})
}
