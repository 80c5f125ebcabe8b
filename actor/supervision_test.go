package actor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRestartStatisticsWithinLimit(t *testing.T) {
	t.Parallel()

	stats := NewRestartStatistics(3)
	base := time.Unix(0, 0)

	breached := stats.RecordAndCheck(base, 1, time.Second)
	require.False(t, breached, "first restart within window must not breach maxRestarts=1")
}

func TestRestartStatisticsBreachesOnExcess(t *testing.T) {
	t.Parallel()

	stats := NewRestartStatistics(3)
	base := time.Unix(0, 0)

	require.False(t, stats.RecordAndCheck(base, 1, time.Second))
	breached := stats.RecordAndCheck(base.Add(100*time.Millisecond), 1, time.Second)
	require.True(t, breached, "second restart within the same window must breach maxRestarts=1")
}

func TestRestartStatisticsWindowSlides(t *testing.T) {
	t.Parallel()

	stats := NewRestartStatistics(3)
	base := time.Unix(0, 0)

	require.False(t, stats.RecordAndCheck(base, 1, time.Second))
	// A restart well outside the window does not count the earlier one.
	breached := stats.RecordAndCheck(base.Add(2*time.Second), 1, time.Second)
	require.False(t, breached)
}

func TestRestartStatisticsZeroCapacityAlwaysBreaches(t *testing.T) {
	t.Parallel()

	stats := NewRestartStatistics(0)
	breached := stats.RecordAndCheck(time.Unix(0, 0), 0, time.Second)
	require.True(t, breached)
}

func TestRestartStatisticsReset(t *testing.T) {
	t.Parallel()

	stats := NewRestartStatistics(3)
	base := time.Unix(0, 0)
	require.False(t, stats.RecordAndCheck(base, 1, time.Second))

	stats.Reset()

	breached := stats.RecordAndCheck(base.Add(100*time.Millisecond), 1, time.Second)
	require.False(t, breached, "a reset window must forget prior restarts")
}

func TestDirectiveString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "restart", DirectiveRestart.String())
	require.Equal(t, "stop", DirectiveStop.String())
	require.Equal(t, "escalate", DirectiveEscalate.String())
}

func TestDefaultDeciderRestartsOnActorError(t *testing.T) {
	t.Parallel()

	require.Equal(t, DirectiveRestart, DefaultDecider(ActorPath{}, NewRecoverableError("oops")))
	require.Equal(t, DirectiveRestart, DefaultDecider(ActorPath{}, NewFatalError("oops")))
}

func TestDefaultDeciderEscalatesOnUnknownError(t *testing.T) {
	t.Parallel()

	require.Equal(t, DirectiveEscalate, DefaultDecider(ActorPath{}, ErrActorTerminated))
}
