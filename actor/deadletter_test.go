package actor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDeadLetterRouterPublishesEntry(t *testing.T) {
	t.Parallel()

	events := NewEventStream()
	sink := make(chan Event, 1)
	sub := events.Subscribe(sink, nil)
	defer sub.Unsubscribe()

	router := NewDeadLetterRouter(events)

	sender := PID{Value: 1, Generation: 1}
	recipient := PID{Value: 2, Generation: 1}
	msg := NewAnyMessage("undeliverable")

	router.Route(msg, ReasonRecipientUnavailable, &sender, &recipient)

	select {
	case evt := <-sink:
		dl := evt.(DeadLetterEvent)
		require.Equal(t, ReasonRecipientUnavailable, dl.Entry.Reason)
		require.Equal(t, sender, *dl.Entry.Sender)
		require.Equal(t, recipient, *dl.Entry.Recipient)
		require.Equal(t, "undeliverable", dl.Entry.Message.Payload())
	case <-time.After(time.Second):
		t.Fatal("expected a dead-letter event")
	}
}

func TestDeadLetterRouterNilEventsIsNoop(t *testing.T) {
	t.Parallel()

	router := NewDeadLetterRouter(nil)
	require.NotPanics(t, func() {
		router.Route(NewAnyMessage("x"), ReasonExplicitRouting, nil, nil)
	})
}

func TestDeadLetterReasonString(t *testing.T) {
	t.Parallel()

	cases := map[DeadLetterReason]string{
		ReasonMailboxFull:            "mailbox_full",
		ReasonMailboxSuspended:       "mailbox_suspended",
		ReasonRecipientUnavailable:   "recipient_unavailable",
		ReasonMissingRecipient:       "missing_recipient",
		ReasonFatalActorError:        "fatal_actor_error",
		ReasonExplicitRouting:        "explicit_routing",
		DeadLetterReason(255):        "unknown",
	}

	for reason, want := range cases {
		require.Equal(t, want, reason.String())
	}
}
