package events_test

import (
	"testing"

	"junket-admin/internal/events"

	"github.com/rs/zerolog"
)

func TestPublishReachesSubscribers(t *testing.T) {
	t.Parallel()

	bus := events.NewBus(zerolog.Nop())

	var got []events.Event
	unsubscribe := bus.Subscribe(func(e events.Event) { got = append(got, e) })

	bus.Publish(events.Event{Kind: events.DraftChanged, BatchID: 101, ChangeCount: 2})
	unsubscribe()
	bus.Publish(events.Event{Kind: events.DraftCleared, BatchID: 101})

	if len(got) != 1 {
		t.Fatalf("expected 1 event after unsubscribe, got %d", len(got))
	}
	if got[0].ID == "" || got[0].At.IsZero() {
		t.Fatalf("expected id and timestamp to be filled, got %+v", got[0])
	}
	if got[0].BatchID != 101 || got[0].ChangeCount != 2 {
		t.Fatalf("unexpected event %+v", got[0])
	}
}
