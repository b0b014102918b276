package stream

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHubReplayAndDelivery(t *testing.T) {
	hub, err := NewHub[string]()
	if err != nil {
		t.Fatalf("NewHub() error = %v", err)
	}

	hub.Publish("thread-1", "first")
	hub.Publish("thread-1", "second")

	ch, cancel := hub.Subscribe("thread-1")
	defer cancel()

	hub.Publish("thread-1", "third")

	var got []string
	for i := 0; i < 3; i++ {
		got = append(got, <-ch)
	}

	want := []string{"first", "second", "third"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("subscriber items mismatch (-want +got):\n%s", diff)
	}
}

func TestHubThreadIsolation(t *testing.T) {
	hub, err := NewHub[int]()
	if err != nil {
		t.Fatalf("NewHub() error = %v", err)
	}

	hub.Publish("a", 1)
	hub.Publish("b", 2)

	ch, cancel := hub.Subscribe("a")
	defer cancel()

	if got := <-ch; got != 1 {
		t.Errorf("Subscribe(a) replayed %d, want 1", got)
	}
	select {
	case extra := <-ch:
		t.Errorf("Subscribe(a) received unexpected item %d", extra)
	default:
	}
}

func TestHubCancelStopsDelivery(t *testing.T) {
	hub, err := NewHub[string]()
	if err != nil {
		t.Fatalf("NewHub() error = %v", err)
	}

	ch, cancel := hub.Subscribe("thread-1")
	cancel()

	hub.Publish("thread-1", "late")

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after cancel")
	}
}
