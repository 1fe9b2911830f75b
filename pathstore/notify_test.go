package pathstore

import (
	"testing"

	"github.com/wbrown/janus-pathstore/pathstore/codec"
)

func TestHubPathSubscription(t *testing.T) {
	hub := NewHub()
	store := NewNotifyingStore(NewMemoryStore(codec.JSON{}), hub)
	watched := NewPath(1, 1, 1)

	var got []Path
	sub := hub.Subscribe(watched, func(p Path, _ Sample) {
		got = append(got, p)
	})

	if err := Set(store, watched, "a"); err != nil {
		t.Fatal(err)
	}
	if err := Set(store, NewPath(1, 1, 2), "other"); err != nil {
		t.Fatal(err)
	}

	if len(got) != 1 || got[0] != watched {
		t.Errorf("deliveries = %v, want exactly the watched path", got)
	}

	sub.Cancel()
	if err := Set(store, watched, "b"); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("delivery after cancel: %v", got)
	}
	sub.Cancel() // second cancel is a no-op
}

func TestHubModelSubscription(t *testing.T) {
	hub := NewHub()
	store := NewNotifyingStore(NewMemoryStore(codec.JSON{}), hub)

	count := 0
	sub := hub.SubscribeModel(1, func(Path, Sample) { count++ })
	defer sub.Cancel()

	if err := Set(store, NewPath(1, 1, 1), "a"); err != nil {
		t.Fatal(err)
	}
	if err := Set(store, NewPath(1, 2, 5), "b"); err != nil {
		t.Fatal(err)
	}
	if err := Set(store, NewPath(2, 1, 1), "other model"); err != nil {
		t.Fatal(err)
	}

	if count != 2 {
		t.Errorf("model deliveries = %d, want 2", count)
	}
}

func TestNotifyingStorePublishesStampedSample(t *testing.T) {
	hub := NewHub()
	store := NewNotifyingStore(NewMemoryStore(codec.JSON{}), hub)
	path := NewPath(1, 1, 1)

	var published Sample
	sub := hub.Subscribe(path, func(_ Path, s Sample) { published = s })
	defer sub.Cancel()

	if err := Set(store, path, "v"); err != nil {
		t.Fatal(err)
	}
	if published.Date.IsZero() {
		t.Error("published sample missing its write date")
	}
	if len(published.Data) == 0 {
		t.Error("published sample missing its data")
	}
}
