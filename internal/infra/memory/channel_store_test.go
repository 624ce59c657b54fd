package memory

import "testing"

func TestChannelStoreLifecycle(t *testing.T) {
	store := NewChannelStore(4)

	channel := store.GetOrCreate("course-1")
	if channel == nil {
		t.Fatalf("expected channel")
	}
	if again := store.GetOrCreate("course-1"); again != channel {
		t.Fatalf("expected the same channel for the same course")
	}
	if _, ok := store.Get("course-1"); !ok {
		t.Fatalf("expected channel present")
	}

	store.DeleteIfEmpty("course-1")
	if _, ok := store.Get("course-1"); ok {
		t.Fatalf("expected channel removed when empty")
	}
	if store.Len() != 0 {
		t.Fatalf("expected no channels, got %d", store.Len())
	}

	if fresh := store.GetOrCreate("course-1"); fresh == channel {
		t.Fatalf("expected a fresh channel after retirement")
	}
}

func TestChannelStoreDeleteUnknownCourse(t *testing.T) {
	store := NewChannelStore(0)
	store.DeleteIfEmpty("missing")
	if store.Len() != 0 {
		t.Fatalf("expected empty store")
	}
}
