package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSeenAndMark(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	seen, err := store.Seen(ctx, "posting-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen {
		t.Fatal("a fresh store must not know any posting")
	}

	if err := store.Mark(ctx, "posting-1"); err != nil {
		t.Fatalf("marking: %v", err)
	}

	seen, err = store.Seen(ctx, "posting-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !seen {
		t.Fatal("expected the posting to be recorded")
	}
}

func TestMarkIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.Mark(ctx, "posting-1"); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if err := store.Mark(ctx, "posting-1"); err != nil {
		t.Fatalf("second mark must be a no-op: %v", err)
	}
}

func TestCleanupKeepsRecentEntries(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.Mark(ctx, "posting-1"); err != nil {
		t.Fatalf("marking: %v", err)
	}
	if err := store.Cleanup(ctx, 24*time.Hour); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	seen, err := store.Seen(ctx, "posting-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !seen {
		t.Fatal("cleanup must not delete entries younger than the cutoff")
	}
}
