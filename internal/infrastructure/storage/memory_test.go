package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"TenderMonitor/internal/domain"
)

func TestMarkSeenIsIdempotent(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("marking an id seen twice equals marking it once", prop.ForAll(
		func(id string) bool {
			ctx := context.Background()
			once := NewMemoryLifecycle()
			twice := NewMemoryLifecycle()

			_ = once.MarkSeen(ctx, []string{id})
			_ = twice.MarkSeen(ctx, []string{id})
			_ = twice.MarkSeen(ctx, []string{id})

			a, _ := once.States(ctx, []string{id})
			b, _ := twice.States(ctx, []string{id})
			return a[id] == b[id] && a[id].Seen && len(once.seen) == len(twice.seen)
		},
		gen.Identifier(),
	))

	properties.Property("save then hide leaves the id hidden and not saved", prop.ForAll(
		func(id string) bool {
			ctx := context.Background()
			store := NewMemoryLifecycle()
			saved, _ := store.ToggleSaved(ctx, id)
			_ = store.Hide(ctx, id)
			isSaved, _ := store.IsSaved(ctx, id)
			isHidden, _ := store.IsHidden(ctx, id)
			return saved && !isSaved && isHidden
		},
		gen.Identifier(),
	))

	properties.Property("hide then save leaves the id saved and not hidden", prop.ForAll(
		func(id string) bool {
			ctx := context.Background()
			store := NewMemoryLifecycle()
			_ = store.Hide(ctx, id)
			saved, _ := store.ToggleSaved(ctx, id)
			isSaved, _ := store.IsSaved(ctx, id)
			isHidden, _ := store.IsHidden(ctx, id)
			return saved && isSaved && !isHidden
		},
		gen.Identifier(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestMarkSeenKeepsFirstSeen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryLifecycle()
	first := time.Date(2026, time.February, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return first }
	if err := store.MarkSeen(ctx, []string{"A", "", "B"}); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}

	store.now = func() time.Time { return first.Add(time.Hour) }
	if err := store.MarkSeen(ctx, []string{"A"}); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}

	if got := store.seen["A"]; !got.Equal(first) {
		t.Fatalf("first seen moved to %v", got)
	}
	if _, ok := store.seen[""]; ok {
		t.Fatalf("empty ids must be ignored")
	}
}

func TestToggleSavedFlips(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryLifecycle()

	saved, _ := store.ToggleSaved(ctx, "A")
	if !saved {
		t.Fatalf("first toggle should save")
	}
	saved, _ = store.ToggleSaved(ctx, "A")
	if saved {
		t.Fatalf("second toggle should unsave")
	}
	if ok, _ := store.IsSaved(ctx, "A"); ok {
		t.Fatalf("id should not be saved after two toggles")
	}
}

func TestAnnotateAndListSaved(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryLifecycle()
	base := time.Date(2026, time.February, 1, 8, 0, 0, 0, time.UTC)

	store.now = func() time.Time { return base }
	_, _ = store.ToggleSaved(ctx, "old")
	store.now = func() time.Time { return base.Add(time.Hour) }
	_, _ = store.ToggleSaved(ctx, "new")

	if err := store.Annotate(ctx, "old", "revisar bases"); err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if err := store.Annotate(ctx, "ghost", "x"); !errors.Is(err, ErrNotSaved) {
		t.Fatalf("expected ErrNotSaved, got %v", err)
	}

	entries, err := store.ListSaved(ctx)
	if err != nil {
		t.Fatalf("ListSaved: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "new" || entries[1].ID != "old" {
		t.Fatalf("unexpected order: %+v", entries)
	}
	if entries[1].Note != "revisar bases" {
		t.Fatalf("note not kept: %+v", entries[1])
	}
}

func TestHideIsAtomicForReaders(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryLifecycle()
	ids := make([]string, 50)
	for i := range ids {
		ids[i] = fmt.Sprintf("T-%d", i)
		_, _ = store.ToggleSaved(ctx, ids[i])
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	violations := make(chan string, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			states, _ := store.States(ctx, ids)
			for id, st := range states {
				if st.Saved && st.Hidden {
					select {
					case violations <- id:
					default:
					}
					return
				}
			}
		}
	}()

	for _, id := range ids {
		_ = store.Hide(ctx, id)
	}
	close(stop)
	wg.Wait()

	select {
	case id := <-violations:
		t.Fatalf("reader observed %s both saved and hidden", id)
	default:
	}
}

func TestMemoryDetailCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cache := NewMemoryDetailCache(nil)

	detail := domain.TenderDetail{TenderSummary: domain.TenderSummary{ID: "A", Title: "Servicio de Geotecnia"}}
	if err := cache.Put(ctx, "A", detail); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := cache.Put(ctx, "A", detail); err != nil {
		t.Fatalf("Put again: %v", err)
	}
	if cache.Len() != 1 {
		t.Fatalf("double put should leave one entry, got %d", cache.Len())
	}

	got, err := cache.LookupBatch(ctx, []string{"A", "B", "A"})
	if err != nil {
		t.Fatalf("LookupBatch: %v", err)
	}
	if len(got) != 1 || got["A"].Title != "Servicio de Geotecnia" {
		t.Fatalf("unexpected lookup: %+v", got)
	}
	if _, ok := got["B"]; ok {
		t.Fatalf("absent ids must be missing from the result")
	}
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cache := NewMemoryDetailCache(nil)
	cache.entries["broken"] = []byte(`{"detail": {"id": 42`)
	cache.entries["empty"] = []byte(`{}`)

	got, err := cache.LookupBatch(ctx, []string{"broken", "empty"})
	if err != nil {
		t.Fatalf("corruption must not surface as an error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("corrupt entries should be misses, got %+v", got)
	}
}

func TestPutFillsMissingID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cache := NewMemoryDetailCache(nil)
	if err := cache.Put(ctx, "X-1", domain.TenderDetail{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, _ := cache.LookupBatch(ctx, []string{"X-1"})
	if got["X-1"].ID != "X-1" {
		t.Fatalf("expected id to be filled from the key, got %+v", got)
	}
}
