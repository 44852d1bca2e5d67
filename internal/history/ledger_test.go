package history

import (
	"context"
	"testing"

	"github.com/example/naijago/internal/models"
)

func entry(id string) models.HistoryEntry {
	return models.HistoryEntry{ID: id, Service: models.ServiceRide, Pickup: "Ikeja", Dropoff: "Lekki", Fare: "₦2500"}
}

func TestMemoryLedgerPrependsMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	for _, id := range []string{"a", "b", "c"} {
		if err := l.Append(ctx, entry(id)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, err := l.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"c", "b", "a"}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("entry %d: got %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestMemoryLedgerClearThenAppend(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	_ = l.Append(ctx, entry("a"))
	_ = l.Append(ctx, entry("b"))
	if err := l.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, _ := l.List(ctx)
	if len(got) != 0 {
		t.Fatalf("expected empty ledger after clear, got %d", len(got))
	}
	_ = l.Append(ctx, entry("c"))
	got, _ = l.List(ctx)
	if len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("append after clear should behave as on empty ledger, got %v", got)
	}
}

func TestMemoryLedgerListIsACopy(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	_ = l.Append(ctx, entry("a"))
	got, _ := l.List(ctx)
	got[0].ID = "mutated"
	again, _ := l.List(ctx)
	if again[0].ID != "a" {
		t.Fatal("List must return a copy, not the backing slice")
	}
}
