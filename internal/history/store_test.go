package history

import (
	"fmt"
	"testing"
	"time"

	"adalert/internal/domain"
)

func row(date string, spend float64) domain.DailyMetricData {
	return domain.DailyMetricData{Date: date, Spend: spend}
}

func TestRecordKeepsDatesAscending(t *testing.T) {
	t.Parallel()

	store := NewStore(0)
	now := time.Now().UTC()
	store.Record("google", "c1", row("2026-01-03", 30), now)
	store.Record("google", "c1", row("2026-01-01", 10), now)
	store.Record("google", "c1", row("2026-01-02", 20), now)

	window := store.Window("google", "c1", 0)
	if len(window) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(window))
	}
	for i, want := range []string{"2026-01-01", "2026-01-02", "2026-01-03"} {
		if window[i].Date != want {
			t.Fatalf("expected %s at index %d, got %+v", want, i, window)
		}
	}
}

func TestRecordUpsertsSameDate(t *testing.T) {
	t.Parallel()

	store := NewStore(0)
	now := time.Now().UTC()
	store.Record("google", "c1", row("2026-01-01", 10), now)
	store.Record("google", "c1", row("2026-01-01", 99), now)

	window := store.Window("google", "c1", 0)
	if len(window) != 1 {
		t.Fatalf("expected single row after upsert, got %d", len(window))
	}
	if window[0].Spend != 99 {
		t.Fatalf("expected latest write to win, got %+v", window[0])
	}
}

func TestRecordTrimsRetention(t *testing.T) {
	t.Parallel()

	store := NewStore(3)
	now := time.Now().UTC()
	for i := 1; i <= 5; i++ {
		store.Record("google", "c1", row(fmt.Sprintf("2026-01-%02d", i), float64(i)), now)
	}

	window := store.Window("google", "c1", 0)
	if len(window) != 3 {
		t.Fatalf("expected retention trim to 3 rows, got %d", len(window))
	}
	if window[0].Date != "2026-01-03" {
		t.Fatalf("expected oldest rows dropped, got %+v", window)
	}
}

func TestWindowTrailingSliceIsDetached(t *testing.T) {
	t.Parallel()

	store := NewStore(0)
	now := time.Now().UTC()
	for i := 1; i <= 5; i++ {
		store.Record("google", "c1", row(fmt.Sprintf("2026-01-%02d", i), float64(i)), now)
	}

	window := store.Window("google", "c1", 2)
	if len(window) != 2 || window[0].Date != "2026-01-04" {
		t.Fatalf("expected trailing 2 rows, got %+v", window)
	}

	window[0].Spend = 1000
	fresh := store.Window("google", "c1", 2)
	if fresh[0].Spend == 1000 {
		t.Fatal("expected detached copy, store row was mutated")
	}

	if got := store.Window("unknown", "", 7); got != nil {
		t.Fatalf("expected nil for unknown scope, got %+v", got)
	}
}

func TestLatest(t *testing.T) {
	t.Parallel()

	store := NewStore(0)
	now := time.Now().UTC()
	if _, ok := store.Latest("google", "c1"); ok {
		t.Fatal("expected no latest row for empty scope")
	}

	store.Record("google", "c1", row("2026-01-01", 10), now)
	store.Record("google", "c1", row("2026-01-02", 20), now)
	latest, ok := store.Latest("google", "c1")
	if !ok || latest.Date != "2026-01-02" {
		t.Fatalf("expected newest row, got %+v ok=%v", latest, ok)
	}
}

func TestCompactEvictsIdleScopes(t *testing.T) {
	t.Parallel()

	store := NewStore(0)
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	store.Record("google", "c1", row("2026-01-01", 1), base.Add(-2*time.Hour))
	store.Record("meta", "c2", row("2026-01-01", 1), base)

	removed := store.Compact(base, time.Hour, 0)
	if removed != 1 {
		t.Fatalf("expected 1 evicted scope, got %d", removed)
	}
	if _, ok := store.Latest("google", "c1"); ok {
		t.Fatal("expected idle scope evicted")
	}
	if _, ok := store.Latest("meta", "c2"); !ok {
		t.Fatal("expected active scope kept")
	}
}

func TestCompactEnforcesScopeCap(t *testing.T) {
	t.Parallel()

	store := NewStore(0)
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		store.Record(fmt.Sprintf("p%d", i), "c", row("2026-01-01", 1), base.Add(time.Duration(i)*time.Minute))
	}

	removed := store.Compact(base.Add(time.Hour), 0, 2)
	if removed != 3 {
		t.Fatalf("expected 3 evictions down to cap, got %d", removed)
	}
	if store.Len() != 2 {
		t.Fatalf("expected 2 scopes after cap, got %d", store.Len())
	}
	// Longest-idle scopes go first.
	if _, ok := store.Latest("p4", "c"); !ok {
		t.Fatal("expected most recent scope kept")
	}
	if _, ok := store.Latest("p0", "c"); ok {
		t.Fatal("expected oldest scope evicted")
	}
}
