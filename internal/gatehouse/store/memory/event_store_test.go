package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/sejink/gatehouse/internal/gatehouse/store"
	"github.com/sejink/gatehouse/internal/gatehouse/store/memory"
	"github.com/sejink/gatehouse/internal/gatehouse/types"
)

const retention = 30 * 24 * time.Hour

func record(at time.Time, mode string) store.LogRecord {
	return store.LogRecord{
		RecordedAt: at,
		RegDate:    at.Format("2006-01-02 15:04:05"),
		Detail:     types.EventDetail{Mode: mode},
	}
}

func TestRecord_AppendsWhileNothingExpired(t *testing.T) {
	es := memory.NewEventLogStore(retention)
	ctx := context.Background()
	now := time.Now().UTC()

	first, err := es.Record(ctx, record(now.Add(-time.Hour), "open"))
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	second, err := es.Record(ctx, record(now, "open"))
	if err != nil {
		t.Fatalf("second record: %v", err)
	}

	if first.ID == second.ID {
		t.Errorf("expected distinct IDs, both got %d", first.ID)
	}
	if n, _ := es.Count(ctx); n != 2 {
		t.Errorf("expected count 2, got %d", n)
	}
}

func TestRecord_ReusesOldestExpiredSlot(t *testing.T) {
	es := memory.NewEventLogStore(retention)
	ctx := context.Background()
	now := time.Now().UTC()

	oldest, _ := es.Record(ctx, record(now.Add(-40*24*time.Hour), "open"))
	_, _ = es.Record(ctx, record(now.Add(-35*24*time.Hour), "open"))
	_, _ = es.Record(ctx, record(now.Add(-time.Hour), "open"))

	fresh, err := es.Record(ctx, record(now, "exit"))
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if fresh.ID != oldest.ID {
		t.Errorf("expected reuse of slot %d, got %d", oldest.ID, fresh.ID)
	}
	// Two expired slots existed; only the oldest is consumed per write.
	if n, _ := es.Count(ctx); n != 3 {
		t.Errorf("expected count to stay 3, got %d", n)
	}
}

func TestRecord_RecentSlotIsNotReused(t *testing.T) {
	es := memory.NewEventLogStore(retention)
	ctx := context.Background()
	now := time.Now().UTC()

	kept, _ := es.Record(ctx, record(now.Add(-29*24*time.Hour), "open"))

	fresh, err := es.Record(ctx, record(now, "open"))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if fresh.ID == kept.ID {
		t.Error("a record inside the horizon must not be overwritten")
	}
}

func TestList_NewestFirst(t *testing.T) {
	es := memory.NewEventLogStore(retention)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		_, _ = es.Record(ctx, record(now.Add(time.Duration(i)*time.Minute), "open"))
	}

	page, err := es.List(ctx, 1, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(page))
	}
	if !page[0].RecordedAt.After(page[1].RecordedAt) {
		t.Error("expected newest-first ordering")
	}

	rest, err := es.List(ctx, 2, 2)
	if err != nil {
		t.Fatalf("List page 2: %v", err)
	}
	if len(rest) != 1 {
		t.Errorf("expected 1 entry on page 2, got %d", len(rest))
	}
}
