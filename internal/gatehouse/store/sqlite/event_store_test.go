package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/sejink/gatehouse/internal/gatehouse/store"
	sqlitestore "github.com/sejink/gatehouse/internal/gatehouse/store/sqlite"
	"github.com/sejink/gatehouse/internal/gatehouse/types"
)

const retention = 30 * 24 * time.Hour

func record(at time.Time, actor, mode string) store.LogRecord {
	a := actor
	return store.LogRecord{
		RecordedAt: at,
		RegDate:    at.Format("2006-01-02 15:04:05"),
		ActorID:    &a,
		Detail:     types.EventDetail{IP: "10.0.0.5", Mode: mode},
		UserAgent:  "test-ua",
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Record — append vs reuse
// ═══════════════════════════════════════════════════════════════════════════

func TestEventLogStore_Record_AppendsWhenNothingExpired(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	es := sqlitestore.NewEventLogStore(conn, w, retention)

	now := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	r1, err := es.Record(ctx, record(now, "alice", "open"))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	r2, err := es.Record(ctx, record(now.Add(time.Minute), "bob", "open"))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	if r1.ID == r2.ID {
		t.Errorf("expected distinct IDs for fresh records, both %d", r1.ID)
	}
	if n, _ := es.Count(ctx); n != 2 {
		t.Errorf("expected count=2, got %d", n)
	}
}

func TestEventLogStore_Record_ReusesOldestExpired(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	es := sqlitestore.NewEventLogStore(conn, w, retention)

	now := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	// Two expired records; the older of the two must be the reuse target.
	older, err := es.Record(ctx, record(now.Add(-40*24*time.Hour), "alice", "open"))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	newerExpired, err := es.Record(ctx, record(now.Add(-35*24*time.Hour), "bob", "open"))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	reused, err := es.Record(ctx, record(now, "carol", "exit"))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	if reused.ID != older.ID {
		t.Errorf("expected reuse of oldest expired id=%d, got id=%d", older.ID, reused.ID)
	}
	if reused.ID == newerExpired.ID {
		t.Error("reused the wrong expired record")
	}
	if n, _ := es.Count(ctx); n != 2 {
		t.Errorf("expected count to stay at 2 after reuse, got %d", n)
	}

	// The reused identity must now carry the new fields.
	recs, err := es.List(ctx, 1, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if recs[0].ID != reused.ID || recs[0].Detail.Mode != "exit" {
		t.Errorf("expected newest record to be the reused one with mode=exit, got %+v", recs[0])
	}
}

func TestEventLogStore_Record_FreshRecordsNotReused(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	es := sqlitestore.NewEventLogStore(conn, w, retention)

	now := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	// 29 days old: inside the horizon, must not be overwritten.
	if _, err := es.Record(ctx, record(now.Add(-29*24*time.Hour), "alice", "open")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := es.Record(ctx, record(now, "bob", "open")); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if n, _ := es.Count(ctx); n != 2 {
		t.Errorf("expected count=2, got %d", n)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// List — ordering and pagination
// ═══════════════════════════════════════════════════════════════════════════

func TestEventLogStore_List_NewestFirstWithOffset(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	es := sqlitestore.NewEventLogStore(conn, w, retention)

	base := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := es.Record(ctx, record(base.Add(time.Duration(i)*time.Minute), "alice", "open")); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	page1, err := es.List(ctx, 1, 2)
	if err != nil {
		t.Fatalf("List page 1: %v", err)
	}
	if len(page1) != 2 {
		t.Fatalf("expected 2 records on page 1, got %d", len(page1))
	}
	if !page1[0].RecordedAt.After(page1[1].RecordedAt) {
		t.Error("expected newest-first ordering")
	}
	if page1[0].RecordedAt != base.Add(4*time.Minute) {
		t.Errorf("expected newest record first, got %v", page1[0].RecordedAt)
	}

	page3, err := es.List(ctx, 3, 2)
	if err != nil {
		t.Fatalf("List page 3: %v", err)
	}
	if len(page3) != 1 {
		t.Fatalf("expected 1 record on page 3, got %d", len(page3))
	}
	if page3[0].RecordedAt != base {
		t.Errorf("expected oldest record on last page, got %v", page3[0].RecordedAt)
	}
}

func TestEventLogStore_List_RoundTripsDetailAndEvidence(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	es := sqlitestore.NewEventLogStore(conn, w, retention)

	now := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	evidence := "data:image/jpg;base64,abcd"
	rec := record(now, "alice", "open")
	rec.Evidence = &evidence
	rec.Detail.Client = &types.ClientInfo{Platform: "linux", Language: "ko-KR"}

	if _, err := es.Record(ctx, rec); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := es.List(ctx, 1, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].Evidence == nil || *got[0].Evidence != evidence {
		t.Errorf("evidence mismatch: %v", got[0].Evidence)
	}
	if got[0].Detail.Client == nil || got[0].Detail.Client.Platform != "linux" {
		t.Errorf("client detail mismatch: %+v", got[0].Detail.Client)
	}
	if got[0].ActorID == nil || *got[0].ActorID != "alice" {
		t.Errorf("actor mismatch: %v", got[0].ActorID)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// ClearEvidenceOlderThan
// ═══════════════════════════════════════════════════════════════════════════

func TestEventLogStore_ClearEvidence_OnlyExpired(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	es := sqlitestore.NewEventLogStore(conn, w, retention)

	now := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	evidence := "data:image/jpg;base64,old"
	expired := record(now.Add(-40*24*time.Hour), "alice", "open")
	expired.Evidence = &evidence
	if _, err := es.Record(ctx, expired); err != nil {
		t.Fatalf("Record: %v", err)
	}

	freshEvidence := "data:image/jpg;base64,new"
	fresh := record(now, "bob", "open")
	fresh.Evidence = &freshEvidence
	if _, err := es.Record(ctx, fresh); err != nil {
		t.Fatalf("Record: %v", err)
	}

	cleared, err := es.ClearEvidenceOlderThan(ctx, now.Add(-retention))
	if err != nil {
		t.Fatalf("ClearEvidenceOlderThan: %v", err)
	}
	if cleared != 1 {
		t.Errorf("expected 1 cleared, got %d", cleared)
	}

	recs, err := es.List(ctx, 1, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, r := range recs {
		switch {
		case r.ActorID != nil && *r.ActorID == "alice" && r.Evidence != nil:
			t.Error("expected expired record's evidence cleared")
		case r.ActorID != nil && *r.ActorID == "bob" && r.Evidence == nil:
			t.Error("expected fresh record's evidence kept")
		}
	}
}
