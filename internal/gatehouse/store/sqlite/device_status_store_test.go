package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sejink/gatehouse/internal/gatehouse/store"
	sqlitestore "github.com/sejink/gatehouse/internal/gatehouse/store/sqlite"
)

func TestDeviceStatusStore_UpsertsLatestOutcome(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	ds := sqlitestore.NewDeviceStatusStore(conn, w)

	ctx := context.Background()
	t1 := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)

	if err := ds.MarkSeen(ctx, "main", false, "device unreachable: timeout", t1); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	if err := ds.MarkSeen(ctx, "main", true, "", t1.Add(time.Minute)); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}

	rec, err := ds.Status(ctx, "main")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !rec.LastOK || rec.LastError != "" {
		t.Errorf("expected latest outcome ok, got %+v", rec)
	}
	if !rec.LastSeenAt.Equal(t1.Add(time.Minute)) {
		t.Errorf("expected last_seen %v, got %v", t1.Add(time.Minute), rec.LastSeenAt)
	}
}

func TestDeviceStatusStore_UnknownDevice(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	ds := sqlitestore.NewDeviceStatusStore(conn, w)

	if _, err := ds.Status(context.Background(), "ghost"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
