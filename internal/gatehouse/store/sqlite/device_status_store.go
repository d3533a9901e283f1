package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/sejink/gatehouse/internal/db"
	"github.com/sejink/gatehouse/internal/gatehouse/store"
)

type DeviceStatusStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewDeviceStatusStore(db *sql.DB, writer *dbpkg.Worker) *DeviceStatusStore {
	return &DeviceStatusStore{db: db, writer: writer}
}

func (s *DeviceStatusStore) MarkSeen(ctx context.Context, name string, ok bool, errMsg string, t time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	if t.IsZero() {
		t = time.Now().UTC()
	}
	ms := t.UTC().UnixMilli()

	var lastOK int
	if ok {
		lastOK = 1
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO device_status(device_name, last_seen_at_ms, last_ok, last_error, updated_at_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(device_name) DO UPDATE SET
  last_seen_at_ms = excluded.last_seen_at_ms,
  last_ok = excluded.last_ok,
  last_error = excluded.last_error,
  updated_at_ms = excluded.updated_at_ms;
`, name, ms, lastOK, errMsg, ms); err != nil {
			return fmt.Errorf("MarkSeen %s: %w", name, err)
		}
		return nil
	})
}

func (s *DeviceStatusStore) Status(ctx context.Context, name string) (store.DeviceStatusRecord, error) {
	var (
		rec    store.DeviceStatusRecord
		seenMs sql.NullInt64
		lastOK int
	)
	err := s.db.QueryRowContext(ctx, `
SELECT device_name, last_seen_at_ms, last_ok, last_error
FROM device_status
WHERE device_name = ?;
`, name).Scan(&rec.DeviceName, &seenMs, &lastOK, &rec.LastError)
	if err == sql.ErrNoRows {
		return store.DeviceStatusRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.DeviceStatusRecord{}, fmt.Errorf("Status %s: %w", name, err)
	}
	if seenMs.Valid {
		rec.LastSeenAt = time.UnixMilli(seenMs.Int64).UTC()
	}
	rec.LastOK = lastOK == 1
	return rec, nil
}
