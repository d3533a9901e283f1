package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	dbpkg "github.com/sejink/gatehouse/internal/db"
	"github.com/sejink/gatehouse/internal/gatehouse/store"
)

// EventLogStore is the durable rolling event log.  Writes go through the
// single-writer worker so the rotation's find-oldest-expired + overwrite
// pair runs inside one transaction: concurrent writers can never pick the
// same reuse target or double-append past the rolling bound.
type EventLogStore struct {
	db        *sql.DB
	writer    *dbpkg.Worker
	retention time.Duration
}

func NewEventLogStore(db *sql.DB, writer *dbpkg.Worker, retention time.Duration) *EventLogStore {
	return &EventLogStore{db: db, writer: writer, retention: retention}
}

func (s *EventLogStore) Record(ctx context.Context, rec store.LogRecord) (store.LogRecord, error) {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	recordedMs := rec.RecordedAt.UTC().UnixMilli()
	cutoffMs := rec.RecordedAt.Add(-s.retention).UTC().UnixMilli()

	detail, err := json.Marshal(rec.Detail)
	if err != nil {
		return store.LogRecord{}, fmt.Errorf("Record marshal detail: %w", err)
	}

	var actorID any
	if rec.ActorID != nil {
		actorID = *rec.ActorID
	}
	var evidence any
	if rec.Evidence != nil {
		evidence = *rec.Evidence
	}

	out := rec
	err = s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		// Oldest expired record, if any.  Running the pick and the
		// overwrite in the same transaction is what makes rotation atomic.
		var reuseID int64
		err := tx.QueryRowContext(ctx, `
SELECT id FROM access_log
WHERE recorded_at_ms < ?
ORDER BY recorded_at_ms ASC
LIMIT 1;
`, cutoffMs).Scan(&reuseID)

		switch {
		case err == sql.ErrNoRows:
			res, err := tx.ExecContext(ctx, `
INSERT INTO access_log(recorded_at_ms, regdate, actor_id, event_json, evidence, user_agent)
VALUES (?, ?, ?, ?, ?, ?);
`, recordedMs, rec.RegDate, actorID, string(detail), evidence, rec.UserAgent)
			if err != nil {
				return fmt.Errorf("Record insert: %w", err)
			}
			out.ID, _ = res.LastInsertId()
			return nil

		case err != nil:
			return fmt.Errorf("Record pick reuse target: %w", err)

		default:
			if _, err := tx.ExecContext(ctx, `
UPDATE access_log
SET recorded_at_ms = ?, regdate = ?, actor_id = ?, event_json = ?, evidence = ?, user_agent = ?
WHERE id = ?;
`, recordedMs, rec.RegDate, actorID, string(detail), evidence, rec.UserAgent, reuseID); err != nil {
				return fmt.Errorf("Record overwrite expired: %w", err)
			}
			out.ID = reuseID
			return nil
		}
	})
	if err != nil {
		return store.LogRecord{}, err
	}
	return out, nil
}

func (s *EventLogStore) List(ctx context.Context, page, pageSize int) ([]store.LogRecord, error) {
	skip := (page - 1) * pageSize

	rows, err := s.db.QueryContext(ctx, `
SELECT id, recorded_at_ms, regdate, actor_id, event_json, evidence, user_agent
FROM access_log
ORDER BY recorded_at_ms DESC
LIMIT ? OFFSET ?;
`, pageSize, skip)
	if err != nil {
		return nil, fmt.Errorf("List query: %w", err)
	}
	defer rows.Close()

	var out []store.LogRecord
	for rows.Next() {
		var (
			rec        store.LogRecord
			recordedMs int64
			actorID    sql.NullString
			evidence   sql.NullString
			detail     string
		)
		if err := rows.Scan(&rec.ID, &recordedMs, &rec.RegDate, &actorID, &detail, &evidence, &rec.UserAgent); err != nil {
			return nil, fmt.Errorf("List scan: %w", err)
		}
		rec.RecordedAt = time.UnixMilli(recordedMs).UTC()
		if actorID.Valid {
			v := actorID.String
			rec.ActorID = &v
		}
		if evidence.Valid {
			v := evidence.String
			rec.Evidence = &v
		}
		if err := json.Unmarshal([]byte(detail), &rec.Detail); err != nil {
			return nil, fmt.Errorf("List unmarshal detail id=%d: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List rows: %w", err)
	}
	return out, nil
}

func (s *EventLogStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM access_log;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return n, nil
}

func (s *EventLogStore) ClearEvidenceOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var cleared int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE access_log
SET evidence = NULL
WHERE recorded_at_ms < ? AND evidence IS NOT NULL;
`, cutoffMs)
		if err != nil {
			return fmt.Errorf("ClearEvidenceOlderThan: %w", err)
		}
		cleared, _ = res.RowsAffected()
		return nil
	})
	return cleared, err
}
