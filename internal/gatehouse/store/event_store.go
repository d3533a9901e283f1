package store

import (
	"context"
	"time"

	"github.com/sejink/gatehouse/internal/gatehouse/types"
)

// LogRecord is one access event.  ID is the record's stable identity: when
// the rolling log reuses an expired record, the ID survives and every other
// field is overwritten.
type LogRecord struct {
	ID         int64
	RecordedAt time.Time
	RegDate    string // human timestamp in the server's fixed zone
	ActorID    *string
	Detail     types.EventDetail
	Evidence   *string // base64 data-URI, nil when capture failed
	UserAgent  string
}

// EventLogStore is the bounded rolling event log.  Instead of a hard
// capacity, every write first looks for the single oldest record past the
// retention horizon and overwrites it in place; only when none is expired
// does the log grow.  Implementations must execute that find-or-overwrite
// sequence as one atomic unit.
type EventLogStore interface {
	// Record stores rec, reusing the oldest expired record's identity when
	// one exists.  The returned record carries the assigned ID.
	Record(ctx context.Context, rec LogRecord) (LogRecord, error)

	// List returns records newest first.  Pagination is offset based:
	// skip = (page-1)*pageSize.  Bounds are caller-validated.
	List(ctx context.Context, page, pageSize int) ([]LogRecord, error)

	// Count returns the number of records currently stored.
	Count(ctx context.Context) (int64, error)

	// ClearEvidenceOlderThan drops the evidence payload of records recorded
	// before cutoff, returning how many were cleared.  Expired records wait
	// for reuse; this keeps them from pinning large images meanwhile.
	ClearEvidenceOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
