package memory

import (
	"context"
	"sync"
	"time"

	"github.com/sejink/gatehouse/internal/gatehouse/store"
)

// EventLogStore is an in-memory rolling event log for tests and dev.  It
// mirrors the sqlite store's rotation semantics: the single oldest record
// past the retention horizon is overwritten in place, keeping its ID.  The
// whole find-or-overwrite runs under one mutex hold, so it is atomic with
// respect to other writers.
type EventLogStore struct {
	mu        sync.Mutex
	retention time.Duration
	nextID    int64
	records   []store.LogRecord
}

func NewEventLogStore(retention time.Duration) *EventLogStore {
	return &EventLogStore{retention: retention, nextID: 1}
}

func (s *EventLogStore) Record(_ context.Context, rec store.LogRecord) (store.LogRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	cutoff := rec.RecordedAt.Add(-s.retention)

	// Oldest expired record, if any.
	reuse := -1
	for i, r := range s.records {
		if !r.RecordedAt.Before(cutoff) {
			continue
		}
		if reuse == -1 || r.RecordedAt.Before(s.records[reuse].RecordedAt) {
			reuse = i
		}
	}

	if reuse >= 0 {
		rec.ID = s.records[reuse].ID
		s.records[reuse] = rec
		return rec, nil
	}

	rec.ID = s.nextID
	s.nextID++
	s.records = append(s.records, rec)
	return rec, nil
}

func (s *EventLogStore) List(_ context.Context, page, pageSize int) ([]store.LogRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := make([]store.LogRecord, len(s.records))
	copy(sorted, s.records)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].RecordedAt.After(sorted[i].RecordedAt) {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}

	skip := (page - 1) * pageSize
	if skip >= len(sorted) {
		return nil, nil
	}
	end := skip + pageSize
	if end > len(sorted) {
		end = len(sorted)
	}
	out := make([]store.LogRecord, end-skip)
	copy(out, sorted[skip:end])
	return out, nil
}

func (s *EventLogStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.records)), nil
}

func (s *EventLogStore) ClearEvidenceOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cleared int64
	for i := range s.records {
		if s.records[i].RecordedAt.Before(cutoff) && s.records[i].Evidence != nil {
			s.records[i].Evidence = nil
			cleared++
		}
	}
	return cleared, nil
}

// Records returns a copy of all stored records.  Test-only helper.
func (s *EventLogStore) Records() []store.LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.LogRecord, len(s.records))
	copy(out, s.records)
	return out
}
