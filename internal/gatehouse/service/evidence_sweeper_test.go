package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sejink/gatehouse/internal/gatehouse/service"
	"github.com/sejink/gatehouse/internal/gatehouse/store"
	"github.com/sejink/gatehouse/internal/gatehouse/store/memory"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEvidenceSweeper_DisabledWhenRetentionZero(t *testing.T) {
	es := memory.NewEventLogStore(30 * 24 * time.Hour)
	sweeper := service.NewEvidenceSweeper(es, service.SweeperConfig{
		RetentionDays: 0,
		IntervalHours: 1,
	}, silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper.Start(ctx)
	// Stop should return immediately without error.
	sweeper.Stop()
}

func TestEvidenceSweeper_ClearsExpiredEvidenceOnly(t *testing.T) {
	es := memory.NewEventLogStore(365 * 24 * time.Hour)
	ctx := context.Background()

	uri := "data:image/jpg;base64,abcd"

	// One record past the horizon (40 days ago), one recent.
	old := store.LogRecord{
		RecordedAt: time.Now().UTC().AddDate(0, 0, -40),
		Evidence:   &uri,
	}
	if _, err := es.Record(ctx, old); err != nil {
		t.Fatalf("insert old: %v", err)
	}
	recent := store.LogRecord{
		RecordedAt: time.Now().UTC().AddDate(0, 0, -1),
		Evidence:   &uri,
	}
	if _, err := es.Record(ctx, recent); err != nil {
		t.Fatalf("insert recent: %v", err)
	}

	// Clear via the store, same call the sweeper loop makes.
	cutoff := time.Now().UTC().AddDate(0, 0, -30)
	cleared, err := es.ClearEvidenceOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("ClearEvidenceOlderThan: %v", err)
	}
	if cleared != 1 {
		t.Errorf("expected 1 cleared, got %d", cleared)
	}

	for _, rec := range es.Records() {
		expired := rec.RecordedAt.Before(cutoff)
		if expired && rec.Evidence != nil {
			t.Error("expired record kept its evidence")
		}
		if !expired && rec.Evidence == nil {
			t.Error("recent record lost its evidence")
		}
	}
}

func TestEvidenceSweeper_StopIsIdempotent(t *testing.T) {
	es := memory.NewEventLogStore(30 * 24 * time.Hour)
	sweeper := service.NewEvidenceSweeper(es, service.SweeperConfig{
		RetentionDays: 30,
		IntervalHours: 1,
	}, silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	sweeper.Start(ctx)

	cancel()
	// Multiple stops should not panic.
	sweeper.Stop()
	sweeper.Stop()
}
