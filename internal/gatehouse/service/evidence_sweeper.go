package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sejink/gatehouse/internal/gatehouse/store"
)

// EvidenceSweeper periodically clears the evidence payload of log records
// already past the retention horizon.  Those records sit waiting for the
// rolling log to reuse them; sweeping keeps them from pinning large base64
// images in the meantime.  The record rows themselves are untouched.
//
// A retention of 0 disables sweeping entirely.
type EvidenceSweeper struct {
	store     store.EventLogStore
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	cancel    context.CancelFunc
	done      chan struct{}
}

// SweeperConfig holds the parameters for NewEvidenceSweeper.
type SweeperConfig struct {
	// RetentionDays matches the rolling log's horizon; evidence of records
	// older than this is cleared.  0 disables the sweeper.
	RetentionDays int

	// IntervalHours is how often the sweeper runs.  Defaults to 6.
	IntervalHours int
}

// NewEvidenceSweeper creates a sweeper but does not start it.
// Call Start to begin the background loop.
func NewEvidenceSweeper(s store.EventLogStore, cfg SweeperConfig, logger *slog.Logger) *EvidenceSweeper {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &EvidenceSweeper{
		store:     s,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:  interval,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start begins the background loop: an immediate sweep on startup, then one
// per interval.  The loop exits when ctx is cancelled or Stop is called.
func (p *EvidenceSweeper) Start(ctx context.Context) {
	if p.retention <= 0 {
		p.logger.Info("evidence sweeper disabled (retention=0)")
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)

	go p.loop(ctx)

	p.logger.Info("evidence sweeper started",
		"retention_days", int(p.retention.Hours()/24),
		"interval_hours", int(p.interval.Hours()))
}

// Stop signals the sweeper to exit and waits for it to finish.
func (p *EvidenceSweeper) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *EvidenceSweeper) loop(ctx context.Context) {
	defer close(p.done)

	// Run immediately on startup to clean up any backlog.
	p.sweep(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *EvidenceSweeper) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-p.retention)
	cleared, err := p.store.ClearEvidenceOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Warn("evidence sweep error", "err", err)
		return
	}
	if cleared > 0 {
		p.logger.Info("evidence sweep", "cleared", cleared, "cutoff", cutoff.Format(time.RFC3339))
	}
}
