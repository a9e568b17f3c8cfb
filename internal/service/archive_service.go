package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alphadeck/papertrade/internal/domain"
)

// ArchiveService periodically moves aged trades and resolved transactions
// to cold storage and prunes them from the database.
type ArchiveService struct {
	archiver  domain.Archiver
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger

	now func() time.Time
}

// NewArchiveService creates an ArchiveService. Rows older than retention
// are archived; the sweep runs every interval.
func NewArchiveService(archiver domain.Archiver, retention, interval time.Duration, logger *slog.Logger) *ArchiveService {
	return &ArchiveService{
		archiver:  archiver,
		retention: retention,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *ArchiveService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "archive_service: sweep failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce performs a single archive sweep.
func (s *ArchiveService) RunOnce(ctx context.Context) error {
	before := s.now().Add(-s.retention)

	trades, err := s.archiver.ArchiveTrades(ctx, before)
	if err != nil {
		return fmt.Errorf("archive_service: trades: %w", err)
	}

	transactions, err := s.archiver.ArchiveTransactions(ctx, before)
	if err != nil {
		return fmt.Errorf("archive_service: transactions: %w", err)
	}

	if trades > 0 || transactions > 0 {
		s.logger.InfoContext(ctx, "archive_service: sweep complete",
			slog.Int64("trades", trades),
			slog.Int64("transactions", transactions),
			slog.Time("before", before),
		)
	}
	return nil
}
