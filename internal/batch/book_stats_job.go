package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"clientes-service/internal/domain/customer"
	"clientes-service/internal/infrastructure/monitoring"

	"github.com/shopspring/decimal"
)

// StatsSource is the slice of the customer repository the job reads from.
type StatsSource interface {
	Stats(ctx context.Context) (*customer.BookStats, error)
}

// RefreshBookStatsJob publishes the customer count and the summed credit
// limit as gauges. It only reads, so it never contends for row locks.
type RefreshBookStatsJob struct {
	source StatsSource
	record func(customers int64, total decimal.Decimal)
	logger *slog.Logger
}

func NewRefreshBookStatsJob(source StatsSource, logger *slog.Logger) *RefreshBookStatsJob {
	if source == nil || logger == nil {
		panic("RefreshBookStatsJob dependencies cannot be nil")
	}
	return &RefreshBookStatsJob{
		source: source,
		record: monitoring.RecordBook,
		logger: logger.With("job", "RefreshBookStats"),
	}
}

func (j *RefreshBookStatsJob) Run(ctx context.Context) error {
	startTime := time.Now()
	j.logger.DebugContext(ctx, "Starting customer book stats refresh.")

	stats, err := j.source.Stats(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to read customer book stats, keeping previous values.", slog.Any("error", err))
		return fmt.Errorf("cannot refresh book stats: %w", err)
	}

	j.record(stats.Customers, stats.TotalCreditLimit)
	j.logger.InfoContext(ctx, "Customer book stats refreshed.",
		slog.Int64("customers", stats.Customers),
		slog.String("total_credit_limit", stats.TotalCreditLimit.StringFixed(2)),
		slog.Duration("duration", time.Since(startTime)),
	)
	return nil
}
