package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/keymint-labs/keymint-backend/pkg/logger"
)

// The ledger must outlive the processor's redelivery horizon by a wide
// margin; Stripe retries for up to 3 days, the default keeps 90.
const defaultLedgerRetention = 90 * 24 * time.Hour

type ledgerRetentionStore interface {
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type LedgerRetentionJobParams struct {
	Logger    *logger.Logger
	Ledger    ledgerRetentionStore
	Retention time.Duration
}

func NewLedgerRetentionJob(params LedgerRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("event ledger required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultLedgerRetention
	}
	return &ledgerRetentionJob{
		logg:      params.Logger,
		ledger:    params.Ledger,
		retention: retention,
		now:       time.Now,
	}, nil
}

type ledgerRetentionJob struct {
	logg      *logger.Logger
	ledger    ledgerRetentionStore
	retention time.Duration
	now       func() time.Time
}

func (j *ledgerRetentionJob) Name() string { return "webhook-ledger-retention" }

func (j *ledgerRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.ledger.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("ledger retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"retention":    j.retention.String(),
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "webhook ledger cleanup complete")
	return nil
}
