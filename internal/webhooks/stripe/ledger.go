package stripewebhook

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/keymint-labs/keymint-backend/pkg/db/models"
)

const providerStripe = "stripe"

// Ledger is the durable dedup record of applied processor events.
// The insert-if-absent is linearizable through the unique index on
// provider_event_id; under concurrent delivery exactly one caller
// observes first_time = true.
type Ledger interface {
	WithTx(tx *gorm.DB) Ledger
	RecordIfNew(ctx context.Context, eventID, eventType string) (bool, error)
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type ledger struct {
	db *gorm.DB
}

// NewLedger returns a ledger bound to the provided database.
func NewLedger(db *gorm.DB) Ledger {
	return &ledger{db: db}
}

func (l *ledger) WithTx(tx *gorm.DB) Ledger {
	if tx == nil {
		return l
	}
	return &ledger{db: tx}
}

// RecordIfNew inserts the event id and reports whether this delivery is
// the first. ON CONFLICT DO NOTHING keeps the losing insert from
// aborting the surrounding transaction.
func (l *ledger) RecordIfNew(ctx context.Context, eventID, eventType string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	row := models.WebhookEvent{
		Provider:        providerStripe,
		ProviderEventID: eventID,
		EventType:       eventType,
	}
	res := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider_event_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeleteProcessedBefore prunes ledger rows older than the cutoff. The
// retention window must comfortably exceed the processor's maximum
// redelivery horizon.
func (l *ledger) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := l.db.WithContext(ctx).
		Where("processed_at < ?", cutoff).
		Delete(&models.WebhookEvent{})
	return res.RowsAffected, res.Error
}
