package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEvent is the dedup ledger for processor webhooks. The unique
// provider event id makes replayed deliveries collide instead of
// re-applying their side effects.
type WebhookEvent struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Provider        string    `gorm:"column:provider;not null;default:'stripe'"`
	ProviderEventID string    `gorm:"column:provider_event_id;not null;unique"`
	EventType       string    `gorm:"column:event_type;not null"`
	ProcessedAt     time.Time `gorm:"column:processed_at;autoCreateTime"`
}
