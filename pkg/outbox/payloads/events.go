package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/keymint-labs/keymint-backend/pkg/enums"
)

// LicenseCreatedEvent carries everything the mailer needs to deliver
// the key to the buyer without a database round trip.
type LicenseCreatedEvent struct {
	LicenseID  uuid.UUID `json:"license_id"`
	LicenseKey string    `json:"license_key"`
	PluginName string    `json:"plugin_name"`
	PluginSlug string    `json:"plugin_slug"`
	Email      string    `json:"email"`
	IssuedAt   time.Time `json:"issued_at"`
}

// LicenseStatusChangedEvent reports a lifecycle transition on an
// existing license.
type LicenseStatusChangedEvent struct {
	LicenseID  uuid.UUID           `json:"license_id"`
	PluginSlug string              `json:"plugin_slug"`
	FromStatus enums.LicenseStatus `json:"from_status"`
	ToStatus   enums.LicenseStatus `json:"to_status"`
	OccurredAt time.Time           `json:"occurred_at"`
}
