package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/keymint-labs/keymint-backend/pkg/enums"
)

// License is an issued credential scoped to a single plugin. Keys are
// opaque 32-char strings; entitlement is a function of status plus the
// optional expiry, never of the key itself.
type License struct {
	ID                      uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PluginID                uuid.UUID           `gorm:"column:plugin_id;type:uuid;not null"`
	LicenseKey              string              `gorm:"column:license_key;not null;unique"`
	Email                   string              `gorm:"column:email;not null"`
	Status                  enums.LicenseStatus `gorm:"column:status;type:license_status_enum;not null;default:'active'"`
	StripeCustomerID        *string             `gorm:"column:stripe_customer_id"`
	StripeSubscriptionID    *string             `gorm:"column:stripe_subscription_id"`
	StripeCheckoutSessionID *string             `gorm:"column:stripe_checkout_session_id;unique"`
	ExpiresAt               *time.Time          `gorm:"column:expires_at"`
	CreatedAt               time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// Valid reports whether the license currently entitles its holder.
// A license entitles when its status is active or trial and the expiry,
// if set, has not passed. Expiry is evaluated at read time; no job
// flips rows to expired on the stored status.
func (l License) Valid(now time.Time) bool {
	if !l.Status.Entitles() {
		return false
	}
	if l.ExpiresAt != nil && !l.ExpiresAt.After(now) {
		return false
	}
	return true
}
