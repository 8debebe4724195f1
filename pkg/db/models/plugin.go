package models

import (
	"time"

	"github.com/google/uuid"
)

// Plugin is a sellable product whose premium functionality is gated by
// license keys. The slug is the public handle used by validation calls.
// A plugin may offer either purchase plan or both; each plan is
// configured by its own processor price id.
type Plugin struct {
	ID                        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name                      string    `gorm:"column:name;not null"`
	Slug                      string    `gorm:"column:slug;not null;unique"`
	Description               *string   `gorm:"column:description"`
	PriceCents                int       `gorm:"column:price_cents;not null;default:0"`
	Currency                  string    `gorm:"column:currency;not null;default:'usd'"`
	StripeOneTimePriceID      *string   `gorm:"column:stripe_one_time_price_id"`
	StripeSubscriptionPriceID *string   `gorm:"column:stripe_subscription_price_id"`
	Active                    bool      `gorm:"column:active;not null;default:true"`
	CreatedAt                 time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                 time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
