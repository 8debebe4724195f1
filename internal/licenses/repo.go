package licenses

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/keymint-labs/keymint-backend/pkg/db"
	"github.com/keymint-labs/keymint-backend/pkg/db/models"
	pkgerrors "github.com/keymint-labs/keymint-backend/pkg/errors"
	"github.com/keymint-labs/keymint-backend/pkg/security"
)

// keyInsertAttempts bounds retries on the astronomically unlikely
// license key collision before surfacing a fatal error.
const keyInsertAttempts = 3

// Repository handles license persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateWithGeneratedKey(ctx context.Context, license *models.License) (*models.License, error)
	FindByPluginAndKey(ctx context.Context, pluginID uuid.UUID, key string) (*models.License, error)
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (*models.License, error)
	FindByCheckoutSessionID(ctx context.Context, sessionID string) (*models.License, error)
	Update(ctx context.Context, license *models.License) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a license repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateWithGeneratedKey inserts a license, minting a fresh key and
// retrying when the key collides with an existing row. Non-key
// uniqueness violations (checkout session, subscription) propagate to
// the caller untouched so it can interpret them as duplicates.
func (r *repository) CreateWithGeneratedKey(ctx context.Context, license *models.License) (*models.License, error) {
	for attempt := 0; attempt < keyInsertAttempts; attempt++ {
		key, err := security.GenerateLicenseKey()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate license key")
		}
		license.LicenseKey = key

		err = r.db.WithContext(ctx).Create(license).Error
		if err == nil {
			return license, nil
		}
		if dbpkg.IsUniqueViolation(err, "license_key") {
			continue
		}
		return nil, err
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "license key space exhausted")
}

// FindByPluginAndKey fetches a license scoped to one plugin. Keys are
// only meaningful relative to the plugin that issued them.
func (r *repository) FindByPluginAndKey(ctx context.Context, pluginID uuid.UUID, key string) (*models.License, error) {
	var row models.License
	err := r.db.WithContext(ctx).
		Where("plugin_id = ? AND license_key = ?", pluginID, key).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindBySubscriptionID routes subscription lifecycle events back to
// their license.
func (r *repository) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*models.License, error) {
	var row models.License
	err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", subscriptionID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByCheckoutSessionID resolves the license minted for a one-time
// purchase session, if any.
func (r *repository) FindByCheckoutSessionID(ctx context.Context, sessionID string) (*models.License, error) {
	var row models.License
	err := r.db.WithContext(ctx).
		Where("stripe_checkout_session_id = ?", sessionID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Update persists status and expiry mutations decided by the state machine.
func (r *repository) Update(ctx context.Context, license *models.License) error {
	return r.db.WithContext(ctx).Save(license).Error
}
