package plugins

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keymint-labs/keymint-backend/pkg/db/models"
)

// Repository exposes plugin lookups. Plugins are read-only to this
// service; catalog management lives in the admin surface.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindBySlug(ctx context.Context, slug string) (*models.Plugin, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Plugin, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a plugin repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindBySlug resolves a plugin by its public slug.
func (r *repository) FindBySlug(ctx context.Context, slug string) (*models.Plugin, error) {
	var row models.Plugin
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByID resolves a plugin by primary key.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Plugin, error) {
	var row models.Plugin
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}
