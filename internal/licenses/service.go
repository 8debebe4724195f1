package licenses

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keymint-labs/keymint-backend/pkg/db/models"
	"github.com/keymint-labs/keymint-backend/pkg/enums"
	pkgerrors "github.com/keymint-labs/keymint-backend/pkg/errors"
)

type pluginsRepository interface {
	FindBySlug(ctx context.Context, slug string) (*models.Plugin, error)
}

type licensesRepository interface {
	FindByPluginAndKey(ctx context.Context, pluginID uuid.UUID, key string) (*models.License, error)
}

// ValidationResult is the tri-state outcome of a validate call: the key
// was not found, or it was found and is currently valid, or it was
// found and is invalid with a reason.
type ValidationResult struct {
	Found      bool
	Valid      bool
	Status     enums.LicenseStatus
	Reason     string
	Email      string
	ExpiresAt  *time.Time
	PluginName string
}

// Service answers entitlement queries from untrusted plugin clients.
type Service interface {
	Validate(ctx context.Context, pluginSlug, licenseKey string) (*ValidationResult, error)
}

type service struct {
	plugins pluginsRepository
	repo    licensesRepository
	now     func() time.Time
}

// NewService builds the validation service.
func NewService(plugins pluginsRepository, repo licensesRepository) (Service, error) {
	if plugins == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plugin repository required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "license repository required")
	}
	return &service{plugins: plugins, repo: repo, now: time.Now}, nil
}

func (s *service) Validate(ctx context.Context, pluginSlug, licenseKey string) (*ValidationResult, error) {
	slug := strings.TrimSpace(pluginSlug)
	key := strings.TrimSpace(licenseKey)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plugin_slug is required")
	}
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "license_key is required")
	}

	plugin, err := s.plugins.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plugin not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup plugin")
	}

	license, err := s.repo.FindByPluginAndKey(ctx, plugin.ID, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// A key issued by another plugin must look identical to a
			// key that never existed.
			return &ValidationResult{Found: false}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license")
	}

	now := s.now()
	result := &ValidationResult{
		Found:      true,
		Status:     license.Status,
		Email:      license.Email,
		ExpiresAt:  license.ExpiresAt,
		PluginName: plugin.Name,
	}

	if license.Valid(now) {
		result.Valid = true
		return result, nil
	}

	result.Valid = false
	result.Reason = invalidReason(license, now)
	return result, nil
}

// invalidReason distinguishes a lapsed expiry on an otherwise entitling
// status from a disabling status.
func invalidReason(license *models.License, now time.Time) string {
	if license.Status.Entitles() && license.ExpiresAt != nil && !license.ExpiresAt.After(now) {
		return "expired"
	}
	return license.Status.String()
}
