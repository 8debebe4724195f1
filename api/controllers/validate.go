package controllers

import (
	"net/http"
	"time"

	"github.com/keymint-labs/keymint-backend/api/responses"
	"github.com/keymint-labs/keymint-backend/api/validators"
	"github.com/keymint-labs/keymint-backend/internal/licenses"
	"github.com/keymint-labs/keymint-backend/pkg/logger"
	"github.com/keymint-labs/keymint-backend/pkg/metrics"
)

// The validate wire shapes are a public contract with plugin clients
// and never change; they bypass the envelope helpers.
type validLicenseResponse struct {
	Valid      bool       `json:"valid"`
	Status     string     `json:"status"`
	Email      string     `json:"email"`
	ExpiresAt  *time.Time `json:"expires_at"`
	PluginName string     `json:"plugin_name"`
}

type invalidLicenseResponse struct {
	Valid  bool   `json:"valid"`
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type licenseNotFoundResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error"`
}

// ValidateLicense answers whether a (plugin, key) pair is currently
// entitled. Negative outcomes are structured results, not errors.
func ValidateLicense(svc licenses.Service, m *metrics.ValidationMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		pluginSlug, err := validators.RequireQueryParam(r, "plugin_slug")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		licenseKey, err := validators.RequireQueryParam(r, "license_key")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Validate(ctx, pluginSlug, licenseKey)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if !result.Found {
			m.IncVerdict("not_found")
			responses.WriteJSON(w, http.StatusOK, licenseNotFoundResponse{
				Valid: false,
				Error: "License not found",
			})
			return
		}
		if result.Valid {
			m.IncVerdict("valid")
			responses.WriteJSON(w, http.StatusOK, validLicenseResponse{
				Valid:      true,
				Status:     result.Status.String(),
				Email:      result.Email,
				ExpiresAt:  result.ExpiresAt,
				PluginName: result.PluginName,
			})
			return
		}
		m.IncVerdict("invalid")
		responses.WriteJSON(w, http.StatusOK, invalidLicenseResponse{
			Valid:  false,
			Status: result.Status.String(),
			Reason: result.Reason,
		})
	}
}
