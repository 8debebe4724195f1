package controllers

import (
	"net/http"

	"github.com/keymint-labs/keymint-backend/api/responses"
	"github.com/keymint-labs/keymint-backend/api/validators"
	"github.com/keymint-labs/keymint-backend/internal/checkout"
	"github.com/keymint-labs/keymint-backend/pkg/enums"
	"github.com/keymint-labs/keymint-backend/pkg/logger"
)

type createCheckoutSessionRequest struct {
	PluginSlug    string `json:"plugin_slug" validate:"required"`
	PlanType      string `json:"plan_type" validate:"required,oneof=one_time subscription"`
	CustomerEmail string `json:"customer_email" validate:"omitempty,email"`
}

type checkoutSessionResponse struct {
	SessionURL string `json:"session_url"`
	SessionID  string `json:"session_id"`
}

// CreateCheckoutSession starts a processor checkout for a plugin.
func CreateCheckoutSession(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req createCheckoutSessionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.CreateSession(ctx, checkout.CreateSessionInput{
			PluginSlug:    req.PluginSlug,
			PlanType:      enums.PlanType(req.PlanType),
			CustomerEmail: req.CustomerEmail,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteJSON(w, http.StatusOK, checkoutSessionResponse{
			SessionURL: result.SessionURL,
			SessionID:  result.SessionID,
		})
	}
}
