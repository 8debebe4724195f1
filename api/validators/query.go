package validators

import (
	"net/http"
	"strings"

	pkgerrors "github.com/keymint-labs/keymint-backend/pkg/errors"
)

// RequireQueryParam returns the trimmed query value or a validation
// error naming the missing field.
func RequireQueryParam(r *http.Request, key string) (string, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "missing required query parameter").
			WithDetails(map[string]any{"field": key})
	}
	return value, nil
}
