package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/keymint-labs/keymint-backend/internal/checkout"
	"github.com/keymint-labs/keymint-backend/internal/licenses"
	"github.com/keymint-labs/keymint-backend/pkg/config"
	"github.com/keymint-labs/keymint-backend/pkg/logger"
	"github.com/keymint-labs/keymint-backend/pkg/redis"
	"github.com/keymint-labs/keymint-backend/pkg/stripe"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubLicenseService struct{}

func (stubLicenseService) Validate(ctx context.Context, pluginSlug, licenseKey string) (*licenses.ValidationResult, error) {
	return &licenses.ValidationResult{Found: false}, nil
}

type stubCheckoutService struct{}

func (stubCheckoutService) CreateSession(ctx context.Context, input checkout.CreateSessionInput) (*checkout.CreateSessionResult, error) {
	return &checkout.CreateSessionResult{SessionID: "cs_test_1", SessionURL: "https://checkout.example/cs_test_1"}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		(*redis.Client)(nil),
		stubLicenseService{},
		stubCheckoutService{},
		(*stripe.Client)(nil),
		nil, // webhook service
		nil, // webhook guard
		nil, // webhook metrics
		nil, // validation metrics
	)
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for liveness got %d", resp.Code)
	}
	if got := resp.Header().Get("X-KeyMint-Env"); got != "test" {
		t.Fatalf("expected env header test got %q", got)
	}
}

func TestValidateRouteRequiresQueryParams(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/licenses/validate", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without query params got %d", resp.Code)
	}
}

func TestValidateRouteAnswersUnknownKey(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/licenses/validate?plugin_slug=seo-boost&license_key=KM-XYZ", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown key got %d", resp.Code)
	}
	if body := resp.Body.String(); !strings.Contains(body, `"valid":false`) {
		t.Fatalf("expected invalid verdict got %s", body)
	}
}

func TestCheckoutRouteRejectsBadJSON(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout-session", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid payload got %d", resp.Code)
	}
}

func TestCheckoutRouteAcceptsGoodJSON(t *testing.T) {
	router := newTestRouter(testConfig())
	body := `{"plugin_slug":"seo-boost","plan_type":"one_time"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout-session", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for valid payload got %d", resp.Code)
	}
	if got := resp.Body.String(); !strings.Contains(got, "cs_test_1") {
		t.Fatalf("expected session id in body got %s", got)
	}
}

func TestWebhookRouteRejectsMissingSignature(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment-events", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without signature got %d", resp.Code)
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for metrics got %d", resp.Code)
	}
}
