package mailer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/keymint-labs/keymint-backend/pkg/config"
)

func newTestSender(t *testing.T, handler http.HandlerFunc) (*SendgridSender, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	sender, err := NewSendgridSender(config.SendgridConfig{
		APIKey:      "SG.test",
		DefaultFrom: "keys@keymint.dev",
	}, nil)
	if err != nil {
		t.Fatalf("NewSendgridSender: %v", err)
	}
	sender.endpoint = server.URL
	return sender, server
}

func TestSendgridSenderSendsLicenseKey(t *testing.T) {
	var captured struct {
		auth string
		body map[string]any
	}
	sender, _ := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
		captured.auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &captured.body)
		w.WriteHeader(http.StatusAccepted)
	})

	err := sender.SendLicenseKey(context.Background(), LicenseKeyMessage{
		To:         "buyer@example.com",
		PluginName: "SEO Boost",
		LicenseKey: "ABCDEFGHJKLMNPQRSTUVWXYZ01234567",
	})
	if err != nil {
		t.Fatalf("SendLicenseKey: %v", err)
	}
	if captured.auth != "Bearer SG.test" {
		t.Errorf("authorization = %q", captured.auth)
	}
	content := captured.body["content"].([]any)[0].(map[string]any)
	if !strings.Contains(content["value"].(string), "ABCDEFGHJKLMNPQRSTUVWXYZ01234567") {
		t.Errorf("mail body missing license key: %v", content["value"])
	}
	subject, _ := captured.body["subject"].(string)
	if !strings.Contains(subject, "SEO Boost") {
		t.Errorf("subject = %q", subject)
	}
}

func TestSendgridSenderSurfacesAPIFailure(t *testing.T) {
	sender, _ := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	})

	err := sender.SendLicenseKey(context.Background(), LicenseKeyMessage{
		To:         "buyer@example.com",
		PluginName: "SEO Boost",
		LicenseKey: "KEY",
	})
	if err == nil {
		t.Fatal("expected error from 401 response")
	}
}

func TestSendgridSenderRequiresRecipient(t *testing.T) {
	sender, _ := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	if err := sender.SendLicenseKey(context.Background(), LicenseKeyMessage{}); err == nil {
		t.Fatal("expected validation error")
	}
}
