package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLicensesMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_plugins_and_licenses.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no licenses migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS licenses",
		"stripe_one_time_price_id",
		"stripe_subscription_price_id",
		"FOREIGN KEY (plugin_id) REFERENCES plugins(id) ON DELETE CASCADE",
		"CREATE UNIQUE INDEX ux_licenses_license_key",
		"CREATE UNIQUE INDEX ux_licenses_plugin_subscription",
		"CREATE UNIQUE INDEX ux_licenses_checkout_session",
		"DROP TABLE IF EXISTS licenses",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestWebhookEventsMigrationDedupIndex(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_webhook_events.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no webhook events migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "CREATE UNIQUE INDEX ux_webhook_events_provider_event_id") {
		t.Errorf("dedup ledger requires a unique provider event id index")
	}
}
