package testutil

import (
	"os"
	"testing"
)

// TestNATSURL returns the NATS URL for integration tests, overridable via
// TEST_NATS_URL.
func TestNATSURL() string {
	if url := os.Getenv("TEST_NATS_URL"); url != "" {
		return url
	}
	return "nats://localhost:4223"
}

// RequireIntegration skips the test if not running integration tests.
func RequireIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") == "" {
		t.Skip("skipping integration test (set INTEGRATION_TEST=1 to run)")
	}
}
