package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/onnwee/guild-tender/audit"
)

// SetupTestDB opens a throwaway sqlite audit store in the test's temp
// directory and runs the schema setup.
func SetupTestDB(t *testing.T) *audit.Log {
	t.Helper()
	log, err := audit.Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("failed to open audit store: %v", err)
	}
	if err := log.Migrate(context.Background()); err != nil {
		log.Close()
		t.Fatalf("failed to migrate audit store: %v", err)
	}
	t.Cleanup(func() {
		log.Close()
	})
	return log
}
