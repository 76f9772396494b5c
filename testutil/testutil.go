// Package testutil holds shared test fixtures, grounded on the teacher's
// testutil package (an auto-cleaned, throwaway on-disk resource per test).
package testutil

import (
	"testing"
)

// TempDataDir returns a fresh directory for a storage engine under test,
// removed automatically when the test completes.
func TempDataDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}
