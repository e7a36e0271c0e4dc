package procfs

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestFile(t *testing.T, path, contents string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestCounterDelta(t *testing.T) {
	if got := counterDelta(150, 100); got != 50 {
		t.Fatalf("counterDelta(150, 100) = %d, want 50", got)
	}
	// A counter going backwards means a reset; the current value is the
	// whole delta.
	if got := counterDelta(30, 100); got != 30 {
		t.Fatalf("counterDelta(30, 100) = %d, want 30", got)
	}
	if got := counterDelta(100, 100); got != 0 {
		t.Fatalf("counterDelta(100, 100) = %d, want 0", got)
	}
}
