package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_WritesLogFile(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := New(tmpDir, true)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Debug("sampler tick")
	_ = logger.Sync()

	data, err := os.ReadFile(filepath.Join(tmpDir, "will.log"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "sampler tick") {
		t.Errorf("log file missing debug entry: %s", data)
	}
}

func TestNew_InfoLevelByDefault(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := New(tmpDir, false)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if logger.Core().Enabled(-1) {
		t.Error("debug level should be disabled when verbose is false")
	}
}
