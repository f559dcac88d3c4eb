package logging

import "testing"

func TestNew(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", ""} {
		logger, err := New(level, false)
		if err != nil {
			t.Fatalf("level %q: %v", level, err)
		}
		logger.Info("ok")
	}

	if _, err := New("loud", false); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNew_Development(t *testing.T) {
	logger, err := New("debug", true)
	if err != nil {
		t.Fatal(err)
	}
	if !logger.Core().Enabled(-1) {
		t.Error("expected debug level enabled")
	}
}
