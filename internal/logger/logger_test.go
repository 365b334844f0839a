package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { _ = SetLevel("info") })

	for in, want := range map[string]zapcore.Level{
		"debug":  zapcore.DebugLevel,
		" WARN ": zapcore.WarnLevel,
		"":       zapcore.InfoLevel,
		"error":  zapcore.ErrorLevel,
	} {
		if err := SetLevel(in); err != nil {
			t.Fatalf("SetLevel(%q): %v", in, err)
		}
		if got := Level.Level(); got != want {
			t.Errorf("SetLevel(%q) -> %v, want %v", in, got, want)
		}
	}

	if err := SetLevel("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
