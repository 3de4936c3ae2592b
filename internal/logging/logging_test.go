package logging

import (
	"testing"

	"duncan/internal/config"

	"go.uber.org/zap/zapcore"
)

func TestNewLevel(t *testing.T) {
	log := New(config.LoggingConfig{Level: "warn", Encoding: "console"})
	if log.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("expected info to be disabled at warn level")
	}
	if !log.Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("expected warn to be enabled")
	}
}

func TestNewDefaultsToInfo(t *testing.T) {
	log := New(config.LoggingConfig{})
	if log.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug to be disabled by default")
	}
}
