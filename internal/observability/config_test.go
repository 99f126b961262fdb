package observability

import (
	"testing"

	"github.com/smallbiznis/paygate/internal/config"
)

func TestLoadConfigDefaultsServiceName(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment: " production ",
		Telemetry:   config.TelemetryConfig{LogLevel: "info", SamplingRatio: 2},
	})
	if cfg.ServiceName != defaultServiceName {
		t.Fatalf("expected default service name, got %q", cfg.ServiceName)
	}
	if cfg.Environment != "production" {
		t.Fatalf("environment not trimmed: %q", cfg.Environment)
	}
	if cfg.OtelSamplingRatio != 1 {
		t.Fatalf("out of range ratio must clamp to 1, got %v", cfg.OtelSamplingRatio)
	}
	if cfg.Debug() {
		t.Fatalf("production at info level must not be debug")
	}
}

func TestDebug(t *testing.T) {
	if !(Config{LogLevel: "DEBUG", Environment: "production"}).Debug() {
		t.Fatalf("debug level must enable debug")
	}
	if !(Config{LogLevel: "info", Environment: "local"}).Debug() {
		t.Fatalf("local environment must enable debug")
	}
}
