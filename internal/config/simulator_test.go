package config

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestSimulatorSettingsDefaultsWhenFileMissing(t *testing.T) {
	cfg := Config{Acquirer: AcquirerConfig{SimulatorConfig: filepath.Join(t.TempDir(), "missing.yml")}}

	holder, err := NewSimulatorSettingsHolder(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("new holder: %v", err)
	}

	got := holder.Get()
	if got.ApprovalRate != 0.8 {
		t.Fatalf("expected default approval rate 0.8, got %v", got.ApprovalRate)
	}
	if len(got.DeclineReasons) != 5 {
		t.Fatalf("expected 5 default decline reasons, got %d", len(got.DeclineReasons))
	}
}

func TestSimulatorSettingsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yml")
	body := []byte(`simulator:
  approvalRate: 0.5
  seed: 42
  latency: 10ms
  declineReasons:
    - "Do not honor"
  forcedOutcomes:
    "0002": decline
    "0119": timeout
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	holder, err := NewSimulatorSettingsHolder(Config{Acquirer: AcquirerConfig{SimulatorConfig: path}}, zap.NewNop())
	if err != nil {
		t.Fatalf("new holder: %v", err)
	}

	got := holder.Get()
	if got.ApprovalRate != 0.5 || got.Seed != 42 {
		t.Fatalf("unexpected settings: %+v", got)
	}
	if got.ForcedOutcomes["0002"] != SimulatedDecline || got.ForcedOutcomes["0119"] != SimulatedTimeout {
		t.Fatalf("unexpected forced outcomes: %+v", got.ForcedOutcomes)
	}
	if got.DeclineReasons[0] != "Do not honor" {
		t.Fatalf("unexpected decline reasons: %+v", got.DeclineReasons)
	}
}

func TestSimulatorSettingsRejectsUnknownOutcome(t *testing.T) {
	err := validateSimulatorSettings(SimulatorSettings{
		ApprovalRate:   0.5,
		DeclineReasons: []string{"x"},
		ForcedOutcomes: map[string]string{"1111": "explode"},
	})
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestGetenvDurationAcceptsSeconds(t *testing.T) {
	t.Setenv("PAYGATE_TEST_TIMEOUT", "12")
	if got := getenvDuration("PAYGATE_TEST_TIMEOUT", 0); got.Seconds() != 12 {
		t.Fatalf("expected 12s, got %v", got)
	}
	t.Setenv("PAYGATE_TEST_TIMEOUT", "1500ms")
	if got := getenvDuration("PAYGATE_TEST_TIMEOUT", 0); got.Milliseconds() != 1500 {
		t.Fatalf("expected 1500ms, got %v", got)
	}
}
