package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestEmptyDefaults(t *testing.T) {
	cfg := Empty()

	if got := cfg.GetStopSpeedThreshold(); got != DefaultStopSpeedThreshold {
		t.Errorf("GetStopSpeedThreshold = %v, want %v", got, DefaultStopSpeedThreshold)
	}
	if got := cfg.GetTrainRatio(); got != DefaultTrainRatio {
		t.Errorf("GetTrainRatio = %v, want %v", got, DefaultTrainRatio)
	}
	if got := cfg.GetWorkers(); got != DefaultWorkers {
		t.Errorf("GetWorkers = %d, want %d", got, DefaultWorkers)
	}
	if cfg.GetRequireZeroSpeed() || cfg.GetStrict() {
		t.Error("boolean options must default to false")
	}
}

func TestGetStopGate_ModeDefaults(t *testing.T) {
	cfg := Empty()
	if cfg.GetStopGate(ModeBase) {
		t.Error("base mode must not gate by default")
	}
	if !cfg.GetStopGate(ModeExtended) {
		t.Error("extended mode must gate by default")
	}

	off := false
	on := true
	cfg = &Config{StopGateBase: &on, StopGateExtended: &off}
	if !cfg.GetStopGate(ModeBase) {
		t.Error("stop_gate_base override ignored")
	}
	if cfg.GetStopGate(ModeExtended) {
		t.Error("stop_gate_extended override ignored")
	}
}

func TestLoad_PartialFile(t *testing.T) {
	path := writeConfigFile(t, "tuning.json",
		`{"stop_speed_threshold": 10, "min_stop_seconds": 10, "require_zero_speed": true}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.GetStopSpeedThreshold(); got != 10 {
		t.Errorf("GetStopSpeedThreshold = %v, want 10", got)
	}
	if !cfg.GetRequireZeroSpeed() {
		t.Error("require_zero_speed not applied")
	}
	// Unnamed fields keep their defaults.
	if got := cfg.GetTrainRatio(); got != DefaultTrainRatio {
		t.Errorf("GetTrainRatio = %v, want default %v", got, DefaultTrainRatio)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"wrong extension", "tuning.yaml", `{}`},
		{"bad json", "tuning.json", `{"workers": `},
		{"out of range", "tuning.json", `{"train_ratio": 1.5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.file, tt.content)
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
			t.Error("expected error")
		}
	})
}

func TestValidate(t *testing.T) {
	bad := -1.0
	zero := 0
	ratioLow := 0.0

	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative threshold", Config{StopSpeedThreshold: &bad}},
		{"negative min stop", Config{MinStopSeconds: &bad}},
		{"negative gap", Config{MaxStopGapSeconds: &bad}},
		{"ratio at zero", Config{TrainRatio: &ratioLow}},
		{"zero workers", Config{Workers: &zero}},
	}
	for _, tt := range tests {
		if err := tt.cfg.Validate(); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}

	if err := Empty().Validate(); err != nil {
		t.Errorf("empty config must validate: %v", err)
	}
}
