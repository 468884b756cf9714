package config

import (
	"testing"
	"time"
)

func TestBuiltinModes(t *testing.T) {
	modes := BuiltinModes()

	balanced, ok := modes[ModeBalanced]
	if !ok {
		t.Fatal("balanced mode missing")
	}
	if balanced.OverlapDuration <= 0 {
		t.Error("balanced mode must carry overlap")
	}
	if balanced.MaxConcurrent != 1 {
		t.Errorf("balanced mode must be sequential, got concurrency %d", balanced.MaxConcurrent)
	}

	turbo, ok := modes[ModeTurbo]
	if !ok {
		t.Fatal("turbo mode missing")
	}
	if turbo.OverlapDuration != 0 {
		t.Error("turbo mode must not overlap")
	}
	if turbo.MaxConcurrent <= 1 {
		t.Errorf("turbo mode must be parallel, got concurrency %d", turbo.MaxConcurrent)
	}

	for name, mode := range modes {
		if err := mode.Validate(); err != nil {
			t.Errorf("built-in mode %s invalid: %v", name, err)
		}
	}
}

func TestModeConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ModeConfig)
		wantErr bool
	}{
		{"valid", func(m *ModeConfig) {}, false},
		{"overlap with parallelism", func(m *ModeConfig) {
			m.OverlapDuration = 3
			m.MaxConcurrent = 2
		}, true},
		{"overlap exceeds chunk", func(m *ModeConfig) { m.OverlapDuration = 400 }, true},
		{"bad shape", func(m *ModeConfig) { m.BackoffShape = "cubic" }, true},
		{"sub-chunk too large", func(m *ModeConfig) { m.SubChunkDuration = 500 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode := ModeConfig{Name: "test", ChunkDuration: 180, SubChunkDuration: 60, MaxConcurrent: 1}
			mode.ApplyDefaults()
			tt.mutate(&mode)
			err := mode.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPipelineSection_Mode(t *testing.T) {
	var p PipelineSection
	p.ApplyDefaults()

	mode, ok := p.Mode("")
	if !ok || mode.Name != ModeBalanced {
		t.Errorf("empty name should resolve default mode, got %q ok=%v", mode.Name, ok)
	}
	if _, ok := p.Mode("nope"); ok {
		t.Error("unknown mode should not resolve")
	}
}

func TestPipelineSection_CustomModeMerge(t *testing.T) {
	p := PipelineSection{
		Modes: map[string]ModeConfig{
			"meeting": {ChunkDuration: 300, OverlapDuration: 5, MaxConcurrent: 1, SubChunkDuration: 90},
		},
	}
	p.ApplyDefaults()

	custom, ok := p.Modes["meeting"]
	if !ok {
		t.Fatal("custom mode lost during merge")
	}
	if custom.Name != "meeting" {
		t.Errorf("custom mode name not backfilled, got %q", custom.Name)
	}
	if custom.BackoffBase != 2*time.Second {
		t.Errorf("defaults not applied to custom mode, backoff base %v", custom.BackoffBase)
	}
	if _, ok := p.Modes[ModeBalanced]; !ok {
		t.Error("built-in modes must survive the merge")
	}
}
