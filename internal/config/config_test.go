package config

import (
	"strings"
	"testing"
)

func TestValidate_MissingAPIKey(t *testing.T) {
	cfg := &Config{}
	warnings := cfg.Validate()
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "api_key") {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected warning about missing api_key")
	}
}

func TestValidate_Threshold(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		want      bool // true = should warn
	}{
		{"zero", 0, false},
		{"default", 80, false},
		{"max", 100, false},
		{"negative", -1, true},
		{"too_high", 150, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Gate: GateConfig{ThresholdPercent: tt.threshold}}
			warnings := cfg.Validate()
			hasWarn := false
			for _, w := range warnings {
				if strings.Contains(w, "threshold_percent") {
					hasWarn = true
				}
			}
			if hasWarn != tt.want {
				t.Errorf("threshold=%.1f: hasWarn=%v, want=%v", tt.threshold, hasWarn, tt.want)
			}
		})
	}
}

func TestValidate_NegativeDimension(t *testing.T) {
	cfg := &Config{Embedding: EmbeddingConfig{Dimension: -1}}
	warnings := cfg.Validate()
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "dimension") {
			found = true
		}
	}
	if !found {
		t.Error("expected warning about negative dimension")
	}
}

func TestValidate_NegativeWorkers(t *testing.T) {
	cfg := &Config{Embedding: EmbeddingConfig{Workers: -2}}
	warnings := cfg.Validate()
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "workers") {
			found = true
		}
	}
	if !found {
		t.Error("expected warning about negative workers")
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("expected default model, got %s", cfg.Embedding.Model)
	}
	if cfg.Embedding.Dimension != 1536 {
		t.Errorf("expected default dimension 1536, got %d", cfg.Embedding.Dimension)
	}
	if cfg.Vector.Collection != "resume_fragments" {
		t.Errorf("expected default collection, got %s", cfg.Vector.Collection)
	}
	if cfg.Gate.ThresholdPercent != 80.0 {
		t.Errorf("expected default threshold 80, got %.1f", cfg.Gate.ThresholdPercent)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/hireflow.yaml")
	if err == nil {
		t.Error("expected error for missing config file")
	}
}
