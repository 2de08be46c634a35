package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HTTP_ADDRESS", "")
	t.Setenv("OPENAI_REALTIME_MODEL", "")
	t.Setenv("AGENT_VOICE", "")
	t.Setenv("AGENT_TEMPERATURE", "")

	cfg := Load()
	if cfg.HTTPAddress != ":8080" {
		t.Fatalf("expected default http address, got %q", cfg.HTTPAddress)
	}
	if cfg.OpenAIModel != "gpt-4o-realtime-preview-2024-10-01" {
		t.Fatalf("unexpected default model %q", cfg.OpenAIModel)
	}
	if cfg.Voice != "coral" {
		t.Fatalf("unexpected default voice %q", cfg.Voice)
	}
	if cfg.Temperature != 0.8 {
		t.Fatalf("unexpected default temperature %v", cfg.Temperature)
	}
	if cfg.Greeting == "" || cfg.Instructions == "" {
		t.Fatalf("expected built-in greeting and instructions")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_ADDRESS", ":9999")
	t.Setenv("AGENT_VOICE", "alloy")
	t.Setenv("AGENT_INSTRUCTIONS", "be brief")
	t.Setenv("DEFAULT_GREETING", "hello there")

	cfg := Load()
	if cfg.HTTPAddress != ":9999" {
		t.Fatalf("expected override address, got %q", cfg.HTTPAddress)
	}
	if cfg.Voice != "alloy" || cfg.Instructions != "be brief" || cfg.Greeting != "hello there" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoad_TuningEnv(t *testing.T) {
	t.Setenv("SPEECH_THRESHOLD", "0.2")
	t.Setenv("CONSECUTIVE_SAMPLES_NEEDED", "7")
	t.Setenv("SPEECH_OVERLAP_THRESHOLD", "3s")
	t.Setenv("MAX_SILENCE_GAPS", "not-a-number")

	cfg := Load()
	if cfg.Tuning.SpeechThreshold != 0.2 {
		t.Fatalf("expected threshold 0.2, got %v", cfg.Tuning.SpeechThreshold)
	}
	if cfg.Tuning.ConsecutiveNeeded != 7 {
		t.Fatalf("expected 7 consecutive samples, got %d", cfg.Tuning.ConsecutiveNeeded)
	}
	if cfg.Tuning.OverlapThreshold != 3*time.Second {
		t.Fatalf("expected 3s overlap threshold, got %v", cfg.Tuning.OverlapThreshold)
	}
	if cfg.Tuning.MaxSilenceGaps != 3 {
		t.Fatalf("invalid value should fall back to default, got %d", cfg.Tuning.MaxSilenceGaps)
	}
}
