package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.APIEndpoint != "embeddedassistant.googleapis.com:443" {
		t.Errorf("Unexpected default endpoint: %s", cfg.APIEndpoint)
	}
	if cfg.Language != "en-US" {
		t.Errorf("Expected default language en-US, got %s", cfg.Language)
	}
	if cfg.SampleRate != 16000 {
		t.Errorf("Expected default sample rate 16000, got %d", cfg.SampleRate)
	}
	if cfg.Deadline != 185*time.Second {
		t.Errorf("Expected default deadline 185s, got %s", cfg.Deadline)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("ASSISTANT_LANGUAGE", "ja-JP")
	t.Setenv("ASSISTANT_DEADLINE", "60")
	t.Setenv("ASSISTANT_VOLUME", "80")
	t.Setenv("ASSISTANT_FAAS_SHELL_URL", "https://shell.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Language != "ja-JP" {
		t.Errorf("Expected language override, got %s", cfg.Language)
	}
	if cfg.Deadline != 60*time.Second {
		t.Errorf("Expected deadline override, got %s", cfg.Deadline)
	}
	if cfg.Volume != 80 {
		t.Errorf("Expected volume override, got %d", cfg.Volume)
	}
	if cfg.FaasShellURL != "https://shell.example.com" {
		t.Errorf("Expected FaaS shell override, got %s", cfg.FaasShellURL)
	}
}

func TestLoadRejectsInvalidNumbers(t *testing.T) {
	t.Setenv("ASSISTANT_VOLUME", "loud")
	if _, err := Load(); err == nil {
		t.Error("Expected an error for a non-numeric volume")
	}
}

func TestAPIHostStripsPort(t *testing.T) {
	cfg := &Config{APIEndpoint: "embeddedassistant.googleapis.com:443"}
	if got := cfg.APIHost(); got != "embeddedassistant.googleapis.com" {
		t.Errorf("Expected port stripped, got %s", got)
	}
}
