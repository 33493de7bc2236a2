package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all client configuration.
type Config struct {
	// APIEndpoint is the host:port of the Assistant API service.
	APIEndpoint string
	// CredentialsPath points at the stored OAuth2 credentials JSON.
	CredentialsPath string
	// DeviceConfigPath is where the device registration is persisted.
	DeviceConfigPath string
	ProjectID        string
	DeviceModelID    string
	DeviceID         string
	Language         string
	// DisplayAddr is the local address the screen-out page is served on.
	DisplayAddr string

	// FaasShellURL enables the commit count report command when set.
	FaasShellURL    string
	FaasShellUser   string
	FaasShellSecret string

	SampleRate int
	BlockSize  int
	IterSize   int
	FlushSize  int
	Volume     int
	// Deadline bounds one duplex Assist call.
	Deadline time.Duration
}

// Load builds the configuration from defaults and environment variables.
// A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		APIEndpoint: "embeddedassistant.googleapis.com:443",
		Language:    "en-US",
		DisplayAddr: "127.0.0.1:8421",
		SampleRate:  16000,
		BlockSize:   6400,
		IterSize:    3200,
		FlushSize:   25600,
		Volume:      50,
		Deadline:    185 * time.Second,
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		cfg.CredentialsPath = filepath.Join(configDir, "google-oauthlib-tool", "credentials.json")
		cfg.DeviceConfigPath = filepath.Join(configDir, "googlesamples-assistant", "device_config.json")
	}

	if v := os.Getenv("ASSISTANT_API_ENDPOINT"); v != "" {
		cfg.APIEndpoint = v
	}
	if v := os.Getenv("ASSISTANT_CREDENTIALS"); v != "" {
		cfg.CredentialsPath = v
	}
	if v := os.Getenv("ASSISTANT_DEVICE_CONFIG"); v != "" {
		cfg.DeviceConfigPath = v
	}
	if v := os.Getenv("ASSISTANT_PROJECT_ID"); v != "" {
		cfg.ProjectID = v
	}
	if v := os.Getenv("ASSISTANT_DEVICE_MODEL_ID"); v != "" {
		cfg.DeviceModelID = v
	}
	if v := os.Getenv("ASSISTANT_DEVICE_ID"); v != "" {
		cfg.DeviceID = v
	}
	if v := os.Getenv("ASSISTANT_LANGUAGE"); v != "" {
		cfg.Language = v
	}
	if v := os.Getenv("ASSISTANT_DISPLAY_ADDR"); v != "" {
		cfg.DisplayAddr = v
	}
	if v := os.Getenv("ASSISTANT_FAAS_SHELL_URL"); v != "" {
		cfg.FaasShellURL = v
	}
	if v := os.Getenv("ASSISTANT_FAAS_SHELL_USER"); v != "" {
		cfg.FaasShellUser = v
	}
	if v := os.Getenv("ASSISTANT_FAAS_SHELL_SECRET"); v != "" {
		cfg.FaasShellSecret = v
	}
	if v := os.Getenv("ASSISTANT_SAMPLE_RATE"); v != "" {
		rate, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ASSISTANT_SAMPLE_RATE: %w", err)
		}
		cfg.SampleRate = rate
	}
	if v := os.Getenv("ASSISTANT_VOLUME"); v != "" {
		volume, err := strconv.Atoi(v)
		if err != nil || volume < 0 || volume > 100 {
			return nil, fmt.Errorf("invalid ASSISTANT_VOLUME: %s", v)
		}
		cfg.Volume = volume
	}
	if v := os.Getenv("ASSISTANT_DEADLINE"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ASSISTANT_DEADLINE: %w", err)
		}
		cfg.Deadline = time.Duration(seconds) * time.Second
	}

	return cfg, nil
}

// APIHost returns the API endpoint without its port, for the device
// registration REST calls.
func (c *Config) APIHost() string {
	host, _, err := net.SplitHostPort(c.APIEndpoint)
	if err != nil {
		return c.APIEndpoint
	}
	return host
}
