package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// DeviceInfo is the persisted registration of this device instance.
type DeviceInfo struct {
	ID         string `json:"id"`
	ModelID    string `json:"model_id"`
	ClientType string `json:"client_type"`
}

// LoadOrRegisterDevice returns the stored registration at path. When none
// exists, it registers a fresh device instance under projectID with a
// generated id and persists the result.
func LoadOrRegisterDevice(ctx context.Context, ts oauth2.TokenSource, apiHost, projectID, modelID, path string, log *zap.Logger) (*DeviceInfo, error) {
	if data, err := os.ReadFile(path); err == nil {
		var info DeviceInfo
		if err := json.Unmarshal(data, &info); err != nil {
			return nil, fmt.Errorf("failed to parse device config: %w", err)
		}
		log.Info("Using stored device",
			zap.String("model_id", info.ModelID), zap.String("device_id", info.ID))
		return &info, nil
	}

	if modelID == "" || projectID == "" {
		return nil, errors.New("project id and device model id are required to register a device instance")
	}

	info := &DeviceInfo{
		ID:         uuid.NewString(),
		ModelID:    modelID,
		ClientType: "SDK_SERVICE",
	}
	body, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to encode device payload: %w", err)
	}

	url := fmt.Sprintf("https://%s/v1alpha2/projects/%s/devices", apiHost, projectID)
	resp, err := oauth2.NewClient(ctx, ts).Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to register device: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("device registration failed with status %d: %s", resp.StatusCode, string(detail))
	}
	log.Info("Device registered", zap.String("device_id", info.ID))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
		if err := os.WriteFile(path, body, 0o600); err != nil {
			log.Warn("Failed to save device config", zap.Error(err))
		}
	}
	return info, nil
}
