// Package session persists the device identity presented on every login.
//
// The remote platform ties a login to the device that performed it; logging
// in from a fresh device each cycle looks suspicious and triggers checkpoints.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrSettingsNotFound = errors.New("device settings not found")

// Settings identify the emulated device.
type Settings struct {
	DeviceID string `json:"device_id"`
	UUID     string `json:"uuid"`
	PhoneID  string `json:"phone_id"`
}

// NewSettings generates a fresh device identity.
func NewSettings() *Settings {
	return &Settings{
		DeviceID: "android-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
		UUID:     uuid.NewString(),
		PhoneID:  uuid.NewString(),
	}
}

type Storage struct {
	dir string
}

func NewStorage(dir string) *Storage {
	return &Storage{dir: dir}
}

func (s *Storage) path(username string) string {
	return filepath.Join(s.dir, filepath.Base(username)+"_device.json")
}

func (s *Storage) Save(username string, settings *Settings) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	return os.WriteFile(s.path(username), data, 0600)
}

func (s *Storage) Load(username string) (*Settings, error) {
	data, err := os.ReadFile(s.path(username)) // #nosec G304 -- username is sanitized
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	return &settings, nil
}

// LoadOrCreate returns the stored settings for username, generating and
// saving a new identity the first time.
func (s *Storage) LoadOrCreate(username string) (*Settings, error) {
	settings, err := s.Load(username)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, ErrSettingsNotFound) {
		return nil, err
	}

	settings = NewSettings()
	if err := s.Save(username, settings); err != nil {
		return nil, err
	}
	return settings, nil
}
