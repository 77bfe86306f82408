package backend

import (
	"fmt"

	"banco/internal/config"
)

// Config holds configuration for slot creation
type Config struct {
	Type         SlotType
	SQLiteDBPath string
}

// SlotType represents where the session is persisted
type SlotType string

const (
	SQLiteSlot SlotType = "sqlite"
	MemorySlot SlotType = "memory"
)

// String implements fmt.Stringer
func (t SlotType) String() string {
	return string(t)
}

// IsValid returns true if the slot type is valid
func (t SlotType) IsValid() bool {
	switch t {
	case SQLiteSlot, MemorySlot:
		return true
	default:
		return false
	}
}

// FromAppConfig converts the application config to slot config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	slotType := SlotType(appConfig.SessionBackend)
	if !slotType.IsValid() {
		return Config{}, fmt.Errorf("invalid session backend in config: %s", appConfig.SessionBackend)
	}

	return Config{
		Type:         slotType,
		SQLiteDBPath: appConfig.SessionDBPath,
	}, nil
}

// Validate validates the slot configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid session backend: %s", c.Type)
	}
	if c.Type == SQLiteSlot && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite session backend")
	}
	return nil
}
