package backend

import (
	"context"

	"banco/internal/session"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// SlotResult contains the session slot and optional cleanup function
type SlotResult struct {
	Slot    session.Slot
	Cleanup CleanupFunc
}

// Factory creates session slots based on configuration
type Factory interface {
	// CreateSlot creates a slot instance based on the provided config
	CreateSlot(ctx context.Context, config Config) (*SlotResult, error)
}
