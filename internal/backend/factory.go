package backend

import (
	"context"
	"fmt"

	"banco/internal/log"
	"banco/internal/session"
	"banco/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new slot factory
func NewFactory(logger *log.Logger) Factory {
	return &DefaultFactory{
		logger: log.OrNop(logger).WithComponent(log.ComponentBackend),
	}
}

// CreateSlot implements Factory.CreateSlot
func (f *DefaultFactory) CreateSlot(ctx context.Context, config Config) (*SlotResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteSlot:
		return f.createSQLiteSlot(ctx, config)
	case MemorySlot:
		f.logger.InfoContext(ctx, "Initialized memory session slot")
		return &SlotResult{Slot: session.NewMemorySlot()}, nil
	default:
		return nil, fmt.Errorf("unsupported session backend: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteSlot(ctx context.Context, config Config) (*SlotResult, error) {
	slot, err := storage.NewSQLiteSlot(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite session slot: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized SQLite session slot", "db_path", config.SQLiteDBPath)

	return &SlotResult{
		Slot:    slot,
		Cleanup: slot.Close,
	}, nil
}
