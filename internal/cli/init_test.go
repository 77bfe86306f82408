package cli

import (
	"context"
	"testing"

	"banco/internal/config"
	"banco/internal/log"
)

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger(&config.Config{LogLevel: "debug", LogFormat: "json"}, log.ComponentReconciler)
	if logger.Component() != log.ComponentReconciler {
		t.Errorf("component = %q", logger.Component())
	}
	if !logger.Enabled(context.Background(), log.ParseLevel("debug")) {
		t.Error("debug level should be enabled")
	}
}

func TestInitSessionSlot_Memory(t *testing.T) {
	res := InitSessionSlot(context.Background(), log.Nop(), &config.Config{SessionBackend: "memory"})
	if res.Slot == nil {
		t.Fatal("slot is nil")
	}
	if res.Cleanup != nil {
		t.Error("memory slot needs no cleanup")
	}
}

func TestShutdownContext_Stop(t *testing.T) {
	ctx, stop := ShutdownContext(log.Nop())
	stop()
	<-ctx.Done()
}
