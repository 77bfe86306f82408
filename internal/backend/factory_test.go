package backend

import (
	"context"
	"path/filepath"
	"testing"

	"banco/internal/config"
	"banco/internal/session"
)

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{SessionBackend: "sqlite", SessionDBPath: "/tmp/x.db"}
	got, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if got.Type != SQLiteSlot || got.SQLiteDBPath != "/tmp/x.db" {
		t.Errorf("FromAppConfig() = %+v", got)
	}

	if _, err := FromAppConfig(&config.Config{SessionBackend: "redis"}); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestCreateSlot(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Type: MemorySlot}, false},
		{"sqlite", Config{Type: SQLiteSlot, SQLiteDBPath: filepath.Join(t.TempDir(), "s.db")}, false},
		{"sqlite without path", Config{Type: SQLiteSlot}, true},
		{"unknown", Config{Type: "redis"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.CreateSlot(ctx, tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateSlot() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if res.Cleanup != nil {
				defer res.Cleanup()
			}

			store, err := session.NewStore(ctx, res.Slot, nil)
			if err != nil {
				t.Fatalf("NewStore() error = %v", err)
			}
			if err := store.Login(ctx, "tok", "Ana"); err != nil {
				t.Fatalf("Login() error = %v", err)
			}
			if v, ok, _ := res.Slot.Get(ctx, session.KeyToken); !ok || v != "tok" {
				t.Errorf("slot token = %q, %v", v, ok)
			}
		})
	}
}
