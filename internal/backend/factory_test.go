package backend

import (
	"context"
	"path/filepath"
	"testing"

	"spendmind/internal/config"
	"spendmind/internal/core"
	"spendmind/internal/log"
	"spendmind/internal/remote/memory"
	"spendmind/internal/storage"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("nil config accepted")
	}
	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "/tmp/x.db"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "/tmp/x.db" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Fatal("unknown backend accepted")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without url", Config{Type: PostgresBackend}, true},
		{"postgres", Config{Type: PostgresBackend, DatabaseURL: "postgres://localhost/db"}, false},
		{"empty type", Config{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	res, err := NewFactory(log.Nop()).CreateBackend(context.Background(), Config{Type: MemoryBackend})
	if err != nil {
		t.Fatal(err)
	}
	defer res.Close()
	if _, ok := res.Remote.(*memory.Store); !ok {
		t.Fatalf("remote = %T", res.Remote)
	}
	if err := res.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "spendmind.db")
	res, err := NewFactory(log.Nop()).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatal(err)
	}
	defer res.Close()
	if _, ok := res.Remote.(*storage.SQLiteRepository); !ok {
		t.Fatalf("remote = %T", res.Remote)
	}
	if err := res.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
	cat, err := res.Remote.InsertCategory(context.Background(), core.Category{OwnerID: "o", Name: "Food"})
	if err != nil {
		t.Fatal(err)
	}
	if cat.ID == "" {
		t.Fatal("category id not assigned")
	}
}

func TestCloseWithoutCleanup(t *testing.T) {
	var r *Result
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if err := (&Result{}).Close(); err != nil {
		t.Fatal(err)
	}
}
