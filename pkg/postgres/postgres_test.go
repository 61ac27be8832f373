package postgres

import (
	"strings"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         5432,
		User:         "app",
		Password:     "secret",
		DBName:       "platform",
		NameTemplate: "workspace_%d",
		SSLMode:      "disable",
	}
}

func TestWorkspaceDSN(t *testing.T) {
	tests := []struct {
		name        string
		template    string
		workspaceID uint
		wantDBName  string
	}{
		{
			name:        "configured template",
			template:    "workspace_%d",
			workspaceID: 5,
			wantDBName:  "dbname=workspace_5",
		},
		{
			name:        "empty template falls back",
			template:    "",
			workspaceID: 12,
			wantDBName:  "dbname=workspace_12",
		},
		{
			name:        "custom template",
			template:    "tenant_db_%d",
			workspaceID: 3,
			wantDBName:  "dbname=tenant_db_3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.NameTemplate = tt.template
			dsn := cfg.WorkspaceDSN(tt.workspaceID)
			if !strings.Contains(dsn, tt.wantDBName) {
				t.Errorf("WorkspaceDSN() = %q, want it to contain %q", dsn, tt.wantDBName)
			}
		})
	}
}

func TestDSNUsesPlatformName(t *testing.T) {
	dsn := testConfig().DSN()
	if !strings.Contains(dsn, "dbname=platform") {
		t.Errorf("DSN() = %q, want platform database name", dsn)
	}
}

func TestWorkspacePoolReusesHandleWithinTTL(t *testing.T) {
	opened := make(map[string]int)
	opener := func(cfg Config, dsn string) (*DB, error) {
		opened[dsn]++
		return &DB{}, nil
	}
	pool := NewWorkspacePool(testConfig(), time.Minute, opener)
	defer pool.Close()

	first, err := pool.Get(7)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := pool.Get(7)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first != second {
		t.Error("expected the cached handle to be reused")
	}
	if len(opened) != 1 {
		t.Errorf("opened %d distinct DSNs, want 1", len(opened))
	}

	// A different workspace never shares a handle.
	other, err := pool.Get(8)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if other == first {
		t.Error("workspaces 7 and 8 share a handle")
	}
	if len(opened) != 2 {
		t.Errorf("opened %d distinct DSNs, want 2", len(opened))
	}
}

func TestWorkspacePoolInvalidate(t *testing.T) {
	opens := 0
	opener := func(cfg Config, dsn string) (*DB, error) {
		opens++
		return &DB{}, nil
	}
	pool := NewWorkspacePool(testConfig(), time.Minute, opener)
	defer pool.Close()

	if _, err := pool.Get(1); err != nil {
		t.Fatalf("Get: %v", err)
	}
	pool.Invalidate(1)
	if _, err := pool.Get(1); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if opens != 2 {
		t.Errorf("opens = %d, want 2 after Invalidate", opens)
	}
}
