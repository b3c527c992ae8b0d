// Tests for sequential migration, version skipping, error propagation,
// [NeedsMigration] and [Registry] registration.
package migrate

import (
	"fmt"
	"strings"
	"testing"
)

func TestRunSkipsAppliedVersions(t *testing.T) {
	called := false
	migrations := []Migration{
		{Version: 1, Description: "already applied", Upgrade: func(d []byte) ([]byte, error) {
			called = true
			return d, nil
		}},
	}
	out, version, err := Run([]byte("data"), 1, migrations)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatal("migration should have been skipped")
	}
	if version != 1 || string(out) != "data" {
		t.Fatalf("got (%q, %d), want (data, 1)", out, version)
	}
}

func TestRunAppliesInVersionOrder(t *testing.T) {
	migrations := []Migration{
		{Version: 3, Description: "v2->v3", Upgrade: func(d []byte) ([]byte, error) {
			return append(d, []byte("-v3")...), nil
		}},
		{Version: 2, Description: "v1->v2", Upgrade: func(d []byte) ([]byte, error) {
			return append(d, []byte("-v2")...), nil
		}},
	}
	out, version, err := Run([]byte("data"), 1, migrations)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != 3 {
		t.Fatalf("expected version 3, got %d", version)
	}
	if string(out) != "data-v2-v3" {
		t.Fatalf("expected data-v2-v3, got %q", out)
	}
}

func TestRunStopsOnError(t *testing.T) {
	migrations := []Migration{
		{Version: 2, Description: "v1->v2", Upgrade: func(d []byte) ([]byte, error) {
			return d, nil
		}},
		{Version: 3, Description: "v2->v3 fails", Upgrade: func(d []byte) ([]byte, error) {
			return nil, fmt.Errorf("boom")
		}},
	}
	_, version, err := Run([]byte("data"), 1, migrations)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "migration to v3 failed") || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("unexpected error text: %v", err)
	}
	if version != 2 {
		t.Fatalf("expected version 2, got %d", version)
	}
}

func TestNeedsMigration(t *testing.T) {
	tests := []struct {
		name       string
		file, curr int
		migrations []Migration
		want       bool
	}{
		{"up to date", 1, 1, nil, false},
		{"older file", 0, 1, nil, true},
		{"future file", 2, 1, nil, true},
		{"pending migration", 1, 1, []Migration{{Version: 2}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsMigration(tt.file, tt.curr, tt.migrations); got != tt.want {
				t.Errorf("NeedsMigration(%d, %d) = %v, want %v", tt.file, tt.curr, got, tt.want)
			}
		})
	}
}

func TestRegistryRegisterDuplicatePanics(t *testing.T) {
	r := &Registry{Name: "test", CurrentVersion: 2}
	r.Register(Migration{Version: 2, Description: "first"})

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate version")
		}
	}()
	r.Register(Migration{Version: 2, Description: "second"})
}

func TestRegistryRun(t *testing.T) {
	r := &Registry{Name: "test", CurrentVersion: 2}
	r.Register(Migration{Version: 2, Description: "rename", Upgrade: func(d []byte) ([]byte, error) {
		return []byte(strings.ReplaceAll(string(d), "old", "new")), nil
	}})

	if !r.NeedsMigration(1) {
		t.Fatal("expected v1 file to need migration")
	}
	out, version, err := r.Run([]byte("old"), 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if version != 2 || string(out) != "new" {
		t.Fatalf("got (%q, %d), want (new, 2)", out, version)
	}
}

func TestBuiltinRegistries(t *testing.T) {
	if Config.CurrentVersion != 1 || Config.Name != "config" {
		t.Fatalf("Config registry = %+v", Config)
	}
	if Store.CurrentVersion != 1 || Store.Name != "store" {
		t.Fatalf("Store registry = %+v", Store)
	}
}
