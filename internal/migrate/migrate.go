// Package migrate upgrades on-disk data (config.toml, sessions.json) from
// older schema versions one step at a time.
package migrate

import (
	"fmt"
	"log/slog"
	"sort"
)

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Migration upgrades raw file contents from the previous schema version to
// [Migration.Version].
type Migration struct {
	// Version is the schema version this migration produces.
	Version int
	// Description is a short human-readable label for log output.
	Description string
	// Upgrade transforms data from the prior version to Version.
	Upgrade func(data []byte) ([]byte, error)
}

// Registry holds the current version and the migrations for one file kind.
// Each file kind has its own instance so version numbers never collide.
type Registry struct {
	// Name labels the file kind in log output (e.g. "config").
	Name string
	// CurrentVersion is the schema version the running binary writes.
	CurrentVersion int
	// Migrations is exported so tests can swap the list for a registry.
	Migrations []Migration
}

// Config is the migration registry for config.toml.
var Config = &Registry{Name: "config", CurrentVersion: 1}

// Store is the migration registry for the daily session store.
var Store = &Registry{Name: "store", CurrentVersion: 1}

// ///////////////////////////////////////////////
// Registry
// ///////////////////////////////////////////////

// Register appends m. It panics on a duplicate version.
func (r *Registry) Register(m Migration) {
	for _, existing := range r.Migrations {
		if existing.Version == m.Version {
			panic(fmt.Sprintf("migrate: duplicate %s migration version %d (description: %q)", r.Name, m.Version, m.Description))
		}
	}
	r.Migrations = append(r.Migrations, m)
}

// NeedsMigration reports whether a file written at fileVersion has to be
// rewritten before the running binary can use it.
func (r *Registry) NeedsMigration(fileVersion int) bool {
	return NeedsMigration(fileVersion, r.CurrentVersion, r.Migrations)
}

// Run applies the registry's migrations to data written at fromVersion.
func (r *Registry) Run(data []byte, fromVersion int) ([]byte, int, error) {
	return Run(data, fromVersion, r.Migrations)
}

// ///////////////////////////////////////////////
// Package-level helpers
// ///////////////////////////////////////////////

// Run applies migrations in version order, skipping those at or below
// fromVersion. It returns the transformed data and the version reached; on
// error the version is the last one that succeeded.
func Run(data []byte, fromVersion int, migrations []Migration) ([]byte, int, error) {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Version < sorted[j].Version
	})
	version := fromVersion
	for _, m := range sorted {
		if version >= m.Version {
			continue
		}
		slog.Info("applying migration", "version", m.Version, "description", m.Description)
		out, err := m.Upgrade(data)
		if err != nil {
			return nil, version, fmt.Errorf("migration to v%d failed: %w", m.Version, err)
		}
		data = out
		version = m.Version
	}
	return data, version, nil
}

// NeedsMigration reports whether fileVersion differs from currentVersion or
// sits below any registered migration.
func NeedsMigration(fileVersion, currentVersion int, migrations []Migration) bool {
	if fileVersion != currentVersion {
		return true
	}
	for _, m := range migrations {
		if fileVersion < m.Version {
			return true
		}
	}
	return false
}
