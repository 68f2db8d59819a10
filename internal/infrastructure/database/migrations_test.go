package database

import (
	"context"
	"io/fs"
	"testing"
	"testing/fstest"
	"time"
)

var testMigrations = fstest.MapFS{
	"sql/20260101_000000_lamps.up.sql":      {Data: []byte("CREATE TABLE lamps (id INTEGER PRIMARY KEY, level INTEGER NOT NULL) STRICT;")},
	"sql/20260101_000000_lamps.down.sql":    {Data: []byte("DROP TABLE lamps;")},
	"sql/20260102_093000_lamp_name.up.sql":  {Data: []byte("ALTER TABLE lamps ADD COLUMN name TEXT;")},
	"sql/20260102_093000_lamp_name.down.sql": {Data: []byte("ALTER TABLE lamps DROP COLUMN name;")},
	"sql/README.md":                          {Data: []byte("not a migration")},
}

func useMigrations(t *testing.T, fsys fs.FS, dir string) {
	t.Helper()
	origFS, origDir := MigrationsFS, MigrationsDir
	MigrationsFS, MigrationsDir = fsys, dir
	t.Cleanup(func() {
		MigrationsFS, MigrationsDir = origFS, origDir
	})
}

func TestMigrate(t *testing.T) {
	useMigrations(t, testMigrations, "sql")
	db := openTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO lamps (level, name) VALUES (50, 'desk')"); err != nil {
		t.Fatalf("schema not applied: %v", err)
	}

	applied, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("applied = %d, pending = %d; want 2, 0", len(applied), len(pending))
	}
	if applied[0].Version != "20260101_000000" || applied[1].Version != "20260102_093000" {
		t.Errorf("applied order = %v", applied)
	}

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	useMigrations(t, testMigrations, "sql")
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	applied, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 1 || len(pending) != 1 || pending[0].Name != "lamp_name" {
		t.Errorf("applied = %v, pending = %v", applied, pending)
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO lamps (level, name) VALUES (1, 'x')"); err == nil {
		t.Error("name column should be gone after MigrateDown")
	}
}

func TestMigrate_NoMigrations(t *testing.T) {
	useMigrations(t, nil, ".")
	db := openTestDB(t)

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(context.Background()); err != nil {
		t.Fatalf("MigrateDown() with nothing applied error = %v", err)
	}
}

func TestMigrate_MissingUp(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20260101_000000_orphan.down.sql": {Data: []byte("SELECT 1;")},
	}, ".")
	db := openTestDB(t)

	if err := db.Migrate(context.Background()); err == nil {
		t.Error("Migrate() should fail for a migration without up SQL")
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename string
		version  string
		name     string
		up       bool
		ok       bool
	}{
		{"20260101_000000_preferences.up.sql", "20260101_000000", "preferences", true, true},
		{"20260101_000000_preferences.down.sql", "20260101_000000", "preferences", false, true},
		{"20260315_120000_override_history_index.up.sql", "20260315_120000", "override_history_index", true, true},
		{"20260101_preferences.up.sql", "", "", false, false},
		{"20260101_000000_preferences.sql", "", "", false, false},
		{"notes.txt", "", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, up, ok := parseMigrationFilename(tt.filename)
			if ok != tt.ok || version != tt.version || name != tt.name || up != tt.up {
				t.Errorf("parseMigrationFilename() = %q, %q, %v, %v; want %q, %q, %v, %v",
					version, name, up, ok, tt.version, tt.name, tt.up, tt.ok)
			}
		})
	}
}
