package main

import (
	"testing"
	"testing/fstest"
)

func TestReadEmbeddedMigrations(t *testing.T) {
	migrations, err := readMigrations(migrationFiles)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 embedded migrations, got %d", len(migrations))
	}
	if migrations[0].version != 1 || migrations[1].version != 2 {
		t.Fatalf("unexpected version order: %d, %d", migrations[0].version, migrations[1].version)
	}
	for _, m := range migrations {
		if m.up == "" || m.down == "" {
			t.Fatalf("version %d is missing sql", m.version)
		}
	}
}

func TestReadMigrationsRejectsMissingDirection(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0001_orphan.up.sql": {Data: []byte("CREATE TABLE orphan (id INT);")},
	}
	if _, err := readMigrations(fsys); err == nil {
		t.Fatal("expected error for a migration without a down file")
	}
}

func TestReadMigrationsRejectsBadFilename(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/create_stuff.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := readMigrations(fsys); err == nil {
		t.Fatal("expected error for a filename without a version")
	}
}

func TestReadMigrationsRejectsEmptyFile(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0001_empty.up.sql":   {Data: []byte("   \n")},
		"migrations/0001_empty.down.sql": {Data: []byte("DROP TABLE empty;")},
	}
	if _, err := readMigrations(fsys); err == nil {
		t.Fatal("expected error for an empty migration file")
	}
}
