package persistence

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSQLMigrationFiles_SortsAndFiltersSQL(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_indexes.sql", "001_init.sql", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("-- noop"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "archive"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	filenames, err := sqlMigrationFiles(dir)
	if err != nil {
		t.Fatalf("sqlMigrationFiles: %v", err)
	}
	if len(filenames) != 2 || filenames[0] != "001_init.sql" || filenames[1] != "002_indexes.sql" {
		t.Fatalf("expected sorted .sql files only, got %v", filenames)
	}
}

func TestSQLMigrationFiles_MissingDir(t *testing.T) {
	if _, err := sqlMigrationFiles(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
