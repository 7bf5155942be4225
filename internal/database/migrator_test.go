package database

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestPendingFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_feed.sql", "001_init.sql", "999_reset_all.sql", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "003_dir.sql"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := PendingFiles(dir, map[string]bool{"001_init.sql": true})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"002_feed.sql"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestShippedMigrationsArePending(t *testing.T) {
	got, err := PendingFiles("../../migrations", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 || got[0] != "001_initial_schema.sql" {
		t.Fatalf("unexpected migrations %v", got)
	}
}
