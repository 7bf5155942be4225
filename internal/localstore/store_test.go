package localstore

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
)

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "recon.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var missing string
	ok, err := s.Get(ctx, KeyUserID, &missing)
	if err != nil || ok {
		t.Fatalf("expected unset key, got ok=%v err=%v", ok, err)
	}

	if err := s.Put(ctx, KeyUserID, "u-1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, KeyUserID, "u-2"); err != nil {
		t.Fatal(err)
	}
	var got string
	if ok, err := s.Get(ctx, KeyUserID, &got); err != nil || !ok || got != "u-2" {
		t.Fatalf("expected u-2, got %q ok=%v err=%v", got, ok, err)
	}

	if err := s.Delete(ctx, KeyUserID); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Get(ctx, KeyUserID, &got); ok {
		t.Fatal("key should be gone")
	}
}

func TestValuesSurviveReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "recon.db")

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	s.Put(ctx, KeyUserName, "Ali")
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	var name string
	if ok, _ := s.Get(ctx, KeyUserName, &name); !ok || name != "Ali" {
		t.Fatalf("expected Ali after reopen, got %q", name)
	}
}

func TestBackupsAreCapped(t *testing.T) {
	ctx := context.Background()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	for i := 0; i < 13; i++ {
		if err := s.AppendBackup(ctx, map[string]int{"n": i}, 10); err != nil {
			t.Fatal(err)
		}
	}

	backups, err := s.Backups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 10 {
		t.Fatalf("expected 10 backups, got %d", len(backups))
	}
	var first map[string]int
	json.Unmarshal(backups[0].Data, &first)
	if first["n"] != 3 {
		t.Fatalf("oldest kept backup should be #3, got %v", first)
	}
}
