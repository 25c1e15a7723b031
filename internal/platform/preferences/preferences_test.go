package preferences

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStores(t *testing.T) {
	file, err := OpenFileStore(filepath.Join(t.TempDir(), "nested", "prefs.yaml"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"file":   file,
	}

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			key := CurrentOrganizationKey("usr_1", "laptop")

			if _, ok, _ := s.Get(key); ok {
				t.Fatal("expected empty store")
			}
			if err := s.Set(key, "org_1"); err != nil {
				t.Fatalf("set: %v", err)
			}
			if v, ok, _ := s.Get(key); !ok || v != "org_1" {
				t.Errorf("expected org_1, got %q (%v)", v, ok)
			}
			if _, ok, _ := s.Get(CurrentOrganizationKey("usr_1", "phone")); ok {
				t.Error("expected devices to be independent")
			}
			if err := s.Delete(key); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, ok, _ := s.Get(key); ok {
				t.Error("expected key to be deleted")
			}
		})
	}
}

func TestFileStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")

	s, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Set("a", "1"); err != nil {
		t.Fatalf("set: %v", err)
	}

	reopened, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if v, ok, _ := reopened.Get("a"); !ok || v != "1" {
		t.Errorf("expected value to survive reopen, got %q", v)
	}
}

func TestFileStore_RejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	if err := os.WriteFile(path, []byte("- not\n- a map\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFileStore(path); err == nil {
		t.Error("expected error for non-map document")
	}
}
