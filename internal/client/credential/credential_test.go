package credential

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePrefersExplicit(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "token"))
	if err := fs.Save("saved"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Resolve("  flag ", fs, func() (string, error) {
		t.Fatal("prompted despite explicit token")
		return "", nil
	})
	if err != nil || got != "flag" {
		t.Fatalf("got=%q err=%v", got, err)
	}
}

func TestResolveUsesSavedToken(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "token"))
	if err := fs.Save("saved"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Resolve("", fs, nil)
	if err != nil || got != "saved" {
		t.Fatalf("got=%q err=%v", got, err)
	}
}

func TestResolvePromptsAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token")
	fs := NewFileStore(path)
	got, err := Resolve("", fs, func() (string, error) { return "typed", nil })
	if err != nil || got != "typed" {
		t.Fatalf("got=%q err=%v", got, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode=%v", info.Mode().Perm())
	}
	saved, _ := fs.Load()
	if saved != "typed" {
		t.Fatalf("saved=%q", saved)
	}
}

func TestResolvePromptError(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "token"))
	want := errors.New("no tty")
	if _, err := Resolve("", fs, func() (string, error) { return "", want }); !errors.Is(err, want) {
		t.Fatalf("err=%v", err)
	}
}

func TestClear(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "token"))
	if err := fs.Clear(); err != nil {
		t.Fatalf("Clear on missing file: %v", err)
	}
	_ = fs.Save("x")
	if err := fs.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got, _ := fs.Load(); got != "" {
		t.Fatalf("token survived Clear: %q", got)
	}
}
