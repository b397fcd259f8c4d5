package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"alliance.fr/admin/internal/auth"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "session.json"))

	if _, err := store.Load(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	want := Session{Token: "tok", User: auth.Identity{ID: 42, Email: "a@b.com", RoleID: 1, Service: "RH"}}
	if err := store.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(store.Path())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600, got %o", perm)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("unexpected session: %+v", got)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession after clear, got %v", err)
	}
}

func TestFileStoreUsesFixedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	raw := `{"token":"abc","user":{"id":7,"email":"x@b.com","role":3,"service":"Accueil"}}`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	sess, err := NewFileStore(path).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if sess.Token != "abc" || sess.User.ID != 7 || sess.User.Service != "Accueil" {
		t.Fatalf("unexpected session: %+v", sess)
	}
}

func TestFileStoreRejectsEmptyToken(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	if err := store.Save(Session{}); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := NewFileStore(path).Load()
	if err == nil || errors.Is(err, ErrNoSession) {
		t.Fatalf("expected decode error, got %v", err)
	}
}
