package token

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func discard() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestResolvePrecedence(t *testing.T) {
	local := NewMemoryStorage()
	session := NewMemoryStorage()
	r := NewResolver(local, session, discard())

	if got := r.Resolve(); got != "" {
		t.Fatalf("expected no token, got %q", got)
	}

	local.Set(KeyAuthToken, "legacy")
	local.Set(KeyToken, "primary")
	session.Set(KeyToken, "session")

	if got := r.Resolve(); got != "primary" {
		t.Fatalf("expected primary token to win, got %q", got)
	}

	if v, _ := local.Get(KeyAuthToken); v != "legacy" {
		t.Fatalf("legacy key must be left alone when the canonical key is set, got %q", v)
	}
}

func TestResolveMigratesLegacy(t *testing.T) {
	local := NewMemoryStorage()
	session := NewMemoryStorage()
	r := NewResolver(local, session, discard())

	local.Set(KeyAccessToken, "old")
	session.Set(KeyToken, "session")

	if got := r.Resolve(); got != "old" {
		t.Fatalf("expected legacy local token, got %q", got)
	}

	if v, _ := local.Get(KeyToken); v != "old" {
		t.Fatalf("expected token migrated to canonical key, got %q", v)
	}
	if v, _ := local.Get(KeyAccessToken); v != "" {
		t.Fatalf("expected legacy key dropped, got %q", v)
	}
}

func TestResolveSessionFallback(t *testing.T) {
	local := NewMemoryStorage()
	session := NewMemoryStorage()
	r := NewResolver(local, session, discard())

	session.Set(KeyToken, "tab")

	tok, err := r.Token()
	if err != nil {
		t.Fatal(err)
	}
	if tok.AccessToken != "tab" || tok.Type() != "Bearer" {
		t.Fatalf("unexpected token %+v", tok)
	}
}

func TestSessionTokenStaysInSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.json")
	local := NewFileStorage(path)
	session := NewMemoryStorage()
	r := NewResolver(local, session, discard())

	session.Set(KeyToken, "session-only")

	if got := r.Resolve(); got != "session-only" {
		t.Fatalf("expected session token, got %q", got)
	}
	if v, _ := local.Get(KeyToken); v != "" {
		t.Fatalf("session token written to local storage: %q", v)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no local storage file, stat err %v", err)
	}
	if v, _ := session.Get(KeyToken); v != "session-only" {
		t.Fatalf("session token dropped, got %q", v)
	}
}

func TestClearRemovesEveryKey(t *testing.T) {
	local := NewFileStorage(filepath.Join(t.TempDir(), "storage.json"))
	session := NewMemoryStorage()
	r := NewResolver(local, session, discard())

	local.Set(KeyToken, "a")
	local.Set(KeyAuthToken, "b")
	local.Set(KeyAccessToken, "c")
	session.Set(KeyToken, "d")

	if err := r.Clear(); err != nil {
		t.Fatal(err)
	}

	for _, k := range []string{KeyToken, KeyAuthToken, KeyAccessToken} {
		if v, _ := local.Get(k); v != "" {
			t.Fatalf("local %s still set to %q", k, v)
		}
	}
	if v, _ := session.Get(KeyToken); v != "" {
		t.Fatalf("session token still set to %q", v)
	}

	if _, err := r.Token(); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}

func TestFileStoragePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "storage.json")

	if err := NewFileStorage(path).Set(KeyToken, "abc"); err != nil {
		t.Fatal(err)
	}

	v, err := NewFileStorage(path).Get(KeyToken)
	if err != nil {
		t.Fatal(err)
	}
	if v != "abc" {
		t.Fatalf("expected persisted token, got %q", v)
	}
}
