package storage

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/psyportal/portal-client/internal/core/domain"
)

func TestFile_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	f, err := NewFile(t.TempDir(), "http://localhost:8080")
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	if _, err := f.Get(ctx, "k"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get on empty store = %v, want ErrNotFound", err)
	}
	if err := f.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := f.Get(ctx, "k")
	if err != nil || got != "v" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	info, err := os.Stat(f.Path())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}

	if err := f.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(f.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("empty document should be removed, stat err = %v", err)
	}
}

func TestFile_SealedAtRest(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f, _ := NewFile(dir, "https://api.example.com", WithSecret("s3cret"))

	if err := f.Set(ctx, KeyTokens, `{"access_token":"visible?"}`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	raw, err := os.ReadFile(f.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(raw), "visible?") {
		t.Error("document is stored in clear text")
	}

	reopened, _ := NewFile(dir, "https://api.example.com", WithSecret("s3cret"))
	got, err := reopened.Get(ctx, KeyTokens)
	if err != nil || got != `{"access_token":"visible?"}` {
		t.Errorf("Get = %q, %v", got, err)
	}

	wrongKey, _ := NewFile(dir, "https://api.example.com", WithSecret("other"))
	if _, err := wrongKey.Get(ctx, KeyTokens); !errors.Is(err, domain.ErrStaleStorage) {
		t.Errorf("wrong key: err = %v, want ErrStaleStorage", err)
	}
	if err := wrongKey.Delete(ctx, KeyTokens); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(f.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Error("unreadable document should be dropped on delete")
	}
}

func TestFile_NamespacesDoNotShareKeys(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a, _ := NewFile(dir, "http://localhost:8080")
	b, _ := NewFile(dir, "https://api.example.com")

	_ = a.Set(ctx, KeyTokens, "from-a")
	if _, err := b.Get(ctx, KeyTokens); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("origin b sees origin a's value: %v", err)
	}
	if a.Path() == b.Path() {
		t.Error("namespaces map to the same file")
	}
}

func TestFile_WatchReportsChanges(t *testing.T) {
	dir := t.TempDir()
	f, _ := NewFile(dir, "http://localhost:8080")
	other, _ := NewFile(dir, "http://localhost:8080")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 8)
	ready := make(chan error, 1)
	go func() {
		ready <- f.Watch(ctx, func() { changed <- struct{}{} })
	}()

	// Give the watcher a moment to register before writing.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-changed:
			cancel()
			if err := <-ready; err != nil {
				t.Fatalf("Watch: %v", err)
			}
			return
		case <-tick.C:
			_ = other.Set(context.Background(), "k", time.Now().String())
		case <-deadline:
			t.Fatal("no change notification received")
		}
	}
}

func TestNamespace(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "http://localhost:8080/api/v1", want: "http://localhost:8080"},
		{in: "HTTPS://API.Example.com/api/v1/", want: "https://api.example.com"},
		{in: "/api/v1", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := Namespace(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Namespace(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Namespace(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFileName(t *testing.T) {
	if got := fileName("https://api.example.com:8443"); got != "https___api.example.com_8443.json" {
		t.Errorf("fileName = %q", got)
	}
	if got := fileName(""); got != "default.json" {
		t.Errorf("fileName(empty) = %q", got)
	}
}
