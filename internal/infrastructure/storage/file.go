package storage

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/psyportal/portal-client/internal/core/domain"
)

const nonceSize = 24

var errSealed = errors.New("file storage: cannot open sealed document")

// File keeps one JSON document per namespace under dir. Writes go to a
// temporary file that is renamed into place, so a reader never sees a torn
// document. With a secret, the document is sealed with secretbox.
type File struct {
	path string
	key  *[32]byte
	log  zerolog.Logger

	mu sync.Mutex
}

// FileOption configures a File store.
type FileOption func(*File)

// WithSecret seals the document at rest with a key derived from secret.
func WithSecret(secret string) FileOption {
	return func(f *File) {
		if secret == "" {
			return
		}
		k := sha256.Sum256([]byte(secret))
		f.key = &k
	}
}

// WithFileLogger sets the logger used for watcher diagnostics.
func WithFileLogger(log zerolog.Logger) FileOption {
	return func(f *File) {
		f.log = log
	}
}

func NewFile(dir, namespace string, opts ...FileOption) (*File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("file storage: %w", err)
	}
	f := &File{
		path: filepath.Join(dir, fileName(namespace)),
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Path is the document backing this store.
func (f *File) Path() string { return f.path }

func (f *File) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return "", err
	}
	v, ok := doc[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (f *File) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if errors.Is(err, domain.ErrStaleStorage) {
		f.log.Warn().Str("path", f.path).Msg("overwriting unreadable storage document")
		doc = map[string]string{}
	} else if err != nil {
		return err
	}
	doc[key] = value
	return f.store(doc)
}

func (f *File) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		// An unreadable document is dropped wholesale.
		if errors.Is(err, domain.ErrStaleStorage) {
			return f.remove()
		}
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := doc[k]; ok {
			delete(doc, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	if len(doc) == 0 {
		return f.remove()
	}
	return f.store(doc)
}

// Watch calls fn whenever the document is changed on disk, including by
// another process sharing the directory. It returns when ctx is done.
func (f *File) Watch(ctx context.Context, fn func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("file storage watch: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("file storage watch: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				fn()
			}
		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.log.Warn().Err(werr).Str("path", f.path).Msg("storage watcher error")
		}
	}
}

func (f *File) load() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file storage read: %w", err)
	}
	if f.key != nil {
		if raw, err = f.open(raw); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrStaleStorage, err)
		}
	}
	doc := map[string]string{}
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("file storage decode: %w", domain.ErrStaleStorage)
	}
	return doc, nil
}

func (f *File) store(doc map[string]string) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("file storage encode: %w", err)
	}
	if f.key != nil {
		if raw, err = f.seal(raw); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".portal-*")
	if err != nil {
		return fmt.Errorf("file storage write: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file storage write: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file storage write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file storage write: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("file storage write: %w", err)
	}
	return nil
}

func (f *File) remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("file storage remove: %w", err)
	}
	return nil
}

func (f *File) seal(plain []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("file storage seal: %w", err)
	}
	return secretbox.Seal(nonce[:], plain, &nonce, f.key), nil
}

func (f *File) open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, errSealed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, f.key)
	if !ok {
		return nil, errSealed
	}
	return plain, nil
}

// fileName turns an origin such as "https://api.example.com:8443" into a
// portable file name.
func fileName(namespace string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(namespace) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		name = "default"
	}
	return name + ".json"
}
