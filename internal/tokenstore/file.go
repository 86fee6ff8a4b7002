package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/and161185/calsync/internal/crypto/clientcrypto"
)

var sealAAD = []byte("calsync/tokenstore/v1")

// File is a Store backed by a single JSON document on disk.
// With a passphrase the document is sealed (XChaCha20-Poly1305, Argon2id-derived key).
type File struct {
	mu         sync.Mutex
	path       string
	passphrase []byte
}

var (
	_ Store       = (*File)(nil)
	_ BatchSetter = (*File)(nil)
)

// NewFile returns a file store at path. An empty passphrase stores plain JSON.
func NewFile(path string, passphrase string) *File {
	f := &File{path: path}
	if passphrase != "" {
		f.passphrase = []byte(passphrase)
	}
	return f
}

// DefaultPath returns $XDG_CONFIG_HOME/calsync/session.json (or ~/.config/calsync/session.json).
func DefaultPath() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "calsync", "session.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "calsync", "session.json")
}

// Path returns the backing file location.
func (f *File) Path() string { return f.path }

func (f *File) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kv, err := f.read()
	if err != nil {
		return "", false, err
	}
	v, ok := kv[key]
	return v, ok, nil
}

func (f *File) Set(key, value string) error {
	return f.SetMany(map[string]string{key: value})
}

func (f *File) SetMany(kv map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, err := f.read()
	if err != nil {
		return err
	}
	for k, v := range kv {
		cur[k] = v
	}
	return f.write(cur)
}

func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (f *File) read() (map[string]string, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if f.passphrase != nil {
		if b, err = clientcrypto.Open(f.passphrase, b, sealAAD); err != nil {
			return nil, fmt.Errorf("open sealed store: %w", err)
		}
	}
	kv := map[string]string{}
	if err := json.Unmarshal(b, &kv); err != nil {
		return nil, fmt.Errorf("decode store: %w", err)
	}
	return kv, nil
}

// write replaces the file via temp file + rename so readers never see a half-written pair.
func (f *File) write(kv map[string]string) error {
	b, err := json.MarshalIndent(kv, "", "  ")
	if err != nil {
		return err
	}
	if f.passphrase != nil {
		if b, err = clientcrypto.Seal(f.passphrase, b, sealAAD); err != nil {
			return err
		}
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}
