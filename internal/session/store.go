package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Store persists the single session token between runs.
type Store interface {
	// Load returns "" when nothing is stored.
	Load() (string, error)
	Save(token string) error
	// Clear is a no-op when nothing is stored.
	Clear() error
}

// FileStore keeps the token in one file, readable only by the owner.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultTokenPath returns ~/.spendlog/token.
func DefaultTokenPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".spendlog", "token"), nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save writes the token atomically so a concurrent reader never sees a
// partial file.
func (s *FileStore) Save(token string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}

	f, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("create temp token: %w", err)
	}
	tmp := f.Name()
	ok := false
	defer func() {
		if !ok {
			f.Close()      //nolint:errcheck
			os.Remove(tmp) //nolint:errcheck
		}
	}()

	if err := f.Chmod(0600); err != nil {
		return fmt.Errorf("chmod temp token: %w", err)
	}
	if _, err := f.WriteString(token); err != nil {
		return fmt.Errorf("write temp token: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync temp token: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp token: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	ok = true
	return nil
}

func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

// MemoryStore is a Store that lives only as long as the process.
type MemoryStore struct {
	token string
}

func (s *MemoryStore) Load() (string, error) { return s.token, nil }
func (s *MemoryStore) Save(token string) error {
	s.token = token
	return nil
}
func (s *MemoryStore) Clear() error {
	s.token = ""
	return nil
}
