package viewstate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store persists a single State.
type Store interface {
	// Load returns found=false when nothing has been saved yet.
	Load(ctx context.Context) (state State, found bool, err error)
	Save(ctx context.Context, state State) error
}

// MemoryStore keeps the state in process; used by tests and one-shot sessions.
type MemoryStore struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(_ context.Context) (State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return State{}, false, nil
	}
	s, err := Decode(m.data)
	if err != nil {
		return State{}, false, err
	}
	return s, true, nil
}

func (m *MemoryStore) Save(_ context.Context, s State) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = data
	m.saves++
	m.mu.Unlock()
	return nil
}

// Saves reports how many times Save succeeded.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// FileStore writes the state as JSON to <dir>/<StorageKey>.json.
type FileStore struct {
	path string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{path: filepath.Join(dir, StorageKey+".json")}
}

func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Load(_ context.Context) (State, bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return State{}, false, nil
		}
		return State{}, false, fmt.Errorf("read view state: %w", err)
	}
	s, err := Decode(data)
	if err != nil {
		return State{}, false, err
	}
	return s, true, nil
}

// Save replaces the file atomically so a crash never leaves half a document.
func (f *FileStore) Save(_ context.Context, s State) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create view state directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".viewstate-*")
	if err != nil {
		return fmt.Errorf("create view state temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write view state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close view state: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace view state: %w", err)
	}
	return nil
}
