package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// SecurityStateStore loads and saves the single security record of one profile.
// Load returns ok=false when no record exists yet.
type SecurityStateStore interface {
	Load(ctx context.Context) (state SecurityState, ok bool, err error)
	Save(ctx context.Context, state SecurityState) error
}

// FlagStore holds the session-scoped "this session passed the gate" flag.
type FlagStore interface {
	Authenticated(ctx context.Context) (bool, error)
	SetAuthenticated(ctx context.Context) error
}

// MemoryStore keeps the record in memory.
type MemoryStore struct {
	mu    sync.Mutex
	state SecurityState
	ok    bool
}

func (m *MemoryStore) Load(ctx context.Context) (SecurityState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.ok, nil
}

func (m *MemoryStore) Save(ctx context.Context, state SecurityState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.ok = true
	return nil
}

// MemoryFlag keeps the authentication flag in memory.
type MemoryFlag struct {
	mu  sync.Mutex
	set bool
}

func (f *MemoryFlag) Authenticated(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set, nil
}

func (f *MemoryFlag) SetAuthenticated(ctx context.Context) error {
	f.mu.Lock()
	f.set = true
	f.mu.Unlock()
	return nil
}

// FileStore persists the record as a JSON file, the way a browser keeps it in
// local storage. Writes go through a temp file and rename.
type FileStore struct {
	Path string
}

// NewFileStore stores the record under dir/<StateKey>.json.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Path: filepath.Join(dir, StateKey+".json")}
}

func (f *FileStore) Load(ctx context.Context) (SecurityState, bool, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return SecurityState{}, false, nil
	}
	if err != nil {
		return SecurityState{}, false, fmt.Errorf("read security state: %w", err)
	}

	var state SecurityState
	if err := json.Unmarshal(data, &state); err != nil {
		return SecurityState{}, false, fmt.Errorf("parse security state: %w", err)
	}
	return state, true, nil
}

func (f *FileStore) Save(ctx context.Context, state SecurityState) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal security state: %w", err)
	}

	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write security state: %w", err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		return fmt.Errorf("replace security state: %w", err)
	}
	return nil
}
