package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"loom/internal/tree"
)

// FileStore keeps one pretty-printed JSON file per conversation inside
// a sandboxed storage root. Saves replace the file atomically via a
// temp file and rename, so external readers never see a partial tree.
// Files may be edited externally between operations; with watching
// enabled the store notices and drops its cached copy.
type FileStore struct {
	root string

	mu      sync.RWMutex
	cache   map[string][]byte // raw file bytes, populated only while watching
	watcher *fsWatcher
}

// NewFileStore creates the storage root if needed and verifies it is
// writable.
func NewFileStore(root string) (*FileStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	probe := filepath.Join(abs, ".write-test")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return nil, fmt.Errorf("storage root not writable: %w", err)
	}
	_ = os.Remove(probe)
	return &FileStore{root: abs}, nil
}

// Root returns the absolute storage root the store is sandboxed to.
func (s *FileStore) Root() string { return s.root }

// EnableWatch turns on read caching backed by filesystem notifications:
// when a document file changes on disk its cached copy is dropped, so
// external edits are picked up without a restart.
func (s *FileStore) EnableWatch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return nil
	}
	w, err := newFSWatcher(s.root, s.invalidate)
	if err != nil {
		return err
	}
	s.watcher = w
	s.cache = map[string][]byte{}
	return nil
}

func (s *FileStore) invalidate(path string) {
	if filepath.Ext(path) != ".json" {
		return
	}
	id := strings.TrimSuffix(filepath.Base(path), ".json")
	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()
}

// resolve maps a document id to its file and rejects ids that would
// escape the storage root.
func (s *FileStore) resolve(id string) (string, error) {
	if id == "" || strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	path := filepath.Join(s.root, id+".json")
	if !strings.HasPrefix(path, s.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q escapes storage root", ErrInvalidID, id)
	}
	return path, nil
}

func (s *FileStore) Load(ctx context.Context, id string) (*tree.Document, error) {
	path, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	raw, cached := s.cache[id]
	s.mu.RUnlock()
	if !cached {
		raw, err = os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return nil, fmt.Errorf("read document %s: %w", id, err)
		}
		s.mu.Lock()
		if s.cache != nil {
			s.cache[id] = raw
		}
		s.mu.Unlock()
	}
	return decodeDocument(id, raw)
}

func (s *FileStore) Save(ctx context.Context, id string, doc *tree.Document) error {
	path, err := s.resolve(id)
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document %s: %w", id, err)
	}
	tmp, err := os.CreateTemp(s.root, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	s.mu.Lock()
	if s.cache != nil {
		s.cache[id] = raw
	}
	s.mu.Unlock()
	return nil
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	path, err := s.resolve(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()
	return nil
}

func (s *FileStore) List(ctx context.Context) ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read storage root: %w", err)
	}
	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(de.Name(), ".json")
		doc, err := s.Load(ctx, id)
		if err != nil {
			continue // unreadable files stay on disk but out of the listing
		}
		entries = append(entries, entryFor(id, doc))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].UpdatedAt.After(entries[j].UpdatedAt) })
	return entries, nil
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		err := s.watcher.Close()
		s.watcher = nil
		s.cache = nil
		return err
	}
	return nil
}

func decodeDocument(id string, raw []byte) (*tree.Document, error) {
	var doc tree.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", tree.ErrInvalidDocument, id, err)
	}
	return &doc, nil
}
