package irset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/switcher/internal/breeze"
	"github.com/muurk/switcher/internal/logging"
)

const fileExt = ".json"

// Store is a directory of IR capability sets, one <remote>.json per remote.
// Parsed sets are cached in memory for the lifetime of the store.
type Store struct {
	dir string

	mu    sync.Mutex
	cache map[string]*breeze.CapabilitySet
}

var _ breeze.CapabilityProvider = (*Store)(nil)

// NewStore returns a store rooted at dir. The directory is created on the
// first Save.
func NewStore(dir string) *Store {
	return &Store{
		dir:   dir,
		cache: make(map[string]*breeze.CapabilitySet),
	}
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string { return s.dir }

// Path returns the file that holds the set for remoteID.
func (s *Store) Path(remoteID string) (string, error) {
	if err := validRemoteID(remoteID); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, remoteID+fileExt), nil
}

// CapabilitySet loads the set for remoteID, from cache when possible.
// A missing file yields an error wrapping breeze.ErrRemoteNotFound.
func (s *Store) CapabilitySet(ctx context.Context, remoteID string) (*breeze.CapabilitySet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if set, ok := s.cache[remoteID]; ok {
		return set, nil
	}

	path, err := s.Path(remoteID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", breeze.ErrRemoteNotFound, remoteID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read IR set: %w", err)
	}

	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if set.RemoteID != remoteID {
		// a stale file left by a previous remote
		return nil, fmt.Errorf("%w: %s holds set %q", breeze.ErrRemoteNotFound, path, set.RemoteID)
	}

	logging.Debug("Loaded IR set",
		zap.String("remote", remoteID),
		zap.Int("waves", len(set.Waves)),
	)
	s.cache[remoteID] = set
	return set, nil
}

// Save writes set to disk and caches it. The write is atomic.
func (s *Store) Save(set *breeze.CapabilitySet) error {
	path, err := s.Path(set.RemoteID)
	if err != nil {
		return err
	}
	data, err := Encode(set)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create IR set directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary IR set file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save IR set: %w", err)
	}

	s.cache[set.RemoteID] = set
	return nil
}

// List returns the remote ids stored on disk, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list IR sets: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, fileExt))
	}
	sort.Strings(ids)
	return ids, nil
}

func validRemoteID(id string) error {
	if id == "" {
		return errors.New("empty remote id")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("invalid remote id %q", id)
	}
	return nil
}
