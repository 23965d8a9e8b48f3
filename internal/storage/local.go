package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

// LocalStore reads audio files from the local filesystem.
type LocalStore struct {
	audioDir string
}

// NewLocalStore creates a local filesystem audio source. Relative keys are
// resolved against audioDir; an empty audioDir uses keys as given.
func NewLocalStore(audioDir string) *LocalStore {
	return &LocalStore{audioDir: audioDir}
}

func (s *LocalStore) path(key string) string {
	if s.audioDir == "" || filepath.IsAbs(key) {
		return key
	}
	return filepath.Join(s.audioDir, key)
}

func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return os.Open(s.path(key))
}

func (s *LocalStore) Exists(ctx context.Context, key string) bool {
	info, err := os.Stat(s.path(key))
	return err == nil && !info.IsDir()
}

func (s *LocalStore) Type() string { return "local" }
