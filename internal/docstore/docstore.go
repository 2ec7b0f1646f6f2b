package docstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store persists uploaded document bytes and hands back an opaque
// storage reference.
type Store interface {
	Save(ctx context.Context, content []byte, originalName string) (string, error)
	Read(ctx context.Context, storageRef string) ([]byte, error)
}

// FSStore keeps documents as files under a single directory. The storage
// reference is the generated file name, never a caller-supplied path.
type FSStore struct {
	dir string
}

func NewFSStore(dir string) (*FSStore, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		trimmed = "documents"
	}
	if err := os.MkdirAll(trimmed, 0o755); err != nil {
		return nil, fmt.Errorf("create documents dir: %w", err)
	}
	return &FSStore{dir: trimmed}, nil
}

func (s *FSStore) Save(_ context.Context, content []byte, originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	ref := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.dir, ref), content, 0o644); err != nil {
		return "", fmt.Errorf("write document %s: %w", ref, err)
	}
	return ref, nil
}

func (s *FSStore) Read(_ context.Context, storageRef string) ([]byte, error) {
	content, err := os.ReadFile(filepath.Join(s.dir, filepath.Base(storageRef)))
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", storageRef, err)
	}
	return content, nil
}
