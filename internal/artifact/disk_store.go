package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DiskStore persists artifacts as flat files under a local root directory.
// The root is created on first write.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) *DiskStore {
	return &DiskStore{root: strings.TrimSpace(root)}
}

func (s *DiskStore) Root() string { return s.root }

func (s *DiskStore) Put(_ context.Context, runID, name string, content []byte) error {
	fullPath, err := s.pathFor(runID, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create root: %w", err)
	}
	f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrExists
		}
		return err
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (s *DiskStore) Get(_ context.Context, runID, name string) ([]byte, error) {
	fullPath, err := s.pathFor(runID, name)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(fullPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return raw, err
}

// URI is the absolute file path of the artifact.
func (s *DiskStore) URI(runID, name string) string {
	fullPath, err := s.pathFor(runID, name)
	if err != nil {
		return ""
	}
	if abs, err := filepath.Abs(fullPath); err == nil {
		return abs
	}
	return fullPath
}

func (s *DiskStore) List(_ context.Context, runID string) ([]string, error) {
	if s == nil || s.root == "" {
		return nil, fmt.Errorf("root is required")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("run_id is required")
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	out := make([]string, 0, 4)
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), runID+"_") {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

func (s *DiskStore) pathFor(runID, name string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("store is nil")
	}
	if s.root == "" {
		return "", fmt.Errorf("root is required")
	}
	_, name, err := checkName(runID, name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, name), nil
}
