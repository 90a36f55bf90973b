package artifact

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// Store persists run artifacts. Put is create-or-fail: writing a name that
// already exists returns ErrExists.
type Store interface {
	Put(ctx context.Context, runID, name string, content []byte) error
	Get(ctx context.Context, runID, name string) ([]byte, error)
	URI(runID, name string) string
	List(ctx context.Context, runID string) ([]string, error)
}

var (
	ErrNotFound = errors.New("artifact not found")
	ErrExists   = errors.New("artifact already exists")
)

// StorageError wraps any failure to create the storage root or write an
// artifact.
type StorageError struct {
	Op   string
	Name string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Name, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// FileName returns the artifact name for a run and kind, e.g.
// "<run>_report.pdf" for kind "report" and ext "pdf".
func FileName(runID, kind, ext string) string {
	return strings.TrimSpace(runID) + "_" + kind + "." + strings.TrimPrefix(ext, ".")
}

// checkName validates that name is a flat file name namespaced by runID.
func checkName(runID, name string) (string, string, error) {
	runID = strings.TrimSpace(runID)
	name = strings.TrimSpace(name)
	if runID == "" {
		return "", "", fmt.Errorf("run_id is required")
	}
	if name == "" {
		return "", "", fmt.Errorf("name is required")
	}
	if strings.Contains(runID, "..") || strings.ContainsAny(runID, `/\`) {
		return "", "", fmt.Errorf("invalid run_id: %s", runID)
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) || path.IsAbs(name) {
		return "", "", fmt.Errorf("invalid name: %s", name)
	}
	if !strings.HasPrefix(name, runID+"_") {
		return "", "", fmt.Errorf("name %s is not namespaced by run %s", name, runID)
	}
	return runID, name, nil
}
