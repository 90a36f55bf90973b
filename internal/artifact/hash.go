package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"terrarisk/internal/types"
)

// HashBytes returns the lowercase hex SHA-256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NameFromURI extracts the artifact name from any backend URI.
func NameFromURI(uri string) string {
	uri = strings.TrimSpace(uri)
	if i := strings.Index(uri, "://"); i >= 0 {
		return path.Base(uri[i+3:])
	}
	return filepath.Base(uri)
}

// Verify re-reads the artifact bytes and checks them against the recorded
// hash.
func Verify(ctx context.Context, store Store, runID string, a types.Artifact) error {
	if strings.TrimSpace(a.Hash) == "" {
		return fmt.Errorf("artifact %s has no hash", a.URI)
	}
	raw, err := store.Get(ctx, runID, NameFromURI(a.URI))
	if err != nil {
		return fmt.Errorf("read %s: %w", a.URI, err)
	}
	if got := HashBytes(raw); got != a.Hash {
		return fmt.Errorf("hash mismatch for %s: recorded %s, stored %s", a.URI, a.Hash, got)
	}
	return nil
}
