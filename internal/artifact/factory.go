package artifact

import (
	"context"
	"fmt"
	"path/filepath"

	"terrarisk/internal/config"
)

// NewFromConfig builds the configured backend.
func NewFromConfig(ctx context.Context, cfg config.ArtifactConfig) (Store, error) {
	switch cfg.Backend {
	case "", config.BackendDisk:
		root, err := filepath.Abs(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("resolve artifact dir: %w", err)
		}
		return NewDiskStore(root), nil
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendS3:
		return NewS3Store(S3Config{
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			UseSSL:    cfg.UseSSL,
		})
	case config.BackendPostgres:
		return OpenPostgresStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", cfg.Backend)
	}
}
