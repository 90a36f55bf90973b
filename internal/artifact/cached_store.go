package artifact

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type CacheConfig struct {
	BlobTTL        time.Duration
	BlobMaxEntries int

	ListTTL        time.Duration
	ListMaxEntries int
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		BlobTTL:        5 * time.Minute,
		BlobMaxEntries: 256,
		ListTTL:        30 * time.Second,
		ListMaxEntries: 128,
	}
}

type MetricsSnapshot struct {
	BlobHits       uint64
	BlobMisses     uint64
	ListHits       uint64
	ListMisses     uint64
	OriginReads    uint64
	OriginWrites   uint64
	OriginWriteErr uint64
}

// CachedStore is a read-through, write-through cache in front of another
// Store. Artifacts are immutable once written, so cached blobs never go
// stale; only listings expire.
type CachedStore struct {
	origin Store

	blobCache *expirable.LRU[string, []byte]
	listCache *expirable.LRU[string, []string]

	blobHits, blobMisses, listHits, listMisses atomic.Uint64
	originReads, originWrites, originWriteErr  atomic.Uint64
}

func NewCachedStore(origin Store, cfg CacheConfig) *CachedStore {
	def := DefaultCacheConfig()
	if cfg.BlobTTL <= 0 {
		cfg.BlobTTL = def.BlobTTL
	}
	if cfg.BlobMaxEntries <= 0 {
		cfg.BlobMaxEntries = def.BlobMaxEntries
	}
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = def.ListTTL
	}
	if cfg.ListMaxEntries <= 0 {
		cfg.ListMaxEntries = def.ListMaxEntries
	}
	return &CachedStore{
		origin:    origin,
		blobCache: expirable.NewLRU[string, []byte](cfg.BlobMaxEntries, nil, cfg.BlobTTL),
		listCache: expirable.NewLRU[string, []string](cfg.ListMaxEntries, nil, cfg.ListTTL),
	}
}

func (s *CachedStore) Put(ctx context.Context, runID, name string, content []byte) error {
	s.originWrites.Add(1)
	if err := s.origin.Put(ctx, runID, name, content); err != nil {
		s.originWriteErr.Add(1)
		return err
	}
	s.blobCache.Add(cacheKey(runID, name), append([]byte(nil), content...))
	s.listCache.Remove(strings.TrimSpace(runID))
	return nil
}

func (s *CachedStore) Get(ctx context.Context, runID, name string) ([]byte, error) {
	key := cacheKey(runID, name)
	if raw, ok := s.blobCache.Get(key); ok {
		s.blobHits.Add(1)
		return append([]byte(nil), raw...), nil
	}
	s.blobMisses.Add(1)
	s.originReads.Add(1)

	raw, err := s.origin.Get(ctx, runID, name)
	if err != nil {
		return nil, err
	}
	s.blobCache.Add(key, append([]byte(nil), raw...))
	return raw, nil
}

func (s *CachedStore) URI(runID, name string) string {
	return s.origin.URI(runID, name)
}

func (s *CachedStore) List(ctx context.Context, runID string) ([]string, error) {
	runID = strings.TrimSpace(runID)
	if list, ok := s.listCache.Get(runID); ok {
		s.listHits.Add(1)
		return append([]string(nil), list...), nil
	}
	s.listMisses.Add(1)
	s.originReads.Add(1)

	list, err := s.origin.List(ctx, runID)
	if err != nil {
		return nil, err
	}
	s.listCache.Add(runID, append([]string(nil), list...))
	return list, nil
}

func (s *CachedStore) Metrics() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		BlobHits:       s.blobHits.Load(),
		BlobMisses:     s.blobMisses.Load(),
		ListHits:       s.listHits.Load(),
		ListMisses:     s.listMisses.Load(),
		OriginReads:    s.originReads.Load(),
		OriginWrites:   s.originWrites.Load(),
		OriginWriteErr: s.originWriteErr.Load(),
	}
}

func cacheKey(runID, name string) string {
	return strings.TrimSpace(runID) + "/" + strings.TrimSpace(name)
}
