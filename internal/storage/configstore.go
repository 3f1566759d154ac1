// Package storage resolves backend identifiers to live providers and exposes
// the archive-level operations the rest of the system uses to move bytes.
package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"photark/internal/archive"
	"photark/internal/model"
	"photark/internal/provider"
)

const (
	configCacheSize = 64
	configCacheTTL  = time.Minute
)

// cachedConfig is an LRU entry stamped with its fetch time so stale entries
// fall back to the document store.
type cachedConfig struct {
	cfg       *model.BackendConfig
	fetchedAt time.Time
}

// ConfigStore provides read-through cached access to persisted backend
// configurations. Writes go straight to the document store and invalidate
// the cache so changes take effect without a process restart.
type ConfigStore struct {
	docs   archive.DocumentStore
	clock  archive.Clock
	logger archive.Logger
	ttl    time.Duration

	mu    sync.Mutex // serializes cache writes during read-through
	cache *lru.Cache[string, cachedConfig]
}

// NewConfigStore creates a ConfigStore over the given document store.
func NewConfigStore(docs archive.DocumentStore, clock archive.Clock, logger archive.Logger) *ConfigStore {
	cache, _ := lru.New[string, cachedConfig](configCacheSize)
	if clock == nil {
		clock = archive.RealClock{}
	}
	if logger == nil {
		logger = archive.NewNopLogger()
	}
	return &ConfigStore{
		docs:   docs,
		clock:  clock,
		logger: logger,
		ttl:    configCacheTTL,
		cache:  cache,
	}
}

// Get returns the configuration for a backend id, or nil when the backend is
// unknown. Entries are cached for a short TTL.
func (s *ConfigStore) Get(id string) (*model.BackendConfig, error) {
	if entry, ok := s.cache.Get(id); ok {
		if s.clock.Now().Sub(entry.fetchedAt) < s.ttl {
			return entry.cfg, nil
		}
		s.cache.Remove(id)
	}

	cfg, err := s.docs.FindBackendConfig(id)
	if err != nil {
		return nil, fmt.Errorf("loading backend config %s: %w", id, err)
	}
	if cfg != nil {
		s.mu.Lock()
		s.cache.Add(id, cachedConfig{cfg: cfg, fetchedAt: s.clock.Now()})
		s.mu.Unlock()
	}
	return cfg, nil
}

// All returns every backend configuration, bypassing the cache.
func (s *ConfigStore) All() ([]*model.BackendConfig, error) {
	return s.docs.AllBackendConfigs()
}

// Save persists a backend configuration and invalidates its cache entry.
// CreatedAt is stamped on first save, UpdatedAt always.
func (s *ConfigStore) Save(cfg *model.BackendConfig) error {
	now := s.clock.Now()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now
	if err := s.docs.SaveBackendConfig(cfg); err != nil {
		return fmt.Errorf("saving backend config %s: %w", cfg.ID, err)
	}
	s.Invalidate(cfg.ID)
	return nil
}

// SetEnabled toggles a backend on or off.
func (s *ConfigStore) SetEnabled(id string, enabled bool) error {
	cfg, err := s.Get(id)
	if err != nil {
		return err
	}
	if cfg == nil {
		return &archive.ConfigError{Backend: id, Reason: "not configured"}
	}
	cfg.Enabled = enabled
	return s.Save(cfg)
}

// SaveToken persists refreshed OAuth tokens into a backend's settings.
// Implements provider.TokenStore.
func (s *ConfigStore) SaveToken(backendID, accessToken, refreshToken string, expiry time.Time) error {
	cfg, err := s.Get(backendID)
	if err != nil {
		return err
	}
	if cfg == nil {
		return &archive.ConfigError{Backend: backendID, Reason: "not configured"}
	}
	if cfg.Settings == nil {
		cfg.Settings = make(map[string]string)
	}
	cfg.Settings[model.SettingAccessToken] = accessToken
	cfg.Settings[model.SettingRefreshToken] = refreshToken
	cfg.Settings[model.SettingTokenExpiry] = expiry.UTC().Format(time.RFC3339)
	return s.Save(cfg)
}

// Invalidate drops a single cache entry.
func (s *ConfigStore) Invalidate(id string) {
	s.cache.Remove(id)
}

// InvalidateAll drops every cache entry.
func (s *ConfigStore) InvalidateAll() {
	s.cache.Purge()
}

// Validate builds a throwaway provider for the backend and checks that it is
// reachable with its configured credentials.
func (s *ConfigStore) Validate(ctx context.Context, id string) (bool, error) {
	cfg, err := s.Get(id)
	if err != nil {
		return false, err
	}
	if cfg == nil {
		return false, &archive.ConfigError{Backend: id, Reason: "not configured"}
	}

	p, err := provider.New(ctx, cfg, provider.Deps{Logger: s.logger, Clock: s.clock})
	if err != nil {
		return false, fmt.Errorf("building provider for %s: %w", id, err)
	}
	return p.ValidateConnection(ctx), nil
}

// ValidateAll checks every configured backend concurrently and returns a
// backend id -> reachable map. Unbuildable providers count as unreachable.
func (s *ConfigStore) ValidateAll(ctx context.Context) (map[string]bool, error) {
	configs, err := s.All()
	if err != nil {
		return nil, err
	}

	results := make(map[string]bool, len(configs))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, cfg := range configs {
		g.Go(func() error {
			ok, err := s.Validate(ctx, cfg.ID)
			if err != nil {
				s.logger.Warn("backend validation failed", "backend", cfg.ID, "error", err)
				ok = false
			}
			mu.Lock()
			results[cfg.ID] = ok
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Compile-time check that ConfigStore implements provider.TokenStore
var _ provider.TokenStore = (*ConfigStore)(nil)
