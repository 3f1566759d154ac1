package storage

import (
	"context"
	"strings"
	"sync"

	"photark/internal/archive"
	"photark/internal/provider"
)

// Manager resolves backend ids to live provider instances and exposes the
// archive-level operations used by the migration engine and photo serving.
// Provider instances are cached per backend id; the cache is shared by all
// in-flight jobs, so providers must be safe for concurrent use.
type Manager struct {
	configs *ConfigStore
	logger  archive.Logger
	clock   archive.Clock

	mu        sync.Mutex
	providers map[string]provider.Provider
}

// NewManager creates a Manager over the given config store.
func NewManager(configs *ConfigStore, logger archive.Logger, clock archive.Clock) *Manager {
	if logger == nil {
		logger = archive.NewNopLogger()
	}
	if clock == nil {
		clock = archive.RealClock{}
	}
	return &Manager{
		configs:   configs,
		logger:    logger,
		clock:     clock,
		providers: make(map[string]provider.Provider),
	}
}

// Provider returns a live provider for the backend id, building and caching
// one from configuration on first use. Disabled or unknown backends fail
// with a *archive.ConfigError.
func (m *Manager) Provider(ctx context.Context, backendID string) (provider.Provider, error) {
	m.mu.Lock()
	if p, ok := m.providers[backendID]; ok {
		m.mu.Unlock()
		return p, nil
	}
	m.mu.Unlock()

	cfg, err := m.configs.Get(backendID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, &archive.ConfigError{Backend: backendID, Reason: "not configured"}
	}
	if !cfg.Enabled {
		return nil, &archive.ConfigError{Backend: backendID, Reason: "disabled"}
	}

	p, err := provider.New(ctx, cfg, provider.Deps{
		Tokens: m.configs,
		Logger: m.logger,
		Clock:  m.clock,
	})
	if err != nil {
		return nil, &archive.ConfigError{Backend: backendID, Reason: err.Error()}
	}

	m.mu.Lock()
	// Another goroutine may have built one meanwhile; keep the first.
	if existing, ok := m.providers[backendID]; ok {
		p = existing
	} else {
		m.providers[backendID] = p
	}
	m.mu.Unlock()
	return p, nil
}

// Register pre-seeds the provider cache, bypassing construction from
// configuration. Intended for tests.
func (m *Manager) Register(p provider.Provider) {
	m.mu.Lock()
	m.providers[p.ID()] = p
	m.mu.Unlock()
}

// ClearCache drops every cached provider instance so configuration changes
// take effect without a process restart.
func (m *Manager) ClearCache() {
	m.mu.Lock()
	m.providers = make(map[string]provider.Provider)
	m.mu.Unlock()
	m.configs.InvalidateAll()
}

// RemoveFromCache drops the cached provider for one backend.
func (m *Manager) RemoveFromCache(backendID string) {
	m.mu.Lock()
	delete(m.providers, backendID)
	m.mu.Unlock()
	m.configs.Invalidate(backendID)
}

// FirstEnabledBackend returns the id of the first enabled backend in id
// order. Import uses it as the destination for new photos.
func (m *Manager) FirstEnabledBackend() (string, error) {
	configs, err := m.configs.All()
	if err != nil {
		return "", err
	}
	for _, cfg := range configs {
		if cfg.Enabled {
			return cfg.ID, nil
		}
	}
	return "", &archive.ConfigError{Backend: "", Reason: "no enabled backends"}
}

// wrap tags a provider failure with the archive-level action name,
// preserving the original cause.
func wrap(backendID, action string, err error) error {
	return &archive.OpError{Backend: backendID, Op: action, Err: err}
}

// CreateAlbum creates an album folder on the backend. Idempotent.
func (m *Manager) CreateAlbum(ctx context.Context, backendID, name, parentPath string) (*provider.FolderInfo, error) {
	p, err := m.Provider(ctx, backendID)
	if err != nil {
		return nil, err
	}
	folder, err := p.CreateFolder(ctx, name, parentPath)
	if err != nil {
		return nil, wrap(backendID, "createAlbum", err)
	}
	return folder, nil
}

// DeleteAlbum removes an album folder from the backend.
func (m *Manager) DeleteAlbum(ctx context.Context, backendID, path string) error {
	p, err := m.Provider(ctx, backendID)
	if err != nil {
		return err
	}
	if err := p.DeleteFolder(ctx, path); err != nil {
		return wrap(backendID, "deleteAlbum", err)
	}
	return nil
}

// UploadPhoto stores photo bytes on the backend.
func (m *Manager) UploadPhoto(ctx context.Context, backendID string, data []byte, filename, mimeType, folderPath string, metadata map[string]string) (*provider.UploadResult, error) {
	p, err := m.Provider(ctx, backendID)
	if err != nil {
		return nil, err
	}
	result, err := p.UploadFile(ctx, data, filename, mimeType, folderPath, metadata)
	if err != nil {
		return nil, wrap(backendID, "uploadPhoto", err)
	}
	return result, nil
}

// DeletePhoto removes photo bytes from the backend.
func (m *Manager) DeletePhoto(ctx context.Context, backendID, path string) error {
	p, err := m.Provider(ctx, backendID)
	if err != nil {
		return err
	}
	if err := p.DeleteFile(ctx, path); err != nil {
		return wrap(backendID, "deletePhoto", err)
	}
	return nil
}

// PhotoBuffer returns photo bytes, or nil on any failure. It backs
// best-effort paths (export, serving) where one missing object must not
// abort a batch; failures are logged, never propagated.
func (m *Manager) PhotoBuffer(ctx context.Context, backendID, path string) []byte {
	p, err := m.Provider(ctx, backendID)
	if err != nil {
		m.logger.Warn("photo buffer unavailable", "backend", backendID, "path", path, "error", err)
		return nil
	}
	data, err := p.FileBuffer(ctx, path)
	if err != nil {
		m.logger.Warn("photo buffer unavailable", "backend", backendID, "path", path, "error", err)
		return nil
	}
	return data
}

// PhotoURL derives the archive serving path for a photo. No I/O.
func (m *Manager) PhotoURL(backendID, path string) string {
	return "/api/file/" + backendID + "/" + strings.TrimPrefix(path, "/")
}
