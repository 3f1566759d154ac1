package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"photark/internal/archive"
	"photark/internal/config"
	"photark/internal/database"
	"photark/internal/engine"
	"photark/internal/job"
	"photark/internal/model"
	"photark/internal/storage"
)

// App is the application layer between the CLI and the archive services.
// It constructs all dependencies from config, exposes high-level operations,
// and manages the document store lifecycle on Close.
type App struct {
	cfg     *config.Config
	docs    archive.DocumentStore
	configs *storage.ConfigStore
	storage *storage.Manager
	jobs    *job.Store
	engine  *engine.Engine
	files   *engine.FileService
	logFile *os.File
}

// New creates a fully wired App from the given config. The caller must call
// Close when done.
func New(cfg *config.Config) (*App, error) {
	runID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	docs, err := database.NewDocumentStoreFromConfig(cfg.Database)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating document store: %w", err)
	}

	clock := archive.RealClock{}
	configs := storage.NewConfigStore(docs, clock, logger)
	manager := storage.NewManager(configs, logger, clock)
	jobs := job.NewStore(clock)

	eng := engine.New(docs, manager, jobs, engine.Options{
		BaseDir:         cfg.BaseDir,
		BundleRecipient: cfg.Export.BundleRecipient,
		Logger:          logger,
		Clock:           clock,
	})

	return &App{
		cfg:     cfg,
		docs:    docs,
		configs: configs,
		storage: manager,
		jobs:    jobs,
		engine:  eng,
		files:   engine.NewFileService(manager, logger),
		logFile: logFile,
	}, nil
}

// Backends returns every configured storage backend.
func (a *App) Backends() ([]*model.BackendConfig, error) {
	return a.configs.All()
}

// Backend returns one backend config, or nil when it does not exist.
func (a *App) Backend(id string) (*model.BackendConfig, error) {
	return a.configs.Get(id)
}

// SaveBackend creates or updates a backend configuration.
func (a *App) SaveBackend(cfg *model.BackendConfig) error {
	if err := a.configs.Save(cfg); err != nil {
		return err
	}
	a.storage.RemoveFromCache(cfg.ID)
	return nil
}

// SetBackendEnabled toggles a backend on or off.
func (a *App) SetBackendEnabled(id string, enabled bool) error {
	if err := a.configs.SetEnabled(id, enabled); err != nil {
		return err
	}
	a.storage.RemoveFromCache(id)
	return nil
}

// ValidateBackend checks connectivity of one backend.
func (a *App) ValidateBackend(ctx context.Context, id string) (bool, error) {
	return a.configs.Validate(ctx, id)
}

// ValidateBackends checks connectivity of every configured backend.
func (a *App) ValidateBackends(ctx context.Context) (map[string]bool, error) {
	return a.configs.ValidateAll(ctx)
}

// StartExport begins an export job and returns its id.
func (a *App) StartExport(destination string, bundle bool) (string, error) {
	return a.engine.StartExport(destination, bundle)
}

// StartImport begins an import job and returns its id.
func (a *App) StartImport(source string, mode engine.ImportMode) (string, error) {
	return a.engine.StartImport(source, mode)
}

// StartStorageMigration begins a storage migration job and returns its id.
func (a *App) StartStorageMigration(req engine.MigrationRequest) (string, error) {
	return a.engine.StartStorageMigration(req)
}

// Job returns one job by id, or nil.
func (a *App) Job(id string) *job.Job {
	return a.jobs.Get(id)
}

// Jobs returns all jobs, newest first.
func (a *App) Jobs() []*job.Job {
	return a.jobs.List()
}

// CancelJob requests cooperative cancellation of a running job.
func (a *App) CancelJob(id string) error {
	if a.jobs.Get(id) == nil {
		return fmt.Errorf("unknown job: %s", id)
	}
	a.jobs.Cancel(id)
	return nil
}

// ServeFile fetches photo bytes and content type from a backend.
func (a *App) ServeFile(ctx context.Context, backendID, relPath string) ([]byte, string, error) {
	return a.files.Serve(ctx, backendID, relPath)
}

// Close closes all resources.
func (a *App) Close() error {
	var firstErr error
	if err := a.docs.Close(); err != nil {
		firstErr = fmt.Errorf("closing document store: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
