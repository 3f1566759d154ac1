package database

import (
	"fmt"
	"path/filepath"

	"photark/internal/archive"
	"photark/internal/config"
)

// NewDocumentStoreFromConfig creates a DocumentStore implementation based on
// the database config type.
func NewDocumentStoreFromConfig(cfg config.DatabaseConfig) (archive.DocumentStore, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, "photark.db"))
	case "memory":
		return NewSQLiteStore(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
