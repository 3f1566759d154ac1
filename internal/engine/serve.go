package engine

import (
	"context"
	"errors"
	"mime"
	"path"

	"photark/internal/archive"
	"photark/internal/storage"
)

// ErrFileNotFound is returned by FileService.Serve when the backend holds no
// bytes at the requested path.
var ErrFileNotFound = errors.New("file not found")

// FileService serves photo bytes through the archive's stable URL space.
// Storage descriptors point at "/api/file/{backend}/{path}" rather than
// backend-native URLs, so photos keep working across storage migrations;
// this service is the other half of that contract.
type FileService struct {
	storage *storage.Manager
	logger  archive.Logger
}

// NewFileService creates a FileService.
func NewFileService(storageMgr *storage.Manager, logger archive.Logger) *FileService {
	if logger == nil {
		logger = archive.NewNopLogger()
	}
	return &FileService{storage: storageMgr, logger: logger}
}

// Serve fetches the bytes at a backend-relative path and returns them with a
// content type inferred from the file extension. Returns ErrFileNotFound
// when the backend is unknown, disabled, or holds nothing at the path.
func (s *FileService) Serve(ctx context.Context, backendID, relPath string) ([]byte, string, error) {
	if _, err := s.storage.Provider(ctx, backendID); err != nil {
		s.logger.Warn("file request for unavailable backend", "backend", backendID, "error", err)
		return nil, "", ErrFileNotFound
	}

	data := s.storage.PhotoBuffer(ctx, backendID, relPath)
	if data == nil {
		return nil, "", ErrFileNotFound
	}

	contentType := mime.TypeByExtension(path.Ext(relPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}
