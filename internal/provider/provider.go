// Package provider defines the storage provider contract and its backend
// implementations. Providers translate the uniform folder/file operations
// into backend-specific calls; everything above them is backend-agnostic.
package provider

import (
	"context"
	"time"
)

// FolderInfo describes a folder on a backend.
type FolderInfo struct {
	ID   string // Opaque backend identifier; may equal Path for path-addressed backends
	Name string
	Path string // Backend-relative path
}

// FileInfo describes a file on a backend.
type FileInfo struct {
	ID       string
	Name     string
	Path     string
	Size     int64
	MimeType string
	Modified time.Time
}

// UploadResult is returned after a successful upload.
type UploadResult struct {
	FileID string
	URL    string // Backend-native URL; the engine rewrites this to the archive serving path
	Path   string // Backend-relative path
	Size   int64
}

// Provider is the uniform contract every storage backend satisfies.
// Implementations must be safe for concurrent use: the same instance is
// shared by all in-flight jobs and by photo serving.
//
// Failed mutating or byte-moving calls surface as *archive.OpError carrying
// the backend and operation name. The one deliberate exception is FileBuffer,
// which reports an absent object as (nil, nil) so callers can distinguish
// "skip this one photo" from "job is broken".
type Provider interface {
	// ID returns the backend config id this provider was built from.
	ID() string

	// ValidateConnection is a cheap reachability and credentials check.
	// Expected failure modes return false, never an error.
	ValidateConnection(ctx context.Context) bool

	// CreateFolder creates a folder under parentPath (backend root when
	// empty). Idempotent: an existing folder with that name is returned
	// rather than treated as an error.
	CreateFolder(ctx context.Context, name, parentPath string) (*FolderInfo, error)

	DeleteFolder(ctx context.Context, path string) error
	GetFolderInfo(ctx context.Context, path string) (*FolderInfo, error)
	ListFolders(ctx context.Context, parentPath string) ([]FolderInfo, error)

	// UploadFile stores data under folderPath/filename. metadata is
	// best-effort and may be nil.
	UploadFile(ctx context.Context, data []byte, filename, mimeType, folderPath string, metadata map[string]string) (*UploadResult, error)

	DeleteFile(ctx context.Context, path string) error
	GetFileInfo(ctx context.Context, path string) (*FileInfo, error)

	// ListFiles lists the files directly under folderPath. pageSize <= 0
	// means no limit.
	ListFiles(ctx context.Context, folderPath string, pageSize int) ([]FileInfo, error)

	UpdateFileMetadata(ctx context.Context, path string, metadata map[string]string) error

	FileExists(ctx context.Context, path string) (bool, error)
	FolderExists(ctx context.Context, path string) (bool, error)

	// FileURL derives the backend-native URL for a path. No I/O.
	FileURL(path string) string

	// FileBuffer returns the object's bytes, or (nil, nil) when the object
	// is simply absent. Transport and auth failures return an error.
	FileBuffer(ctx context.Context, path string) ([]byte, error)
}

// TreeLister is an optional capability for backends that can enumerate a
// whole folder subtree in one pass. Callers resolve it with a type
// assertion; backends without it are walked folder by folder.
type TreeLister interface {
	ListTree(ctx context.Context, root string) ([]FolderInfo, error)
}
