package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"photark/internal/archive"
)

// LocalProvider stores archive files in a directory tree on local disk.
// Backend-relative paths map directly onto filesystem paths under root.
// Writes are atomic (temp file + rename). File metadata is kept in a
// sidecar JSON file next to the object.
type LocalProvider struct {
	id   string
	root string
}

// NewLocalProvider creates a provider rooted at the given directory,
// creating it if necessary.
func NewLocalProvider(id, root string) (*LocalProvider, error) {
	if root == "" {
		return nil, fmt.Errorf("local backend requires a root directory")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating local root: %w", err)
	}
	return &LocalProvider{id: id, root: root}, nil
}

func (p *LocalProvider) ID() string { return p.id }

func (p *LocalProvider) ValidateConnection(_ context.Context) bool {
	info, err := os.Stat(p.root)
	return err == nil && info.IsDir()
}

// abs maps a backend-relative path onto the filesystem. Relative paths are
// cleaned so they cannot climb out of the root.
func (p *LocalProvider) abs(relPath string) string {
	cleaned := filepath.Clean("/" + filepath.FromSlash(relPath))
	return filepath.Join(p.root, cleaned)
}

func (p *LocalProvider) opErr(op string, err error) error {
	return &archive.OpError{Backend: p.id, Op: op, Err: err}
}

func (p *LocalProvider) CreateFolder(_ context.Context, name, parentPath string) (*FolderInfo, error) {
	relPath := joinPath(parentPath, name)
	absPath := p.abs(relPath)

	if info, err := os.Stat(absPath); err == nil {
		if !info.IsDir() {
			return nil, p.opErr("createFolder", fmt.Errorf("%s exists and is not a folder", relPath))
		}
		return &FolderInfo{ID: relPath, Name: name, Path: relPath}, nil
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, p.opErr("createFolder", err)
	}
	return &FolderInfo{ID: relPath, Name: name, Path: relPath}, nil
}

func (p *LocalProvider) DeleteFolder(_ context.Context, path string) error {
	if err := os.RemoveAll(p.abs(path)); err != nil {
		return p.opErr("deleteFolder", err)
	}
	return nil
}

func (p *LocalProvider) GetFolderInfo(_ context.Context, path string) (*FolderInfo, error) {
	info, err := os.Stat(p.abs(path))
	if err != nil {
		return nil, p.opErr("getFolderInfo", err)
	}
	if !info.IsDir() {
		return nil, p.opErr("getFolderInfo", fmt.Errorf("%s is not a folder", path))
	}
	return &FolderInfo{ID: path, Name: filepath.Base(path), Path: path}, nil
}

func (p *LocalProvider) ListFolders(_ context.Context, parentPath string) ([]FolderInfo, error) {
	entries, err := os.ReadDir(p.abs(parentPath))
	if err != nil {
		return nil, p.opErr("listFolders", err)
	}
	var folders []FolderInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		relPath := joinPath(parentPath, e.Name())
		folders = append(folders, FolderInfo{ID: relPath, Name: e.Name(), Path: relPath})
	}
	return folders, nil
}

// ListTree enumerates every folder under root in one filesystem walk.
func (p *LocalProvider) ListTree(_ context.Context, root string) ([]FolderInfo, error) {
	base := p.abs(root)
	var folders []FolderInfo
	err := filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || path == base {
			return nil
		}
		rel, err := filepath.Rel(p.root, path)
		if err != nil {
			return err
		}
		relPath := filepath.ToSlash(rel)
		folders = append(folders, FolderInfo{ID: relPath, Name: d.Name(), Path: relPath})
		return nil
	})
	if err != nil {
		return nil, p.opErr("listTree", err)
	}
	return folders, nil
}

func (p *LocalProvider) UploadFile(_ context.Context, data []byte, filename, mimeType, folderPath string, metadata map[string]string) (*UploadResult, error) {
	relPath := joinPath(folderPath, filename)
	absPath := p.abs(relPath)

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return nil, p.opErr("uploadFile", err)
	}
	if err := atomicWrite(absPath, data); err != nil {
		return nil, p.opErr("uploadFile", err)
	}
	if len(metadata) > 0 {
		if err := p.writeSidecar(absPath, metadata); err != nil {
			return nil, p.opErr("uploadFile", err)
		}
	}

	return &UploadResult{
		FileID: relPath,
		URL:    p.FileURL(relPath),
		Path:   relPath,
		Size:   int64(len(data)),
	}, nil
}

func (p *LocalProvider) DeleteFile(_ context.Context, path string) error {
	absPath := p.abs(path)
	if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
		return p.opErr("deleteFile", err)
	}
	os.Remove(sidecarPath(absPath))
	return nil
}

func (p *LocalProvider) GetFileInfo(_ context.Context, path string) (*FileInfo, error) {
	info, err := os.Stat(p.abs(path))
	if err != nil {
		return nil, p.opErr("getFileInfo", err)
	}
	if info.IsDir() {
		return nil, p.opErr("getFileInfo", fmt.Errorf("%s is a folder", path))
	}
	return &FileInfo{
		ID:       path,
		Name:     filepath.Base(path),
		Path:     path,
		Size:     info.Size(),
		MimeType: mime.TypeByExtension(filepath.Ext(path)),
		Modified: info.ModTime(),
	}, nil
}

func (p *LocalProvider) ListFiles(_ context.Context, folderPath string, pageSize int) ([]FileInfo, error) {
	entries, err := os.ReadDir(p.abs(folderPath))
	if err != nil {
		return nil, p.opErr("listFiles", err)
	}
	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() || !e.Type().IsRegular() {
			continue
		}
		if strings.HasSuffix(e.Name(), sidecarSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, p.opErr("listFiles", err)
		}
		relPath := joinPath(folderPath, e.Name())
		files = append(files, FileInfo{
			ID:       relPath,
			Name:     e.Name(),
			Path:     relPath,
			Size:     info.Size(),
			MimeType: mime.TypeByExtension(filepath.Ext(e.Name())),
			Modified: info.ModTime(),
		})
		if pageSize > 0 && len(files) >= pageSize {
			break
		}
	}
	return files, nil
}

func (p *LocalProvider) UpdateFileMetadata(_ context.Context, path string, metadata map[string]string) error {
	absPath := p.abs(path)
	if _, err := os.Stat(absPath); err != nil {
		return p.opErr("updateFileMetadata", err)
	}
	if err := p.writeSidecar(absPath, metadata); err != nil {
		return p.opErr("updateFileMetadata", err)
	}
	return nil
}

func (p *LocalProvider) FileExists(_ context.Context, path string) (bool, error) {
	info, err := os.Stat(p.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, p.opErr("fileExists", err)
	}
	return !info.IsDir(), nil
}

func (p *LocalProvider) FolderExists(_ context.Context, path string) (bool, error) {
	info, err := os.Stat(p.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, p.opErr("folderExists", err)
	}
	return info.IsDir(), nil
}

func (p *LocalProvider) FileURL(path string) string {
	return "/api/file/" + p.id + "/" + strings.TrimPrefix(path, "/")
}

func (p *LocalProvider) FileBuffer(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(p.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, p.opErr("getFileBuffer", err)
	}
	return data, nil
}

const sidecarSuffix = ".meta.json"

func sidecarPath(absPath string) string { return absPath + sidecarSuffix }

func (p *LocalProvider) writeSidecar(absPath string, metadata map[string]string) error {
	data, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	return atomicWrite(sidecarPath(absPath), data)
}

// atomicWrite writes data via a temp file and rename so readers never see a
// partial object.
func atomicWrite(destPath string, data []byte) error {
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, bytes.NewReader(data)); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	success = true
	return nil
}

// joinPath joins backend-relative path segments with forward slashes,
// dropping empty segments.
func joinPath(parts ...string) string {
	var kept []string
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}

// Compile-time checks that LocalProvider implements the provider interfaces
var (
	_ Provider   = (*LocalProvider)(nil)
	_ TreeLister = (*LocalProvider)(nil)
)
