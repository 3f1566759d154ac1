package testutil

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"photark/internal/provider"
)

// memFile is one stored object in a MemoryProvider.
type memFile struct {
	data     []byte
	mimeType string
	metadata map[string]string
	modified time.Time
}

// MemoryProvider is an in-memory storage backend for tests. Safe for
// concurrent use.
type MemoryProvider struct {
	id string

	// Valid controls ValidateConnection.
	Valid bool
	// FailUploads makes every UploadFile return an error.
	FailUploads bool

	mu      sync.Mutex
	files   map[string]*memFile
	folders map[string]bool
}

var _ provider.Provider = (*MemoryProvider)(nil)
var _ provider.TreeLister = (*MemoryProvider)(nil)

// NewMemoryProvider creates an empty MemoryProvider with the given backend id.
func NewMemoryProvider(id string) *MemoryProvider {
	return &MemoryProvider{
		id:      id,
		Valid:   true,
		files:   make(map[string]*memFile),
		folders: make(map[string]bool),
	}
}

func (p *MemoryProvider) ID() string { return p.id }

func (p *MemoryProvider) ValidateConnection(_ context.Context) bool { return p.Valid }

func (p *MemoryProvider) CreateFolder(_ context.Context, name, parentPath string) (*provider.FolderInfo, error) {
	folderPath := joinPath(parentPath, name)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.folders[folderPath] = true
	return &provider.FolderInfo{ID: folderPath, Name: name, Path: folderPath}, nil
}

func (p *MemoryProvider) DeleteFolder(_ context.Context, folderPath string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.folders, folderPath)
	prefix := folderPath + "/"
	for k := range p.files {
		if strings.HasPrefix(k, prefix) {
			delete(p.files, k)
		}
	}
	for k := range p.folders {
		if strings.HasPrefix(k, prefix) {
			delete(p.folders, k)
		}
	}
	return nil
}

func (p *MemoryProvider) GetFolderInfo(_ context.Context, folderPath string) (*provider.FolderInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.folders[folderPath] {
		return nil, fmt.Errorf("folder not found: %s", folderPath)
	}
	return &provider.FolderInfo{ID: folderPath, Name: path.Base(folderPath), Path: folderPath}, nil
}

func (p *MemoryProvider) ListFolders(_ context.Context, parentPath string) ([]provider.FolderInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []provider.FolderInfo
	for folderPath := range p.folders {
		if parentOf(folderPath) == parentPath {
			out = append(out, provider.FolderInfo{ID: folderPath, Name: path.Base(folderPath), Path: folderPath})
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Path < out[k].Path })
	return out, nil
}

func (p *MemoryProvider) UploadFile(_ context.Context, data []byte, filename, mimeType, folderPath string, metadata map[string]string) (*provider.UploadResult, error) {
	if p.FailUploads {
		return nil, fmt.Errorf("upload failed")
	}
	filePath := joinPath(folderPath, filename)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files[filePath] = &memFile{
		data:     append([]byte(nil), data...),
		mimeType: mimeType,
		metadata: metadata,
	}
	return &provider.UploadResult{
		FileID: filePath,
		URL:    p.FileURL(filePath),
		Path:   filePath,
		Size:   int64(len(data)),
	}, nil
}

func (p *MemoryProvider) DeleteFile(_ context.Context, filePath string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.files[filePath]; !ok {
		return fmt.Errorf("file not found: %s", filePath)
	}
	delete(p.files, filePath)
	return nil
}

func (p *MemoryProvider) GetFileInfo(_ context.Context, filePath string) (*provider.FileInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.files[filePath]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", filePath)
	}
	return &provider.FileInfo{
		ID:       filePath,
		Name:     path.Base(filePath),
		Path:     filePath,
		Size:     int64(len(f.data)),
		MimeType: f.mimeType,
		Modified: f.modified,
	}, nil
}

func (p *MemoryProvider) ListFiles(_ context.Context, folderPath string, pageSize int) ([]provider.FileInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []provider.FileInfo
	for filePath, f := range p.files {
		if parentOf(filePath) != folderPath {
			continue
		}
		out = append(out, provider.FileInfo{
			ID:       filePath,
			Name:     path.Base(filePath),
			Path:     filePath,
			Size:     int64(len(f.data)),
			MimeType: f.mimeType,
			Modified: f.modified,
		})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Path < out[k].Path })
	if pageSize > 0 && len(out) > pageSize {
		out = out[:pageSize]
	}
	return out, nil
}

func (p *MemoryProvider) UpdateFileMetadata(_ context.Context, filePath string, metadata map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.files[filePath]
	if !ok {
		return fmt.Errorf("file not found: %s", filePath)
	}
	f.metadata = metadata
	return nil
}

func (p *MemoryProvider) FileExists(_ context.Context, filePath string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.files[filePath]
	return ok, nil
}

func (p *MemoryProvider) FolderExists(_ context.Context, folderPath string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.folders[folderPath], nil
}

func (p *MemoryProvider) FileURL(filePath string) string {
	return "memory://" + p.id + "/" + filePath
}

func (p *MemoryProvider) FileBuffer(_ context.Context, filePath string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.files[filePath]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), f.data...), nil
}

func (p *MemoryProvider) ListTree(_ context.Context, root string) ([]provider.FolderInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []provider.FolderInfo
	for folderPath := range p.folders {
		if root == "" || folderPath == root || strings.HasPrefix(folderPath, root+"/") {
			out = append(out, provider.FolderInfo{ID: folderPath, Name: path.Base(folderPath), Path: folderPath})
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Path < out[k].Path })
	return out, nil
}

// Files returns the stored paths, sorted. Test helper.
func (p *MemoryProvider) Files() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.files))
	for k := range p.files {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// FileData returns the stored bytes at a path, or nil. Test helper.
func (p *MemoryProvider) FileData(filePath string) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.files[filePath]
	if !ok {
		return nil
	}
	return append([]byte(nil), f.data...)
}

func joinPath(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "/")
}

func parentOf(p string) string {
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		return p[:idx]
	}
	return ""
}
