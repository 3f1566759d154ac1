// Package fs provides path confinement and image-file discovery for the
// migration engine. Every caller-supplied path crosses Confine before any
// I/O happens.
package fs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"photark/internal/archive"
)

// imageExtensions are the file extensions raw-folder import recognizes as
// photos. Everything else is skipped.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tiff": true,
	".heic": true,
}

// IsImageFile reports whether the filename has a recognized image extension.
func IsImageFile(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// Confine resolves raw against the current directory and verifies the result
// stays under base. Symlinks in existing path components are resolved first
// so a link cannot smuggle the path outside. Returns the cleaned absolute
// path or a *archive.PathError; no filesystem I/O happens beyond stat/
// readlink on the path itself.
func Confine(base, raw string) (string, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("resolving base directory: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(absBase); err == nil {
		absBase = resolved
	}

	absPath, err := filepath.Abs(raw)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	// Resolve symlinks on the longest existing ancestor, then re-append the
	// not-yet-existing tail (export destinations usually don't exist yet).
	resolved := absPath
	tail := ""
	for {
		r, err := filepath.EvalSymlinks(resolved)
		if err == nil {
			resolved = filepath.Join(r, tail)
			break
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("resolving symlinks: %w", err)
		}
		parent := filepath.Dir(resolved)
		if parent == resolved {
			break
		}
		tail = filepath.Join(filepath.Base(resolved), tail)
		resolved = parent
	}

	if resolved != absBase && !strings.HasPrefix(resolved, absBase+string(filepath.Separator)) {
		return "", &archive.PathError{Path: raw, Base: base}
	}
	return resolved, nil
}

// ImageFile is one discovered image in a source tree.
type ImageFile struct {
	AbsPath string
	RelPath string // Relative to the walk root, forward slashes
	Name    string
	Size    int64
}

// FindImageFiles walks root recursively and returns every regular file with
// a recognized image extension, sorted by relative path so directories group
// together. Entries matching the default ignore patterns or a .photarkignore
// file at root are skipped.
func FindImageFiles(root string) ([]ImageFile, error) {
	matcher, err := loadIgnoreMatcher(root)
	if err != nil {
		return nil, err
	}

	var files []ImageFile
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("relativizing %s: %w", p, err)
		}
		if rel != "." && matcher.Match(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() || !IsImageFile(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		files = append(files, ImageFile{
			AbsPath: p,
			RelPath: filepath.ToSlash(rel),
			Name:    d.Name(),
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}
	sort.Slice(files, func(i, k int) bool { return files[i].RelPath < files[k].RelPath })
	return files, nil
}
