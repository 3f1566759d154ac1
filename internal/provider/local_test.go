package provider

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestLocal(t *testing.T) *LocalProvider {
	t.Helper()
	p, err := NewLocalProvider("disk1", t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalProvider() unexpected error: %v", err)
	}
	return p
}

func TestLocalProvider_Folders(t *testing.T) {
	ctx := context.Background()

	t.Run("create and stat", func(t *testing.T) {
		p := newTestLocal(t)

		folder, err := p.CreateFolder(ctx, "trips", "")
		if err != nil {
			t.Fatalf("CreateFolder() unexpected error: %v", err)
		}
		if folder.Path != "trips" {
			t.Errorf("Path = %q, want %q", folder.Path, "trips")
		}

		exists, err := p.FolderExists(ctx, "trips")
		if err != nil || !exists {
			t.Errorf("FolderExists() = %v, %v, want true, nil", exists, err)
		}
	})

	t.Run("create is idempotent", func(t *testing.T) {
		p := newTestLocal(t)

		first, err := p.CreateFolder(ctx, "trips", "")
		if err != nil {
			t.Fatal(err)
		}
		second, err := p.CreateFolder(ctx, "trips", "")
		if err != nil {
			t.Fatalf("second CreateFolder() unexpected error: %v", err)
		}
		if first.Path != second.Path {
			t.Errorf("paths differ: %q vs %q", first.Path, second.Path)
		}
	})

	t.Run("nested folders", func(t *testing.T) {
		p := newTestLocal(t)

		if _, err := p.CreateFolder(ctx, "trips", ""); err != nil {
			t.Fatal(err)
		}
		folder, err := p.CreateFolder(ctx, "japan", "trips")
		if err != nil {
			t.Fatal(err)
		}
		if folder.Path != "trips/japan" {
			t.Errorf("Path = %q, want %q", folder.Path, "trips/japan")
		}

		folders, err := p.ListFolders(ctx, "trips")
		if err != nil {
			t.Fatal(err)
		}
		if len(folders) != 1 || folders[0].Name != "japan" {
			t.Errorf("ListFolders() = %v, want one folder named japan", folders)
		}
	})

	t.Run("list tree", func(t *testing.T) {
		p := newTestLocal(t)
		if _, err := p.CreateFolder(ctx, "japan", "trips"); err != nil {
			t.Fatal(err)
		}

		folders, err := p.ListTree(ctx, "")
		if err != nil {
			t.Fatal(err)
		}
		if len(folders) != 2 {
			t.Errorf("ListTree() returned %d folders, want 2: %v", len(folders), folders)
		}
	})

	t.Run("delete removes contents", func(t *testing.T) {
		p := newTestLocal(t)
		if _, err := p.UploadFile(ctx, []byte("x"), "a.jpg", "image/jpeg", "trips", nil); err != nil {
			t.Fatal(err)
		}

		if err := p.DeleteFolder(ctx, "trips"); err != nil {
			t.Fatalf("DeleteFolder() unexpected error: %v", err)
		}
		exists, _ := p.FileExists(ctx, "trips/a.jpg")
		if exists {
			t.Error("file still exists after DeleteFolder()")
		}
	})
}

func TestLocalProvider_Files(t *testing.T) {
	ctx := context.Background()

	t.Run("upload and read back", func(t *testing.T) {
		p := newTestLocal(t)

		result, err := p.UploadFile(ctx, []byte("pixels"), "a.jpg", "image/jpeg", "trips", nil)
		if err != nil {
			t.Fatalf("UploadFile() unexpected error: %v", err)
		}
		if result.Path != "trips/a.jpg" {
			t.Errorf("Path = %q, want %q", result.Path, "trips/a.jpg")
		}
		if result.Size != 6 {
			t.Errorf("Size = %d, want 6", result.Size)
		}

		data, err := p.FileBuffer(ctx, "trips/a.jpg")
		if err != nil {
			t.Fatalf("FileBuffer() unexpected error: %v", err)
		}
		if string(data) != "pixels" {
			t.Errorf("FileBuffer() = %q, want %q", data, "pixels")
		}
	})

	t.Run("absent file buffer is nil nil", func(t *testing.T) {
		p := newTestLocal(t)

		data, err := p.FileBuffer(ctx, "nope/missing.jpg")
		if err != nil {
			t.Fatalf("FileBuffer() unexpected error: %v", err)
		}
		if data != nil {
			t.Errorf("FileBuffer() = %v, want nil", data)
		}
	})

	t.Run("metadata sidecar", func(t *testing.T) {
		p := newTestLocal(t)

		_, err := p.UploadFile(ctx, []byte("x"), "a.jpg", "image/jpeg", "", map[string]string{"photoId": "p1"})
		if err != nil {
			t.Fatal(err)
		}

		sidecar := filepath.Join(p.root, "a.jpg.meta.json")
		if _, err := os.Stat(sidecar); err != nil {
			t.Errorf("sidecar not written: %v", err)
		}

		// Sidecars never show up as files.
		files, err := p.ListFiles(ctx, "", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(files) != 1 || files[0].Name != "a.jpg" {
			t.Errorf("ListFiles() = %v, want just a.jpg", files)
		}
	})

	t.Run("delete removes file and sidecar", func(t *testing.T) {
		p := newTestLocal(t)
		if _, err := p.UploadFile(ctx, []byte("x"), "a.jpg", "image/jpeg", "", map[string]string{"k": "v"}); err != nil {
			t.Fatal(err)
		}

		if err := p.DeleteFile(ctx, "a.jpg"); err != nil {
			t.Fatalf("DeleteFile() unexpected error: %v", err)
		}
		if _, err := os.Stat(filepath.Join(p.root, "a.jpg.meta.json")); !os.IsNotExist(err) {
			t.Error("sidecar survived DeleteFile()")
		}
	})

	t.Run("delete absent file is a no-op", func(t *testing.T) {
		p := newTestLocal(t)
		if err := p.DeleteFile(ctx, "missing.jpg"); err != nil {
			t.Errorf("DeleteFile(missing) unexpected error: %v", err)
		}
	})

	t.Run("page size limits listing", func(t *testing.T) {
		p := newTestLocal(t)
		for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
			if _, err := p.UploadFile(ctx, []byte("x"), name, "image/jpeg", "", nil); err != nil {
				t.Fatal(err)
			}
		}

		files, err := p.ListFiles(ctx, "", 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(files) != 2 {
			t.Errorf("ListFiles(pageSize=2) returned %d files", len(files))
		}
	})
}

func TestLocalProvider_PathConfinement(t *testing.T) {
	ctx := context.Background()
	p := newTestLocal(t)

	// A climbing path is cleaned relative to the root, never above it.
	result, err := p.UploadFile(ctx, []byte("x"), "evil.jpg", "image/jpeg", "../../outside", nil)
	if err != nil {
		t.Fatalf("UploadFile() unexpected error: %v", err)
	}

	abs := p.abs(result.Path)
	rel, err := filepath.Rel(p.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		t.Errorf("stored path %q escapes root %q", abs, p.root)
	}
}

func TestLocalProvider_FileURL(t *testing.T) {
	p := newTestLocal(t)
	got := p.FileURL("trips/a.jpg")
	want := "/api/file/disk1/trips/a.jpg"
	if got != want {
		t.Errorf("FileURL() = %q, want %q", got, want)
	}
}
