package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIgnoreMatcher(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		want     bool
	}{
		{"empty patterns match nothing", nil, "photo.jpg", false},
		{"basename pattern", []string{"*.tmp"}, "trips/scratch.tmp", true},
		{"basename pattern misses", []string{"*.tmp"}, "trips/tokyo.jpg", false},
		{"path pattern", []string{"trips/*/raw"}, "trips/japan/raw", true},
		{"path pattern misses other depth", []string{"trips/*/raw"}, "trips/raw", false},
		{"hidden file pattern", []string{".*"}, "trips/.DS_Store", true},
		{"comment lines are skipped", []string{"# comment", "*.bak"}, "old.bak", true},
		{"blank lines are skipped", []string{"", "*.bak"}, "old.bak", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewIgnoreMatcher(tt.patterns)
			if got := m.Match(tt.path); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestParseIgnoreFile(t *testing.T) {
	t.Run("missing file returns nil", func(t *testing.T) {
		patterns, err := ParseIgnoreFile(filepath.Join(t.TempDir(), IgnoreFileName))
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if patterns != nil {
			t.Errorf("ParseIgnoreFile() = %v, want nil", patterns)
		}
	})

	t.Run("reads raw lines", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), IgnoreFileName)
		if err := os.WriteFile(path, []byte("*.tmp\n# skip raws\nraw/\n"), 0644); err != nil {
			t.Fatal(err)
		}

		patterns, err := ParseIgnoreFile(path)
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if len(patterns) != 3 {
			t.Fatalf("ParseIgnoreFile() = %v, want 3 lines", patterns)
		}
	})
}

func TestFindImageFilesHonorsIgnores(t *testing.T) {
	root := t.TempDir()
	write := func(rel string, data string) {
		t.Helper()
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(data), 0644); err != nil {
			t.Fatal(err)
		}
	}

	write(IgnoreFileName, "*.bak.jpg\nrejects/*\n")
	write("keep.jpg", "a")
	write("old.bak.jpg", "b")
	write("rejects/blurry.jpg", "c")
	write(".thumbnails/cache.jpg", "d")

	files, err := FindImageFiles(root)
	if err != nil {
		t.Fatalf("FindImageFiles() unexpected error: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("FindImageFiles() = %v, want only keep.jpg", files)
	}
	if files[0].RelPath != "keep.jpg" {
		t.Errorf("RelPath = %q, want keep.jpg", files[0].RelPath)
	}
}
