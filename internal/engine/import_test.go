package engine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"photark/internal/archive"
	"photark/internal/job"
	"photark/internal/model"
)

// exportPackage runs a synchronous export and returns the package directory.
func exportPackage(t *testing.T, h *harness) string {
	t.Helper()
	dest := filepath.Join(h.base, "pkg")
	jobID, err := h.engine.StartExport(dest, false)
	if err != nil {
		t.Fatal(err)
	}
	j := h.waitJob(t, jobID)
	if j.Status != job.StatusCompleted {
		t.Fatalf("export status = %q (%s)", j.Status, j.Error)
	}
	return dest
}

func TestStartImport(t *testing.T) {
	t.Run("rejects source outside base dir", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.engine.StartImport("/tmp/elsewhere-entirely", ImportPackage)
		var pathErr *archive.PathError
		if !errors.As(err, &pathErr) {
			t.Fatalf("StartImport() error = %v, want *archive.PathError", err)
		}
	})

	t.Run("rejects unknown mode", func(t *testing.T) {
		h := newHarness(t)
		if _, err := h.engine.StartImport(h.base, ImportMode("sideways")); err == nil {
			t.Fatal("expected error for unknown mode")
		}
	})

	t.Run("package import requires manifest", func(t *testing.T) {
		h := newHarness(t)
		src := filepath.Join(h.base, "empty")
		if err := os.MkdirAll(src, 0755); err != nil {
			t.Fatal(err)
		}

		jobID, err := h.engine.StartImport(src, ImportPackage)
		if err != nil {
			t.Fatal(err)
		}
		j := h.waitJob(t, jobID)
		if j.Status != job.StatusFailed {
			t.Fatalf("job status = %q, want failed", j.Status)
		}
		if !strings.Contains(j.Error, "manifest") {
			t.Errorf("error = %q, want manifest mention", j.Error)
		}
	})
}

func TestPackageImportRoundTrip(t *testing.T) {
	// Build a populated archive, export it, then import into an empty one.
	src := newHarness(t)
	src.addAlbum(t, "a1", "trips", "", "alpha", "trips", 0)
	src.addAlbum(t, "a2", "japan", "a1", "alpha", "trips/japan", 1)
	src.docs.CreateTag(&model.Tag{ID: "t1", Name: "travel"})
	src.docs.CreatePerson(&model.Person{ID: "pe1", FullName: "Ada Lovelace"})
	src.docs.CreateLocation(&model.Location{ID: "l1", Name: "Shibuya", City: "Tokyo", Country: "Japan"})
	photo := src.addPhoto(t, src.alpha, "p1", "street.jpg", "a2", "trips/japan", "h1", []byte("pixels"))
	photo.TagIDs = []string{"t1"}
	photo.PersonIDs = []string{"pe1"}
	photo.LocationID = "l1"
	src.docs.CreatePhoto(photo)

	pkg := exportPackage(t, src)

	dst := newHarnessAt(t, src.base)
	jobID, err := dst.engine.StartImport(pkg, ImportPackage)
	if err != nil {
		t.Fatal(err)
	}
	j := dst.waitJob(t, jobID)
	if j.Status != job.StatusCompleted {
		t.Fatalf("import status = %q (%s)", j.Status, j.Error)
	}
	if j.Result["photosImported"] != 1 {
		t.Errorf("photosImported = %v, want 1", j.Result["photosImported"])
	}
	if j.Result["albumsCreated"] != 2 {
		t.Errorf("albumsCreated = %v, want 2", j.Result["albumsCreated"])
	}

	trips, err := dst.docs.FindAlbumByAlias("trips")
	if err != nil || trips == nil {
		t.Fatalf("trips album missing: %v", err)
	}
	japan, err := dst.docs.FindAlbumByAlias("japan")
	if err != nil || japan == nil {
		t.Fatalf("japan album missing: %v", err)
	}
	if japan.ParentID != trips.ID {
		t.Errorf("japan parent = %q, want %q", japan.ParentID, trips.ID)
	}
	if japan.Level != 1 {
		t.Errorf("japan level = %d, want 1", japan.Level)
	}

	imported, err := dst.docs.FindPhotoByHash("h1")
	if err != nil || imported == nil {
		t.Fatalf("imported photo missing: %v", err)
	}
	// First enabled backend in id order is alpha.
	if imported.Storage.Backend != "alpha" {
		t.Errorf("backend = %q, want alpha", imported.Storage.Backend)
	}
	if !strings.HasPrefix(imported.Storage.URL, "/api/file/alpha/") {
		t.Errorf("URL = %q, want archive serving path", imported.Storage.URL)
	}
	if data := dst.alpha.FileData(imported.Storage.Path); string(data) != "pixels" {
		t.Errorf("stored bytes = %q, want pixels", data)
	}

	// Entities are merged by identity and remapped onto the photo.
	tag, _ := dst.docs.FindTagByName("travel")
	if tag == nil {
		t.Fatal("travel tag missing")
	}
	if len(imported.TagIDs) != 1 || imported.TagIDs[0] != tag.ID {
		t.Errorf("TagIDs = %v, want [%s]", imported.TagIDs, tag.ID)
	}
	person, _ := dst.docs.FindPersonByName("Ada Lovelace")
	if person == nil || len(imported.PersonIDs) != 1 || imported.PersonIDs[0] != person.ID {
		t.Errorf("PersonIDs = %v not remapped", imported.PersonIDs)
	}
	location, _ := dst.docs.FindLocationByIdentity("Shibuya", "Tokyo", "Japan")
	if location == nil || imported.LocationID != location.ID {
		t.Errorf("LocationID = %q not remapped", imported.LocationID)
	}
}

func TestPackageImportIdempotent(t *testing.T) {
	src := newHarness(t)
	src.addAlbum(t, "a1", "trips", "", "alpha", "trips", 0)
	src.docs.CreateTag(&model.Tag{ID: "t1", Name: "travel"})
	src.addPhoto(t, src.alpha, "p1", "a.jpg", "a1", "trips", "h1", []byte("x"))
	pkg := exportPackage(t, src)

	dst := newHarnessAt(t, src.base)
	for i := 0; i < 2; i++ {
		jobID, err := dst.engine.StartImport(pkg, ImportPackage)
		if err != nil {
			t.Fatal(err)
		}
		j := dst.waitJob(t, jobID)
		if j.Status != job.StatusCompleted {
			t.Fatalf("run %d status = %q (%s)", i, j.Status, j.Error)
		}
	}

	albums, _ := dst.docs.AllAlbums()
	if len(albums) != 1 {
		t.Errorf("album count after re-import = %d, want 1", len(albums))
	}
	photos, _ := dst.docs.AllPhotos()
	if len(photos) != 1 {
		t.Errorf("photo count after re-import = %d, want 1", len(photos))
	}
	tags, _ := dst.docs.AllTags()
	if len(tags) != 1 {
		t.Errorf("tag count after re-import = %d, want 1", len(tags))
	}
}

func TestRawImport(t *testing.T) {
	h := newHarness(t)

	src := filepath.Join(h.base, "shoebox")
	write := func(rel, data string) {
		t.Helper()
		p := filepath.Join(src, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(data), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("cover.jpg", "c")
	write("japan/tokyo.jpg", "t")
	write("japan/readme.txt", "not a photo")

	jobID, err := h.engine.StartImport(src, ImportRawFolder)
	if err != nil {
		t.Fatal(err)
	}
	j := h.waitJob(t, jobID)
	if j.Status != job.StatusCompleted {
		t.Fatalf("job status = %q (%s)", j.Status, j.Error)
	}
	if j.Result["photosImported"] != 2 {
		t.Errorf("photosImported = %v, want 2", j.Result["photosImported"])
	}
	if j.Result["albumsCreated"] != 2 {
		t.Errorf("albumsCreated = %v, want 2", j.Result["albumsCreated"])
	}

	albums, _ := h.docs.AllAlbums()
	byName := make(map[string]*model.Album)
	for _, a := range albums {
		byName[a.Name] = a
	}
	root, ok := byName["shoebox"]
	if !ok {
		t.Fatalf("root album named after source directory missing: %v", byName)
	}
	japan, ok := byName["japan"]
	if !ok {
		t.Fatal("japan album missing")
	}
	if japan.ParentID != root.ID {
		t.Errorf("japan parent = %q, want %q", japan.ParentID, root.ID)
	}
	if !strings.HasPrefix(japan.Alias, "japan-") {
		t.Errorf("alias = %q, want slug with random suffix", japan.Alias)
	}

	photos, _ := h.docs.FindPhotosByAlbum(japan.ID)
	if len(photos) != 1 {
		t.Fatalf("japan has %d photos, want 1", len(photos))
	}
	if photos[0].OriginalName != "tokyo.jpg" {
		t.Errorf("OriginalName = %q, want tokyo.jpg", photos[0].OriginalName)
	}
	if photos[0].Filename == "tokyo.jpg" {
		t.Error("archive filename should carry a uniqueness prefix")
	}

	// Re-running reuses the albums by directory name and dedupes photos by
	// (album, original filename).
	jobID2, err := h.engine.StartImport(src, ImportRawFolder)
	if err != nil {
		t.Fatal(err)
	}
	j2 := h.waitJob(t, jobID2)
	if j2.Status != job.StatusCompleted {
		t.Fatalf("second run status = %q", j2.Status)
	}
	if j2.Result["albumsCreated"] != 0 {
		t.Errorf("second run albumsCreated = %v, want 0", j2.Result["albumsCreated"])
	}
	if j2.Result["skipped"] != 2 {
		t.Errorf("second run skipped = %v, want 2", j2.Result["skipped"])
	}
	if photos, _ := h.docs.AllPhotos(); len(photos) != 2 {
		t.Errorf("photo count after re-import = %d, want 2", len(photos))
	}
}
