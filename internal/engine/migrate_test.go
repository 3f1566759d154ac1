package engine

import (
	"context"
	"strings"
	"testing"

	"photark/internal/job"
	"photark/internal/model"
	"photark/internal/testutil"
)

func TestStartStorageMigration(t *testing.T) {
	t.Run("requires a target", func(t *testing.T) {
		h := newHarness(t)
		if _, err := h.engine.StartStorageMigration(MigrationRequest{}); err == nil {
			t.Fatal("expected error for missing target")
		}
	})

	t.Run("rejects same source and target", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.engine.StartStorageMigration(MigrationRequest{
			TargetBackend: "alpha", SourceBackend: "alpha",
		})
		if err == nil {
			t.Fatal("expected error for source == target")
		}
	})

	t.Run("rejects unknown target", func(t *testing.T) {
		h := newHarness(t)
		if _, err := h.engine.StartStorageMigration(MigrationRequest{TargetBackend: "nope"}); err == nil {
			t.Fatal("expected error for unknown target")
		}
	})
}

func TestStorageMigration(t *testing.T) {
	t.Run("moves bytes and rewrites descriptors", func(t *testing.T) {
		h := newHarness(t)
		h.addAlbum(t, "a1", "trips", "", "alpha", "trips", 0)
		photo := h.addPhoto(t, h.alpha, "p1", "a.jpg", "a1", "trips", "h1", []byte("pixels"))

		jobID, err := h.engine.StartStorageMigration(MigrationRequest{TargetBackend: "beta"})
		if err != nil {
			t.Fatal(err)
		}
		j := h.waitJob(t, jobID)
		if j.Status != job.StatusCompleted {
			t.Fatalf("job status = %q (%s)", j.Status, j.Error)
		}
		if j.Result["photosMigrated"] != 1 {
			t.Errorf("photosMigrated = %v, want 1", j.Result["photosMigrated"])
		}

		moved, _ := h.docs.FindPhotoByID(photo.ID)
		if moved.Storage.Backend != "beta" {
			t.Errorf("backend = %q, want beta", moved.Storage.Backend)
		}
		// Descriptors always carry the archive serving path, never a
		// backend-native URL, so serving survives the move.
		if !strings.HasPrefix(moved.Storage.URL, "/api/file/beta/") {
			t.Errorf("URL = %q, want /api/file/beta/ prefix", moved.Storage.URL)
		}

		if data := h.beta.FileData(moved.Storage.Path); string(data) != "pixels" {
			t.Errorf("target bytes = %q, want pixels", data)
		}
		if data := h.alpha.FileData(photo.Storage.Path); data != nil {
			t.Error("source bytes not removed")
		}

		album, _ := h.docs.FindAlbumByID("a1")
		if album.Backend != "beta" {
			t.Errorf("album backend = %q, want beta", album.Backend)
		}
	})

	t.Run("thumbnail moves with the photo", func(t *testing.T) {
		h := newHarness(t)
		h.addAlbum(t, "a1", "trips", "", "alpha", "trips", 0)
		photo := h.addPhoto(t, h.alpha, "p1", "a.jpg", "a1", "trips", "h1", []byte("full"))
		thumb, err := h.alpha.UploadFile(context.Background(), []byte("small"), "thumb_a.jpg", "image/jpeg", "trips", nil)
		if err != nil {
			t.Fatal(err)
		}
		photo.Storage.ThumbnailPath = thumb.Path
		h.docs.UpdatePhotoStorage(photo.ID, photo.Storage)

		jobID, err := h.engine.StartStorageMigration(MigrationRequest{TargetBackend: "beta"})
		if err != nil {
			t.Fatal(err)
		}
		h.waitJob(t, jobID)

		moved, _ := h.docs.FindPhotoByID(photo.ID)
		if moved.Storage.ThumbnailPath == "" {
			t.Fatal("thumbnail path lost in migration")
		}
		if data := h.beta.FileData(moved.Storage.ThumbnailPath); string(data) != "small" {
			t.Errorf("target thumbnail = %q, want small", data)
		}
	})

	t.Run("photos already on target are skipped", func(t *testing.T) {
		h := newHarness(t)
		h.addAlbum(t, "a1", "trips", "", "beta", "trips", 0)
		h.addPhoto(t, h.beta, "p1", "a.jpg", "a1", "trips", "h1", []byte("x"))

		jobID, err := h.engine.StartStorageMigration(MigrationRequest{TargetBackend: "beta"})
		if err != nil {
			t.Fatal(err)
		}
		j := h.waitJob(t, jobID)
		if j.Result["photosMigrated"] != 0 || j.Result["skipped"] != 1 {
			t.Errorf("migrated/skipped = %v/%v, want 0/1", j.Result["photosMigrated"], j.Result["skipped"])
		}
	})

	t.Run("source filter leaves other backends alone", func(t *testing.T) {
		h := newHarness(t)

		third := seedThirdBackend(t, h)
		h.addAlbum(t, "a1", "trips", "", "alpha", "trips", 0)
		h.addAlbum(t, "a2", "pets", "", "gamma", "pets", 0)
		h.addPhoto(t, h.alpha, "p1", "a.jpg", "a1", "trips", "h1", []byte("x"))
		untouched := h.addPhoto(t, third, "p2", "b.jpg", "a2", "pets", "h2", []byte("y"))

		jobID, err := h.engine.StartStorageMigration(MigrationRequest{
			TargetBackend: "beta", SourceBackend: "alpha",
		})
		if err != nil {
			t.Fatal(err)
		}
		j := h.waitJob(t, jobID)
		if j.Result["photosMigrated"] != 1 {
			t.Errorf("photosMigrated = %v, want 1", j.Result["photosMigrated"])
		}

		still, _ := h.docs.FindPhotoByID(untouched.ID)
		if still.Storage.Backend != "gamma" {
			t.Errorf("unrelated photo moved to %q", still.Storage.Backend)
		}
	})

	t.Run("album selection includes descendants", func(t *testing.T) {
		h := newHarness(t)
		h.addAlbum(t, "a1", "trips", "", "alpha", "trips", 0)
		h.addAlbum(t, "a2", "japan", "a1", "alpha", "trips/japan", 1)
		h.addAlbum(t, "a3", "pets", "", "alpha", "pets", 0)
		h.addPhoto(t, h.alpha, "p1", "a.jpg", "a2", "trips/japan", "h1", []byte("x"))
		outside := h.addPhoto(t, h.alpha, "p2", "b.jpg", "a3", "pets", "h2", []byte("y"))

		jobID, err := h.engine.StartStorageMigration(MigrationRequest{
			TargetBackend: "beta", AlbumIDs: []string{"a1"},
		})
		if err != nil {
			t.Fatal(err)
		}
		j := h.waitJob(t, jobID)
		if j.Result["photosMigrated"] != 1 {
			t.Errorf("photosMigrated = %v, want 1", j.Result["photosMigrated"])
		}

		nested, _ := h.docs.FindPhotoByID("p1")
		if nested.Storage.Backend != "beta" {
			t.Errorf("descendant photo backend = %q, want beta", nested.Storage.Backend)
		}
		still, _ := h.docs.FindPhotoByID(outside.ID)
		if still.Storage.Backend != "alpha" {
			t.Errorf("unselected photo backend = %q, want alpha", still.Storage.Backend)
		}
		// Explicitly selected albums move even without photos of their own.
		selected, _ := h.docs.FindAlbumByID("a1")
		if selected.Backend != "beta" {
			t.Errorf("selected album backend = %q, want beta", selected.Backend)
		}
		unselected, _ := h.docs.FindAlbumByID("a3")
		if unselected.Backend != "alpha" {
			t.Errorf("unselected album backend = %q, want alpha", unselected.Backend)
		}
	})

	t.Run("missing source bytes are skipped", func(t *testing.T) {
		h := newHarness(t)
		h.addAlbum(t, "a1", "trips", "", "alpha", "trips", 0)
		photo := h.addPhoto(t, h.alpha, "p1", "a.jpg", "a1", "trips", "h1", []byte("x"))
		h.alpha.DeleteFile(context.Background(), photo.Storage.Path)

		jobID, err := h.engine.StartStorageMigration(MigrationRequest{TargetBackend: "beta"})
		if err != nil {
			t.Fatal(err)
		}
		j := h.waitJob(t, jobID)
		if j.Status != job.StatusCompleted {
			t.Fatalf("job status = %q, want completed", j.Status)
		}
		if j.Result["skipped"] != 1 {
			t.Errorf("skipped = %v, want 1", j.Result["skipped"])
		}

		// The descriptor still points at the source copy.
		still, _ := h.docs.FindPhotoByID(photo.ID)
		if still.Storage.Backend != "alpha" {
			t.Errorf("backend = %q, want alpha untouched", still.Storage.Backend)
		}
	})

	t.Run("cancellation leaves remaining photos in place", func(t *testing.T) {
		h := newHarness(t)
		h.addAlbum(t, "a1", "trips", "", "alpha", "trips", 0)
		photo := h.addPhoto(t, h.alpha, "p1", "a.jpg", "a1", "trips", "h1", []byte("x"))

		jobID := h.engine.newJob(job.KindStorageMigration)
		h.engine.Jobs().Cancel(jobID)
		h.engine.runStorageMigration(jobID, MigrationRequest{TargetBackend: "beta"})

		j := h.engine.Jobs().Get(jobID)
		if j.Status != job.StatusCancelled {
			t.Fatalf("job status = %q, want cancelled", j.Status)
		}
		still, _ := h.docs.FindPhotoByID(photo.ID)
		if still.Storage.Backend != "alpha" {
			t.Errorf("photo moved despite cancellation")
		}
	})
}

// seedThirdBackend registers one more memory backend, "gamma".
func seedThirdBackend(t *testing.T, h *harness) *testutil.MemoryProvider {
	t.Helper()
	if err := h.docs.SaveBackendConfig(&model.BackendConfig{ID: "gamma", Type: "memory", Enabled: true}); err != nil {
		t.Fatal(err)
	}
	p := testutil.NewMemoryProvider("gamma")
	h.mgr.Register(p)
	return p
}
