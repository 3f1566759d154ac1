package engine

import (
	"fmt"
	"path"

	"photark/internal/archive"
	"photark/internal/job"
	"photark/internal/model"
)

// MigrationRequest describes a storage migration. Target is required.
// SourceBackend, when set, restricts the migration to photos currently on
// that backend. AlbumIDs, when set, restricts it to those albums and all of
// their descendants. Both filters may be combined.
type MigrationRequest struct {
	TargetBackend string
	SourceBackend string
	AlbumIDs      []string
}

// StartStorageMigration begins moving photo bytes between backends. The
// target backend is validated synchronously; everything else happens on the
// job's goroutine. Returns the job id for status polling.
func (e *Engine) StartStorageMigration(req MigrationRequest) (string, error) {
	if req.TargetBackend == "" {
		return "", fmt.Errorf("migration target backend is required")
	}
	if req.SourceBackend == req.TargetBackend {
		return "", fmt.Errorf("migration source and target are the same backend")
	}
	if _, err := e.storage.Provider(e.background(), req.TargetBackend); err != nil {
		return "", err
	}

	jobID := e.newJob(job.KindStorageMigration)
	go e.runStorageMigration(jobID, req)
	return jobID, nil
}

func (e *Engine) runStorageMigration(jobID string, req MigrationRequest) {
	e.jobs.Update(jobID, func(j *job.Job) { j.Status = job.StatusRunning })

	albums, err := e.docs.AllAlbums()
	if err != nil {
		e.fail(jobID, fmt.Errorf("loading albums: %w", err))
		return
	}
	albumsByID := make(map[string]*model.Album, len(albums))
	for _, a := range albums {
		albumsByID[a.ID] = a
	}

	// Selecting an album selects its whole subtree.
	var selected map[string]bool
	if len(req.AlbumIDs) > 0 {
		selected = make(map[string]bool)
		for _, id := range archive.ExpandAlbumSelection(albums, req.AlbumIDs) {
			selected[id] = true
		}
	}

	photos, err := e.selectPhotos(req, selected)
	if err != nil {
		e.fail(jobID, err)
		return
	}

	e.jobs.Update(jobID, func(j *job.Job) { j.Total = len(photos) })

	migrated, skipped, failed := 0, 0, 0
	touched := make(map[string]bool) // album ids with at least one migrated photo
	for _, photo := range photos {
		if e.checkCancelled(jobID) {
			return
		}
		switch e.migratePhoto(req, albumsByID, touched, photo) {
		case outcomeImported:
			migrated++
		case outcomeSkipped:
			skipped++
		case outcomeFailed:
			failed++
		}
		e.step(jobID, photo.Filename)
	}

	// Repoint albums whose photos now live on the target. Explicitly
	// selected albums move even when empty.
	albumsMoved := 0
	for id := range selected {
		touched[id] = true
	}
	for id := range touched {
		album := albumsByID[id]
		if album == nil || album.Backend == req.TargetBackend {
			continue
		}
		if err := e.docs.UpdateAlbumBackend(id, req.TargetBackend); err != nil {
			e.logger.Warn("repointing album failed", "job", jobID, "album", id, "error", err)
			continue
		}
		albumsMoved++
	}

	if req.SourceBackend != "" {
		e.cleanupSourceFolders(jobID, req.SourceBackend, albums, touched)
	}

	e.logger.Info("storage migration finished", "job", jobID,
		"target", req.TargetBackend, "photos", migrated, "skipped", skipped, "failed", failed)
	e.jobs.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusCompleted
		j.CurrentItem = ""
		j.Result = map[string]any{
			"target":         req.TargetBackend,
			"photosMigrated": migrated,
			"albumsMoved":    albumsMoved,
			"skipped":        skipped,
			"failed":         failed,
		}
	})
}

// selectPhotos resolves the migration filters to a concrete photo list.
func (e *Engine) selectPhotos(req MigrationRequest, selected map[string]bool) ([]*model.Photo, error) {
	var photos []*model.Photo
	var err error
	if req.SourceBackend != "" {
		photos, err = e.docs.FindPhotosByBackend(req.SourceBackend)
	} else {
		photos, err = e.docs.AllPhotos()
	}
	if err != nil {
		return nil, fmt.Errorf("loading photos: %w", err)
	}

	out := photos[:0]
	for _, p := range photos {
		if selected != nil && !selected[p.AlbumID] {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// migratePhoto moves one photo's bytes to the target backend and rewrites
// its storage descriptor. The original bytes are removed best-effort after
// the document update succeeds; a failed delete leaves an orphan on the
// source backend, never a broken descriptor.
func (e *Engine) migratePhoto(req MigrationRequest, albumsByID map[string]*model.Album, touched map[string]bool, photo *model.Photo) photoOutcome {
	ctx := e.background()

	if photo.Storage.Backend == req.TargetBackend {
		return outcomeSkipped
	}

	folderPath := ""
	if album := albumsByID[photo.AlbumID]; album != nil {
		folderPath = album.StoragePath
	}
	if folderPath == "" {
		// Orphaned photo; mirror its current layout on the target.
		if dir := path.Dir(photo.Storage.Path); dir != "." && dir != "/" {
			folderPath = dir
		}
	}

	data := e.storage.PhotoBuffer(ctx, photo.Storage.Backend, photo.Storage.Path)
	if data == nil {
		e.logger.Warn("photo bytes unavailable on source, skipping",
			"photo", photo.Filename, "backend", photo.Storage.Backend)
		return outcomeSkipped
	}

	if folderPath != "" {
		parent, name := path.Dir(folderPath), path.Base(folderPath)
		if parent == "." || parent == "/" {
			parent = ""
		}
		if _, err := e.storage.CreateAlbum(ctx, req.TargetBackend, name, parent); err != nil {
			e.logger.Warn("preparing target folder failed", "photo", photo.Filename, "error", err)
			return outcomeFailed
		}
	}

	result, err := e.storage.UploadPhoto(ctx, req.TargetBackend, data, photo.Filename, photo.MimeType, folderPath, nil)
	if err != nil {
		e.logger.Warn("uploading to target failed", "photo", photo.Filename, "error", err)
		return outcomeFailed
	}

	descriptor := model.StorageDescriptor{
		Backend: req.TargetBackend,
		FileID:  result.FileID,
		URL:     e.storage.PhotoURL(req.TargetBackend, result.Path),
		Path:    result.Path,
	}

	oldThumb := photo.Storage.ThumbnailPath
	if oldThumb != "" {
		thumbData := e.storage.PhotoBuffer(ctx, photo.Storage.Backend, oldThumb)
		if thumbData != nil {
			thumbResult, err := e.storage.UploadPhoto(ctx, req.TargetBackend, thumbData, path.Base(oldThumb), photo.MimeType, folderPath, nil)
			if err != nil {
				e.logger.Warn("uploading thumbnail to target failed", "photo", photo.Filename, "error", err)
			} else {
				descriptor.ThumbnailPath = thumbResult.Path
			}
		}
	}

	if err := e.docs.UpdatePhotoStorage(photo.ID, descriptor); err != nil {
		e.logger.Warn("updating storage descriptor failed", "photo", photo.Filename, "error", err)
		return outcomeFailed
	}
	touched[photo.AlbumID] = true

	// Source cleanup is best-effort: the descriptor already points at the
	// target, so a failure here only leaves unreferenced bytes behind.
	if err := e.storage.DeletePhoto(ctx, photo.Storage.Backend, photo.Storage.Path); err != nil {
		e.logger.Warn("removing source bytes failed", "photo", photo.Filename, "error", err)
	}
	if oldThumb != "" {
		if err := e.storage.DeletePhoto(ctx, photo.Storage.Backend, oldThumb); err != nil {
			e.logger.Warn("removing source thumbnail failed", "photo", photo.Filename, "error", err)
		}
	}
	return outcomeImported
}

// cleanupSourceFolders removes now-empty album folders from the source
// backend, deepest first so children go before their parents. Entirely
// best-effort; a folder that still holds files is left alone.
func (e *Engine) cleanupSourceFolders(jobID, sourceBackend string, albums []*model.Album, touched map[string]bool) {
	ctx := e.background()

	var candidates []*model.Album
	for _, album := range albums {
		if touched[album.ID] && album.StoragePath != "" {
			candidates = append(candidates, album)
		}
	}
	remaining, err := e.docs.FindPhotosByBackend(sourceBackend)
	if err != nil {
		e.logger.Warn("source cleanup skipped", "job", jobID, "error", err)
		return
	}
	stillUsed := make(map[string]bool)
	for _, p := range remaining {
		stillUsed[p.AlbumID] = true
	}

	for i := len(candidates) - 1; i >= 0; i-- {
		album := candidates[i]
		if stillUsed[album.ID] {
			continue
		}
		if err := e.storage.DeleteAlbum(ctx, sourceBackend, album.StoragePath); err != nil {
			e.logger.Warn("removing empty source folder failed",
				"job", jobID, "album", album.ID, "error", err)
		}
	}
}
