package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"photark/internal/archive"
	"photark/internal/fs"
	"photark/internal/job"
	"photark/internal/model"
)

// StartExport begins exporting the whole archive to a portable package under
// destination. The destination must resolve under the engine's base
// directory; it is rejected here, before any filesystem access. When bundle
// is true the finished package is compressed into a single archive file.
// Returns the job id for status polling.
func (e *Engine) StartExport(destination string, bundle bool) (string, error) {
	dest, err := fs.Confine(e.baseDir, destination)
	if err != nil {
		return "", err
	}

	jobID := e.newJob(job.KindExport)
	go e.runExport(jobID, dest, bundle)
	return jobID, nil
}

func (e *Engine) runExport(jobID, dest string, bundle bool) {
	e.jobs.Update(jobID, func(j *job.Job) { j.Status = job.StatusRunning })

	albums, err := e.docs.AllAlbums()
	if err != nil {
		e.fail(jobID, fmt.Errorf("loading albums: %w", err))
		return
	}
	photos, err := e.docs.AllPhotos()
	if err != nil {
		e.fail(jobID, fmt.Errorf("loading photos: %w", err))
		return
	}
	tags, err := e.docs.AllTags()
	if err != nil {
		e.fail(jobID, fmt.Errorf("loading tags: %w", err))
		return
	}
	people, err := e.docs.AllPeople()
	if err != nil {
		e.fail(jobID, fmt.Errorf("loading people: %w", err))
		return
	}
	locations, err := e.docs.AllLocations()
	if err != nil {
		e.fail(jobID, fmt.Errorf("loading locations: %w", err))
		return
	}

	if err := os.MkdirAll(dest, 0755); err != nil {
		e.fail(jobID, fmt.Errorf("creating destination: %w", err))
		return
	}

	// AllAlbums orders parents before children, so alias paths resolve in
	// one pass.
	aliasPaths := archive.BuildAliasPaths(albums)

	packageAlbums := make([]packageAlbum, 0, len(albums))
	for _, a := range albums {
		packageAlbums = append(packageAlbums, packageAlbum{
			ID:        a.ID,
			Name:      a.Name,
			Alias:     a.Alias,
			AliasPath: aliasPaths[a.ID],
			Public:    a.Public,
			Featured:  a.Featured,
			ParentID:  a.ParentID,
			Level:     a.Level,
			Order:     a.Order,
			TagIDs:    a.TagIDs,
		})
	}

	packageTags := make([]packageTag, 0, len(tags))
	for _, t := range tags {
		packageTags = append(packageTags, packageTag{ID: t.ID, Name: t.Name})
	}
	packagePeople := make([]packagePerson, 0, len(people))
	for _, p := range people {
		packagePeople = append(packagePeople, packagePerson{ID: p.ID, FullName: p.FullName})
	}
	packageLocations := make([]packageLocation, 0, len(locations))
	for _, l := range locations {
		packageLocations = append(packageLocations, packageLocation{
			ID: l.ID, Name: l.Name, City: l.City, Country: l.Country,
		})
	}

	e.jobs.Update(jobID, func(j *job.Job) { j.Total = len(photos) })

	var packagePhotos []packagePhoto
	skipped := 0
	exported := 0
	for _, p := range photos {
		if e.checkCancelled(jobID) {
			return
		}

		aliasPath := aliasPaths[p.AlbumID]
		photoDir := filepath.Join(dest, "photos", filepath.FromSlash(aliasPath))

		ok, hasThumb := e.exportPhotoFiles(jobID, p, photoDir)
		if !ok {
			skipped++
			e.step(jobID, p.Filename)
			continue
		}
		exported++

		packagePhotos = append(packagePhotos, packagePhoto{
			ID:           p.ID,
			Filename:     p.Filename,
			OriginalName: p.OriginalName,
			MimeType:     p.MimeType,
			Size:         p.Size,
			Width:        p.Width,
			Height:       p.Height,
			AlbumID:      p.AlbumID,
			AliasPath:    aliasPath,
			HasThumbnail: hasThumb,
			TagIDs:       p.TagIDs,
			PersonIDs:    p.PersonIDs,
			LocationID:   p.LocationID,
			Published:    p.Published,
			Hash:         p.Hash,
		})
		e.step(jobID, p.Filename)
	}

	manifest := packageManifest{
		FormatVersion: manifestVersion,
		ExportedAt:    e.clock.Now().UTC(),
		AlbumCount:    len(packageAlbums),
		PhotoCount:    exported,
		TagCount:      len(packageTags),
		PersonCount:   len(packagePeople),
		LocationCount: len(packageLocations),
		SkippedCount:  skipped,
	}

	documents := map[string]any{
		"albums.json":    packageAlbums,
		"tags.json":      packageTags,
		"people.json":    packagePeople,
		"locations.json": packageLocations,
		"photos.json":    packagePhotos,
		"manifest.json":  manifest,
	}
	for name, doc := range documents {
		if err := writeJSON(filepath.Join(dest, name), doc); err != nil {
			e.fail(jobID, err)
			return
		}
	}

	result := map[string]any{
		"destination": dest,
		"albums":      len(packageAlbums),
		"photos":      exported,
		"skipped":     skipped,
	}

	// Bundle failure is recorded on the result but does not retroactively
	// fail a job whose export already completed.
	if bundle {
		bundlePath, err := e.bundlePackage(dest)
		if err != nil {
			e.logger.Warn("bundling export failed", "job", jobID, "error", err)
			result["bundleError"] = err.Error()
		} else {
			result["bundle"] = bundlePath
		}
	}

	e.logger.Info("export finished", "job", jobID, "photos", exported, "skipped", skipped)
	e.jobs.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusCompleted
		j.CurrentItem = ""
		j.Result = result
	})
}

// exportPhotoFiles copies one photo's bytes (and thumbnail, if any) into the
// package. A photo whose bytes cannot be fetched is skipped, not fatal.
func (e *Engine) exportPhotoFiles(jobID string, p *model.Photo, photoDir string) (ok, hasThumb bool) {
	ctx := e.background()

	data := e.storage.PhotoBuffer(ctx, p.Storage.Backend, p.Storage.Path)
	if data == nil {
		e.logger.Warn("photo bytes unavailable, skipping",
			"job", jobID, "photo", p.Filename, "backend", p.Storage.Backend)
		return false, false
	}

	if err := os.MkdirAll(photoDir, 0755); err != nil {
		e.logger.Warn("creating photo directory failed", "job", jobID, "photo", p.Filename, "error", err)
		return false, false
	}
	if err := os.WriteFile(filepath.Join(photoDir, p.Filename), data, 0644); err != nil {
		e.logger.Warn("writing photo failed", "job", jobID, "photo", p.Filename, "error", err)
		return false, false
	}

	if p.Storage.ThumbnailPath != "" {
		thumb := e.storage.PhotoBuffer(ctx, p.Storage.Backend, p.Storage.ThumbnailPath)
		if thumb != nil {
			thumbName := "thumb_" + p.Filename
			if err := os.WriteFile(filepath.Join(photoDir, thumbName), thumb, 0644); err == nil {
				hasThumb = true
			}
		}
	}
	return true, hasThumb
}

func writeJSON(path string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}
