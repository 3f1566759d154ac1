package engine

import (
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"photark/internal/fs"
	"photark/internal/job"
	"photark/internal/model"
)

// ImportMode selects how an import source is interpreted.
type ImportMode string

const (
	// ImportPackage reverses an export: the source directory must contain a
	// package manifest and its JSON documents.
	ImportPackage ImportMode = "package"
	// ImportRawFolder walks an arbitrary directory tree: each directory
	// becomes an album, each recognized image file a photo.
	ImportRawFolder ImportMode = "raw"
)

// StartImport begins importing from source in the given mode. The source
// must resolve under the engine's base directory; it is rejected here,
// before any filesystem access. Returns the job id for status polling.
func (e *Engine) StartImport(source string, mode ImportMode) (string, error) {
	src, err := fs.Confine(e.baseDir, source)
	if err != nil {
		return "", err
	}
	if mode != ImportPackage && mode != ImportRawFolder {
		return "", fmt.Errorf("unknown import mode: %s", mode)
	}

	jobID := e.newJob(job.KindImport)
	go func() {
		if mode == ImportPackage {
			e.runPackageImport(jobID, src)
		} else {
			e.runRawImport(jobID, src)
		}
	}()
	return jobID, nil
}

// importState carries the id remapping built up while merging a package
// into the archive.
type importState struct {
	destBackend string
	tagIDs      map[string]string // package id -> archive id
	personIDs   map[string]string
	locationIDs map[string]string
	albumIDs    map[string]string
	albums      map[string]*model.Album // archive id -> album
	created     map[string]int          // result counters
}

func (e *Engine) runPackageImport(jobID, src string) {
	e.jobs.Update(jobID, func(j *job.Job) { j.Status = job.StatusRunning })

	var manifest packageManifest
	if err := readJSON(filepath.Join(src, "manifest.json"), &manifest); err != nil {
		e.fail(jobID, fmt.Errorf("reading package manifest: %w", err))
		return
	}
	if manifest.FormatVersion != manifestVersion {
		e.fail(jobID, fmt.Errorf("unsupported package format version %d", manifest.FormatVersion))
		return
	}

	var pkgAlbums []packageAlbum
	var pkgPhotos []packagePhoto
	var pkgTags []packageTag
	var pkgPeople []packagePerson
	var pkgLocations []packageLocation
	for name, doc := range map[string]any{
		"albums.json":    &pkgAlbums,
		"photos.json":    &pkgPhotos,
		"tags.json":      &pkgTags,
		"people.json":    &pkgPeople,
		"locations.json": &pkgLocations,
	} {
		if err := readJSON(filepath.Join(src, name), doc); err != nil {
			e.fail(jobID, fmt.Errorf("reading package document: %w", err))
			return
		}
	}

	destBackend, err := e.storage.FirstEnabledBackend()
	if err != nil {
		e.fail(jobID, err)
		return
	}

	st := &importState{
		destBackend: destBackend,
		tagIDs:      make(map[string]string),
		personIDs:   make(map[string]string),
		locationIDs: make(map[string]string),
		albumIDs:    make(map[string]string),
		albums:      make(map[string]*model.Album),
		created:     make(map[string]int),
	}

	if err := e.mergeEntities(st, pkgTags, pkgPeople, pkgLocations); err != nil {
		e.fail(jobID, err)
		return
	}
	if err := e.importAlbums(st, pkgAlbums); err != nil {
		e.fail(jobID, err)
		return
	}

	e.jobs.Update(jobID, func(j *job.Job) { j.Total = len(pkgPhotos) })

	imported, skipped, failed := 0, 0, 0
	for _, pp := range pkgPhotos {
		if e.checkCancelled(jobID) {
			return
		}
		switch e.importPackagePhoto(st, src, pp) {
		case outcomeImported:
			imported++
		case outcomeSkipped:
			skipped++
		case outcomeFailed:
			failed++
		}
		e.step(jobID, pp.Filename)
	}

	e.logger.Info("import finished", "job", jobID,
		"photos", imported, "skipped", skipped, "failed", failed)
	e.jobs.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusCompleted
		j.CurrentItem = ""
		j.Result = map[string]any{
			"albumsCreated":    st.created["albums"],
			"tagsCreated":      st.created["tags"],
			"peopleCreated":    st.created["people"],
			"locationsCreated": st.created["locations"],
			"photosImported":   imported,
			"skipped":          skipped,
			"failed":           failed,
		}
	})
}

// mergeEntities maps package tags, people, and locations onto existing
// archive entities by identity, creating only the ones with no match.
// Repeated imports of the same package therefore create nothing new.
func (e *Engine) mergeEntities(st *importState, tags []packageTag, people []packagePerson, locations []packageLocation) error {
	now := e.clock.Now()

	for _, t := range tags {
		existing, err := e.docs.FindTagByName(t.Name)
		if err != nil {
			return fmt.Errorf("matching tag %s: %w", t.Name, err)
		}
		if existing != nil {
			st.tagIDs[t.ID] = existing.ID
			continue
		}
		created := &model.Tag{ID: e.idgen.New(), Name: t.Name, CreatedAt: now}
		if err := e.docs.CreateTag(created); err != nil {
			return fmt.Errorf("creating tag %s: %w", t.Name, err)
		}
		st.tagIDs[t.ID] = created.ID
		st.created["tags"]++
	}

	for _, p := range people {
		existing, err := e.docs.FindPersonByName(p.FullName)
		if err != nil {
			return fmt.Errorf("matching person %s: %w", p.FullName, err)
		}
		if existing != nil {
			st.personIDs[p.ID] = existing.ID
			continue
		}
		created := &model.Person{ID: e.idgen.New(), FullName: p.FullName, CreatedAt: now}
		if err := e.docs.CreatePerson(created); err != nil {
			return fmt.Errorf("creating person %s: %w", p.FullName, err)
		}
		st.personIDs[p.ID] = created.ID
		st.created["people"]++
	}

	for _, l := range locations {
		existing, err := e.docs.FindLocationByIdentity(l.Name, l.City, l.Country)
		if err != nil {
			return fmt.Errorf("matching location %s: %w", l.Name, err)
		}
		if existing != nil {
			st.locationIDs[l.ID] = existing.ID
			continue
		}
		created := &model.Location{
			ID: e.idgen.New(), Name: l.Name, City: l.City, Country: l.Country, CreatedAt: now,
		}
		if err := e.docs.CreateLocation(created); err != nil {
			return fmt.Errorf("creating location %s: %w", l.Name, err)
		}
		st.locationIDs[l.ID] = created.ID
		st.created["locations"]++
	}
	return nil
}

// importAlbums creates package albums top-down, matching by (alias, parent)
// so already-imported albums are reused rather than re-created.
func (e *Engine) importAlbums(st *importState, pkgAlbums []packageAlbum) error {
	ctx := e.background()
	sort.SliceStable(pkgAlbums, func(i, k int) bool { return pkgAlbums[i].Level < pkgAlbums[k].Level })

	for _, pa := range pkgAlbums {
		parentID := ""
		var parent *model.Album
		if pa.ParentID != "" {
			parentID = st.albumIDs[pa.ParentID]
			parent = st.albums[parentID]
			if parent == nil {
				return fmt.Errorf("package album %s references missing parent", pa.Alias)
			}
		}

		existing, err := e.docs.FindAlbumByAliasAndParent(pa.Alias, parentID)
		if err != nil {
			return fmt.Errorf("matching album %s: %w", pa.Alias, err)
		}
		if existing != nil {
			st.albumIDs[pa.ID] = existing.ID
			st.albums[existing.ID] = existing
			continue
		}

		// Aliases are globally unique; the same alias under another parent
		// gets a fresh suffix.
		alias := pa.Alias
		if clash, err := e.docs.FindAlbumByAlias(alias); err != nil {
			return fmt.Errorf("checking alias %s: %w", alias, err)
		} else if clash != nil {
			alias = alias + "-" + e.shortID()
		}

		parentPath := ""
		if parent != nil {
			parentPath = parent.StoragePath
		}
		folder, err := e.storage.CreateAlbum(ctx, st.destBackend, alias, parentPath)
		if err != nil {
			return fmt.Errorf("creating album folder %s: %w", pa.Alias, err)
		}

		now := e.clock.Now()
		album := &model.Album{
			ID:          e.idgen.New(),
			Name:        pa.Name,
			Alias:       alias,
			Public:      pa.Public,
			Featured:    pa.Featured,
			Backend:     st.destBackend,
			StoragePath: folder.Path,
			ParentID:    parentID,
			ParentPath:  parentPath,
			Level:       0,
			Order:       pa.Order,
			TagIDs:      remapIDs(pa.TagIDs, st.tagIDs),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if parent != nil {
			album.Level = parent.Level + 1
		}
		if err := e.docs.CreateAlbum(album); err != nil {
			return fmt.Errorf("creating album %s: %w", pa.Alias, err)
		}
		st.albumIDs[pa.ID] = album.ID
		st.albums[album.ID] = album
		st.created["albums"]++
	}
	return nil
}

type photoOutcome int

const (
	outcomeImported photoOutcome = iota
	outcomeSkipped
	outcomeFailed
)

// importPackagePhoto imports one photo from the package, deduplicating by
// content hash first and (album, original filename) second.
func (e *Engine) importPackagePhoto(st *importState, src string, pp packagePhoto) photoOutcome {
	ctx := e.background()

	albumID := st.albumIDs[pp.AlbumID]
	album := st.albums[albumID]
	if album == nil {
		e.logger.Warn("photo references unknown album, skipping", "photo", pp.Filename)
		return outcomeSkipped
	}

	if pp.Hash != "" {
		existing, err := e.docs.FindPhotoByHash(pp.Hash)
		if err != nil {
			e.logger.Warn("hash lookup failed", "photo", pp.Filename, "error", err)
			return outcomeFailed
		}
		if existing != nil {
			return outcomeSkipped // already imported
		}
	}
	existing, err := e.docs.FindPhotoByOriginalName(albumID, pp.OriginalName)
	if err != nil {
		e.logger.Warn("duplicate lookup failed", "photo", pp.Filename, "error", err)
		return outcomeFailed
	}
	if existing != nil {
		return outcomeSkipped
	}

	photoPath := filepath.Join(src, "photos", filepath.FromSlash(pp.AliasPath), pp.Filename)
	data, err := os.ReadFile(photoPath)
	if err != nil {
		e.logger.Warn("package photo bytes unavailable, skipping", "photo", pp.Filename, "error", err)
		return outcomeSkipped
	}

	result, err := e.storage.UploadPhoto(ctx, st.destBackend, data, pp.Filename, pp.MimeType, album.StoragePath, nil)
	if err != nil {
		e.logger.Warn("uploading photo failed", "photo", pp.Filename, "error", err)
		return outcomeFailed
	}

	descriptor := model.StorageDescriptor{
		Backend: st.destBackend,
		FileID:  result.FileID,
		URL:     e.storage.PhotoURL(st.destBackend, result.Path),
		Path:    result.Path,
	}

	if pp.HasThumbnail {
		thumbName := "thumb_" + pp.Filename
		thumbPath := filepath.Join(src, "photos", filepath.FromSlash(pp.AliasPath), thumbName)
		if thumbData, err := os.ReadFile(thumbPath); err == nil {
			if thumbResult, err := e.storage.UploadPhoto(ctx, st.destBackend, thumbData, thumbName, pp.MimeType, album.StoragePath, nil); err == nil {
				descriptor.ThumbnailPath = thumbResult.Path
			} else {
				e.logger.Warn("uploading thumbnail failed", "photo", pp.Filename, "error", err)
			}
		}
	}

	now := e.clock.Now()
	photo := &model.Photo{
		ID:           e.idgen.New(),
		Filename:     pp.Filename,
		OriginalName: pp.OriginalName,
		MimeType:     pp.MimeType,
		Size:         int64(len(data)),
		Width:        pp.Width,
		Height:       pp.Height,
		Storage:      descriptor,
		AlbumID:      albumID,
		TagIDs:       remapIDs(pp.TagIDs, st.tagIDs),
		PersonIDs:    remapIDs(pp.PersonIDs, st.personIDs),
		LocationID:   st.locationIDs[pp.LocationID],
		Published:    pp.Published,
		Hash:         pp.Hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.docs.CreatePhoto(photo); err != nil {
		e.logger.Warn("creating photo document failed", "photo", pp.Filename, "error", err)
		return outcomeFailed
	}
	return outcomeImported
}

// runRawImport walks an arbitrary directory tree. Each directory becomes an
// album named after it, each recognized image file a photo. Duplicate
// detection is by (album, original filename) only; no content hash is
// available in this mode.
func (e *Engine) runRawImport(jobID, src string) {
	e.jobs.Update(jobID, func(j *job.Job) { j.Status = job.StatusRunning })

	files, err := fs.FindImageFiles(src)
	if err != nil {
		e.fail(jobID, fmt.Errorf("scanning source tree: %w", err))
		return
	}

	destBackend, err := e.storage.FirstEnabledBackend()
	if err != nil {
		e.fail(jobID, err)
		return
	}

	e.jobs.Update(jobID, func(j *job.Job) { j.Total = len(files) })

	rootName := filepath.Base(src)
	albums := make(map[string]*model.Album) // relative dir -> album
	albumsCreated := 0

	imported, skipped, failed := 0, 0, 0
	for _, file := range files {
		if e.checkCancelled(jobID) {
			return
		}

		relDir := ""
		if idx := strings.LastIndex(file.RelPath, "/"); idx >= 0 {
			relDir = file.RelPath[:idx]
		}
		album, createdCount, err := e.ensureRawAlbum(albums, destBackend, rootName, relDir)
		albumsCreated += createdCount
		if err != nil {
			e.logger.Warn("creating album failed", "job", jobID, "dir", relDir, "error", err)
			failed++
			e.step(jobID, file.Name)
			continue
		}

		switch e.importRawPhoto(destBackend, album, file) {
		case outcomeImported:
			imported++
		case outcomeSkipped:
			skipped++
		case outcomeFailed:
			failed++
		}
		e.step(jobID, file.Name)
	}

	e.logger.Info("raw import finished", "job", jobID,
		"photos", imported, "skipped", skipped, "failed", failed)
	e.jobs.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusCompleted
		j.CurrentItem = ""
		j.Result = map[string]any{
			"albumsCreated":  albumsCreated,
			"photosImported": imported,
			"skipped":        skipped,
			"failed":         failed,
		}
	})
}

// ensureRawAlbum returns the album for a source-relative directory, creating
// the album chain above it as needed. An existing album with the same name
// under the same parent is reused, so re-importing a tree lands photos in
// the albums the first run created. Created aliases get a random suffix so
// they never clash with existing aliases.
func (e *Engine) ensureRawAlbum(albums map[string]*model.Album, destBackend, rootName, relDir string) (*model.Album, int, error) {
	if album, ok := albums[relDir]; ok {
		return album, 0, nil
	}

	name := rootName
	var parent *model.Album
	created := 0
	if relDir != "" {
		parentDir := ""
		if idx := strings.LastIndex(relDir, "/"); idx >= 0 {
			parentDir = relDir[:idx]
		}
		var err error
		parent, created, err = e.ensureRawAlbum(albums, destBackend, rootName, parentDir)
		if err != nil {
			return nil, created, err
		}
		name = relDir[strings.LastIndex(relDir, "/")+1:]
	}

	parentID, parentPath, level := "", "", 0
	if parent != nil {
		parentID = parent.ID
		parentPath = parent.StoragePath
		level = parent.Level + 1
	}

	siblings, err := e.docs.FindAlbumsByParent(parentID)
	if err != nil {
		return nil, created, err
	}
	for _, sibling := range siblings {
		if sibling.Name == name {
			albums[relDir] = sibling
			return sibling, created, nil
		}
	}

	ctx := e.background()
	alias := slugify(name) + "-" + e.shortID()

	folder, err := e.storage.CreateAlbum(ctx, destBackend, alias, parentPath)
	if err != nil {
		return nil, created, err
	}

	now := e.clock.Now()
	album := &model.Album{
		ID:          e.idgen.New(),
		Name:        name,
		Alias:       alias,
		Backend:     destBackend,
		StoragePath: folder.Path,
		ParentID:    parentID,
		ParentPath:  parentPath,
		Level:       level,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.docs.CreateAlbum(album); err != nil {
		return nil, created, err
	}
	albums[relDir] = album
	return album, created + 1, nil
}

// importRawPhoto uploads one discovered file and creates its document.
func (e *Engine) importRawPhoto(destBackend string, album *model.Album, file fs.ImageFile) photoOutcome {
	ctx := e.background()

	existing, err := e.docs.FindPhotoByOriginalName(album.ID, file.Name)
	if err != nil {
		e.logger.Warn("duplicate lookup failed", "photo", file.Name, "error", err)
		return outcomeFailed
	}
	if existing != nil {
		return outcomeSkipped
	}

	data, err := os.ReadFile(file.AbsPath)
	if err != nil {
		e.logger.Warn("reading source file failed", "photo", file.Name, "error", err)
		return outcomeSkipped
	}

	// Archive filenames are globally unique; prefix with a short id so two
	// folders can both hold an IMG_0001.jpg.
	filename := e.shortID() + "_" + file.Name
	mimeType := mime.TypeByExtension(filepath.Ext(file.Name))

	result, err := e.storage.UploadPhoto(ctx, destBackend, data, filename, mimeType, album.StoragePath, nil)
	if err != nil {
		e.logger.Warn("uploading photo failed", "photo", file.Name, "error", err)
		return outcomeFailed
	}

	now := e.clock.Now()
	photo := &model.Photo{
		ID:           e.idgen.New(),
		Filename:     filename,
		OriginalName: file.Name,
		MimeType:     mimeType,
		Size:         int64(len(data)),
		Storage: model.StorageDescriptor{
			Backend: destBackend,
			FileID:  result.FileID,
			URL:     e.storage.PhotoURL(destBackend, result.Path),
			Path:    result.Path,
		},
		AlbumID:   album.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.docs.CreatePhoto(photo); err != nil {
		e.logger.Warn("creating photo document failed", "photo", file.Name, "error", err)
		return outcomeFailed
	}
	return outcomeImported
}

// remapIDs translates package ids through an id map, dropping unknowns.
func remapIDs(ids []string, mapping map[string]string) []string {
	var out []string
	for _, id := range ids {
		if mapped, ok := mapping[id]; ok {
			out = append(out, mapped)
		}
	}
	return out
}

// shortID returns the first segment of a generated id, used for alias and
// filename suffixes.
func (e *Engine) shortID() string {
	id := e.idgen.New()
	if idx := strings.Index(id, "-"); idx > 0 {
		return id[:idx]
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return nil
}
