// Package database implements the document store over SQLite.
package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"photark/internal/archive"
	"photark/internal/database/migrations"
	"photark/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements archive.DocumentStore using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) a document database at path and brings
// its schema up to date. path can be ":memory:" for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the store relies on. Exported for tools and tests.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Foreign keys default to OFF in SQLite for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return db, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// encodeIDs serializes a reference list as a JSON array, never null.
func encodeIDs(ids []string) string {
	if ids == nil {
		ids = []string{}
	}
	data, _ := json.Marshal(ids)
	return string(data)
}

func decodeIDs(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil
	}
	return ids
}

func encodeMap(m map[string]string) string {
	if m == nil {
		m = map[string]string{}
	}
	data, _ := json.Marshal(m)
	return string(data)
}

func decodeMap(raw string) map[string]string {
	if raw == "" || raw == "{}" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}

// Album operations

const albumColumns = `id, name, alias, public, featured, backend, storage_path,
	parent_id, parent_path, level, sort_order, cover_photo_id, tag_ids,
	created_at, updated_at,
	(SELECT COUNT(*) FROM photos p WHERE p.album_id = albums.id)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlbum(row rowScanner) (*model.Album, error) {
	var a model.Album
	var tagIDs string
	err := row.Scan(&a.ID, &a.Name, &a.Alias, &a.Public, &a.Featured, &a.Backend,
		&a.StoragePath, &a.ParentID, &a.ParentPath, &a.Level, &a.Order,
		&a.CoverPhotoID, &tagIDs, &a.CreatedAt, &a.UpdatedAt, &a.PhotoCount)
	if err != nil {
		return nil, err
	}
	a.TagIDs = decodeIDs(tagIDs)
	return &a, nil
}

func (s *SQLiteStore) findAlbum(where string, args ...any) (*model.Album, error) {
	row := s.db.QueryRow(`SELECT `+albumColumns+` FROM albums WHERE `+where, args...)
	a, err := scanAlbum(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding album: %w", err)
	}
	return a, nil
}

func (s *SQLiteStore) queryAlbums(query string, args ...any) ([]*model.Album, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying albums: %w", err)
	}
	defer rows.Close()

	var albums []*model.Album
	for rows.Next() {
		a, err := scanAlbum(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning album: %w", err)
		}
		albums = append(albums, a)
	}
	return albums, rows.Err()
}

func (s *SQLiteStore) FindAlbumByID(id string) (*model.Album, error) {
	return s.findAlbum("id = ?", id)
}

func (s *SQLiteStore) FindAlbumByAlias(alias string) (*model.Album, error) {
	return s.findAlbum("alias = ?", alias)
}

func (s *SQLiteStore) FindAlbumByAliasAndParent(alias, parentID string) (*model.Album, error) {
	return s.findAlbum("alias = ? AND parent_id = ?", alias, parentID)
}

func (s *SQLiteStore) FindAlbumsByParent(parentID string) ([]*model.Album, error) {
	return s.queryAlbums(`SELECT `+albumColumns+` FROM albums WHERE parent_id = ?
		ORDER BY sort_order, name`, parentID)
}

func (s *SQLiteStore) FindAlbumsByBackend(backendID string) ([]*model.Album, error) {
	return s.queryAlbums(`SELECT `+albumColumns+` FROM albums WHERE backend = ?
		ORDER BY level, sort_order, name`, backendID)
}

func (s *SQLiteStore) AllAlbums() ([]*model.Album, error) {
	return s.queryAlbums(`SELECT ` + albumColumns + ` FROM albums
		ORDER BY level, sort_order, name`)
}

func (s *SQLiteStore) CreateAlbum(a *model.Album) error {
	_, err := s.db.Exec(`INSERT INTO albums
		(id, name, alias, public, featured, backend, storage_path, parent_id,
		 parent_path, level, sort_order, cover_photo_id, tag_ids, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Alias, a.Public, a.Featured, a.Backend, a.StoragePath,
		a.ParentID, a.ParentPath, a.Level, a.Order, a.CoverPhotoID,
		encodeIDs(a.TagIDs), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating album: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateAlbum(a *model.Album) error {
	_, err := s.db.Exec(`UPDATE albums SET
		name = ?, alias = ?, public = ?, featured = ?, backend = ?,
		storage_path = ?, parent_id = ?, parent_path = ?, level = ?,
		sort_order = ?, cover_photo_id = ?, tag_ids = ?, updated_at = ?
		WHERE id = ?`,
		a.Name, a.Alias, a.Public, a.Featured, a.Backend, a.StoragePath,
		a.ParentID, a.ParentPath, a.Level, a.Order, a.CoverPhotoID,
		encodeIDs(a.TagIDs), a.UpdatedAt, a.ID)
	if err != nil {
		return fmt.Errorf("updating album: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateAlbumBackend(albumID, backendID string) error {
	_, err := s.db.Exec(`UPDATE albums SET backend = ? WHERE id = ?`, backendID, albumID)
	if err != nil {
		return fmt.Errorf("updating album backend: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteAlbum(id string) error {
	_, err := s.db.Exec(`DELETE FROM albums WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting album: %w", err)
	}
	return nil
}

// Photo operations

const photoColumns = `id, filename, original_name, mime_type, size, width, height,
	backend, file_id, url, path, thumbnail_path, album_id, tag_ids, person_ids,
	location_id, published, uploader_id, hash, exif, created_at, updated_at`

func scanPhoto(row rowScanner) (*model.Photo, error) {
	var p model.Photo
	var tagIDs, personIDs, exif string
	err := row.Scan(&p.ID, &p.Filename, &p.OriginalName, &p.MimeType, &p.Size,
		&p.Width, &p.Height, &p.Storage.Backend, &p.Storage.FileID,
		&p.Storage.URL, &p.Storage.Path, &p.Storage.ThumbnailPath, &p.AlbumID,
		&tagIDs, &personIDs, &p.LocationID, &p.Published, &p.UploaderID,
		&p.Hash, &exif, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.TagIDs = decodeIDs(tagIDs)
	p.PersonIDs = decodeIDs(personIDs)
	p.Exif = decodeMap(exif)
	return &p, nil
}

func (s *SQLiteStore) findPhoto(where string, args ...any) (*model.Photo, error) {
	row := s.db.QueryRow(`SELECT `+photoColumns+` FROM photos WHERE `+where, args...)
	p, err := scanPhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding photo: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) queryPhotos(query string, args ...any) ([]*model.Photo, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying photos: %w", err)
	}
	defer rows.Close()

	var photos []*model.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

func (s *SQLiteStore) FindPhotoByID(id string) (*model.Photo, error) {
	return s.findPhoto("id = ?", id)
}

func (s *SQLiteStore) FindPhotosByAlbum(albumID string) ([]*model.Photo, error) {
	return s.queryPhotos(`SELECT `+photoColumns+` FROM photos WHERE album_id = ?
		ORDER BY filename`, albumID)
}

func (s *SQLiteStore) FindPhotosByBackend(backendID string) ([]*model.Photo, error) {
	return s.queryPhotos(`SELECT `+photoColumns+` FROM photos WHERE backend = ?
		ORDER BY filename`, backendID)
}

func (s *SQLiteStore) FindPhotoByHash(hash string) (*model.Photo, error) {
	if hash == "" {
		return nil, nil
	}
	return s.findPhoto("hash = ?", hash)
}

func (s *SQLiteStore) FindPhotoByOriginalName(albumID, originalName string) (*model.Photo, error) {
	return s.findPhoto("album_id = ? AND original_name = ?", albumID, originalName)
}

func (s *SQLiteStore) AllPhotos() ([]*model.Photo, error) {
	return s.queryPhotos(`SELECT ` + photoColumns + ` FROM photos ORDER BY filename`)
}

func (s *SQLiteStore) CreatePhoto(p *model.Photo) error {
	_, err := s.db.Exec(`INSERT INTO photos
		(id, filename, original_name, mime_type, size, width, height, backend,
		 file_id, url, path, thumbnail_path, album_id, tag_ids, person_ids,
		 location_id, published, uploader_id, hash, exif, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Filename, p.OriginalName, p.MimeType, p.Size, p.Width, p.Height,
		p.Storage.Backend, p.Storage.FileID, p.Storage.URL, p.Storage.Path,
		p.Storage.ThumbnailPath, p.AlbumID, encodeIDs(p.TagIDs),
		encodeIDs(p.PersonIDs), p.LocationID, p.Published, p.UploaderID,
		p.Hash, encodeMap(p.Exif), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating photo: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdatePhotoStorage(photoID string, storage model.StorageDescriptor) error {
	_, err := s.db.Exec(`UPDATE photos SET
		backend = ?, file_id = ?, url = ?, path = ?, thumbnail_path = ?
		WHERE id = ?`,
		storage.Backend, storage.FileID, storage.URL, storage.Path,
		storage.ThumbnailPath, photoID)
	if err != nil {
		return fmt.Errorf("updating photo storage: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeletePhoto(id string) error {
	_, err := s.db.Exec(`DELETE FROM photos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting photo: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CountPhotosByAlbum(albumID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM photos WHERE album_id = ?`, albumID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting photos: %w", err)
	}
	return count, nil
}

// Tag operations

func (s *SQLiteStore) findTag(where string, args ...any) (*model.Tag, error) {
	var t model.Tag
	err := s.db.QueryRow(`SELECT id, name, created_at FROM tags WHERE `+where, args...).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding tag: %w", err)
	}
	return &t, nil
}

func (s *SQLiteStore) FindTagByID(id string) (*model.Tag, error) {
	return s.findTag("id = ?", id)
}

func (s *SQLiteStore) FindTagByName(name string) (*model.Tag, error) {
	return s.findTag("name = ?", name)
}

func (s *SQLiteStore) AllTags() ([]*model.Tag, error) {
	rows, err := s.db.Query(`SELECT id, name, created_at FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	var tags []*model.Tag
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tags = append(tags, &t)
	}
	return tags, rows.Err()
}

func (s *SQLiteStore) CreateTag(t *model.Tag) error {
	_, err := s.db.Exec(`INSERT INTO tags (id, name, created_at) VALUES (?, ?, ?)`,
		t.ID, t.Name, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating tag: %w", err)
	}
	return nil
}

// Person operations

func (s *SQLiteStore) findPerson(where string, args ...any) (*model.Person, error) {
	var p model.Person
	err := s.db.QueryRow(`SELECT id, full_name, created_at FROM people WHERE `+where, args...).
		Scan(&p.ID, &p.FullName, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding person: %w", err)
	}
	return &p, nil
}

func (s *SQLiteStore) FindPersonByID(id string) (*model.Person, error) {
	return s.findPerson("id = ?", id)
}

func (s *SQLiteStore) FindPersonByName(fullName string) (*model.Person, error) {
	return s.findPerson("full_name = ?", fullName)
}

func (s *SQLiteStore) AllPeople() ([]*model.Person, error) {
	rows, err := s.db.Query(`SELECT id, full_name, created_at FROM people ORDER BY full_name`)
	if err != nil {
		return nil, fmt.Errorf("querying people: %w", err)
	}
	defer rows.Close()

	var people []*model.Person
	for rows.Next() {
		var p model.Person
		if err := rows.Scan(&p.ID, &p.FullName, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning person: %w", err)
		}
		people = append(people, &p)
	}
	return people, rows.Err()
}

func (s *SQLiteStore) CreatePerson(p *model.Person) error {
	_, err := s.db.Exec(`INSERT INTO people (id, full_name, created_at) VALUES (?, ?, ?)`,
		p.ID, p.FullName, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating person: %w", err)
	}
	return nil
}

// Location operations

func (s *SQLiteStore) findLocation(where string, args ...any) (*model.Location, error) {
	var l model.Location
	err := s.db.QueryRow(`SELECT id, name, city, country, created_at FROM locations WHERE `+where, args...).
		Scan(&l.ID, &l.Name, &l.City, &l.Country, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding location: %w", err)
	}
	return &l, nil
}

func (s *SQLiteStore) FindLocationByID(id string) (*model.Location, error) {
	return s.findLocation("id = ?", id)
}

func (s *SQLiteStore) FindLocationByIdentity(name, city, country string) (*model.Location, error) {
	return s.findLocation("name = ? AND city = ? AND country = ?", name, city, country)
}

func (s *SQLiteStore) AllLocations() ([]*model.Location, error) {
	rows, err := s.db.Query(`SELECT id, name, city, country, created_at FROM locations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying locations: %w", err)
	}
	defer rows.Close()

	var locations []*model.Location
	for rows.Next() {
		var l model.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.City, &l.Country, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		locations = append(locations, &l)
	}
	return locations, rows.Err()
}

func (s *SQLiteStore) CreateLocation(l *model.Location) error {
	_, err := s.db.Exec(`INSERT INTO locations (id, name, city, country, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		l.ID, l.Name, l.City, l.Country, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating location: %w", err)
	}
	return nil
}

// Backend configuration operations

func (s *SQLiteStore) FindBackendConfig(id string) (*model.BackendConfig, error) {
	var cfg model.BackendConfig
	var settings string
	err := s.db.QueryRow(`SELECT id, type, display_name, enabled, settings,
		created_at, updated_at FROM backends WHERE id = ?`, id).
		Scan(&cfg.ID, &cfg.Type, &cfg.DisplayName, &cfg.Enabled, &settings,
			&cfg.CreatedAt, &cfg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding backend config: %w", err)
	}
	cfg.Settings = decodeMap(settings)
	return &cfg, nil
}

func (s *SQLiteStore) AllBackendConfigs() ([]*model.BackendConfig, error) {
	rows, err := s.db.Query(`SELECT id, type, display_name, enabled, settings,
		created_at, updated_at FROM backends ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying backend configs: %w", err)
	}
	defer rows.Close()

	var configs []*model.BackendConfig
	for rows.Next() {
		var cfg model.BackendConfig
		var settings string
		if err := rows.Scan(&cfg.ID, &cfg.Type, &cfg.DisplayName, &cfg.Enabled,
			&settings, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning backend config: %w", err)
		}
		cfg.Settings = decodeMap(settings)
		configs = append(configs, &cfg)
	}
	return configs, rows.Err()
}

func (s *SQLiteStore) SaveBackendConfig(cfg *model.BackendConfig) error {
	_, err := s.db.Exec(`INSERT INTO backends
		(id, type, display_name, enabled, settings, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			display_name = excluded.display_name,
			enabled = excluded.enabled,
			settings = excluded.settings,
			updated_at = excluded.updated_at`,
		cfg.ID, cfg.Type, cfg.DisplayName, cfg.Enabled, encodeMap(cfg.Settings),
		cfg.CreatedAt, cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving backend config: %w", err)
	}
	return nil
}

// Compile-time check that SQLiteStore implements archive.DocumentStore
var _ archive.DocumentStore = (*SQLiteStore)(nil)
