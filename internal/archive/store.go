package archive

import "photark/internal/model"

// DocumentStore provides metadata storage for albums, photos, tags, people,
// and locations. The document store is the single source of truth for
// archive metadata; physical backends hold only bytes.
type DocumentStore interface {
	// Album operations

	// FindAlbumByID returns an album by id, or nil if not found.
	FindAlbumByID(id string) (*model.Album, error)

	// FindAlbumByAlias returns the album with the given alias, or nil.
	// Aliases are globally unique.
	FindAlbumByAlias(alias string) (*model.Album, error)

	// FindAlbumByAliasAndParent returns the album with the given alias under
	// parentID (empty parentID means root), or nil. Used by import to avoid
	// re-creating an album that already exists.
	FindAlbumByAliasAndParent(alias, parentID string) (*model.Album, error)

	// FindAlbumsByParent returns the children of parentID ordered by
	// (order, name). An empty parentID returns root albums.
	FindAlbumsByParent(parentID string) ([]*model.Album, error)

	// FindAlbumsByBackend returns every album stored on the given backend.
	FindAlbumsByBackend(backendID string) ([]*model.Album, error)

	// AllAlbums returns every album ordered by (level, order, name), so
	// parents always precede children.
	AllAlbums() ([]*model.Album, error)

	// CreateAlbum inserts a new album.
	CreateAlbum(album *model.Album) error

	// UpdateAlbum rewrites an existing album.
	UpdateAlbum(album *model.Album) error

	// UpdateAlbumBackend updates just the backend id of an album.
	UpdateAlbumBackend(albumID, backendID string) error

	// DeleteAlbum removes an album document.
	DeleteAlbum(id string) error

	// Photo operations

	// FindPhotoByID returns a photo by id, or nil if not found.
	FindPhotoByID(id string) (*model.Photo, error)

	// FindPhotosByAlbum returns the photos of an album ordered by filename.
	FindPhotosByAlbum(albumID string) ([]*model.Photo, error)

	// FindPhotosByBackend returns every photo whose storage descriptor names
	// the given backend.
	FindPhotosByBackend(backendID string) ([]*model.Photo, error)

	// FindPhotoByHash returns a photo by content hash, or nil.
	FindPhotoByHash(hash string) (*model.Photo, error)

	// FindPhotoByOriginalName returns the photo in albumID with the given
	// original filename, or nil.
	FindPhotoByOriginalName(albumID, originalName string) (*model.Photo, error)

	// AllPhotos returns every photo in the archive.
	AllPhotos() ([]*model.Photo, error)

	// CreatePhoto inserts a new photo.
	CreatePhoto(photo *model.Photo) error

	// UpdatePhotoStorage updates just the storage descriptor of a photo.
	UpdatePhotoStorage(photoID string, storage model.StorageDescriptor) error

	// DeletePhoto removes a photo document.
	DeletePhoto(id string) error

	// CountPhotosByAlbum returns the number of photos in an album.
	CountPhotosByAlbum(albumID string) (int, error)

	// Tag / Person / Location operations

	FindTagByID(id string) (*model.Tag, error)
	FindTagByName(name string) (*model.Tag, error)
	AllTags() ([]*model.Tag, error)
	CreateTag(tag *model.Tag) error

	FindPersonByID(id string) (*model.Person, error)
	FindPersonByName(fullName string) (*model.Person, error)
	AllPeople() ([]*model.Person, error)
	CreatePerson(person *model.Person) error

	FindLocationByID(id string) (*model.Location, error)
	FindLocationByIdentity(name, city, country string) (*model.Location, error)
	AllLocations() ([]*model.Location, error)
	CreateLocation(location *model.Location) error

	// Backend configuration operations

	// FindBackendConfig returns the config for a backend id, or nil.
	FindBackendConfig(id string) (*model.BackendConfig, error)

	// AllBackendConfigs returns every backend config ordered by id.
	AllBackendConfigs() ([]*model.BackendConfig, error)

	// SaveBackendConfig inserts or replaces a backend config.
	SaveBackendConfig(cfg *model.BackendConfig) error

	// Close closes the underlying connection.
	Close() error
}
