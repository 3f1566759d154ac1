package testutil

import (
	"sort"
	"sync"

	"photark/internal/archive"
	"photark/internal/model"
)

// MemoryStore is an in-memory DocumentStore for tests. Safe for concurrent
// use; all methods return copies.
type MemoryStore struct {
	mu        sync.Mutex
	albums    map[string]*model.Album
	photos    map[string]*model.Photo
	tags      map[string]*model.Tag
	people    map[string]*model.Person
	locations map[string]*model.Location
	backends  map[string]*model.BackendConfig
}

var _ archive.DocumentStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		albums:    make(map[string]*model.Album),
		photos:    make(map[string]*model.Photo),
		tags:      make(map[string]*model.Tag),
		people:    make(map[string]*model.Person),
		locations: make(map[string]*model.Location),
		backends:  make(map[string]*model.BackendConfig),
	}
}

func (s *MemoryStore) FindAlbumByID(id string) (*model.Album, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyAlbum(s.albums[id]), nil
}

func (s *MemoryStore) FindAlbumByAlias(alias string) (*model.Album, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.albums {
		if a.Alias == alias {
			return copyAlbum(a), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) FindAlbumByAliasAndParent(alias, parentID string) (*model.Album, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.albums {
		if a.Alias == alias && a.ParentID == parentID {
			return copyAlbum(a), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) FindAlbumsByParent(parentID string) ([]*model.Album, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Album
	for _, a := range s.albums {
		if a.ParentID == parentID {
			out = append(out, copyAlbum(a))
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].Order != out[k].Order {
			return out[i].Order < out[k].Order
		}
		return out[i].Name < out[k].Name
	})
	return out, nil
}

func (s *MemoryStore) FindAlbumsByBackend(backendID string) ([]*model.Album, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Album
	for _, a := range s.albums {
		if a.Backend == backendID {
			out = append(out, copyAlbum(a))
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (s *MemoryStore) AllAlbums() ([]*model.Album, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Album, 0, len(s.albums))
	for _, a := range s.albums {
		out = append(out, copyAlbum(a))
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].Level != out[k].Level {
			return out[i].Level < out[k].Level
		}
		if out[i].Order != out[k].Order {
			return out[i].Order < out[k].Order
		}
		return out[i].Name < out[k].Name
	})
	return out, nil
}

func (s *MemoryStore) CreateAlbum(album *model.Album) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.albums[album.ID] = copyAlbum(album)
	return nil
}

func (s *MemoryStore) UpdateAlbum(album *model.Album) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.albums[album.ID] = copyAlbum(album)
	return nil
}

func (s *MemoryStore) UpdateAlbumBackend(albumID, backendID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.albums[albumID]; ok {
		a.Backend = backendID
	}
	return nil
}

func (s *MemoryStore) DeleteAlbum(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.albums, id)
	return nil
}

func (s *MemoryStore) FindPhotoByID(id string) (*model.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyPhoto(s.photos[id]), nil
}

func (s *MemoryStore) FindPhotosByAlbum(albumID string) ([]*model.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Photo
	for _, p := range s.photos {
		if p.AlbumID == albumID {
			out = append(out, copyPhoto(p))
		}
	}
	sortPhotos(out)
	return out, nil
}

func (s *MemoryStore) FindPhotosByBackend(backendID string) ([]*model.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Photo
	for _, p := range s.photos {
		if p.Storage.Backend == backendID {
			out = append(out, copyPhoto(p))
		}
	}
	sortPhotos(out)
	return out, nil
}

func (s *MemoryStore) FindPhotoByHash(hash string) (*model.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.photos {
		if p.Hash == hash {
			return copyPhoto(p), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) FindPhotoByOriginalName(albumID, originalName string) (*model.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.photos {
		if p.AlbumID == albumID && p.OriginalName == originalName {
			return copyPhoto(p), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) AllPhotos() ([]*model.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Photo, 0, len(s.photos))
	for _, p := range s.photos {
		out = append(out, copyPhoto(p))
	}
	sortPhotos(out)
	return out, nil
}

func (s *MemoryStore) CreatePhoto(photo *model.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photos[photo.ID] = copyPhoto(photo)
	return nil
}

func (s *MemoryStore) UpdatePhotoStorage(photoID string, storage model.StorageDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.photos[photoID]; ok {
		p.Storage = storage
	}
	return nil
}

func (s *MemoryStore) DeletePhoto(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.photos, id)
	return nil
}

func (s *MemoryStore) CountPhotosByAlbum(albumID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, p := range s.photos {
		if p.AlbumID == albumID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) FindTagByID(id string) (*model.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tags[id]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, nil
}

func (s *MemoryStore) FindTagByName(name string) (*model.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tags {
		if t.Name == name {
			copied := *t
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) AllTags() ([]*model.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Tag, 0, len(s.tags))
	for _, t := range s.tags {
		copied := *t
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out, nil
}

func (s *MemoryStore) CreateTag(tag *model.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *tag
	s.tags[tag.ID] = &copied
	return nil
}

func (s *MemoryStore) FindPersonByID(id string) (*model.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.people[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, nil
}

func (s *MemoryStore) FindPersonByName(fullName string) (*model.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.people {
		if p.FullName == fullName {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) AllPeople() ([]*model.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Person, 0, len(s.people))
	for _, p := range s.people {
		copied := *p
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].FullName < out[k].FullName })
	return out, nil
}

func (s *MemoryStore) CreatePerson(person *model.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *person
	s.people[person.ID] = &copied
	return nil
}

func (s *MemoryStore) FindLocationByID(id string) (*model.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locations[id]; ok {
		copied := *l
		return &copied, nil
	}
	return nil, nil
}

func (s *MemoryStore) FindLocationByIdentity(name, city, country string) (*model.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.locations {
		if l.Name == name && l.City == city && l.Country == country {
			copied := *l
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) AllLocations() ([]*model.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Location, 0, len(s.locations))
	for _, l := range s.locations {
		copied := *l
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out, nil
}

func (s *MemoryStore) CreateLocation(location *model.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *location
	s.locations[location.ID] = &copied
	return nil
}

func (s *MemoryStore) FindBackendConfig(id string) (*model.BackendConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyBackendConfig(s.backends[id]), nil
}

func (s *MemoryStore) AllBackendConfigs() ([]*model.BackendConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.BackendConfig, 0, len(s.backends))
	for _, b := range s.backends {
		out = append(out, copyBackendConfig(b))
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (s *MemoryStore) SaveBackendConfig(cfg *model.BackendConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backends[cfg.ID] = copyBackendConfig(cfg)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func copyAlbum(a *model.Album) *model.Album {
	if a == nil {
		return nil
	}
	copied := *a
	copied.TagIDs = append([]string(nil), a.TagIDs...)
	return &copied
}

func copyPhoto(p *model.Photo) *model.Photo {
	if p == nil {
		return nil
	}
	copied := *p
	copied.TagIDs = append([]string(nil), p.TagIDs...)
	copied.PersonIDs = append([]string(nil), p.PersonIDs...)
	if p.Exif != nil {
		copied.Exif = make(map[string]string, len(p.Exif))
		for k, v := range p.Exif {
			copied.Exif[k] = v
		}
	}
	return &copied
}

func copyBackendConfig(b *model.BackendConfig) *model.BackendConfig {
	if b == nil {
		return nil
	}
	copied := *b
	copied.Settings = make(map[string]string, len(b.Settings))
	for k, v := range b.Settings {
		copied.Settings[k] = v
	}
	return &copied
}

func sortPhotos(photos []*model.Photo) {
	sort.Slice(photos, func(i, k int) bool { return photos[i].Filename < photos[k].Filename })
}
