package model

import "time"

// StorageDescriptor records where a photo's bytes physically live.
// URL always points at the archive's own file-serving path, never at a
// backend-native URL, so nothing downstream depends on backend URL shapes.
type StorageDescriptor struct {
	Backend       string // Backend config ID
	FileID        string // Opaque backend file identifier
	URL           string // Archive serving path, e.g. /api/file/<backend>/<path>
	Path          string // Backend-relative path
	ThumbnailPath string // Backend-relative thumbnail path, empty if none
}

// Album is a node in the album tree.
type Album struct {
	ID           string // UUID
	Name         string
	Alias        string // URL-safe, globally unique
	Public       bool
	Featured     bool
	Backend      string // Backend config ID holding this album's files
	StoragePath  string // Backend-relative folder path
	ParentID     string // Empty for roots
	ParentPath   string // Materialized parent storage path prefix
	Level        int    // Root = 0, child = parent.Level + 1
	Order        int    // Sibling order; ties broken by name
	CoverPhotoID string
	PhotoCount   int // Cached count, maintained by the document store
	TagIDs       []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Photo is a single archived image.
type Photo struct {
	ID           string // UUID
	Filename     string // Unique within the archive
	OriginalName string
	MimeType     string
	Size         int64
	Width        int
	Height       int
	Storage      StorageDescriptor
	AlbumID      string
	TagIDs       []string
	PersonIDs    []string
	LocationID   string
	Published    bool
	UploaderID   string
	Hash         string // Content hash for import de-duplication, may be empty
	Exif         map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Tag is a flat label referenced by photos and albums.
// Tags are matched by name on import.
type Tag struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Person is matched by full name on import.
type Person struct {
	ID        string
	FullName  string
	CreatedAt time.Time
}

// Location is matched by (name, city, country) on import.
type Location struct {
	ID        string
	Name      string
	City      string
	Country   string
	CreatedAt time.Time
}

// BackendConfig is the persisted configuration for one storage backend.
// This uses a tagged union pattern - the Type field determines which
// Settings keys are relevant.
type BackendConfig struct {
	ID          string // Backend identifier, e.g. "local", "wasabi"
	Type        string // "local", "s3", or "drive"
	DisplayName string
	Enabled     bool
	Settings    map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Setting keys recognized by the provider factory, by backend type.
//
//	local: root
//	s3:    endpoint, bucket, prefix, region, access_key, secret_key
//	drive: api_base, token_url, client_id, client_secret, access_token,
//	       refresh_token, token_expiry (RFC 3339), root_folder_id
const (
	SettingRoot         = "root"
	SettingEndpoint     = "endpoint"
	SettingBucket       = "bucket"
	SettingPrefix       = "prefix"
	SettingRegion       = "region"
	SettingAccessKey    = "access_key"
	SettingSecretKey    = "secret_key"
	SettingAPIBase      = "api_base"
	SettingTokenURL     = "token_url"
	SettingClientID     = "client_id"
	SettingClientSecret = "client_secret"
	SettingAccessToken  = "access_token"
	SettingRefreshToken = "refresh_token"
	SettingTokenExpiry  = "token_expiry"
	SettingRootFolderID = "root_folder_id"
)
