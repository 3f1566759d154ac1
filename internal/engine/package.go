package engine

import "time"

// Export package format. A package directory contains albums.json,
// tags.json, people.json, locations.json, photos.json, manifest.json, and a
// photos/ tree laid out by album alias path. Every entity reference is a
// plain string id so packages survive re-import into a different archive.

const manifestVersion = 1

type packageManifest struct {
	FormatVersion int       `json:"formatVersion"`
	ExportedAt    time.Time `json:"exportedAt"`
	AlbumCount    int       `json:"albumCount"`
	PhotoCount    int       `json:"photoCount"`
	TagCount      int       `json:"tagCount"`
	PersonCount   int       `json:"personCount"`
	LocationCount int       `json:"locationCount"`
	SkippedCount  int       `json:"skippedCount"`
}

type packageAlbum struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Alias     string   `json:"alias"`
	AliasPath string   `json:"aliasPath"`
	Public    bool     `json:"public"`
	Featured  bool     `json:"featured"`
	ParentID  string   `json:"parentId,omitempty"`
	Level     int      `json:"level"`
	Order     int      `json:"order"`
	TagIDs    []string `json:"tagIds,omitempty"`
}

type packagePhoto struct {
	ID           string   `json:"id"`
	Filename     string   `json:"filename"`
	OriginalName string   `json:"originalName"`
	MimeType     string   `json:"mimeType"`
	Size         int64    `json:"size"`
	Width        int      `json:"width,omitempty"`
	Height       int      `json:"height,omitempty"`
	AlbumID      string   `json:"albumId"`
	AliasPath    string   `json:"aliasPath"`
	HasThumbnail bool     `json:"hasThumbnail,omitempty"`
	TagIDs       []string `json:"tagIds,omitempty"`
	PersonIDs    []string `json:"personIds,omitempty"`
	LocationID   string   `json:"locationId,omitempty"`
	Published    bool     `json:"published"`
	Hash         string   `json:"hash,omitempty"`
}

type packageTag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type packagePerson struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
}

type packageLocation struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}
