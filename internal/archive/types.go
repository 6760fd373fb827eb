// Package archive keeps a local copy of remote story content.
//
// This package enables storyarchive to:
// - Derive the set of already downloaded stories from the storage directory
// - Diff a target's live stories against that set and download only new ones
// - Group the new downloads into one delivery batch per target
package archive

import (
	"path/filepath"
	"strconv"
)

// MediaKind identifies how a content item is delivered.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// ContentItem is one downloaded story on local storage.
type ContentItem struct {
	LocalPath string `json:"local_path"`
}

// Kind infers the media kind from the file extension: ".jpg" is a photo,
// anything else is a video.
func (c ContentItem) Kind() MediaKind {
	if filepath.Ext(c.LocalPath) == ".jpg" {
		return MediaPhoto
	}
	return MediaVideo
}

// Target is one account from the target registry.
type Target struct {
	ID   int64  `mapstructure:"id" json:"id" yaml:"id"`
	Name string `mapstructure:"name" json:"name" yaml:"name"`
}

// Credentials authenticate against the remote platform.
type Credentials struct {
	Username string
	Password string // #nosec G117 -- account password read from config, never logged
}

// RemoteItem describes one live story as listed by the remote platform.
type RemoteItem struct {
	ID           string
	Kind         MediaKind
	ThumbnailURL string
	VideoURL     string
}

// SourceURL returns the resource to download for the item's media kind.
func (r RemoteItem) SourceURL() string {
	if r.Kind == MediaPhoto {
		return r.ThumbnailURL
	}
	return r.VideoURL
}

// Batch groups the items downloaded for one target during one cycle.
type Batch struct {
	SourceID   int64
	SourceName string
	Items      []ContentItem

	// FailedIDs lists identifiers whose download failed this cycle.
	FailedIDs []string
	// FetchErr is set when the target's stories could not be listed.
	FetchErr error
}

// ItemID returns the identifier of a remote story: "{sourceID}_{remoteID}".
// It doubles as the filename stem in storage.
func ItemID(sourceID int64, remoteID string) string {
	return strconv.FormatInt(sourceID, 10) + "_" + remoteID
}
