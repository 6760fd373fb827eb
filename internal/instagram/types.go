// Package instagram provides a client for the Instagram private mobile API.
//
// This package enables storyarchive to:
// - Log in with a username and password from a persisted device identity
// - List a user's live stories
// - Download story media into a local directory
package instagram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Media types reported by the API.
const (
	MediaTypePhoto = 1
	MediaTypeVideo = 2
)

// Story is one live story item.
type Story struct {
	PK           string `json:"pk"`
	MediaType    int    `json:"media_type"`
	ThumbnailURL string `json:"thumbnail_url"`
	VideoURL     string `json:"video_url,omitempty"`
	TakenAt      int64  `json:"taken_at"`
}

// IsPhoto reports whether the story is a still image.
func (s Story) IsPhoto() bool {
	return s.MediaType == MediaTypePhoto
}

// User is the account a session is logged in as.
type User struct {
	PK       string `json:"pk"`
	Username string `json:"username"`
}

// flexibleID accepts identifiers encoded either as JSON numbers or strings.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	if _, err := strconv.ParseUint(n.String(), 10, 64); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*f = flexibleID(n.String())
	return nil
}
