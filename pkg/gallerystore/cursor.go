package gallerystore

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// cursor marks the last item of a page. Pagination resumes strictly after it
// under the (created_at desc, image_id desc) ordering.
type cursor struct {
	CreatedAt time.Time `json:"created_at"`
	ImageID   string    `json:"image_id"`
}

func encodeCursor(e IndexEntry) string {
	data, _ := json.Marshal(cursor{CreatedAt: e.CreatedAt, ImageID: e.ImageID})
	return base64.RawURLEncoding.EncodeToString(data)
}

// decodeCursor returns nil for an empty cursor (first page).
func decodeCursor(raw string) (*cursor, error) {
	if raw == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCursor, err)
	}
	var c cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCursor, err)
	}
	if c.ImageID == "" || c.CreatedAt.IsZero() {
		return nil, fmt.Errorf("%w: missing fields", ErrMalformedCursor)
	}
	return &c, nil
}

// afterCursor reports whether e comes strictly after c in descending order:
// an older timestamp, or the same timestamp with a lexicographically smaller
// identifier. The identifier tie-break matters because multiple records can
// share a creation timestamp.
func afterCursor(e IndexEntry, c *cursor) bool {
	if c == nil {
		return true
	}
	if e.CreatedAt.Before(c.CreatedAt) {
		return true
	}
	if e.CreatedAt.Equal(c.CreatedAt) {
		return e.ImageID < c.ImageID
	}
	return false
}
