package gallerystore

import (
	"encoding/json"
	"time"
)

// IndexVersion is the schema version written into every index document.
const IndexVersion = "1"

// IndexPath is the repository path of the pagination index.
const IndexPath = "objects/_index/images.json"

// FileRef describes one stored file of an asset group. Path is always
// populated by the store from the derived layout; callers may leave it empty
// or supply a placeholder, which is overwritten at write time.
type FileRef struct {
	Path  string `json:"path"`
	Mime  string `json:"mime"`
	Bytes int64  `json:"bytes"`

	// Pixel dimensions, recorded for the thumbnail only.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// AssetFiles groups the file descriptors of one asset group.
type AssetFiles struct {
	Original  FileRef  `json:"original"`
	Thumb     FileRef  `json:"thumb"`
	LiveVideo *FileRef `json:"live_video,omitempty"`
}

// Timestamps records when the asset was created and, optionally, when the
// client-side analysis pipeline finished processing it.
type Timestamps struct {
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// Geo holds the resolved geographic region, if any.
type Geo struct {
	Region string `json:"region,omitempty"`
}

// Processing carries the analysis pipeline's stage timing summary. The store
// treats it as opaque payload.
type Processing struct {
	Summary json.RawMessage `json:"summary,omitempty"`
}

// Privacy records what the analysis pipeline did about location data.
type Privacy struct {
	OriginalContainsGPS bool `json:"original_contains_gps"`
	EXIFGPSRemoved      bool `json:"exif_gps_removed"`
}

// AssetRecord is the metadata document persisted as meta.json inside an
// object directory.
//
// ImageID is the content identifier ("algo:hexdigest") assigned by the
// client-side hashing step; it is never recomputed or reused. The derived.*
// fields are produced by the external analysis pipeline and stored verbatim.
// Description, FileName and Category remain mutable after creation.
type AssetRecord struct {
	ImageID     string `json:"image_id"`
	FileName    string `json:"file_name,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`

	Timestamps Timestamps  `json:"timestamps"`
	Files      AssetFiles  `json:"files"`
	Geo        *Geo        `json:"geo,omitempty"`
	Processing *Processing `json:"processing,omitempty"`
	Privacy    Privacy     `json:"privacy"`

	// Derived analysis output (dominant color, blur score, perceptual hash,
	// OCR, EXIF summary, ...), keyed by analyzer name. Opaque to the store.
	Derived map[string]json.RawMessage `json:"derived,omitempty"`
}

// IndexEntry is the denormalized projection of an AssetRecord kept in the
// pagination index.
type IndexEntry struct {
	ImageID   string    `json:"image_id"`
	CreatedAt time.Time `json:"created_at"`
	MetaPath  string    `json:"meta_path"`
}

// IndexDocument is the single pagination structure. Items are kept strictly
// sorted by (created_at desc, image_id desc) with at most one entry per
// identifier; every mutation rebuilds the whole document.
type IndexDocument struct {
	Version   string       `json:"version"`
	UpdatedAt time.Time    `json:"updated_at"`
	Items     []IndexEntry `json:"items"`
}
