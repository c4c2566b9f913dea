package gallerystore

// UploadRequest carries a draft AssetRecord plus the raw asset bytes.
//
// Record must have ImageID and the file MIME types set; path fields are
// populated by the store from the derived layout, overwriting whatever the
// caller supplied. LiveVideo is optional and written only when non-empty.
// DeferFinalize skips the metadata write and index upsert so many uploads
// can later be finalized in one atomic batch commit.
type UploadRequest struct {
	Record    *AssetRecord
	Original  []byte
	Thumb     []byte
	LiveVideo []byte

	DeferFinalize bool
}

// UpdateMetadataRequest is a partial update of the mutable record fields.
// Nil pointers leave the field unchanged. RefreshIndex additionally rewrites
// the image's index entry so listings pick up the new metadata path state.
type UpdateMetadataRequest struct {
	ImageID     string
	Description *string
	FileName    *string
	Category    *string

	RefreshIndex bool
}

// ListRequest asks for one page. Limit must be positive; Cursor is either
// empty (first page) or the NextCursor of the previous page.
type ListRequest struct {
	Limit  int
	Cursor string
}

// ListResult is one page of index entries, newest first. NextCursor is empty
// when no entries remain.
type ListResult struct {
	Items      []IndexEntry `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// DeleteResult reports what a delete actually removed.
type DeleteResult struct {
	ImageID      string   `json:"image_id"`
	RemovedPaths []string `json:"removed_paths"`
	IndexUpdated bool     `json:"index_updated"`
}
