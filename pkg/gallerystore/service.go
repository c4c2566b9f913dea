package gallerystore

import (
	"context"
)

// Service is the persistence layer of the gallery: a content-addressable
// object store with atomic multi-file commits and a denormalized pagination
// index, built on the single-file and git-object primitives of a remote
// content-hosting API.
type Service interface {
	// Upload writes the asset files of one image and, unless deferred,
	// finalizes it (metadata record + index entry). Returns the record with
	// all path fields populated.
	Upload(ctx context.Context, req UploadRequest) (*AssetRecord, error)

	// FinalizeBatch commits the metadata records of previously uploaded
	// images plus the rebuilt index as one atomic commit: either all of them
	// become visible or none do.
	FinalizeBatch(ctx context.Context, records []*AssetRecord) error

	// GetMetadata fetches the metadata record of one image.
	GetMetadata(ctx context.Context, imageID string) (*AssetRecord, error)

	// UpdateMetadata applies a partial update to the mutable metadata fields.
	UpdateMetadata(ctx context.Context, req UpdateMetadataRequest) (*AssetRecord, error)

	// List returns one reverse-chronological page of index entries.
	List(ctx context.Context, req ListRequest) (*ListResult, error)

	// Delete removes every known file of an image and its index entry.
	// Deletion is best-effort per file: already-missing files are skipped and
	// the report lists what was actually removed.
	Delete(ctx context.Context, imageID string) (*DeleteResult, error)
}
