package gallerystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Maidang1/lumina-store/pkg/gallerystore/objectpath"
)

const defaultBatchAttempts = 3

// service implements the Service interface.
type service struct {
	remote        RemoteFS
	gitdb         GitDatabase
	branch        string
	batchAttempts int
	batchBackoff  time.Duration
	now           func() time.Time
}

// Option represents a functional option for configuring the service.
type Option func(*service)

// WithRemote sets the single-file remote backend. Required.
func WithRemote(remote RemoteFS) Option {
	return func(s *service) {
		s.remote = remote
	}
}

// WithGitDatabase sets the git-object backend used by FinalizeBatch.
// Optional; without it batch finalization is unavailable.
func WithGitDatabase(db GitDatabase) Option {
	return func(s *service) {
		s.gitdb = db
	}
}

// WithBranch sets the branch batch commits are anchored to.
func WithBranch(branch string) Option {
	return func(s *service) {
		s.branch = branch
	}
}

// WithBatchAttempts bounds how often a batch commit restarts after a ref
// conflict.
func WithBatchAttempts(n int) Option {
	return func(s *service) {
		if n > 0 {
			s.batchAttempts = n
		}
	}
}

// WithBatchBackoff sets the delay between batch commit attempts.
func WithBatchBackoff(d time.Duration) Option {
	return func(s *service) {
		if d > 0 {
			s.batchBackoff = d
		}
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new store instance with the given options.
func New(options ...Option) (Service, error) {
	s := &service{
		branch:        "main",
		batchAttempts: defaultBatchAttempts,
		batchBackoff:  500 * time.Millisecond,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(s)
	}
	if s.remote == nil {
		return nil, fmt.Errorf("remote backend is required")
	}
	return s, nil
}

// Upload writes the asset files sequentially through the rate-gated remote,
// then finalizes (metadata + index) unless the caller deferred that step for
// a later batch commit.
func (s *service) Upload(ctx context.Context, req UploadRequest) (*AssetRecord, error) {
	rec := req.Record
	if rec == nil {
		return nil, fmt.Errorf("upload: record is required")
	}
	if len(req.Original) == 0 || len(req.Thumb) == 0 {
		return nil, &ImageError{ImageID: rec.ImageID, Op: "upload", Err: fmt.Errorf("original and thumb payloads are required")}
	}

	paths, err := objectpath.DeriveRaw(rec.ImageID)
	if err != nil {
		return nil, &ImageError{ImageID: rec.ImageID, Op: "upload", Err: err}
	}

	if rec.Timestamps.CreatedAt.IsZero() {
		rec.Timestamps.CreatedAt = s.now()
	}
	populatePaths(rec, paths)
	rec.Files.Original.Bytes = int64(len(req.Original))
	rec.Files.Thumb.Bytes = int64(len(req.Thumb))

	msg := func(what string) string {
		return fmt.Sprintf("gallery: add %s for %s", what, rec.ImageID)
	}

	if err := s.remote.Put(ctx, rec.Files.Original.Path, req.Original, msg("original")); err != nil {
		return nil, &ImageError{ImageID: rec.ImageID, Op: "upload", Err: err}
	}
	if err := s.remote.Put(ctx, rec.Files.Thumb.Path, req.Thumb, msg("thumb")); err != nil {
		return nil, &ImageError{ImageID: rec.ImageID, Op: "upload", Err: err}
	}
	if rec.Files.LiveVideo != nil && len(req.LiveVideo) > 0 {
		rec.Files.LiveVideo.Bytes = int64(len(req.LiveVideo))
		if err := s.remote.Put(ctx, rec.Files.LiveVideo.Path, req.LiveVideo, msg("live video")); err != nil {
			return nil, &ImageError{ImageID: rec.ImageID, Op: "upload", Err: err}
		}
	}

	if req.DeferFinalize {
		return rec, nil
	}

	if err := s.putMetadata(ctx, rec, paths.Meta, msg("metadata")); err != nil {
		return nil, &ImageError{ImageID: rec.ImageID, Op: "upload", Err: err}
	}
	if err := s.upsertIndexEntry(ctx, indexEntryFor(rec, paths.Meta)); err != nil {
		return nil, &ImageError{ImageID: rec.ImageID, Op: "upload", Err: err}
	}
	return rec, nil
}

// populatePaths fills every file path from the derived layout, overwriting
// caller-supplied placeholders.
func populatePaths(rec *AssetRecord, paths objectpath.Paths) {
	rec.Files.Original.Path = paths.Original(rec.Files.Original.Mime)
	rec.Files.Thumb.Path = paths.Thumb
	if rec.Files.Thumb.Mime == "" {
		rec.Files.Thumb.Mime = "image/webp"
	}
	if rec.Files.LiveVideo != nil {
		rec.Files.LiveVideo.Path = paths.Live(rec.Files.LiveVideo.Mime)
	}
}

func (s *service) putMetadata(ctx context.Context, rec *AssetRecord, metaPath, message string) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return s.remote.Put(ctx, metaPath, data, message)
}

func (s *service) GetMetadata(ctx context.Context, imageID string) (*AssetRecord, error) {
	metaPath, err := objectpath.MetaPath(imageID)
	if err != nil {
		return nil, &ImageError{ImageID: imageID, Op: "get", Err: err}
	}
	file, err := s.remote.Get(ctx, metaPath)
	if errors.Is(err, ErrFileNotFound) {
		return nil, &ImageError{ImageID: imageID, Op: "get", Err: ErrImageNotFound}
	}
	if err != nil {
		return nil, &ImageError{ImageID: imageID, Op: "get", Err: err}
	}
	var rec AssetRecord
	if err := json.Unmarshal(file.Content, &rec); err != nil {
		return nil, &ImageError{ImageID: imageID, Op: "get", Err: fmt.Errorf("decode metadata: %w", err)}
	}
	return &rec, nil
}

// UpdateMetadata read-modify-writes the one metadata file. The read and the
// write are not atomic: a concurrent writer to the same record can win the
// race (see RemoteFS.Put).
func (s *service) UpdateMetadata(ctx context.Context, req UpdateMetadataRequest) (*AssetRecord, error) {
	rec, err := s.GetMetadata(ctx, req.ImageID)
	if err != nil {
		return nil, err
	}
	if req.Description != nil {
		rec.Description = *req.Description
	}
	if req.FileName != nil {
		rec.FileName = *req.FileName
	}
	if req.Category != nil {
		rec.Category = *req.Category
	}

	metaPath, _ := objectpath.MetaPath(req.ImageID)
	message := fmt.Sprintf("gallery: update metadata for %s", req.ImageID)
	if err := s.putMetadata(ctx, rec, metaPath, message); err != nil {
		return nil, &ImageError{ImageID: req.ImageID, Op: "update", Err: err}
	}

	if req.RefreshIndex {
		if err := s.upsertIndexEntry(ctx, indexEntryFor(rec, metaPath)); err != nil {
			return nil, &ImageError{ImageID: req.ImageID, Op: "update", Err: err}
		}
	}
	return rec, nil
}

func (s *service) List(ctx context.Context, req ListRequest) (*ListResult, error) {
	if req.Limit <= 0 {
		return nil, fmt.Errorf("list: limit must be positive")
	}
	cur, err := decodeCursor(req.Cursor)
	if err != nil {
		return nil, err
	}
	doc, err := s.readIndex(ctx)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return &ListResult{Items: []IndexEntry{}}, nil
	}

	remaining := make([]IndexEntry, 0, len(doc.Items))
	for _, e := range doc.Items {
		if afterCursor(e, cur) {
			remaining = append(remaining, e)
		}
	}

	result := &ListResult{}
	if len(remaining) > req.Limit {
		result.Items = remaining[:req.Limit]
		result.NextCursor = encodeCursor(result.Items[len(result.Items)-1])
	} else {
		result.Items = remaining
	}
	return result, nil
}

// Delete removes every known file of the image, preferring the paths recorded
// in its metadata and falling back to the directory listing when the record
// itself is gone. Missing files are skipped so that a partially failed delete
// can be re-run.
func (s *service) Delete(ctx context.Context, imageID string) (*DeleteResult, error) {
	paths, err := objectpath.DeriveRaw(imageID)
	if err != nil {
		return nil, &ImageError{ImageID: imageID, Op: "delete", Err: err}
	}

	var candidates []string
	rec, err := s.GetMetadata(ctx, imageID)
	switch {
	case err == nil:
		candidates = append(candidates, rec.Files.Original.Path, rec.Files.Thumb.Path)
		if rec.Files.LiveVideo != nil && rec.Files.LiveVideo.Path != "" {
			candidates = append(candidates, rec.Files.LiveVideo.Path)
		}
		candidates = append(candidates, paths.Meta)
	case errors.Is(err, ErrImageNotFound):
		// No record: fall back to whatever actually exists in the object dir.
		entries, listErr := s.remote.List(ctx, paths.Dir)
		if listErr != nil {
			return nil, &ImageError{ImageID: imageID, Op: "delete", Err: listErr}
		}
		for _, e := range entries {
			if e.Type == "file" {
				candidates = append(candidates, e.Path)
			}
		}
	default:
		return nil, err
	}

	result := &DeleteResult{ImageID: imageID, RemovedPaths: []string{}}
	message := fmt.Sprintf("gallery: delete %s", imageID)
	for _, p := range candidates {
		if p == "" {
			continue
		}
		err := s.remote.Delete(ctx, p, message)
		if errors.Is(err, ErrFileNotFound) {
			continue
		}
		if err != nil {
			return nil, &ImageError{ImageID: imageID, Op: "delete", Err: err}
		}
		result.RemovedPaths = append(result.RemovedPaths, p)
	}

	updated, err := s.removeIndexEntry(ctx, imageID)
	if err != nil {
		return nil, &ImageError{ImageID: imageID, Op: "delete", Err: err}
	}
	result.IndexUpdated = updated
	return result, nil
}
