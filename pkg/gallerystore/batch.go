package gallerystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Maidang1/lumina-store/pkg/gallerystore/objectpath"
)

// FinalizeBatch commits the metadata records of previously uploaded images
// plus the rebuilt index as a single commit on the configured branch:
//
//	resolve head -> resolve base tree -> create blobs -> create tree
//	-> create commit -> update ref
//
// If the ref update is rejected because the branch moved concurrently, the
// whole sequence restarts from the head resolution, up to the configured
// attempt bound. A client reading the index therefore never observes an
// entry whose metadata file does not exist. Objects created by abandoned
// attempts stay unreferenced; they are not cleaned up here because a retry
// may still need them and the backing service garbage-collects them anyway.
func (s *service) FinalizeBatch(ctx context.Context, records []*AssetRecord) error {
	if len(records) == 0 {
		return nil
	}
	if s.gitdb == nil {
		return fmt.Errorf("finalize batch: git database backend is not configured")
	}

	files, err := s.batchFiles(ctx, records)
	if err != nil {
		return err
	}

	message := fmt.Sprintf("gallery: finalize %d image(s) [batch %s]",
		len(records), uuid.NewString()[:8])

	var lastErr error
	for attempt := 1; attempt <= s.batchAttempts; attempt++ {
		err := s.commitFiles(ctx, files, message)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrRefConflict) {
			return err
		}
		lastErr = err
		if attempt < s.batchAttempts {
			delay := s.batchBackoff * time.Duration(attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrBatchExhausted, s.batchAttempts, lastErr)
}

// batchFiles prepares the (path, content) set of one batch: every metadata
// record plus the index document rebuilt over the current one.
func (s *service) batchFiles(ctx context.Context, records []*AssetRecord) (map[string][]byte, error) {
	files := make(map[string][]byte, len(records)+1)
	metaPaths := make(map[string]string, len(records))

	for _, rec := range records {
		paths, err := objectpath.DeriveRaw(rec.ImageID)
		if err != nil {
			return nil, &ImageError{ImageID: rec.ImageID, Op: "finalize", Err: err}
		}
		if rec.Timestamps.CreatedAt.IsZero() {
			rec.Timestamps.CreatedAt = s.now()
		}
		populatePaths(rec, paths)
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, &ImageError{ImageID: rec.ImageID, Op: "finalize", Err: fmt.Errorf("encode metadata: %w", err)}
		}
		files[paths.Meta] = data
		metaPaths[rec.ImageID] = paths.Meta
	}
	if len(files) != len(records) {
		return nil, fmt.Errorf("finalize batch: duplicate image ids in batch")
	}

	existing, err := s.readIndex(ctx)
	if err != nil {
		return nil, err
	}
	next := buildNextIndex(existing, records, metaPaths, s.now())
	data, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("encode index document: %w", err)
	}
	files[IndexPath] = data

	return files, nil
}

// commitFiles runs one pass of the commit state machine.
func (s *service) commitFiles(ctx context.Context, files map[string][]byte, message string) error {
	head, err := s.gitdb.GetBranchHead(ctx, s.branch)
	if err != nil {
		return err
	}
	baseTree, err := s.gitdb.GetCommitTree(ctx, head)
	if err != nil {
		return err
	}

	// Deterministic blob order keeps retries and tests reproducible.
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	entries := make([]TreeEntry, 0, len(paths))
	for _, p := range paths {
		blobSHA, err := s.gitdb.CreateBlob(ctx, files[p])
		if err != nil {
			return err
		}
		entries = append(entries, TreeEntry{
			Path: p,
			Mode: FileModeBlob,
			Type: "blob",
			SHA:  blobSHA,
		})
	}

	treeSHA, err := s.gitdb.CreateTree(ctx, baseTree, entries)
	if err != nil {
		return err
	}
	commitSHA, err := s.gitdb.CreateCommit(ctx, message, treeSHA, []string{head})
	if err != nil {
		return err
	}
	return s.gitdb.UpdateBranchHead(ctx, s.branch, commitSHA)
}
