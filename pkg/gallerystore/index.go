package gallerystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// entryLess orders index entries by (created_at desc, image_id desc).
func entryLess(a, b IndexEntry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ImageID > b.ImageID
}

func sortEntries(items []IndexEntry) {
	sort.SliceStable(items, func(i, j int) bool {
		return entryLess(items[i], items[j])
	})
}

// decodeIndex parses an index document, dropping malformed rows instead of
// failing the whole read. Index corruption degrades listing, it does not
// block it.
func decodeIndex(data []byte) (*IndexDocument, error) {
	var raw struct {
		Version   string            `json:"version"`
		UpdatedAt time.Time         `json:"updated_at"`
		Items     []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode index document: %w", err)
	}

	doc := &IndexDocument{
		Version:   raw.Version,
		UpdatedAt: raw.UpdatedAt,
		Items:     make([]IndexEntry, 0, len(raw.Items)),
	}
	for _, item := range raw.Items {
		var e IndexEntry
		if err := json.Unmarshal(item, &e); err != nil {
			continue
		}
		if e.ImageID == "" || e.CreatedAt.IsZero() || e.MetaPath == "" {
			continue
		}
		doc.Items = append(doc.Items, e)
	}
	return doc, nil
}

// readIndex fetches the current index. A missing index file is nil, not an
// error: the index is created lazily on first write.
func (s *service) readIndex(ctx context.Context) (*IndexDocument, error) {
	file, err := s.remote.Get(ctx, IndexPath)
	if errors.Is(err, ErrFileNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeIndex(file.Content)
}

// mergeEntries unions existing entries with updates keyed by image id
// (last-write-wins), drops removed ids, and re-sorts. The result is always a
// full rebuild; the index is never appended to in place.
func mergeEntries(existing []IndexEntry, updates []IndexEntry, removed map[string]bool) []IndexEntry {
	merged := make(map[string]IndexEntry, len(existing)+len(updates))
	for _, e := range existing {
		merged[e.ImageID] = e
	}
	for _, e := range updates {
		merged[e.ImageID] = e
	}
	items := make([]IndexEntry, 0, len(merged))
	for id, e := range merged {
		if removed[id] {
			continue
		}
		items = append(items, e)
	}
	sortEntries(items)
	return items
}

func indexEntryFor(rec *AssetRecord, metaPath string) IndexEntry {
	return IndexEntry{
		ImageID:   rec.ImageID,
		CreatedAt: rec.Timestamps.CreatedAt,
		MetaPath:  metaPath,
	}
}

// buildNextIndex is the batch-finalize variant of the merge: it unions the
// existing document with the new records and returns the rebuilt document,
// which the caller commits as one of the files of an atomic batch.
func buildNextIndex(existing *IndexDocument, records []*AssetRecord, metaPaths map[string]string, now time.Time) *IndexDocument {
	var base []IndexEntry
	if existing != nil {
		base = existing.Items
	}
	updates := make([]IndexEntry, 0, len(records))
	for _, rec := range records {
		updates = append(updates, IndexEntry{
			ImageID:   rec.ImageID,
			CreatedAt: rec.Timestamps.CreatedAt,
			MetaPath:  metaPaths[rec.ImageID],
		})
	}
	return &IndexDocument{
		Version:   IndexVersion,
		UpdatedAt: now,
		Items:     mergeEntries(base, updates, nil),
	}
}

func (s *service) writeIndex(ctx context.Context, doc *IndexDocument, message string) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode index document: %w", err)
	}
	return s.remote.Put(ctx, IndexPath, data, message)
}

// upsertIndexEntry merges one entry into the index and persists the rebuilt
// document.
func (s *service) upsertIndexEntry(ctx context.Context, entry IndexEntry) error {
	existing, err := s.readIndex(ctx)
	if err != nil {
		return err
	}
	var base []IndexEntry
	if existing != nil {
		base = existing.Items
	}
	doc := &IndexDocument{
		Version:   IndexVersion,
		UpdatedAt: s.now(),
		Items:     mergeEntries(base, []IndexEntry{entry}, nil),
	}
	return s.writeIndex(ctx, doc, fmt.Sprintf("gallery: index %s", entry.ImageID))
}

// removeIndexEntry drops one id from the index. Removing an absent id is a
// no-op with no write, which keeps repeated deletes idempotent.
func (s *service) removeIndexEntry(ctx context.Context, imageID string) (bool, error) {
	existing, err := s.readIndex(ctx)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	present := false
	for _, e := range existing.Items {
		if e.ImageID == imageID {
			present = true
			break
		}
	}
	if !present {
		return false, nil
	}
	doc := &IndexDocument{
		Version:   IndexVersion,
		UpdatedAt: s.now(),
		Items:     mergeEntries(existing.Items, nil, map[string]bool{imageID: true}),
	}
	if err := s.writeIndex(ctx, doc, fmt.Sprintf("gallery: remove %s from index", imageID)); err != nil {
		return false, err
	}
	return true, nil
}
