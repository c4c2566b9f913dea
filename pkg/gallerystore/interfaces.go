package gallerystore

import (
	"context"
)

// RemoteFile is the ephemeral handle returned by RemoteFS.Get. SHA is the
// file's current content hash and doubles as the optimistic-concurrency token
// for the next mutation; it is fetched immediately before a write and never
// cached across operations.
type RemoteFile struct {
	Path        string
	SHA         string
	Content     []byte
	DownloadURL string
}

// RemoteEntry is one child of a remote directory listing.
type RemoteEntry struct {
	Name string
	Path string
	Type string // "file" or "dir"
	SHA  string
	Size int64
}

// RemoteFS defines the single-file primitives of the backing service.
type RemoteFS interface {
	// Get fetches one file with its current content hash. A missing file is
	// reported as ErrFileNotFound so callers can branch on existence.
	Get(ctx context.Context, path string) (*RemoteFile, error)

	// Put writes one file as a compare-and-swap: the implementation fetches
	// the current content hash first (absence means a new file is created)
	// and submits the write tagged with it. If the file changed in between,
	// Put fails with ErrRemoteConflict and is NOT retried; a concurrent
	// writer to the same path can win the race. The batch commit protocol is
	// the safe path for cross-process writes.
	Put(ctx context.Context, path string, content []byte, message string) error

	// Delete removes one file, fetching its current content hash first.
	// A missing file fails with ErrFileNotFound.
	Delete(ctx context.Context, path string, message string) error

	// List returns the children of a directory. A missing directory yields
	// an empty slice, not an error: "no objects yet" is a normal state.
	List(ctx context.Context, path string) ([]RemoteEntry, error)
}

// TreeEntry is one (path, blob) pair added to a tree by the batch protocol.
type TreeEntry struct {
	Path string
	Mode string
	Type string
	SHA  string
}

// FileModeBlob is the tree mode for a regular file.
const FileModeBlob = "100644"

// GitDatabase defines the low-level object primitives used by the atomic
// batch commit protocol. Created blobs, trees and commits are unreferenced
// until UpdateBranchHead succeeds; abandoned ones are left for the backing
// service to garbage-collect.
type GitDatabase interface {
	// GetBranchHead returns the commit SHA the branch currently points at.
	GetBranchHead(ctx context.Context, branch string) (string, error)

	// GetCommitTree returns the tree SHA of a commit.
	GetCommitTree(ctx context.Context, commitSHA string) (string, error)

	// CreateBlob stores content as a blob and returns its SHA.
	CreateBlob(ctx context.Context, content []byte) (string, error)

	// CreateTree creates a tree on top of baseTreeSHA with the given entries.
	CreateTree(ctx context.Context, baseTreeSHA string, entries []TreeEntry) (string, error)

	// CreateCommit creates a commit pointing at treeSHA with the given parents.
	CreateCommit(ctx context.Context, message, treeSHA string, parentSHAs []string) (string, error)

	// UpdateBranchHead moves the branch to commitSHA without forcing. If the
	// branch moved since GetBranchHead, it fails with ErrRefConflict.
	UpdateBranchHead(ctx context.Context, branch, commitSHA string) error
}
