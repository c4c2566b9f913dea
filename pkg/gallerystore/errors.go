package gallerystore

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrImageNotFound indicates no metadata record exists for an image id.
	ErrImageNotFound = errors.New("image not found")

	// ErrFileNotFound indicates a remote file is absent. This is an expected
	// condition: callers branch on it to decide create-vs-update and to skip
	// already-deleted files.
	ErrFileNotFound = errors.New("remote file not found")

	// ErrRemoteConflict indicates a single-file write was rejected because
	// the file changed after its content hash was read. Single-file writes
	// are not retried on this; the conflict surfaces to the caller.
	ErrRemoteConflict = errors.New("remote content conflict")

	// ErrRefConflict indicates the branch tip moved while a batch commit was
	// being assembled. The batch protocol retries on this internally.
	ErrRefConflict = errors.New("branch ref moved concurrently")

	// ErrMalformedCursor indicates a pagination cursor that does not decode.
	ErrMalformedCursor = errors.New("malformed pagination cursor")

	// ErrBatchExhausted indicates a batch commit gave up after repeated ref
	// conflicts; none of its files are referenced by the branch.
	ErrBatchExhausted = errors.New("batch commit attempts exhausted")
)

// ImageError wraps a failure of one lifecycle operation on one image.
type ImageError struct {
	ImageID string
	Op      string
	Err     error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("image operation %s failed for %s: %v", e.Op, e.ImageID, e.Err)
}

func (e *ImageError) Unwrap() error {
	return e.Err
}

// RemoteError wraps a failure of one remote call, keeping the path and HTTP
// status for diagnosis. Status is zero for network-level failures.
type RemoteError struct {
	Path   string
	Op     string
	Status int
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote %s %s: status %d: %v", e.Op, e.Path, e.Status, e.Err)
	}
	return fmt.Sprintf("remote %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
