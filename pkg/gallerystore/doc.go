// Package gallerystore provides a persistence layer for a personal media
// gallery backed by a Git hosting provider's REST API.
//
// It exposes a single Service interface that orchestrates asset uploads
// (original, thumbnail, optional live video), metadata records, deletion,
// and a denormalized pagination index. Assets are addressed by their content
// hash and laid out under a sharded objects/ tree so that one image's files
// always live in the same directory. Remote backends (GitHub, memory) are
// provided under subpackages.
//
// Write Semantics
//
// Single-file writes go through the contents endpoint with the current blob
// SHA as a compare-and-swap token; multi-file batch finalization goes through
// the git database endpoints (blobs, trees, commits, refs) so that many
// metadata files and the rebuilt index become visible in one atomic ref
// update. All mutating calls share one client-side rate gate, and transient
// failures are retried with exponential backoff.
package gallerystore
