// Package objectpath derives the sharded repository layout for an image's
// asset group from its content identifier.
//
// Every asset group lives under a two-level shard directory taken from the
// first four hex characters of the digest:
//
//	objects/{hex[0:2]}/{hex[2:4]}/{algo}_{hex}/
//
// with well-known file names (original.<ext>, thumb.webp, live.<ext>,
// meta.json) inside. Derivation is pure: the same identifier always yields
// the same paths.
package objectpath

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedID indicates an input that does not match the strict
// "algo:hexdigest" identifier pattern.
var ErrMalformedID = errors.New("malformed image id")

const (
	objectsRoot = "objects"

	// MetaFileName is the metadata record inside every object directory.
	MetaFileName = "meta.json"

	// ThumbFileName is the thumbnail; thumbnails are always webp.
	ThumbFileName = "thumb.webp"
)

// digestLengths maps a supported digest algorithm to its hex length.
var digestLengths = map[string]int{
	"sha1":   40,
	"sha256": 64,
	"sha512": 128,
}

var idPattern = regexp.MustCompile(`^([a-z0-9]+):([0-9a-f]+)$`)

// ID is a parsed, validated content identifier of the form "algo:hexdigest".
type ID struct {
	Algo   string
	Digest string
}

func (id ID) String() string {
	return id.Algo + ":" + id.Digest
}

// ParseID validates raw against the strict identifier pattern. Only known
// algorithms with their exact digest lengths are accepted; everything else
// is rejected so that no unvalidated input ever reaches path construction.
func ParseID(raw string) (ID, error) {
	m := idPattern.FindStringSubmatch(raw)
	if m == nil {
		return ID{}, fmt.Errorf("%w %q", ErrMalformedID, raw)
	}
	algo, digest := m[1], m[2]
	want, ok := digestLengths[algo]
	if !ok {
		return ID{}, fmt.Errorf("%w %q: unknown algorithm %q", ErrMalformedID, raw, algo)
	}
	if len(digest) != want {
		return ID{}, fmt.Errorf("%w %q: %s digest must be %d hex chars", ErrMalformedID, raw, algo, want)
	}
	return ID{Algo: algo, Digest: digest}, nil
}

// Paths is the derived layout for one asset group.
type Paths struct {
	// Dir is the object directory, without a trailing slash.
	Dir string

	Thumb string
	Meta  string
}

// Derive maps a validated identifier to its object directory and the
// fixed-name files within it.
func Derive(id ID) Paths {
	dir := fmt.Sprintf("%s/%s/%s/%s_%s",
		objectsRoot, id.Digest[0:2], id.Digest[2:4], id.Algo, id.Digest)
	return Paths{
		Dir:   dir,
		Thumb: dir + "/" + ThumbFileName,
		Meta:  dir + "/" + MetaFileName,
	}
}

// DeriveRaw parses raw and derives its layout in one step.
func DeriveRaw(raw string) (Paths, error) {
	id, err := ParseID(raw)
	if err != nil {
		return Paths{}, err
	}
	return Derive(id), nil
}

// Original returns the original-asset path for the given MIME type.
func (p Paths) Original(mime string) string {
	return p.Dir + "/original." + ExtensionFor(mime)
}

// Live returns the companion-video path for the given MIME type.
func (p Paths) Live(mime string) string {
	return p.Dir + "/live." + ExtensionFor(mime)
}

// MetaPath returns the metadata path for raw without deriving the full
// layout; it doubles as the deterministic lookup key for one image.
func MetaPath(raw string) (string, error) {
	p, err := DeriveRaw(raw)
	if err != nil {
		return "", err
	}
	return p.Meta, nil
}

var mimeExtensions = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/webp":      "webp",
	"image/gif":       "gif",
	"image/heic":      "heic",
	"image/heif":      "heif",
	"image/avif":      "avif",
	"image/tiff":      "tif",
	"video/mp4":       "mp4",
	"video/quicktime": "mov",
	"video/webm":      "webm",
}

// ExtensionFor maps a MIME type to a file extension, falling back to "bin"
// for anything unrecognized.
func ExtensionFor(mime string) string {
	if ext, ok := mimeExtensions[strings.ToLower(strings.TrimSpace(mime))]; ok {
		return ext
	}
	return "bin"
}
