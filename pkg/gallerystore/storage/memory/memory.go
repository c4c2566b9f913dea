// Package memory is an in-memory implementation of the gallerystore remote
// interfaces. It simulates both halves of the backing service: the per-file
// contents surface and the git object database, including non-force ref
// updates that fail when the branch tip moved. Tests use it to drive the
// store without a network and to inject ref conflicts.
package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/tidwall/btree"

	"github.com/Maidang1/lumina-store/pkg/gallerystore"
)

type memFile struct {
	sha     string
	content []byte
}

type memCommit struct {
	tree    string
	parents []string
}

// Store is an in-memory remote. Visible files live in a sorted path map;
// git objects are materialized into it only when a ref update succeeds,
// which is what gives batch commits all-or-nothing visibility.
type Store struct {
	mu    sync.Mutex
	files *btree.Map[string, *memFile]

	blobs   map[string][]byte
	trees   map[string]map[string]string // tree sha -> path -> blob sha
	commits map[string]memCommit
	refs    map[string]string

	branch string
	seq    int

	// Test hooks.
	failRefUpdates int
	putCount       int
}

// New creates an empty store with an initial commit on branch.
func New(branch string) *Store {
	if branch == "" {
		branch = "main"
	}
	s := &Store{
		files:   btree.NewMap[string, *memFile](0),
		blobs:   make(map[string][]byte),
		trees:   make(map[string]map[string]string),
		commits: make(map[string]memCommit),
		refs:    make(map[string]string),
		branch:  branch,
	}
	rootTree := s.newSHA("tree")
	s.trees[rootTree] = map[string]string{}
	root := s.newSHA("commit")
	s.commits[root] = memCommit{tree: rootTree}
	s.refs[branch] = root
	return s
}

func (s *Store) newSHA(kind string) string {
	s.seq++
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s-%d", kind, s.seq)))
	return hex.EncodeToString(sum[:20])
}

func contentSHA(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:20])
}

// FailNextRefUpdates makes the next n ref updates fail with a ref conflict.
func (s *Store) FailNextRefUpdates(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefUpdates = n
}

// PutCount reports how many single-file writes the store has accepted.
func (s *Store) PutCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putCount
}

// RemoteFS

func (s *Store) Get(ctx context.Context, path string) (*gallerystore.RemoteFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files.Get(path)
	if !ok {
		return nil, fmt.Errorf("get %s: %w", path, gallerystore.ErrFileNotFound)
	}
	content := make([]byte, len(f.content))
	copy(content, f.content)
	return &gallerystore.RemoteFile{Path: path, SHA: f.sha, Content: content}, nil
}

func (s *Store) Put(ctx context.Context, path string, content []byte, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(content))
	copy(stored, content)
	s.files.Set(path, &memFile{sha: contentSHA(stored), content: stored})
	s.putCount++
	return nil
}

func (s *Store) Delete(ctx context.Context, path string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files.Get(path); !ok {
		return fmt.Errorf("delete %s: %w", path, gallerystore.ErrFileNotFound)
	}
	s.files.Delete(path)
	return nil
}

func (s *Store) List(ctx context.Context, path string) ([]gallerystore.RemoteEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := strings.TrimSuffix(path, "/") + "/"
	entries := []gallerystore.RemoteEntry{}
	seenDirs := map[string]bool{}
	s.files.Scan(func(p string, f *memFile) bool {
		if !strings.HasPrefix(p, prefix) {
			// The map is sorted; stop once past the prefix range.
			return p < prefix
		}
		rest := p[len(prefix):]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			dir := rest[:i]
			if !seenDirs[dir] {
				seenDirs[dir] = true
				entries = append(entries, gallerystore.RemoteEntry{
					Name: dir,
					Path: prefix + dir,
					Type: "dir",
				})
			}
			return true
		}
		entries = append(entries, gallerystore.RemoteEntry{
			Name: rest,
			Path: p,
			Type: "file",
			SHA:  f.sha,
			Size: int64(len(f.content)),
		})
		return true
	})
	return entries, nil
}

// GitDatabase

func (s *Store) GetBranchHead(ctx context.Context, branch string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	head, ok := s.refs[branch]
	if !ok {
		return "", fmt.Errorf("branch %s: %w", branch, gallerystore.ErrFileNotFound)
	}
	return head, nil
}

func (s *Store) GetCommitTree(ctx context.Context, commitSHA string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.commits[commitSHA]
	if !ok {
		return "", fmt.Errorf("commit %s: %w", commitSHA, gallerystore.ErrFileNotFound)
	}
	return c.tree, nil
}

func (s *Store) CreateBlob(ctx context.Context, content []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(content))
	copy(stored, content)
	sha := s.newSHA("blob")
	s.blobs[sha] = stored
	return sha, nil
}

func (s *Store) CreateTree(ctx context.Context, baseTreeSHA string, entries []gallerystore.TreeEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base, ok := s.trees[baseTreeSHA]
	if !ok {
		return "", fmt.Errorf("tree %s: %w", baseTreeSHA, gallerystore.ErrFileNotFound)
	}
	next := make(map[string]string, len(base)+len(entries))
	for p, sha := range base {
		next[p] = sha
	}
	for _, e := range entries {
		if _, ok := s.blobs[e.SHA]; !ok {
			return "", fmt.Errorf("tree entry %s references unknown blob %s", e.Path, e.SHA)
		}
		next[e.Path] = e.SHA
	}
	sha := s.newSHA("tree")
	s.trees[sha] = next
	return sha, nil
}

func (s *Store) CreateCommit(ctx context.Context, message, treeSHA string, parentSHAs []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trees[treeSHA]; !ok {
		return "", fmt.Errorf("tree %s: %w", treeSHA, gallerystore.ErrFileNotFound)
	}
	sha := s.newSHA("commit")
	s.commits[sha] = memCommit{tree: treeSHA, parents: parentSHAs}
	return sha, nil
}

// UpdateBranchHead applies a non-force update: the new commit's first parent
// must be the current head. On success the commit's tree is materialized
// into the visible file map in one step.
func (s *Store) UpdateBranchHead(ctx context.Context, branch, commitSHA string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failRefUpdates > 0 {
		s.failRefUpdates--
		return fmt.Errorf("update ref %s: %w", branch, gallerystore.ErrRefConflict)
	}

	commit, ok := s.commits[commitSHA]
	if !ok {
		return fmt.Errorf("commit %s: %w", commitSHA, gallerystore.ErrFileNotFound)
	}
	head := s.refs[branch]
	if len(commit.parents) == 0 || commit.parents[0] != head {
		return fmt.Errorf("update ref %s: %w", branch, gallerystore.ErrRefConflict)
	}

	s.refs[branch] = commitSHA
	for p, blobSHA := range s.trees[commit.tree] {
		content := s.blobs[blobSHA]
		stored := make([]byte, len(content))
		copy(stored, content)
		s.files.Set(p, &memFile{sha: contentSHA(stored), content: stored})
	}
	return nil
}
