package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Maidang1/lumina-store/pkg/gallerystore"
)

// Git-data endpoints used by the atomic batch commit protocol. Creating
// blobs, trees and commits only adds unreferenced objects, so these calls
// are not individually gated; only the ref update mutates visible state and
// one batch costs a single ref write regardless of file count.

func (c *Client) gitURL(format string, args ...any) string {
	return fmt.Sprintf("%s/repos/%s/%s/git/", c.base, c.cfg.Owner, c.cfg.Repo) +
		fmt.Sprintf(format, args...)
}

// GetBranchHead resolves the branch tip commit.
func (c *Client) GetBranchHead(ctx context.Context, branch string) (string, error) {
	u := c.gitURL("ref/heads/%s", branch)
	status, body, err := c.doJSON(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", &gallerystore.RemoteError{Path: branch, Op: "get-ref", Err: err}
	}
	if status < 200 || status >= 300 {
		return "", &gallerystore.RemoteError{Path: branch, Op: "get-ref", Status: status, Err: errors.New(snippet(body))}
	}
	var resp struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &gallerystore.RemoteError{Path: branch, Op: "get-ref", Err: fmt.Errorf("decode response: %w", err)}
	}
	return resp.Object.SHA, nil
}

// GetCommitTree resolves the tree of a commit.
func (c *Client) GetCommitTree(ctx context.Context, commitSHA string) (string, error) {
	u := c.gitURL("commits/%s", commitSHA)
	status, body, err := c.doJSON(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", &gallerystore.RemoteError{Path: commitSHA, Op: "get-commit", Err: err}
	}
	if status < 200 || status >= 300 {
		return "", &gallerystore.RemoteError{Path: commitSHA, Op: "get-commit", Status: status, Err: errors.New(snippet(body))}
	}
	var resp struct {
		Tree struct {
			SHA string `json:"sha"`
		} `json:"tree"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &gallerystore.RemoteError{Path: commitSHA, Op: "get-commit", Err: fmt.Errorf("decode response: %w", err)}
	}
	return resp.Tree.SHA, nil
}

// CreateBlob uploads one file content as a blob.
func (c *Client) CreateBlob(ctx context.Context, content []byte) (string, error) {
	payload := map[string]string{
		"content":  base64.StdEncoding.EncodeToString(content),
		"encoding": "base64",
	}
	status, body, err := c.doJSON(ctx, http.MethodPost, c.gitURL("blobs"), payload)
	if err != nil {
		return "", &gallerystore.RemoteError{Op: "create-blob", Err: err}
	}
	if status < 200 || status >= 300 {
		return "", &gallerystore.RemoteError{Op: "create-blob", Status: status, Err: errors.New(snippet(body))}
	}
	return decodeSHA(body, "create-blob")
}

type treePayload struct {
	BaseTree string          `json:"base_tree,omitempty"`
	Tree     []treeEntryJSON `json:"tree"`
}

type treeEntryJSON struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
}

// CreateTree builds a tree on top of the base tree.
func (c *Client) CreateTree(ctx context.Context, baseTreeSHA string, entries []gallerystore.TreeEntry) (string, error) {
	payload := treePayload{BaseTree: baseTreeSHA}
	for _, e := range entries {
		payload.Tree = append(payload.Tree, treeEntryJSON(e))
	}
	status, body, err := c.doJSON(ctx, http.MethodPost, c.gitURL("trees"), payload)
	if err != nil {
		return "", &gallerystore.RemoteError{Op: "create-tree", Err: err}
	}
	if status < 200 || status >= 300 {
		return "", &gallerystore.RemoteError{Op: "create-tree", Status: status, Err: errors.New(snippet(body))}
	}
	return decodeSHA(body, "create-tree")
}

type commitPayload struct {
	Message string     `json:"message"`
	Tree    string     `json:"tree"`
	Parents []string   `json:"parents"`
	Author  *committer `json:"author,omitempty"`
}

// CreateCommit creates a commit object.
func (c *Client) CreateCommit(ctx context.Context, message, treeSHA string, parentSHAs []string) (string, error) {
	payload := commitPayload{
		Message: message,
		Tree:    treeSHA,
		Parents: parentSHAs,
		Author:  c.committer(),
	}
	status, body, err := c.doJSON(ctx, http.MethodPost, c.gitURL("commits"), payload)
	if err != nil {
		return "", &gallerystore.RemoteError{Op: "create-commit", Err: err}
	}
	if status < 200 || status >= 300 {
		return "", &gallerystore.RemoteError{Op: "create-commit", Status: status, Err: errors.New(snippet(body))}
	}
	return decodeSHA(body, "create-commit")
}

// UpdateBranchHead moves the branch ref, non-force. A 409/422 answer means
// the branch tip moved since it was resolved.
func (c *Client) UpdateBranchHead(ctx context.Context, branch, commitSHA string) error {
	payload := map[string]any{
		"sha":   commitSHA,
		"force": false,
	}
	if err := c.gate.wait(ctx); err != nil {
		return err
	}
	status, body, err := c.doJSON(ctx, http.MethodPatch, c.gitURL("refs/heads/%s", branch), payload)
	if err != nil {
		return &gallerystore.RemoteError{Path: branch, Op: "update-ref", Err: err}
	}
	if status == http.StatusConflict || status == http.StatusUnprocessableEntity {
		return fmt.Errorf("update ref %s: %w", branch, gallerystore.ErrRefConflict)
	}
	if status < 200 || status >= 300 {
		return &gallerystore.RemoteError{Path: branch, Op: "update-ref", Status: status, Err: errors.New(snippet(body))}
	}
	return nil
}

func decodeSHA(body []byte, op string) (string, error) {
	var resp struct {
		SHA string `json:"sha"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &gallerystore.RemoteError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if resp.SHA == "" {
		return "", &gallerystore.RemoteError{Op: op, Err: errors.New("response missing sha")}
	}
	return resp.SHA, nil
}
