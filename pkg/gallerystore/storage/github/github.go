// Package github implements the gallerystore remote interfaces on top of the
// GitHub REST API: the contents endpoint for single-file reads and
// compare-and-swap writes, and the git-data endpoints (blobs, trees, commits,
// refs) for the atomic batch commit protocol.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Maidang1/lumina-store/pkg/gallerystore"
)

const (
	defaultBaseURL    = "https://api.github.com"
	defaultAPIVersion = "2022-11-28"

	defaultMaxRetries       = 4
	defaultRetryBaseDelay   = 500 * time.Millisecond
	defaultMinWriteInterval = time.Second
)

// Config options for the GitHub backend.
type Config struct {
	Owner  string // repository owner
	Repo   string // repository name
	Branch string // branch holding the gallery (default: main)
	Token  string // bearer credential

	BaseURL string // optional override for GitHub Enterprise

	CommitterName  string // optional commit author identity
	CommitterEmail string

	MaxRetries       int           // transient-failure retry bound (default: 4)
	RetryBaseDelay   time.Duration // backoff base (default: 500ms)
	MinWriteInterval time.Duration // global gate between mutating calls (default: 1s)

	HTTPClient *http.Client // optional custom client
}

// Client talks to one repository. It implements both gallerystore.RemoteFS
// and gallerystore.GitDatabase.
type Client struct {
	cfg  Config
	http *http.Client
	base string

	gate *writeGate

	// sleep is swapped out by tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// New validates the configuration and creates a client. Missing credentials
// or repository coordinates fail here, before any network use.
func New(cfg Config) (*Client, error) {
	if cfg.Owner == "" {
		return nil, errors.New("github: owner is required")
	}
	if cfg.Repo == "" {
		return nil, errors.New("github: repo is required")
	}
	if cfg.Token == "" {
		return nil, errors.New("github: token is required")
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = defaultRetryBaseDelay
	}
	if cfg.MinWriteInterval <= 0 {
		cfg.MinWriteInterval = defaultMinWriteInterval
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		cfg:   cfg,
		http:  httpClient,
		base:  strings.TrimRight(cfg.BaseURL, "/"),
		gate:  newWriteGate(cfg.MinWriteInterval),
		sleep: sleepContext,
	}, nil
}

// Branch returns the configured branch name.
func (c *Client) Branch() string { return c.cfg.Branch }

func (c *Client) contentsURL(path string) string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		c.base, c.cfg.Owner, c.cfg.Repo, escapePath(path))
}

// escapePath escapes each path segment while keeping the separators.
func escapePath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

type contentsResponse struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	SHA         string `json:"sha"`
	Size        int64  `json:"size"`
	Type        string `json:"type"`
	Content     string `json:"content"`
	Encoding    string `json:"encoding"`
	DownloadURL string `json:"download_url"`
}

// Get fetches one file with its blob SHA.
func (c *Client) Get(ctx context.Context, path string) (*gallerystore.RemoteFile, error) {
	u := c.contentsURL(path) + "?ref=" + url.QueryEscape(c.cfg.Branch)
	status, body, err := c.doJSON(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &gallerystore.RemoteError{Path: path, Op: "get", Err: err}
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("get %s: %w", path, gallerystore.ErrFileNotFound)
	}
	if status < 200 || status >= 300 {
		return nil, &gallerystore.RemoteError{Path: path, Op: "get", Status: status, Err: errors.New(snippet(body))}
	}

	var resp contentsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &gallerystore.RemoteError{Path: path, Op: "get", Err: fmt.Errorf("decode response: %w", err)}
	}
	content, err := decodeContent(resp)
	if err != nil {
		return nil, &gallerystore.RemoteError{Path: path, Op: "get", Err: err}
	}
	return &gallerystore.RemoteFile{
		Path:        resp.Path,
		SHA:         resp.SHA,
		Content:     content,
		DownloadURL: resp.DownloadURL,
	}, nil
}

// decodeContent handles the base64 payload of the contents endpoint, which
// arrives with embedded newlines.
func decodeContent(resp contentsResponse) ([]byte, error) {
	if resp.Encoding != "base64" {
		return nil, fmt.Errorf("unexpected content encoding %q", resp.Encoding)
	}
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, resp.Content)
	return base64.StdEncoding.DecodeString(cleaned)
}

type putPayload struct {
	Message   string     `json:"message"`
	Content   string     `json:"content"`
	Branch    string     `json:"branch"`
	SHA       string     `json:"sha,omitempty"`
	Committer *committer `json:"committer,omitempty"`
}

type committer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (c *Client) committer() *committer {
	if c.cfg.CommitterName == "" {
		return nil
	}
	return &committer{Name: c.cfg.CommitterName, Email: c.cfg.CommitterEmail}
}

// Put writes one file. The current blob SHA is fetched once and submitted as
// the expected-state token; a stale token fails with ErrRemoteConflict and is
// not retried here.
func (c *Client) Put(ctx context.Context, path string, content []byte, message string) error {
	var sha string
	current, err := c.Get(ctx, path)
	switch {
	case err == nil:
		sha = current.SHA
	case errors.Is(err, gallerystore.ErrFileNotFound):
		// Creating a new file.
	default:
		return err
	}

	payload := putPayload{
		Message:   message,
		Content:   base64.StdEncoding.EncodeToString(content),
		Branch:    c.cfg.Branch,
		SHA:       sha,
		Committer: c.committer(),
	}

	if err := c.gate.wait(ctx); err != nil {
		return err
	}
	status, body, err := c.doJSON(ctx, http.MethodPut, c.contentsURL(path), payload)
	if err != nil {
		return &gallerystore.RemoteError{Path: path, Op: "put", Err: err}
	}
	if status == http.StatusConflict || status == http.StatusUnprocessableEntity {
		return &gallerystore.RemoteError{Path: path, Op: "put", Status: status, Err: gallerystore.ErrRemoteConflict}
	}
	if status < 200 || status >= 300 {
		return &gallerystore.RemoteError{Path: path, Op: "put", Status: status, Err: errors.New(snippet(body))}
	}
	return nil
}

type deletePayload struct {
	Message   string     `json:"message"`
	SHA       string     `json:"sha"`
	Branch    string     `json:"branch"`
	Committer *committer `json:"committer,omitempty"`
}

// Delete removes one file; the file must exist.
func (c *Client) Delete(ctx context.Context, path string, message string) error {
	current, err := c.Get(ctx, path)
	if err != nil {
		return err
	}

	payload := deletePayload{
		Message:   message,
		SHA:       current.SHA,
		Branch:    c.cfg.Branch,
		Committer: c.committer(),
	}

	if err := c.gate.wait(ctx); err != nil {
		return err
	}
	status, body, err := c.doJSON(ctx, http.MethodDelete, c.contentsURL(path), payload)
	if err != nil {
		return &gallerystore.RemoteError{Path: path, Op: "delete", Err: err}
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("delete %s: %w", path, gallerystore.ErrFileNotFound)
	}
	if status == http.StatusConflict || status == http.StatusUnprocessableEntity {
		return &gallerystore.RemoteError{Path: path, Op: "delete", Status: status, Err: gallerystore.ErrRemoteConflict}
	}
	if status < 200 || status >= 300 {
		return &gallerystore.RemoteError{Path: path, Op: "delete", Status: status, Err: errors.New(snippet(body))}
	}
	return nil
}

// List returns the children of a directory; a missing directory is an empty
// listing, never an error.
func (c *Client) List(ctx context.Context, path string) ([]gallerystore.RemoteEntry, error) {
	u := c.contentsURL(path) + "?ref=" + url.QueryEscape(c.cfg.Branch)
	status, body, err := c.doJSON(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &gallerystore.RemoteError{Path: path, Op: "list", Err: err}
	}
	if status == http.StatusNotFound {
		return []gallerystore.RemoteEntry{}, nil
	}
	if status < 200 || status >= 300 {
		return nil, &gallerystore.RemoteError{Path: path, Op: "list", Status: status, Err: errors.New(snippet(body))}
	}

	var entries []contentsResponse
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, &gallerystore.RemoteError{Path: path, Op: "list", Err: fmt.Errorf("decode response: %w", err)}
	}
	out := make([]gallerystore.RemoteEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, gallerystore.RemoteEntry{
			Name: e.Name,
			Path: e.Path,
			Type: e.Type,
			SHA:  e.SHA,
			Size: e.Size,
		})
	}
	return out, nil
}

// snippet truncates an error response body for messages.
func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	if s == "" {
		return "request failed"
	}
	return s
}
