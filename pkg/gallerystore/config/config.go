// Package config assembles a gallerystore from declarative settings. It
// validates the repository coordinates and credential before any network
// call is made, so misconfiguration fails at construction time.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/Maidang1/lumina-store/pkg/gallerystore"
	githubstorage "github.com/Maidang1/lumina-store/pkg/gallerystore/storage/github"
	memorystorage "github.com/Maidang1/lumina-store/pkg/gallerystore/storage/memory"
)

// Option applies configuration to a StoreConfig instance.
type Option func(*StoreConfig) error

// StoreConfig describes one gallery store.
type StoreConfig struct {
	// Backend selects the remote: "github" or "memory" (development/tests).
	Backend string

	Owner  string
	Repo   string
	Branch string
	Token  string

	BaseURL        string
	CommitterName  string
	CommitterEmail string

	MaxRetries       int
	RetryBaseDelay   time.Duration
	MinWriteInterval time.Duration
	BatchAttempts    int
}

func defaults() StoreConfig {
	return StoreConfig{
		Backend:          "github",
		Branch:           "main",
		MaxRetries:       4,
		RetryBaseDelay:   500 * time.Millisecond,
		MinWriteInterval: time.Second,
		BatchAttempts:    3,
	}
}

// Load constructs a StoreConfig by applying the supplied options on top of
// defaults.
func Load(opts ...Option) (*StoreConfig, error) {
	cfg := defaults()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fails fast on anything that would make every remote call fail.
func (c *StoreConfig) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "github":
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Owner == "" {
		return errors.New("owner is required")
	}
	if c.Repo == "" {
		return errors.New("repo is required")
	}
	if c.Token == "" {
		return errors.New("token is required")
	}
	if c.Branch == "" {
		return errors.New("branch is required")
	}
	return nil
}

// WithRepository sets the repository coordinates.
func WithRepository(owner, repo, branch string) Option {
	return func(c *StoreConfig) error {
		c.Owner = owner
		c.Repo = repo
		if branch != "" {
			c.Branch = branch
		}
		return nil
	}
}

// WithToken sets the bearer credential.
func WithToken(token string) Option {
	return func(c *StoreConfig) error {
		c.Token = token
		return nil
	}
}

// WithBackend selects the remote implementation.
func WithBackend(backend string) Option {
	return func(c *StoreConfig) error {
		c.Backend = backend
		return nil
	}
}

// WithCommitter sets the commit author identity.
func WithCommitter(name, email string) Option {
	return func(c *StoreConfig) error {
		c.CommitterName = name
		c.CommitterEmail = email
		return nil
	}
}

// WithWritePacing tunes the retry policy and the global write gate.
func WithWritePacing(maxRetries int, retryBase, minInterval time.Duration) Option {
	return func(c *StoreConfig) error {
		if maxRetries > 0 {
			c.MaxRetries = maxRetries
		}
		if retryBase > 0 {
			c.RetryBaseDelay = retryBase
		}
		if minInterval > 0 {
			c.MinWriteInterval = minInterval
		}
		return nil
	}
}

// BuildStore constructs the configured backend and the store on top of it.
func (c *StoreConfig) BuildStore() (gallerystore.Service, error) {
	switch c.Backend {
	case "memory":
		remote := memorystorage.New(c.Branch)
		return gallerystore.New(
			gallerystore.WithRemote(remote),
			gallerystore.WithGitDatabase(remote),
			gallerystore.WithBranch(c.Branch),
			gallerystore.WithBatchAttempts(c.BatchAttempts),
		)
	case "github":
		client, err := githubstorage.New(githubstorage.Config{
			Owner:            c.Owner,
			Repo:             c.Repo,
			Branch:           c.Branch,
			Token:            c.Token,
			BaseURL:          c.BaseURL,
			CommitterName:    c.CommitterName,
			CommitterEmail:   c.CommitterEmail,
			MaxRetries:       c.MaxRetries,
			RetryBaseDelay:   c.RetryBaseDelay,
			MinWriteInterval: c.MinWriteInterval,
		})
		if err != nil {
			return nil, err
		}
		return gallerystore.New(
			gallerystore.WithRemote(client),
			gallerystore.WithGitDatabase(client),
			gallerystore.WithBranch(c.Branch),
			gallerystore.WithBatchAttempts(c.BatchAttempts),
		)
	default:
		return nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
}
