package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// WithEnv applies environment variable overrides using the provided prefix.
//
// Variables (shown without prefix):
//
//	GALLERY_BACKEND            - "github" (default) or "memory"
//	GALLERY_OWNER              - repository owner
//	GALLERY_REPO               - repository name
//	GALLERY_BRANCH             - branch (default: "main")
//	GALLERY_TOKEN              - bearer credential
//	GALLERY_BASE_URL           - API base URL override
//	GALLERY_COMMITTER_NAME     - commit author name
//	GALLERY_COMMITTER_EMAIL    - commit author email
//	GALLERY_MAX_RETRIES        - transient retry bound
//	GALLERY_RETRY_BASE_MS      - backoff base in milliseconds
//	GALLERY_WRITE_INTERVAL_MS  - minimum interval between writes in milliseconds
func WithEnv(prefix string) Option {
	return func(c *StoreConfig) error {
		if v, ok := lookupEnv(prefix, "GALLERY_BACKEND"); ok && v != "" {
			c.Backend = v
		}
		if v, ok := lookupEnv(prefix, "GALLERY_OWNER"); ok && v != "" {
			c.Owner = v
		}
		if v, ok := lookupEnv(prefix, "GALLERY_REPO"); ok && v != "" {
			c.Repo = v
		}
		if v, ok := lookupEnv(prefix, "GALLERY_BRANCH"); ok && v != "" {
			c.Branch = v
		}
		if v, ok := lookupEnv(prefix, "GALLERY_TOKEN"); ok && v != "" {
			c.Token = v
		}
		if v, ok := lookupEnv(prefix, "GALLERY_BASE_URL"); ok && v != "" {
			c.BaseURL = v
		}
		if v, ok := lookupEnv(prefix, "GALLERY_COMMITTER_NAME"); ok && v != "" {
			c.CommitterName = v
		}
		if v, ok := lookupEnv(prefix, "GALLERY_COMMITTER_EMAIL"); ok && v != "" {
			c.CommitterEmail = v
		}
		if v, ok := lookupEnv(prefix, "GALLERY_MAX_RETRIES"); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("GALLERY_MAX_RETRIES: %w", err)
			}
			c.MaxRetries = n
		}
		if v, ok := lookupEnv(prefix, "GALLERY_RETRY_BASE_MS"); ok && v != "" {
			ms, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("GALLERY_RETRY_BASE_MS: %w", err)
			}
			c.RetryBaseDelay = time.Duration(ms) * time.Millisecond
		}
		if v, ok := lookupEnv(prefix, "GALLERY_WRITE_INTERVAL_MS"); ok && v != "" {
			ms, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("GALLERY_WRITE_INTERVAL_MS: %w", err)
			}
			c.MinWriteInterval = time.Duration(ms) * time.Millisecond
		}
		return nil
	}
}

func lookupEnv(prefix, name string) (string, bool) {
	if prefix != "" {
		if v, ok := os.LookupEnv(prefix + name); ok {
			return v, true
		}
	}
	return os.LookupEnv(name)
}
