package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(WithRepository("maidang", "gallery", ""), WithToken("t"))
	require.NoError(t, err)
	assert.Equal(t, "github", cfg.Backend)
	assert.Equal(t, "main", cfg.Branch)
	assert.Equal(t, 4, cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, time.Second, cfg.MinWriteInterval)
	assert.Equal(t, 3, cfg.BatchAttempts)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr string
	}{
		{
			name:    "github backend requires owner",
			opts:    []Option{WithToken("t")},
			wantErr: "owner is required",
		},
		{
			name:    "github backend requires repo",
			opts:    []Option{WithRepository("maidang", "", ""), WithToken("t")},
			wantErr: "repo is required",
		},
		{
			name:    "github backend requires token",
			opts:    []Option{WithRepository("maidang", "gallery", "")},
			wantErr: "token is required",
		},
		{
			name:    "unknown backend rejected",
			opts:    []Option{WithBackend("s3")},
			wantErr: "unknown backend",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.opts...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("memory backend needs no repository", func(t *testing.T) {
		cfg, err := Load(WithBackend("memory"))
		require.NoError(t, err)
		assert.Equal(t, "memory", cfg.Backend)
	})
}

func TestLoadOptions(t *testing.T) {
	cfg, err := Load(
		WithRepository("maidang", "gallery", "photos"),
		WithToken("t"),
		WithCommitter("Gallery Bot", "bot@example.com"),
		WithWritePacing(6, 250*time.Millisecond, 2*time.Second),
	)
	require.NoError(t, err)
	assert.Equal(t, "photos", cfg.Branch)
	assert.Equal(t, "Gallery Bot", cfg.CommitterName)
	assert.Equal(t, "bot@example.com", cfg.CommitterEmail)
	assert.Equal(t, 6, cfg.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, 2*time.Second, cfg.MinWriteInterval)
}

func TestWithEnv(t *testing.T) {
	t.Setenv("GALLERY_BACKEND", "memory")
	t.Setenv("GALLERY_OWNER", "env-owner")
	t.Setenv("GALLERY_BRANCH", "env-branch")
	t.Setenv("GALLERY_MAX_RETRIES", "7")
	t.Setenv("GALLERY_RETRY_BASE_MS", "125")
	t.Setenv("GALLERY_WRITE_INTERVAL_MS", "1500")

	cfg, err := Load(WithEnv(""))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Backend)
	assert.Equal(t, "env-owner", cfg.Owner)
	assert.Equal(t, "env-branch", cfg.Branch)
	assert.Equal(t, 7, cfg.MaxRetries)
	assert.Equal(t, 125*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, 1500*time.Millisecond, cfg.MinWriteInterval)
}

func TestWithEnvPrefix(t *testing.T) {
	t.Setenv("GALLERY_OWNER", "plain")
	t.Setenv("APP_GALLERY_OWNER", "prefixed")
	t.Setenv("APP_GALLERY_BACKEND", "memory")

	cfg, err := Load(WithEnv("APP_"))
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.Owner)
	assert.Equal(t, "memory", cfg.Backend)
}

func TestWithEnvRejectsBadNumbers(t *testing.T) {
	t.Setenv("GALLERY_BACKEND", "memory")
	t.Setenv("GALLERY_MAX_RETRIES", "lots")

	_, err := Load(WithEnv(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GALLERY_MAX_RETRIES")
}

func TestBuildStoreMemory(t *testing.T) {
	cfg, err := Load(WithBackend("memory"))
	require.NoError(t, err)

	store, err := cfg.BuildStore()
	require.NoError(t, err)
	assert.NotNil(t, store)
}

func TestBuildStoreGitHubValidation(t *testing.T) {
	cfg := defaults()
	cfg.Backend = "github" // skip Load so Validate is bypassed

	_, err := cfg.BuildStore()
	assert.Error(t, err)
}
