// Command uploader pushes a directory of pre-processed images into the
// gallery repository. Each image needs its original file plus a matching
// "<name>.thumb.webp" thumbnail; assets are uploaded with finalization
// deferred and then committed in one atomic batch, so a partial run never
// leaves the index pointing at missing metadata.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Maidang1/lumina-store/pkg/gallerystore"
	"github.com/Maidang1/lumina-store/pkg/gallerystore/config"
)

var imageMimes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".heic": "image/heic",
	".avif": "image/avif",
}

const thumbSuffix = ".thumb.webp"

func main() {
	app := &cli.App{
		Name:  "uploader",
		Usage: "batch-upload pre-processed images into the gallery repository",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Required: true, Usage: "directory of images and *.thumb.webp thumbnails"},
			&cli.StringFlag{Name: "owner", EnvVars: []string{"GALLERY_OWNER"}, Usage: "repository owner"},
			&cli.StringFlag{Name: "repo", EnvVars: []string{"GALLERY_REPO"}, Usage: "repository name"},
			&cli.StringFlag{Name: "branch", EnvVars: []string{"GALLERY_BRANCH"}, Value: "main", Usage: "branch"},
			&cli.StringFlag{Name: "token", EnvVars: []string{"GALLERY_TOKEN"}, Usage: "bearer credential"},
			&cli.IntFlag{Name: "write-interval-ms", Value: 1000, Usage: "minimum interval between remote writes"},
			&cli.BoolFlag{Name: "no-batch", Usage: "finalize each image individually instead of one atomic commit"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("upload failed", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load(
		config.WithRepository(c.String("owner"), c.String("repo"), c.String("branch")),
		config.WithToken(c.String("token")),
		config.WithWritePacing(0, 0, time.Duration(c.Int("write-interval-ms"))*time.Millisecond),
	)
	if err != nil {
		return err
	}
	store, err := cfg.BuildStore()
	if err != nil {
		return err
	}

	dir := c.String("dir")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}

	batch := !c.Bool("no-batch")
	ctx := context.Background()
	var finalize []*gallerystore.AssetRecord

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasSuffix(name, thumbSuffix) {
			continue
		}
		mime, ok := imageMimes[strings.ToLower(filepath.Ext(name))]
		if !ok {
			continue
		}

		thumbName := strings.TrimSuffix(name, filepath.Ext(name)) + thumbSuffix
		thumb, err := os.ReadFile(filepath.Join(dir, thumbName))
		if err != nil {
			logger.Warn("skipping image without thumbnail", "file", name)
			continue
		}
		original, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}

		sum := sha256.Sum256(original)
		rec := &gallerystore.AssetRecord{
			ImageID:  "sha256:" + hex.EncodeToString(sum[:]),
			FileName: name,
			Files: gallerystore.AssetFiles{
				Original: gallerystore.FileRef{Mime: mime},
				Thumb:    gallerystore.FileRef{Mime: "image/webp"},
			},
		}

		stored, err := store.Upload(ctx, gallerystore.UploadRequest{
			Record:        rec,
			Original:      original,
			Thumb:         thumb,
			DeferFinalize: batch,
		})
		if err != nil {
			return fmt.Errorf("upload %s: %w", name, err)
		}
		logger.Info("uploaded", "file", name, "image_id", stored.ImageID)
		if batch {
			finalize = append(finalize, stored)
		}
	}

	if len(finalize) > 0 {
		if err := store.FinalizeBatch(ctx, finalize); err != nil {
			return fmt.Errorf("finalize batch: %w", err)
		}
		logger.Info("batch finalized", "records", len(finalize))
	}
	return nil
}
