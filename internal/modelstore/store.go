package modelstore

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/health-advisor-server/internal/domain"
)

// Store keeps the configured GGUF file on disk and in the manifest.
type Store struct {
	downloader *Downloader
	manifest   *Manifest
	repo       string
	file       string
	path       string
	logger     *logrus.Logger
}

// NewStore creates a store for one model file at path.
func NewStore(downloader *Downloader, manifest *Manifest, repo, file, path string, logger *logrus.Logger) *Store {
	return &Store{
		downloader: downloader,
		manifest:   manifest,
		repo:       repo,
		file:       file,
		path:       path,
		logger:     logger,
	}
}

// Present reports whether the model file exists locally. A file whose size
// disagrees with its manifest entry is treated as missing.
func (s *Store) Present(ctx context.Context) (bool, error) {
	info, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat model file: %w", err)
	}

	a, err := s.manifest.Lookup(ctx, s.repo, s.file)
	if err != nil {
		return false, err
	}
	if a == nil {
		// Placed by hand; record it so later checks have a size to compare.
		return true, s.manifest.Record(ctx, &Artifact{
			SourceRepo: s.repo,
			FileName:   s.file,
			LocalPath:  s.path,
			SizeBytes:  info.Size(),
		})
	}

	if a.SizeBytes != info.Size() {
		s.logger.WithFields(logrus.Fields{
			"path":          s.path,
			"expected_size": a.SizeBytes,
			"actual_size":   info.Size(),
		}).Warn("Model file size does not match manifest")
		return false, nil
	}
	return true, nil
}

// Download fetches the model file and records it in the manifest.
func (s *Store) Download(ctx context.Context, progress func(domain.DownloadProgress)) error {
	a, err := s.downloader.Fetch(ctx, s.repo, s.file, s.path, progress)
	if err != nil {
		return err
	}
	return s.manifest.Record(ctx, a)
}

// Artifacts lists the manifest entries.
func (s *Store) Artifacts(ctx context.Context) ([]*Artifact, error) {
	return s.manifest.List(ctx)
}
