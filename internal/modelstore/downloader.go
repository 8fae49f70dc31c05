package modelstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/health-advisor-server/internal/domain"
)

// progressInterval is the minimum number of bytes between progress callbacks.
const progressInterval = 4 << 20

// Downloader fetches files from a Hugging Face compatible hub.
type Downloader struct {
	hubURL     string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewDownloader creates a downloader for hubURL. The client has no overall
// timeout; callers bound a download with their context.
func NewDownloader(hubURL string, httpClient *http.Client, logger *logrus.Logger) *Downloader {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Downloader{
		hubURL:     strings.TrimRight(hubURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// ResolveURL returns the download URL of file in repo on the main revision.
func (d *Downloader) ResolveURL(repo, file string) string {
	return fmt.Sprintf("%s/%s/resolve/main/%s", d.hubURL, repo, url.PathEscape(file))
}

// Fetch downloads repo/file to dest. Data is written to dest.partial and
// renamed into place only after the full body has been read.
func (d *Downloader) Fetch(ctx context.Context, repo, file, dest string, progress func(domain.DownloadProgress)) (*Artifact, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, fmt.Errorf("failed to create model directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.ResolveURL(repo, file), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s/%s: %w", repo, file, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hub returned status %d for %s/%s", resp.StatusCode, repo, file)
	}

	partial := dest + ".partial"
	out, err := os.Create(partial)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", partial, err)
	}

	hash := sha256.New()
	counter := &progressWriter{total: resp.ContentLength, report: progress}
	written, err := io.Copy(io.MultiWriter(out, hash, counter), resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(partial)
		return nil, fmt.Errorf("failed to write %s: %w", file, err)
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		os.Remove(partial)
		return nil, fmt.Errorf("short download of %s: got %d of %d bytes", file, written, resp.ContentLength)
	}

	if err := os.Rename(partial, dest); err != nil {
		os.Remove(partial)
		return nil, fmt.Errorf("failed to move download into place: %w", err)
	}
	counter.finish()

	d.logger.WithFields(logrus.Fields{
		"repo":        repo,
		"file":        file,
		"size_bytes":  written,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Model file downloaded")

	return &Artifact{
		SourceRepo:   repo,
		FileName:     file,
		LocalPath:    dest,
		SizeBytes:    written,
		SHA256:       hex.EncodeToString(hash.Sum(nil)),
		DownloadedAt: time.Now().UTC(),
	}, nil
}

// progressWriter counts bytes and reports at most every progressInterval.
type progressWriter struct {
	total    int64
	written  int64
	reported int64
	report   func(domain.DownloadProgress)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if p.report != nil && p.written-p.reported >= progressInterval {
		p.reported = p.written
		p.report(domain.DownloadProgress{Status: "downloading", Completed: p.written, Total: p.total})
	}
	return len(b), nil
}

func (p *progressWriter) finish() {
	if p.report != nil {
		p.report(domain.DownloadProgress{Status: "success", Completed: p.written, Total: p.written})
	}
}
