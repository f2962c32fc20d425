// Package fetch downloads commentary archives over HTTP.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"go.uber.org/zap"
)

// copyBufSize is the fixed buffer used to stream response bodies to disk.
const copyBufSize = 32 * 1024

// Downloader fetches archives from a fixed base URL.
type Downloader struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger // optional; when set, logs debug events
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithClient sets the HTTP client used for downloads.
func WithClient(c *http.Client) Option {
	return func(d *Downloader) { d.client = c }
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(d *Downloader) { d.logger = l }
}

// NewDownloader creates a downloader rooted at baseURL.
func NewDownloader(baseURL string, opts ...Option) *Downloader {
	d := &Downloader{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Minute},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download issues a GET for baseURL+relPath and streams the body to dstPath
// through a fixed-size buffer. onProgress, when non-nil, receives fractions
// in [0,1] of bytes received; when the server does not report a
// Content-Length the callback is skipped and progress is indeterminate.
// Returns the number of bytes written. On any failure the destination file
// is removed.
func (d *Downloader) Download(ctx context.Context, relPath, dstPath string, onProgress func(float64)) (int64, error) {
	u, err := url.JoinPath(d.baseURL, relPath)
	if err != nil {
		return 0, fmt.Errorf("join url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if d.logger != nil {
		d.logger.Debug("downloading archive", zap.String("url", u), zap.String("dst", dstPath))
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", relPath, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download %s: unexpected status %s", relPath, resp.Status)
	}

	written, err := d.copyToFile(resp.Body, dstPath, resp.ContentLength, onProgress)
	if err != nil {
		_ = os.Remove(dstPath)
		return 0, err
	}
	return written, nil
}

func (d *Downloader) copyToFile(body io.Reader, dstPath string, total int64, onProgress func(float64)) (int64, error) {
	dst, err := os.Create(dstPath)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dstPath, err)
	}
	defer dst.Close()

	buf := make([]byte, copyBufSize)
	var written int64
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return written, fmt.Errorf("write %s: %w", dstPath, writeErr)
			}
			written += int64(n)
			if onProgress != nil && total > 0 {
				// Content-Length can under-report; never signal past completion.
				frac := float64(written) / float64(total)
				if frac > 1.0 {
					frac = 1.0
				}
				onProgress(frac)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return written, fmt.Errorf("read response body: %w", readErr)
		}
	}
	if err := dst.Sync(); err != nil {
		return written, fmt.Errorf("sync %s: %w", dstPath, err)
	}
	return written, nil
}
