// pkg/download/download.go
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/poks-tools/poks/pkg/progress"
)

// ErrChecksumMismatch indicates downloaded content failing hash verification.
var ErrChecksumMismatch = errors.New("checksum mismatch")

var errReadStalled = errors.New("read timed out")

const copyChunkSize = 64 * 1024

// Options tune a single archive fetch.
type Options struct {
	// App names the download in progress callbacks.
	App string
	// Progress is invoked per chunk with (app, downloaded, total).
	Progress progress.Func
	// NoCache skips the cache-hit check; the verified download still lands
	// in the cache for future runs.
	NoCache bool
}

// Downloader fetches archives into a content-addressed cache. Concurrent
// requests for the same cache path collapse into a single in-flight fetch.
type Downloader struct {
	client *Client
	logger *log.Logger
	group  singleflight.Group
}

// NewDownloader creates a downloader around the given client. A nil client
// gets defaults; a nil logger discards.
func NewDownloader(client *Client, logger *log.Logger) *Downloader {
	if client == nil {
		client = NewClient()
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Downloader{client: client, logger: logger}
}

// GetCachedOrDownload returns the path of a verified archive in the cache,
// downloading it first when missing or corrupt. The cache entry is never
// trusted without a hash check.
func (d *Downloader) GetCachedOrDownload(ctx context.Context, rawURL, sha256hex, cacheDir string, opts Options) (string, error) {
	cachePath := CachePath(cacheDir, rawURL)

	_, err, _ := d.group.Do(cachePath, func() (any, error) {
		return nil, d.fetch(ctx, rawURL, sha256hex, cachePath, opts)
	})
	if err != nil {
		return "", err
	}
	return cachePath, nil
}

func (d *Downloader) fetch(ctx context.Context, rawURL, sha256hex, cachePath string, opts Options) error {
	if !opts.NoCache {
		if _, err := os.Stat(cachePath); err == nil {
			verifyErr := VerifySHA256(cachePath, sha256hex, rawURL)
			if verifyErr == nil {
				d.logger.Printf("cache hit: %s", cachePath)
				return nil
			}
			if errors.Is(verifyErr, ErrChecksumMismatch) {
				d.logger.Printf("corrupt cache entry %s, re-downloading", cachePath)
				os.Remove(cachePath)
			} else {
				return verifyErr
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(cachePath), filepath.Base(cachePath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	err = d.downloadWithRetry(ctx, rawURL, tmp, opts)
	closeErr := tmp.Close()
	if err != nil {
		return err
	}
	if closeErr != nil {
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := VerifySHA256(tmpPath, sha256hex, rawURL); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, cachePath); err != nil {
		return fmt.Errorf("moving download into cache: %w", err)
	}
	d.logger.Printf("downloaded %s -> %s", rawURL, cachePath)
	return nil
}

// downloadWithRetry streams the URL into w, retrying transient transport
// failures with exponential backoff. Status errors fail immediately.
func (d *Downloader) downloadWithRetry(ctx context.Context, rawURL string, w io.WriteSeeker, opts Options) error {
	var lastErr error
	for attempt := 0; attempt < d.client.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := d.client.backoff << (attempt - 1)
			d.logger.Printf("retrying %s in %s (attempt %d/%d): %v", rawURL, delay, attempt+1, d.client.maxAttempts, lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			if _, err := w.Seek(0, io.SeekStart); err != nil {
				return fmt.Errorf("rewinding temp file: %w", err)
			}
			if t, ok := w.(interface{ Truncate(int64) error }); ok {
				if err := t.Truncate(0); err != nil {
					return fmt.Errorf("truncating temp file: %w", err)
				}
			}
		}

		lastErr = d.downloadOnce(ctx, rawURL, w, opts)
		if lastErr == nil {
			return nil
		}

		var statusErr *HTTPStatusError
		if errors.As(lastErr, &statusErr) || errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
	}
	return fmt.Errorf("download failed after %d attempts: %w", d.client.maxAttempts, lastErr)
}

func (d *Downloader) downloadOnce(ctx context.Context, rawURL string, w io.Writer, opts Options) error {
	if localPath, ok := fileURLPath(rawURL); ok {
		return d.copyLocal(ctx, localPath, w, opts)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	resp, err := d.client.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Stall watchdog: the request context is cancelled when no chunk
	// arrives within the read timeout. A stall is retryable, unlike a
	// caller cancellation.
	watchdog := time.AfterFunc(d.client.readTimeout, func() { cancel(errReadStalled) })
	defer watchdog.Stop()

	total := resp.ContentLength
	var downloaded int64
	buf := make([]byte, copyChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		watchdog.Reset(d.client.readTimeout)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return fmt.Errorf("writing download: %w", err)
			}
			downloaded += int64(n)
			if opts.Progress != nil {
				opts.Progress(opts.App, downloaded, total)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			if cause := context.Cause(ctx); errors.Is(cause, errReadStalled) {
				return fmt.Errorf("no data for %s from %s: %w", d.client.readTimeout, rawURL, errReadStalled)
			}
			return fmt.Errorf("reading response: %w", readErr)
		}
	}
}

// copyLocal serves file:// URLs, used for bucket-local archives and tests.
func (d *Downloader) copyLocal(ctx context.Context, localPath string, w io.Writer, opts Options) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", localPath, err)
	}

	total := info.Size()
	var copied int64
	buf := make([]byte, copyChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := f.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return fmt.Errorf("writing download: %w", err)
			}
			copied += int64(n)
			if opts.Progress != nil {
				opts.Progress(opts.App, copied, total)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("reading %s: %w", localPath, readErr)
		}
	}
}

// fileURLPath converts a file:// URL into a local filesystem path.
func fileURLPath(rawURL string) (string, bool) {
	if !strings.HasPrefix(rawURL, "file://") {
		return "", false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	p := u.Path
	if runtime.GOOS == "windows" && len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return filepath.FromSlash(p), true
}
