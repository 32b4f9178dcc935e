// pkg/bucket/sync.go
package bucket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"

	"github.com/poks-tools/poks/pkg/manifest"
)

// ErrBucketSync indicates a bucket clone or update failure.
var ErrBucketSync = errors.New("bucket sync failed")

// IsURL reports whether a bucket reference looks like a repository URL
// rather than a local bucket name.
func IsURL(ref string) bool {
	return strings.Contains(ref, "://") || strings.HasSuffix(ref, ".git")
}

// Sync clones or updates one bucket and returns its local directory.
// A missing directory is shallow-cloned; an existing clone gets a
// fast-forward pull. A plain directory without git metadata is used as-is,
// which keeps hand-made local buckets working.
func Sync(ctx context.Context, b manifest.Bucket, bucketsDir string, logger *log.Logger) (string, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	dir := filepath.Join(bucketsDir, b.Name)

	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		repo, err := git.PlainOpen(dir)
		if errors.Is(err, git.ErrRepositoryNotExists) {
			logger.Printf("bucket %q is not a git clone, using local contents", b.Name)
			return dir, nil
		}
		if err != nil {
			return "", fmt.Errorf("%w: opening bucket %q: %v", ErrBucketSync, b.Name, err)
		}

		wt, err := repo.Worktree()
		if err != nil {
			return "", fmt.Errorf("%w: bucket %q: %v", ErrBucketSync, b.Name, err)
		}
		logger.Printf("updating bucket %q", b.Name)
		err = wt.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return "", fmt.Errorf("%w: pulling bucket %q: %v", ErrBucketSync, b.Name, err)
		}
		return dir, nil
	}

	if b.URL == "" {
		return "", fmt.Errorf("%w: bucket %q has no url and no local copy", ErrBucketSync, b.Name)
	}

	if err := os.MkdirAll(bucketsDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: creating %s: %v", ErrBucketSync, bucketsDir, err)
	}
	logger.Printf("cloning bucket %q from %s", b.Name, b.URL)
	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:   b.URL,
		Depth: 1,
	})
	if err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("%w: cloning bucket %q from %s: %v", ErrBucketSync, b.Name, b.URL, err)
	}
	return dir, nil
}

// SyncAll syncs every bucket in declaration order and returns a
// name-to-directory map. Buckets are never synced concurrently.
func SyncAll(ctx context.Context, buckets []manifest.Bucket, bucketsDir string, logger *log.Logger) (map[string]string, error) {
	paths := make(map[string]string, len(buckets))
	for _, b := range buckets {
		dir, err := Sync(ctx, b, bucketsDir, logger)
		if err != nil {
			return nil, err
		}
		paths[b.Name] = dir
	}
	return paths, nil
}
