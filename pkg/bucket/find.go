// pkg/bucket/find.go
package bucket

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/poks-tools/poks/pkg/manifest"
)

// ErrManifestNotFound indicates no bucket carries a manifest for the app.
var ErrManifestNotFound = errors.New("manifest not found")

// NotFoundError lists the buckets that were searched for an app.
type NotFoundError struct {
	App      string
	Searched []string
}

func (e *NotFoundError) Error() string {
	if len(e.Searched) == 0 {
		return fmt.Sprintf("no manifest %q.json: no local buckets available", e.App)
	}
	return fmt.Sprintf("no manifest %q.json in buckets: %s", e.App, strings.Join(e.Searched, ", "))
}

func (e *NotFoundError) Unwrap() error { return ErrManifestNotFound }

// FindManifest returns <bucketDir>/<app>.json if it exists.
func FindManifest(app, bucketDir string) (string, error) {
	path := filepath.Join(bucketDir, app+".json")
	if _, err := os.Stat(path); err != nil {
		return "", &NotFoundError{App: app, Searched: []string{filepath.Base(bucketDir)}}
	}
	return path, nil
}

// FindInBuckets searches buckets in declaration order and returns the
// first manifest hit plus its bucket name. When several buckets carry the
// app, the first declared wins and the duplicates are warned about.
func FindInBuckets(app string, order []string, paths map[string]string, logger *log.Logger) (string, string, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	var found, foundBucket string
	for _, name := range order {
		dir, ok := paths[name]
		if !ok {
			continue
		}
		path := filepath.Join(dir, app+".json")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if found == "" {
			found, foundBucket = path, name
			continue
		}
		logger.Printf("app %q also found in bucket %q, using %q", app, name, foundBucket)
	}

	if found == "" {
		return "", "", &NotFoundError{App: app, Searched: order}
	}
	return found, foundBucket, nil
}

// FindInLocalBuckets scans every bucket directory on disk, in sorted name
// order, for an app manifest. Used when no bucket was named at all.
func FindInLocalBuckets(app, bucketsDir string, logger *log.Logger) (string, string, error) {
	names, err := localBucketNames(bucketsDir)
	if err != nil || len(names) == 0 {
		return "", "", &NotFoundError{App: app}
	}

	paths := make(map[string]string, len(names))
	for _, name := range names {
		paths[name] = filepath.Join(bucketsDir, name)
	}
	return FindInBuckets(app, names, paths, logger)
}

func localBucketNames(bucketsDir string) ([]string, error) {
	entries, err := os.ReadDir(bucketsDir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Search scans every local bucket for manifests whose app name contains
// the query, case-insensitively.
func Search(bucketsDir, query string, logger *log.Logger) ([]manifest.SearchHit, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	names, err := localBucketNames(bucketsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading buckets dir: %w", err)
	}

	needle := strings.ToLower(query)
	var hits []manifest.SearchHit
	for _, bucketName := range names {
		dir := filepath.Join(bucketsDir, bucketName)
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			appName := strings.TrimSuffix(entry.Name(), ".json")
			if !strings.Contains(strings.ToLower(appName), needle) {
				continue
			}

			m, err := manifest.LoadManifest(filepath.Join(dir, entry.Name()))
			if err != nil {
				logger.Printf("skipping unreadable manifest %s/%s: %v", bucketName, entry.Name(), err)
				continue
			}
			versions := make([]string, 0, len(m.Versions))
			for _, v := range m.Versions {
				versions = append(versions, v.Version)
			}
			hits = append(hits, manifest.SearchHit{
				Bucket:      bucketName,
				Name:        appName,
				Versions:    versions,
				Description: m.Description,
			})
		}
	}
	return hits, nil
}
