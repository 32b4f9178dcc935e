// errors.go
package poks

import (
	"github.com/poks-tools/poks/pkg/bucket"
	"github.com/poks-tools/poks/pkg/download"
	"github.com/poks-tools/poks/pkg/extract"
	"github.com/poks-tools/poks/pkg/installer"
	"github.com/poks-tools/poks/pkg/manifest"
	"github.com/poks-tools/poks/pkg/poker"
	"github.com/poks-tools/poks/pkg/resolver"
)

// Error kinds, re-exported so callers can errors.Is against one package.
var (
	// ErrConfigInvalid indicates a malformed or inconsistent poks.json
	ErrConfigInvalid = manifest.ErrConfigInvalid

	// ErrManifestInvalid indicates a manifest violating the schema
	ErrManifestInvalid = manifest.ErrManifestInvalid

	// ErrManifestNotFound indicates no bucket carries the app
	ErrManifestNotFound = bucket.ErrManifestNotFound

	// ErrBucketSync indicates a bucket clone or update failure
	ErrBucketSync = bucket.ErrBucketSync

	// ErrVersionNotFound indicates the requested version is absent
	ErrVersionNotFound = manifest.ErrVersionNotFound

	// ErrYankedVersion indicates the requested version was yanked
	ErrYankedVersion = manifest.ErrYankedVersion

	// ErrUnsupportedPlatform indicates no archive matches the host
	ErrUnsupportedPlatform = resolver.ErrUnsupportedPlatform

	// ErrVariableUnresolved indicates an unexpandable ${name} placeholder
	ErrVariableUnresolved = resolver.ErrVariableUnresolved

	// ErrHTTP indicates a failed download request
	ErrHTTP = download.ErrHTTP

	// ErrChecksumMismatch indicates content failing sha256 verification
	ErrChecksumMismatch = download.ErrChecksumMismatch

	// ErrUnsupportedArchive indicates an archive format with no extractor
	ErrUnsupportedArchive = extract.ErrUnsupportedArchive

	// ErrUnsafeArchive indicates an archive entry escaping its destination
	ErrUnsafeArchive = extract.ErrUnsafeArchive

	// ErrExtractDirNotFound indicates a missing extract_dir in the archive
	ErrExtractDirNotFound = extract.ErrExtractDirNotFound

	// ErrPrefixTooLong indicates a binary prefix patch that cannot fit
	ErrPrefixTooLong = poker.ErrPrefixTooLong

	// ErrNotInstalled indicates an uninstall target that does not exist
	ErrNotInstalled = installer.ErrNotInstalled
)

// Error wraps an engine error with operation context. Per-app install
// failures carry it, and the Engine's InstallFile, Uninstall, UninstallAll,
// AddBucket and RemoveBucket return it; errors.Is still reaches the
// underlying kind through Unwrap.
type Error = installer.Error
