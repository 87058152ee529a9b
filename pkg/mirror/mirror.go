// Package mirror copies a finished run's artifacts to S3-compatible
// storage as a best-effort secondary destination, independent of the
// report-service upload.
package mirror

import "context"

// Uploader mirrors run artifacts to remote storage.
type Uploader interface {
	// Preflight verifies that the remote storage is reachable and writable.
	// Writes a small test object to the bucket to fail fast on
	// misconfiguration.
	Preflight(ctx context.Context) error

	// MirrorRun uploads every file under resultsDir, plus the already-built
	// archive and the metadata document, under
	// {prefix}/{project}/{stamp}/.
	MirrorRun(
		ctx context.Context,
		project string,
		resultsDir string,
		archive []byte,
		metaJSON []byte,
	) error
}
