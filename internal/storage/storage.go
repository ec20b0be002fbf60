// Package storage provides the per-run artifact workspace used by the
// censoring pipeline and optional S3 delivery of finished videos.
// It defines the Storage interface (port) and implementations for local
// disk and S3 storage.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for temporary and persistent file storage.
// Implementations hand out an isolated workspace per pipeline run, clean up
// intermediate artifacts, and optionally support S3 uploads for final video
// delivery.
type Storage interface {
	// Workspace creates (if needed) and returns a directory reserved for
	// the run identified by runID. Two runs never share a workspace.
	Workspace(ctx context.Context, runID string) (dir string, err error)

	// RemoveWorkspace deletes a workspace and everything left in it.
	RemoveWorkspace(ctx context.Context, dir string) error

	// SaveTemp saves data to a temporary file and returns the file path.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// Open opens a file produced by a run, such as a finished video bound
	// for upload. The caller closes the returned ReadCloser.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// Promote moves src to dst, replacing dst. It falls back to copying when
	// a rename is not possible (e.g. across filesystems).
	Promote(ctx context.Context, src, dst string) error

	// UploadToS3 uploads data to S3 and returns the object URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
