// Package storage publishes finished job archives. The default deployment
// serves archives straight off local disk; when an S3 bucket is configured
// the final zip is additionally uploaded and the job result carries the
// object URL.
package storage

import (
	"context"
	"errors"
)

// ErrS3NotConfigured is returned when an upload is attempted without S3
// configuration.
var ErrS3NotConfigured = errors.New("S3 storage is not configured")

// Uploader pushes a finished archive to remote storage and returns its
// public URL.
type Uploader interface {
	UploadArchive(ctx context.Context, key, filePath string) (url string, err error)
}

// NoUpload is the local-only implementation: archives stay on disk and are
// served through the download endpoint.
type NoUpload struct{}

// UploadArchive implements Uploader.
func (NoUpload) UploadArchive(context.Context, string, string) (string, error) {
	return "", ErrS3NotConfigured
}

var _ Uploader = NoUpload{}
