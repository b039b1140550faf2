package tasks

import "errors"

// Sentinel errors for tasks package.
var (
	// ErrEmptyUpload is returned when an upload is constructed with no data.
	ErrEmptyUpload = errors.New("tasks: empty upload")

	// ErrEmptyDownload is returned when a download is constructed with
	// zero size.
	ErrEmptyDownload = errors.New("tasks: empty download")

	// ErrNilSource is returned when an image upload has no source image.
	ErrNilSource = errors.New("tasks: nil source image")
)
