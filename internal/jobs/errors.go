package jobs

import "errors"

// Pipeline error taxonomy. Stage workers wrap these so callers can classify
// failures with errors.Is regardless of which adapter produced them.
var (
	// ErrInputNotFound is returned when a path input does not exist.
	ErrInputNotFound = errors.New("input path not found")
	// ErrMissingUpload is returned when an upload job has no file on disk.
	ErrMissingUpload = errors.New("uploaded file is missing")
	// ErrDownloaderFailed is returned when the media downloader fails.
	ErrDownloaderFailed = errors.New("downloader failed")
	// ErrMediaToolFailed is returned when ffmpeg or ffprobe fails.
	ErrMediaToolFailed = errors.New("media tool failed")
	// ErrSegmentationFailed is returned when the chunk plan cannot be built.
	ErrSegmentationFailed = errors.New("segmentation failed")
	// ErrASRFailed is returned when a chunk transcription fails.
	ErrASRFailed = errors.New("asr failed")
	// ErrPartialWriteFailed is returned when a partial transcript cannot be persisted.
	ErrPartialWriteFailed = errors.New("partial write failed")
	// ErrMergeFailed is returned when the merger cannot produce final artifacts.
	ErrMergeFailed = errors.New("merge failed")
	// ErrPackagingFailed is returned when the deliverable bundle cannot be built.
	ErrPackagingFailed = errors.New("packaging failed")
	// ErrStateCorrupted is returned when job_state.json cannot be parsed.
	ErrStateCorrupted = errors.New("job state corrupted")
)
