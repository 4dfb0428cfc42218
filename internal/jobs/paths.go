package jobs

import (
	"fmt"
	"path/filepath"
)

// Paths resolves the on-disk layout of one job directory:
//
//	jobs/<job_id>/
//	  input/{original.mp4, audio.wav}
//	  chunks/NNNN.wav
//	  partials/NNNN.json
//	  merged/{final.json, final.txt, final.vtt}
//	  output/{transcript.pdf, sealium_transcription_<id>.zip}
//	  logs/job.log
//	  chunks.json
//	  job_state.json
//	  manifest.json
type Paths struct {
	StorageRoot string
	JobID       string
}

// NewPaths creates a Paths resolver for the given job.
func NewPaths(storageRoot, jobID string) Paths {
	return Paths{StorageRoot: storageRoot, JobID: jobID}
}

// JobDir returns the root of the job directory.
func (p Paths) JobDir() string {
	return filepath.Join(p.StorageRoot, "jobs", p.JobID)
}

// InputDir holds the original media and the normalized WAV.
func (p Paths) InputDir() string { return filepath.Join(p.JobDir(), "input") }

// ChunksDir holds the exported per-chunk WAV files.
func (p Paths) ChunksDir() string { return filepath.Join(p.JobDir(), "chunks") }

// PartialsDir holds per-chunk partial transcripts.
func (p Paths) PartialsDir() string { return filepath.Join(p.JobDir(), "partials") }

// MergedDir holds the merged final artifacts.
func (p Paths) MergedDir() string { return filepath.Join(p.JobDir(), "merged") }

// OutputDir holds the PDF and the deliverable zip.
func (p Paths) OutputDir() string { return filepath.Join(p.JobDir(), "output") }

// LogsDir holds the per-job append-only log.
func (p Paths) LogsDir() string { return filepath.Join(p.JobDir(), "logs") }

// StatePath is the durable job state record.
func (p Paths) StatePath() string { return filepath.Join(p.JobDir(), "job_state.json") }

// ChunksMetaPath is the persisted chunk plan.
func (p Paths) ChunksMetaPath() string { return filepath.Join(p.JobDir(), "chunks.json") }

// ManifestPath is the artifact hash manifest.
func (p Paths) ManifestPath() string { return filepath.Join(p.JobDir(), "manifest.json") }

// HashesPath is the sha256sum-style sidecar next to the manifest.
func (p Paths) HashesPath() string { return filepath.Join(p.JobDir(), "hashes.sha256") }

// OriginalMP4 is the canonical location of the source media.
func (p Paths) OriginalMP4() string { return filepath.Join(p.InputDir(), "original.mp4") }

// AudioWAV is the normalized mono 16 kHz s16le track.
func (p Paths) AudioWAV() string { return filepath.Join(p.InputDir(), "audio.wav") }

// FinalJSON is the merged transcript with segment timing.
func (p Paths) FinalJSON() string { return filepath.Join(p.MergedDir(), "final.json") }

// FinalTXT is the merged plain-text transcript.
func (p Paths) FinalTXT() string { return filepath.Join(p.MergedDir(), "final.txt") }

// FinalVTT is the merged subtitle track.
func (p Paths) FinalVTT() string { return filepath.Join(p.MergedDir(), "final.vtt") }

// JobLog is the per-job append-only log file.
func (p Paths) JobLog() string { return filepath.Join(p.LogsDir(), "job.log") }

// ChunkPath returns chunks/NNNN.wav for a 1-based chunk index.
func (p Paths) ChunkPath(index int) string {
	return filepath.Join(p.ChunksDir(), fmt.Sprintf("%04d.wav", index))
}

// PartialPath returns partials/NNNN.json for a 1-based chunk index.
func (p Paths) PartialPath(index int) string {
	return filepath.Join(p.PartialsDir(), fmt.Sprintf("%04d.json", index))
}

// OutputZip is the deliverable archive.
func (p Paths) OutputZip() string {
	return filepath.Join(p.OutputDir(), fmt.Sprintf("sealium_transcription_%s.zip", p.JobID))
}

// OutputPDF is the typeset transcript.
func (p Paths) OutputPDF() string { return filepath.Join(p.OutputDir(), "transcript.pdf") }
