// Package archive seals a finished job: it fingerprints the deliverable
// files into a manifest, writes a sha256 sidecar, and packs everything into
// the final zip.
package archive

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sealium/transcription-api/internal/fsutil"
	"github.com/sealium/transcription-api/internal/jobs"
)

// FileEntry describes one deliverable in the manifest.
type FileEntry struct {
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// Manifest records the integrity fingerprint of a finished job.
type Manifest struct {
	JobID     string               `json:"job_id"`
	CreatedAt string               `json:"created_at"`
	Files     map[string]FileEntry `json:"files"`
}

// Member maps a file on disk to its name inside the archive.
type Member struct {
	SourcePath  string
	ArchiveName string
}

// Members lists the deliverables of a job in archive order. Files that were
// never produced (optional outputs) are skipped.
func Members(p jobs.Paths) []Member {
	candidates := []Member{
		{SourcePath: p.OriginalMP4(), ArchiveName: "video.mp4"},
		{SourcePath: p.OutputPDF(), ArchiveName: "transcript.pdf"},
		{SourcePath: p.FinalJSON(), ArchiveName: "transcript.json"},
		{SourcePath: p.FinalVTT(), ArchiveName: "transcript.vtt"},
		{SourcePath: p.FinalTXT(), ArchiveName: "transcript.txt"},
		{SourcePath: p.JobLog(), ArchiveName: "logs/job.log"},
	}

	members := candidates[:0]
	for _, m := range candidates {
		if fsutil.FileExists(m.SourcePath) {
			members = append(members, m)
		}
	}
	return members
}

// manifestFiles pairs each manifested deliverable with its job-relative
// path, which is the manifest key.
func manifestFiles(p jobs.Paths) []Member {
	return []Member{
		{SourcePath: p.OriginalMP4(), ArchiveName: "input/original.mp4"},
		{SourcePath: p.OutputPDF(), ArchiveName: "output/transcript.pdf"},
		{SourcePath: p.FinalJSON(), ArchiveName: "merged/final.json"},
		{SourcePath: p.FinalVTT(), ArchiveName: "merged/final.vtt"},
		{SourcePath: p.FinalTXT(), ArchiveName: "merged/final.txt"},
	}
}

// BuildManifest hashes the fixed deliverable set, keyed by job-relative
// path, and writes manifest.json atomically. Deliverables that were never
// produced are skipped.
func BuildManifest(jobID, createdAt string, p jobs.Paths) (Manifest, error) {
	m := Manifest{
		JobID:     jobID,
		CreatedAt: createdAt,
		Files:     make(map[string]FileEntry),
	}

	for _, f := range manifestFiles(p) {
		if !fsutil.FileExists(f.SourcePath) {
			continue
		}
		sum, err := fsutil.HashFileSHA256(f.SourcePath)
		if err != nil {
			return m, fmt.Errorf("hash %s: %w", f.ArchiveName, err)
		}
		info, err := os.Stat(f.SourcePath)
		if err != nil {
			return m, fmt.Errorf("stat %s: %w", f.ArchiveName, err)
		}
		m.Files[f.ArchiveName] = FileEntry{SHA256: sum, Size: info.Size()}
	}

	payload, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return m, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := fsutil.WriteFileAtomic(p.ManifestPath(), payload, 0o644); err != nil {
		return m, fmt.Errorf("write manifest: %w", err)
	}
	return m, nil
}

// WriteHashesFile writes the sha256sum-compatible sidecar: one
// "<hex> *<name>" line per file, sorted by name.
func WriteHashesFile(m Manifest, path string) error {
	names := make([]string, 0, len(m.Files))
	for name := range m.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%s *%s\n", m.Files[name].SHA256, name)
	}
	return fsutil.WriteFileAtomic(path, []byte(b.String()), 0o644)
}

// BuildZip packs the members plus manifest.json into zipPath. The archive is
// assembled under a temp name and renamed into place, so a crash never
// leaves a truncated zip behind.
func BuildZip(members []Member, manifestPath, zipPath string) error {
	if err := fsutil.EnsureDir(filepath.Dir(zipPath)); err != nil {
		return fmt.Errorf("create zip directory: %w", err)
	}

	tmpPath := zipPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create zip: %w", err)
	}

	zw := zip.NewWriter(f)
	fail := func(err error) error {
		zw.Close()
		f.Close()
		os.Remove(tmpPath)
		return err
	}

	all := append(append([]Member{}, members...), Member{SourcePath: manifestPath, ArchiveName: "manifest.json"})
	for _, m := range all {
		if err := addMember(zw, m); err != nil {
			return fail(fmt.Errorf("add %s: %w", m.ArchiveName, err))
		}
	}

	if err := zw.Close(); err != nil {
		return fail(fmt.Errorf("finalize zip: %w", err))
	}
	if err := f.Close(); err != nil {
		return fail(fmt.Errorf("close zip: %w", err))
	}
	if err := os.Rename(tmpPath, zipPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename zip into place: %w", err)
	}
	return nil
}

func addMember(zw *zip.Writer, m Member) error {
	src, err := os.Open(m.SourcePath)
	if err != nil {
		return err
	}
	defer src.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:   m.ArchiveName,
		Method: zip.Deflate,
	})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}
