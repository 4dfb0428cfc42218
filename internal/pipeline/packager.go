package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sealium/transcription-api/internal/archive"
	"github.com/sealium/transcription-api/internal/fsutil"
	"github.com/sealium/transcription-api/internal/jobs"
	"github.com/sealium/transcription-api/internal/pdf"
	"github.com/sealium/transcription-api/internal/segment"
	"github.com/sealium/transcription-api/internal/storage"
	"github.com/sealium/transcription-api/internal/vtt"
)

const stagePackager = "packager"

// Package is the final stage: it typesets the PDF, fingerprints the
// deliverables into the manifest, packs the zip and marks the job done.
func (p *Pipeline) Package(ctx context.Context, jobID string) error {
	state, err := p.begin(ctx, jobID, jobs.StatusPackaging, stagePackager)
	if err != nil || state == nil {
		return err
	}
	defer func() { p.metrics.ObserveStage(stagePackager, err) }()

	if p.canceled(ctx, jobID) {
		p.jobLog(jobID, "packager stopped: job canceled")
		return nil
	}

	paths := p.store.Paths(jobID)

	if state.Options.ProducePDF && p.pdfWriter != nil && !fsutil.FileExists(paths.OutputPDF()) {
		if err = p.writePDF(state, paths); err != nil {
			return p.fail(ctx, jobID, stagePackager, fmt.Errorf("%w: %v", jobs.ErrPackagingFailed, err))
		}
	}

	manifest, err := archive.BuildManifest(jobID, state.Timestamps.CreatedAt, paths)
	if err != nil {
		return p.fail(ctx, jobID, stagePackager, fmt.Errorf("%w: %v", jobs.ErrPackagingFailed, err))
	}
	if err = archive.WriteHashesFile(manifest, paths.HashesPath()); err != nil {
		return p.fail(ctx, jobID, stagePackager, fmt.Errorf("%w: %v", jobs.ErrPackagingFailed, err))
	}
	if err = archive.BuildZip(archive.Members(paths), paths.ManifestPath(), paths.OutputZip()); err != nil {
		return p.fail(ctx, jobID, stagePackager, fmt.Errorf("%w: %v", jobs.ErrPackagingFailed, err))
	}

	downloadName := filepath.Base(paths.OutputZip())
	result := jobs.Result{ZipPath: paths.OutputZip(), DownloadName: downloadName}

	url, upErr := p.uploader.UploadArchive(ctx, downloadName, paths.OutputZip())
	switch {
	case upErr == nil:
		result.ZipURL = url
		p.jobLog(jobID, "archive uploaded to %s", url)
	case errors.Is(upErr, storage.ErrS3NotConfigured):
		// Local-only deployment; the download endpoint serves the zip.
	default:
		// Upload is best-effort: the archive is safe on disk and the job
		// should not retry packaging over a flaky bucket.
		p.jobLog(jobID, "archive upload failed: %v", upErr)
	}

	if _, err = p.store.SetResult(ctx, jobID, result); err != nil {
		return p.fail(ctx, jobID, stagePackager, err)
	}
	if _, err = p.store.SetStatus(ctx, jobID, jobs.StatusDone); err != nil {
		return p.fail(ctx, jobID, stagePackager, err)
	}

	p.jobLog(jobID, "packager finished: %s", downloadName)
	return nil
}

func (p *Pipeline) writePDF(state *jobs.State, paths jobs.Paths) error {
	body, err := os.ReadFile(paths.FinalTXT())
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}

	doc := pdf.Document{
		Title:       "Transcription " + state.JobID,
		GeneratedAt: jobs.NowISO(),
		SponsorText: p.cfg.SponsorText,
		Body:        strings.TrimSpace(string(body)),
	}
	if state.Input.Type == jobs.InputURL {
		doc.SourceURL = state.Input.Value
	}
	if plan, planErr := segment.ReadPlan(paths.ChunksMetaPath()); planErr == nil && len(plan) > 0 {
		doc.Duration = vtt.FormatTimestamp(plan[len(plan)-1].End)
	}

	return p.pdfWriter.Write(doc, paths.OutputPDF())
}
