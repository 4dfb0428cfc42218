package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sealium/transcription-api/internal/asr"
	"github.com/sealium/transcription-api/internal/jobs"
	"github.com/sealium/transcription-api/internal/merge"
	"github.com/sealium/transcription-api/internal/queue"
)

const stageMerger = "merger"

// Merge is the third stage: it collects every partial result, normalizes
// them into one clean timeline and writes the final transcript artifacts.
// Rerunning it over the same partials produces identical outputs.
func (p *Pipeline) Merge(ctx context.Context, jobID string) error {
	state, err := p.begin(ctx, jobID, jobs.StatusMerging, stageMerger)
	if err != nil || state == nil {
		return err
	}
	defer func() { p.metrics.ObserveStage(stageMerger, err) }()

	if p.canceled(ctx, jobID) {
		p.jobLog(jobID, "merger stopped: job canceled")
		return nil
	}

	paths := p.store.Paths(jobID)
	segments, err := p.collectPartials(paths)
	if err != nil {
		return p.fail(ctx, jobID, stageMerger, fmt.Errorf("%w: %v", jobs.ErrMergeFailed, err))
	}

	merged := merge.Normalize(segments)

	out := merge.Outputs{TXTPath: paths.FinalTXT()}
	if state.Options.ProduceJSON {
		out.JSONPath = paths.FinalJSON()
	}
	if state.Options.ProduceVTT {
		out.VTTPath = paths.FinalVTT()
	}
	if err = merge.WriteOutputs(merged, out); err != nil {
		return p.fail(ctx, jobID, stageMerger, fmt.Errorf("%w: %v", jobs.ErrMergeFailed, err))
	}

	p.jobLog(jobID, "merger finished: %d segments", len(merged))
	return p.next(ctx, jobID, queue.QueuePackager, stageMerger)
}

// collectPartials reads every partial file in index order and flattens the
// segments. Chunks that legitimately produced no speech contribute nothing.
func (p *Pipeline) collectPartials(paths jobs.Paths) ([]merge.TimedSegment, error) {
	entries, err := os.ReadDir(paths.PartialsDir())
	if err != nil {
		return nil, fmt.Errorf("scan partials: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	var segments []merge.TimedSegment
	for _, name := range files {
		partial, err := asr.ReadPartial(filepath.Join(paths.PartialsDir(), name))
		if err != nil {
			return nil, err
		}
		segments = append(segments, partial.Segments...)
	}
	return segments, nil
}
