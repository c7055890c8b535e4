package processor

import (
	"context"
	"time"

	"github.com/adverant/nexus/pdfocr-worker/internal/errors"
)

// DocumentFailure pairs a document with the error that stopped it.
type DocumentFailure struct {
	Path string
	Err  error
}

// RunSummary collects the outcome of a multi-document run.
type RunSummary struct {
	Succeeded []*JobResult
	Failed    []DocumentFailure
	Duration  time.Duration
}

// RunAll processes paths one after another. A failed document is logged and
// skipped. Invariant violations and context cancellation stop the run and are
// returned with the summary gathered so far.
func (r *JobRunner) RunAll(ctx context.Context, paths []string) (*RunSummary, error) {
	startTime := time.Now()
	summary := &RunSummary{}
	defer func() { summary.Duration = time.Since(startTime) }()

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("run interrupted", "remaining", len(paths)-i, "error", err)
			return summary, err
		}

		result, err := r.Run(ctx, JobRequest{Path: path})
		if err != nil {
			summary.Failed = append(summary.Failed, DocumentFailure{Path: path, Err: err})
			if errors.IsFatal(err) {
				r.logger.Error("aborting run on invariant violation", "path", path, "error", err)
				return summary, err
			}
			continue
		}
		summary.Succeeded = append(summary.Succeeded, result)
	}

	r.logger.Info("run complete",
		"documents", len(paths),
		"succeeded", len(summary.Succeeded),
		"failed", len(summary.Failed),
		"duration", time.Since(startTime),
	)
	return summary, nil
}
