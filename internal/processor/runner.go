/**
 * PDF Job Runner
 *
 * Orchestrates one document end to end:
 *   page count -> batch plan -> bounded worker pool -> aggregator -> output file
 *
 * Workers never touch shared state. Each submitted batch sends exactly one
 * outcome on a channel; this goroutine is the only one feeding the aggregator,
 * and the output file is written once, after aggregation, by the runner.
 */

package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/adverant/nexus/pdfocr-worker/internal/errors"
	"github.com/adverant/nexus/pdfocr-worker/internal/logging"
	"github.com/adverant/nexus/pdfocr-worker/internal/planner"
	"github.com/adverant/nexus/pdfocr-worker/internal/storage"
)

// JobLedger persists per-document job status
type JobLedger interface {
	UpsertJob(ctx context.Context, rec *storage.JobRecord) error
}

// ProgressFunc is called after each batch resolves, from the collecting
// goroutine only.
type ProgressFunc func(done, total int, outcome BatchOutcome)

// RunnerConfig holds runner dependencies
type RunnerConfig struct {
	Counter   PageCounter
	Planner   *planner.Planner
	Resources planner.Resources
	Worker    BatchProcessor
	Writer    *OutputWriter
	Ledger    JobLedger // optional
	Progress  ProgressFunc
	Logger    *logging.Logger
}

// JobRequest identifies one document to process
type JobRequest struct {
	JobID      string
	Path       string
	OutputPath string // defaults to Writer.PathFor(Path)
}

// JobResult describes a completed document
type JobResult struct {
	JobID       string
	Path        string
	OutputPath  string
	PageCount   int
	BatchCount  int
	BatchSize   int
	WorkerLimit int
	Duration    time.Duration
}

// JobRunner processes documents
type JobRunner struct {
	counter   PageCounter
	planner   *planner.Planner
	resources planner.Resources
	worker    BatchProcessor
	writer    *OutputWriter
	ledger    JobLedger
	progress  ProgressFunc
	logger    *logging.Logger
}

// NewJobRunner creates a new job runner
func NewJobRunner(cfg *RunnerConfig) (*JobRunner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Counter == nil {
		return nil, fmt.Errorf("page counter is required")
	}
	if cfg.Worker == nil {
		return nil, fmt.Errorf("batch worker is required")
	}
	if cfg.Writer == nil {
		return nil, fmt.Errorf("output writer is required")
	}

	r := &JobRunner{
		counter:   cfg.Counter,
		planner:   cfg.Planner,
		resources: cfg.Resources,
		worker:    cfg.Worker,
		writer:    cfg.Writer,
		ledger:    cfg.Ledger,
		progress:  cfg.Progress,
		logger:    logging.OrNop(cfg.Logger),
	}
	if r.planner == nil {
		r.planner = planner.New(planner.Config{})
	}
	if r.resources == nil {
		r.resources = planner.SystemResources{}
	}
	return r, nil
}

// OutputPathFor returns where the text for pdfPath is written by default
func (r *JobRunner) OutputPathFor(pdfPath string) string {
	return r.writer.PathFor(pdfPath)
}

// Run processes one document. On a batch failure the returned error is a
// DOCUMENT_FAILED ProcessingError carrying the failing page range and cause.
func (r *JobRunner) Run(ctx context.Context, req JobRequest) (*JobResult, error) {
	startTime := time.Now()

	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}
	if req.OutputPath == "" {
		req.OutputPath = r.writer.PathFor(req.Path)
	}

	log := r.logger.With("job_id", req.JobID, "path", req.Path)
	log.Info("document started", "output", req.OutputPath)

	r.record(ctx, log, &storage.JobRecord{
		ID:         req.JobID,
		PDFPath:    req.Path,
		OutputPath: req.OutputPath,
		Status:     storage.StatusProcessing,
	})

	result, err := r.run(ctx, req, log)
	duration := time.Since(startTime)

	rec := &storage.JobRecord{
		ID:               req.JobID,
		PDFPath:          req.Path,
		OutputPath:       req.OutputPath,
		ProcessingTimeMs: duration.Milliseconds(),
	}
	if err != nil {
		rec.Status = storage.StatusFailed
		rec.ErrorCode = string(errors.CodeOf(err))
		rec.ErrorMessage = err.Error()
		if pe, ok := errors.AsProcessingError(err); ok && pe.HasRange() {
			rec.FailedFirstPage = pe.FirstPage
			rec.FailedLastPage = pe.LastPage
		}
		if result != nil {
			rec.PageCount = result.PageCount
			rec.BatchCount = result.BatchCount
		}
		r.record(ctx, log, rec)
		log.Error("document failed", "error", err, "code", string(errors.CodeOf(err)), "duration", duration)
		return nil, err
	}

	result.Duration = duration
	rec.Status = storage.StatusCompleted
	rec.PageCount = result.PageCount
	rec.BatchCount = result.BatchCount
	r.record(ctx, log, rec)

	log.Info("document completed",
		"pages", result.PageCount,
		"batches", result.BatchCount,
		"duration", duration,
	)
	return result, nil
}

// run returns a partially filled result alongside an error once planning
// succeeded, so the ledger can record page and batch counts.
func (r *JobRunner) run(ctx context.Context, req JobRequest, log *logging.Logger) (*JobResult, error) {
	pageCount, err := r.counter.Count(ctx, req.Path)
	if err != nil {
		if errors.CodeOf(err) == "" && ctx.Err() == nil {
			err = errors.NewDocumentUnreadableError(req.Path, err)
		}
		return nil, err
	}

	memory, err := r.resources.AvailableMemory(ctx)
	if err != nil {
		log.Warn("available memory unknown, using one page per batch", "error", err)
		memory = 0
	}

	plan, err := r.planner.Plan(pageCount, memory, r.resources.CPUCount())
	if err != nil {
		if errors.HasCode(err, errors.ErrorEmptyDocument) {
			return nil, errors.NewEmptyDocumentError(req.Path)
		}
		return nil, err
	}

	result := &JobResult{
		JobID:       req.JobID,
		Path:        req.Path,
		OutputPath:  req.OutputPath,
		PageCount:   plan.PageCount,
		BatchCount:  len(plan.Batches),
		BatchSize:   plan.BatchSize,
		WorkerLimit: plan.WorkerLimit,
	}

	log.Info("batches planned",
		"pages", plan.PageCount,
		"batches", len(plan.Batches),
		"batch_size", plan.BatchSize,
		"workers", plan.WorkerLimit,
		"available_memory", memory,
	)

	agg := NewAggregator(pageCount, log)
	fatal := r.dispatch(ctx, req.Path, plan, agg, log)
	if fatal != nil {
		return result, fatal
	}

	if rng, cause, failed := agg.Failure(); failed {
		return result, errors.NewDocumentFailedError(req.Path, rng.Start, rng.End, cause)
	}

	pages, err := agg.Finalize()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("document interrupted after %d of %d pages: %w",
				agg.RecordedPages(), pageCount, ctxErr)
		}
		return result, err
	}

	if err := r.writer.Write(req.OutputPath, pages); err != nil {
		return result, err
	}

	return result, nil
}

// dispatch submits every batch of plan to a pool of plan.WorkerLimit
// workers and records outcomes as they arrive. After the first failure no
// further batches start; running ones finish and are still recorded. The
// returned error is non-nil only for invariant violations.
func (r *JobRunner) dispatch(ctx context.Context, path string, plan planner.Plan, agg *Aggregator, log *logging.Logger) error {
	submitCtx, stopSubmitting := context.WithCancel(ctx)
	defer stopSubmitting()

	outcomes := make(chan BatchOutcome, len(plan.Batches))

	var g errgroup.Group
	g.SetLimit(plan.WorkerLimit)

	go func() {
		for _, b := range plan.Batches {
			if submitCtx.Err() != nil {
				break
			}
			batch := b
			// Blocks while all workers are busy.
			g.Go(func() error {
				if submitCtx.Err() != nil {
					return nil
				}
				o := r.worker.Process(ctx, path, batch.Range)
				// Cancel before this slot is released so the next
				// queued batch sees it.
				if o.Failed() {
					stopSubmitting()
				}
				outcomes <- o
				return nil
			})
		}
		_ = g.Wait()
		close(outcomes)
	}()

	progress := r.progress
	if progress == nil {
		progress = func(done, total int, o BatchOutcome) { logBatch(log, done, total, o) }
	}

	var fatal error
	done := 0
	for o := range outcomes {
		done++
		if o.Failed() {
			stopSubmitting()
			agg.RecordFailure(o.Range, o.Err)
		} else if err := agg.RecordSuccess(o.Range, o.Pages); err != nil {
			stopSubmitting()
			if fatal == nil {
				fatal = err
			}
			log.Error("invariant violated", "range", o.Range.String(), "error", err)
		}
		progress(done, len(plan.Batches), o)
	}

	return fatal
}

func logBatch(log *logging.Logger, done, total int, o BatchOutcome) {
	if o.Failed() {
		log.Error("batch failed",
			"range", o.Range.String(),
			"progress", fmt.Sprintf("%d/%d", done, total),
			"error", o.Err,
		)
		return
	}
	log.Info("batch completed",
		"range", o.Range.String(),
		"progress", fmt.Sprintf("%d/%d", done, total),
	)
}

// record writes to the ledger when one is configured. Ledger errors are
// logged and never fail the document.
func (r *JobRunner) record(ctx context.Context, log *logging.Logger, rec *storage.JobRecord) {
	if r.ledger == nil {
		return
	}
	// Record the final status even when ctx was cancelled mid-document.
	ledgerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.ledger.UpsertJob(ledgerCtx, rec); err != nil {
		log.Warn("failed to record job status", "status", rec.Status, "error", err)
	}
}
