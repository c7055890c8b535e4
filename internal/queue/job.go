package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/adverant/nexus/pdfocr-worker/internal/errors"
	"github.com/adverant/nexus/pdfocr-worker/internal/processor"
)

// TaskTypeOCR is the asynq task type for one document
const TaskTypeOCR = "pdf:ocr"

// Job is the payload carried by both queue backends
type Job struct {
	JobID      string `json:"jobId"`
	PDFPath    string `json:"pdfPath"`
	OutputPath string `json:"outputPath,omitempty"`

	// Redis backend bookkeeping
	Attempts   int       `json:"attempts,omitempty"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// NewJob creates a job with a fresh ID
func NewJob(pdfPath, outputPath string) Job {
	return Job{
		JobID:      uuid.NewString(),
		PDFPath:    pdfPath,
		OutputPath: outputPath,
		EnqueuedAt: time.Now().UTC(),
	}
}

// ParseJob decodes and validates a job payload
func ParseJob(data []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return Job{}, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if job.PDFPath == "" {
		return Job{}, fmt.Errorf("job %q has no pdfPath", job.JobID)
	}
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	return job, nil
}

// Request converts the job to a runner request
func (j Job) Request() processor.JobRequest {
	return processor.JobRequest{
		JobID:      j.JobID,
		Path:       j.PDFPath,
		OutputPath: j.OutputPath,
	}
}

// Runner processes one document
type Runner interface {
	Run(ctx context.Context, req processor.JobRequest) (*processor.JobResult, error)
}

var _ Runner = (*processor.JobRunner)(nil)

// runWithTimeout runs job under timeout when it is positive. The returned
// bool reports whether the failure was an interruption (shutdown or
// deadline) rather than a property of the document, i.e. worth retrying.
func runWithTimeout(ctx context.Context, runner Runner, job Job, timeout time.Duration) (*processor.JobResult, bool, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := runner.Run(runCtx, job.Request())
	if err == nil {
		return result, false, nil
	}
	interrupted := runCtx.Err() != nil && !errors.IsFatal(err)
	return nil, interrupted, err
}

// resultSummary is stored in the results hash for completed jobs
func resultSummary(result *processor.JobResult) map[string]interface{} {
	return map[string]interface{}{
		"jobId":            result.JobID,
		"pdfPath":          result.Path,
		"outputPath":       result.OutputPath,
		"pageCount":        result.PageCount,
		"batchCount":       result.BatchCount,
		"processingTimeMs": result.Duration.Milliseconds(),
	}
}

// errorSummary is stored in the errors hash for failed jobs
func errorSummary(err error, attempts int) map[string]interface{} {
	summary := map[string]interface{}{
		"error":    err.Error(),
		"attempts": attempts,
	}
	if pe, ok := errors.AsProcessingError(err); ok {
		for k, v := range pe.ToMap() {
			summary[k] = v
		}
	}
	return summary
}
