package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/pdfocr-worker/internal/errors"
	"github.com/adverant/nexus/pdfocr-worker/internal/logging"
)

func newTestConsumer(runner Runner, timeout time.Duration) *Consumer {
	return &Consumer{
		runner: runner,
		config: &ConsumerConfig{QueueName: "pdfocr:test", JobTimeout: timeout},
		logger: logging.Nop(),
	}
}

func ocrTask(t *testing.T, job Job) *asynq.Task {
	t.Helper()
	task, _, err := newOCRTask(job, "pdfocr:test", 3)
	require.NoError(t, err)
	return task
}

func TestNewConsumer_Validation(t *testing.T) {
	_, err := NewConsumer(&ConsumerConfig{QueueName: "q", Runner: &fakeRunner{}})
	assert.ErrorContains(t, err, "RedisURL")

	_, err = NewConsumer(&ConsumerConfig{RedisURL: "redis://localhost:6379", Runner: &fakeRunner{}})
	assert.ErrorContains(t, err, "QueueName")

	_, err = NewConsumer(&ConsumerConfig{RedisURL: "redis://localhost:6379", QueueName: "q"})
	assert.ErrorContains(t, err, "Runner")
}

func TestHandleOCR_Success(t *testing.T) {
	runner := &fakeRunner{}
	c := newTestConsumer(runner, time.Minute)

	job := Job{JobID: "j1", PDFPath: "/in/a.pdf", OutputPath: "/out/a.txt"}
	require.NoError(t, c.handleOCR(context.Background(), ocrTask(t, job)))

	reqs := runner.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, job.Request(), reqs[0])
}

func TestHandleOCR_DocumentFailureSkipsRetry(t *testing.T) {
	runner := &fakeRunner{err: errors.NewDocumentFailedError("a.pdf", 1, 4, stderrors.New("ocr"))}
	c := newTestConsumer(runner, 0)

	err := c.handleOCR(context.Background(), ocrTask(t, NewJob("a.pdf", "")))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleOCR_FatalSkipsRetry(t *testing.T) {
	runner := &fakeRunner{err: errors.NewDuplicateBatchError(1, 4, 2)}
	c := newTestConsumer(runner, 0)

	err := c.handleOCR(context.Background(), ocrTask(t, NewJob("a.pdf", "")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleOCR_InterruptedIsRetried(t *testing.T) {
	c := newTestConsumer(&fakeRunner{block: true}, 10*time.Millisecond)

	err := c.handleOCR(context.Background(), ocrTask(t, NewJob("a.pdf", "")))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHandleOCR_BadPayload(t *testing.T) {
	c := newTestConsumer(&fakeRunner{}, 0)

	err := c.handleOCR(context.Background(), asynq.NewTask(TaskTypeOCR, []byte(`{}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestNewOCRTask(t *testing.T) {
	job := NewJob("/in/a.pdf", "/out/a.txt")
	task, opts, err := newOCRTask(job, "pdfocr:jobs", 2)
	require.NoError(t, err)

	assert.Equal(t, TaskTypeOCR, task.Type())
	assert.Len(t, opts, 3)

	var decoded Job
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	assert.Equal(t, job.JobID, decoded.JobID)
	assert.Equal(t, job.PDFPath, decoded.PDFPath)
	assert.Equal(t, job.OutputPath, decoded.OutputPath)
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 5*time.Second, retryDelay(0, nil, nil))
	assert.Equal(t, 20*time.Second, retryDelay(2, nil, nil))
	assert.Equal(t, 60*time.Second, retryDelay(10, nil, nil))
	assert.Equal(t, 60*time.Second, retryDelay(70, nil, nil))
}
