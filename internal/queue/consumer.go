/**
 * Asynq Queue Consumer for the PDF OCR worker
 *
 * Consumes "pdf:ocr" tasks through asynq. Retries are left to asynq:
 * interrupted jobs return a plain error, document failures are wrapped
 * with asynq.SkipRetry.
 */

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/adverant/nexus/pdfocr-worker/internal/errors"
	"github.com/adverant/nexus/pdfocr-worker/internal/logging"
)

// Consumer handles job consumption from an asynq queue
type Consumer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	runner Runner
	config *ConsumerConfig
	logger *logging.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL    string
	QueueName   string
	Concurrency int
	Runner      Runner
	JobTimeout  time.Duration // 0 disables the per-job deadline
	Logger      *logging.Logger
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("Runner is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := logging.OrNop(cfg.Logger)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			// Exponential backoff: 5s, 10s, 20s, capped at 60s
			RetryDelayFunc: retryDelay,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task processing error",
					"type", task.Type(),
					"payload", string(task.Payload()),
					"error", err,
				)
			}),
			Logger: logger.Sugar(),
		},
	)

	consumer := &Consumer{
		server: server,
		mux:    asynq.NewServeMux(),
		runner: cfg.Runner,
		config: cfg,
		logger: logger,
	}
	consumer.mux.HandleFunc(TaskTypeOCR, consumer.handleOCR)

	return consumer, nil
}

func retryDelay(n int, err error, task *asynq.Task) time.Duration {
	delay := time.Duration(5*(1<<uint(n))) * time.Second
	if delay > 60*time.Second || delay <= 0 {
		delay = 60 * time.Second
	}
	return delay
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("starting asynq queue consumer",
		"concurrency", c.config.Concurrency,
		"queue", c.config.QueueName,
	)

	if err := c.server.Start(c.mux); err != nil {
		return fmt.Errorf("failed to start asynq server: %w", err)
	}
	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop() error {
	c.logger.Info("stopping queue consumer")
	c.server.Shutdown()
	c.logger.Info("queue consumer stopped")
	return nil
}

// handleOCR processes one pdf:ocr task
func (c *Consumer) handleOCR(ctx context.Context, task *asynq.Task) error {
	job, err := ParseJob(task.Payload())
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if id, ok := asynq.GetTaskID(ctx); ok && job.JobID == "" {
		job.JobID = id
	}

	log := c.logger.With("job_id", job.JobID, "path", job.PDFPath)
	if retried, ok := asynq.GetRetryCount(ctx); ok && retried > 0 {
		log.Info("retrying job", "retry", retried)
	}

	_, interrupted, err := runWithTimeout(ctx, c.runner, job, c.config.JobTimeout)
	if err == nil {
		return nil
	}

	if interrupted {
		return fmt.Errorf("job %s interrupted: %w", job.JobID, err)
	}
	if errors.IsFatal(err) {
		log.Error("invariant violated", "error", err)
	}
	return fmt.Errorf("job %s failed: %v: %w", job.JobID, err, asynq.SkipRetry)
}
