/**
 * Direct Redis Queue Consumer for the PDF OCR worker
 *
 * Uses simple Redis LIST operations: producers HSET the job payload into
 * <queue>:data and LPUSH the job ID; workers BRPOP IDs off the list.
 * Status is mirrored into <queue>:processing|completed|failed sets, the
 * <queue>:results and <queue>:errors hashes, and published on <queue>:events.
 */

package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/pdfocr-worker/internal/logging"
)

var errNoJobs = stderrors.New("no jobs available")

// Job statuses mirrored into Redis
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusRequeued   = "requeued"
)

// redisKeys derives every key used for one queue
type redisKeys struct {
	queue string
}

func (k redisKeys) list() string       { return k.queue }
func (k redisKeys) data() string       { return k.queue + ":data" }
func (k redisKeys) processing() string { return k.queue + ":processing" }
func (k redisKeys) completed() string  { return k.queue + ":completed" }
func (k redisKeys) failed() string     { return k.queue + ":failed" }
func (k redisKeys) results() string    { return k.queue + ":results" }
func (k redisKeys) errors() string     { return k.queue + ":errors" }
func (k redisKeys) events() string     { return k.queue + ":events" }

// RedisConsumer handles job consumption from Redis queue
type RedisConsumer struct {
	client *redis.Client
	runner Runner
	config *RedisConsumerConfig
	keys   redisKeys
	logger *logging.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// RedisConsumerConfig holds consumer configuration
type RedisConsumerConfig struct {
	RedisURL    string
	QueueName   string
	Concurrency int
	Runner      Runner
	JobTimeout  time.Duration // 0 disables the per-job deadline
	MaxRetries  int           // re-queues allowed for interrupted jobs
	Logger      *logging.Logger
}

// NewRedisConsumer creates a new Redis-based queue consumer
func NewRedisConsumer(ctx context.Context, cfg *RedisConsumerConfig) (*RedisConsumer, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("Runner is required")
	}
	if cfg.QueueName == "" {
		cfg.QueueName = "pdfocr:jobs"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	client, err := newRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	return &RedisConsumer{
		client: client,
		runner: cfg.Runner,
		config: cfg,
		keys:   redisKeys{queue: cfg.QueueName},
		logger: logging.OrNop(cfg.Logger),
	}, nil
}

func newRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Start begins processing jobs from the queue. Cancelling ctx has the same
// effect as Stop without closing the client.
func (c *RedisConsumer) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.logger.Info("starting redis queue consumer",
		"concurrency", c.config.Concurrency,
		"queue", c.config.QueueName,
	)

	for i := 0; i < c.config.Concurrency; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}
	return nil
}

// Stop interrupts running jobs, waits for the workers and closes the client.
// Interrupted jobs are pushed back onto the queue.
func (c *RedisConsumer) Stop() error {
	c.logger.Info("stopping queue consumer")
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.client.Close()
}

func (c *RedisConsumer) worker(id int) {
	defer c.wg.Done()
	log := c.logger.With("worker", id)
	log.Debug("worker started")

	for {
		select {
		case <-c.ctx.Done():
			log.Debug("worker stopping")
			return
		default:
		}

		if err := c.processNextJob(); err != nil {
			if stderrors.Is(err, errNoJobs) || c.ctx.Err() != nil {
				continue
			}
			log.Error("queue error", "error", err)
			select {
			case <-c.ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// processNextJob fetches and processes the next job from the queue
func (c *RedisConsumer) processNextJob() error {
	result, err := c.client.BRPop(c.ctx, 5*time.Second, c.keys.list()).Result()
	if err != nil {
		if err == redis.Nil {
			return errNoJobs
		}
		return fmt.Errorf("failed to fetch job: %w", err)
	}
	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}

	jobID := result[1]

	// Status writes must land even while shutting down.
	statusCtx := context.WithoutCancel(c.ctx)

	raw, err := c.client.HGet(statusCtx, c.keys.data(), jobID).Result()
	if err != nil {
		return fmt.Errorf("failed to get job data for %s: %w", jobID, err)
	}

	job, err := ParseJob([]byte(raw))
	if err != nil {
		c.updateJobStatus(statusCtx, jobID, StatusFailed, errorSummary(err, 0))
		return err
	}
	job.JobID = jobID

	log := c.logger.With("job_id", job.JobID, "path", job.PDFPath)
	c.updateJobStatus(statusCtx, job.JobID, StatusProcessing, nil)

	res, interrupted, err := runWithTimeout(c.ctx, c.runner, job, c.config.JobTimeout)
	if err == nil {
		c.updateJobStatus(statusCtx, job.JobID, StatusCompleted, resultSummary(res))
		return nil
	}

	job.Attempts++
	if interrupted && job.Attempts <= c.config.MaxRetries {
		if rqErr := c.requeue(statusCtx, job); rqErr != nil {
			log.Error("failed to re-queue job", "error", rqErr)
		} else {
			log.Warn("job interrupted, re-queued", "attempt", job.Attempts, "max_retries", c.config.MaxRetries, "error", err)
			return nil
		}
	}

	c.updateJobStatus(statusCtx, job.JobID, StatusFailed, errorSummary(err, job.Attempts))
	return nil
}

// requeue stores the updated attempt count and pushes the job to the
// consuming end of the list so it is picked up first.
func (c *RedisConsumer) requeue(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, c.keys.data(), job.JobID, data)
		pipe.SRem(ctx, c.keys.processing(), job.JobID)
		pipe.RPush(ctx, c.keys.list(), job.JobID)
		return nil
	})
	if err != nil {
		return err
	}
	c.publish(ctx, job.JobID, StatusRequeued)
	return nil
}

// updateJobStatus mirrors status into the queue's sets and hashes and
// publishes an event. Redis errors are logged only.
func (c *RedisConsumer) updateJobStatus(ctx context.Context, jobID, status string, detail map[string]interface{}) {
	var data []byte
	if detail != nil {
		var err error
		if data, err = json.Marshal(detail); err != nil {
			c.logger.Warn("failed to marshal job detail", "job_id", jobID, "error", err)
		}
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		switch status {
		case StatusProcessing:
			pipe.SAdd(ctx, c.keys.processing(), jobID)
		case StatusCompleted:
			pipe.SRem(ctx, c.keys.processing(), jobID)
			pipe.SAdd(ctx, c.keys.completed(), jobID)
			if data != nil {
				pipe.HSet(ctx, c.keys.results(), jobID, data)
			}
		case StatusFailed:
			pipe.SRem(ctx, c.keys.processing(), jobID)
			pipe.SAdd(ctx, c.keys.failed(), jobID)
			if data != nil {
				pipe.HSet(ctx, c.keys.errors(), jobID, data)
			}
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("failed to update job status in redis", "job_id", jobID, "status", status, "error", err)
	}

	c.publish(ctx, jobID, status)
}

// publish sends a job event for subscribers of <queue>:events
func (c *RedisConsumer) publish(ctx context.Context, jobID, status string) {
	if err := c.client.Publish(ctx, c.keys.events(), jobEvent(jobID, status, time.Now())).Err(); err != nil {
		c.logger.Warn("failed to publish job event", "job_id", jobID, "status", status, "error", err)
	}
}

func jobEvent(jobID, status string, at time.Time) []byte {
	event := map[string]interface{}{
		"event":     fmt.Sprintf("job:%s", status),
		"jobId":     jobID,
		"timestamp": at.Format(time.RFC3339),
	}
	data, _ := json.Marshal(event)
	return data
}

// GetStats returns queue statistics
func (c *RedisConsumer) GetStats(ctx context.Context) (map[string]int64, error) {
	return queueStats(ctx, c.client, c.keys)
}

func queueStats(ctx context.Context, client *redis.Client, keys redisKeys) (map[string]int64, error) {
	pipe := client.Pipeline()
	waiting := pipe.LLen(ctx, keys.list())
	processing := pipe.SCard(ctx, keys.processing())
	completed := pipe.SCard(ctx, keys.completed())
	failed := pipe.SCard(ctx, keys.failed())
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read queue stats: %w", err)
	}

	return map[string]int64{
		"waiting":    waiting.Val(),
		"processing": processing.Val(),
		"completed":  completed.Val(),
		"failed":     failed.Val(),
	}, nil
}
