package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Enqueuer submits jobs to a queue backend
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) error
	Close() error
}

// RedisEnqueuer pushes jobs for RedisConsumer
type RedisEnqueuer struct {
	client *redis.Client
	keys   redisKeys
}

// NewRedisEnqueuer connects to redisURL
func NewRedisEnqueuer(ctx context.Context, redisURL, queueName string) (*RedisEnqueuer, error) {
	client, err := newRedisClient(ctx, redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisEnqueuer{client: client, keys: redisKeys{queue: queueName}}, nil
}

// Enqueue stores the payload and pushes the job ID in one transaction
func (e *RedisEnqueuer) Enqueue(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	_, err = e.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, e.keys.data(), job.JobID, data)
		pipe.LPush(ctx, e.keys.list(), job.JobID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.JobID, err)
	}
	return nil
}

// Stats returns queue statistics
func (e *RedisEnqueuer) Stats(ctx context.Context) (map[string]int64, error) {
	return queueStats(ctx, e.client, e.keys)
}

// Close closes the Redis client
func (e *RedisEnqueuer) Close() error {
	return e.client.Close()
}

// AsynqEnqueuer submits pdf:ocr tasks for Consumer
type AsynqEnqueuer struct {
	client     *asynq.Client
	queueName  string
	maxRetries int
}

// NewAsynqEnqueuer creates an asynq client for redisURL
func NewAsynqEnqueuer(redisURL, queueName string, maxRetries int) (*AsynqEnqueuer, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &AsynqEnqueuer{
		client:     asynq.NewClient(redisOpt),
		queueName:  queueName,
		maxRetries: maxRetries,
	}, nil
}

// Enqueue submits job as a task whose ID is the job ID
func (e *AsynqEnqueuer) Enqueue(ctx context.Context, job Job) error {
	task, opts, err := newOCRTask(job, e.queueName, e.maxRetries)
	if err != nil {
		return err
	}
	if _, err := e.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.JobID, err)
	}
	return nil
}

// Close closes the asynq client
func (e *AsynqEnqueuer) Close() error {
	return e.client.Close()
}

func newOCRTask(job Job, queueName string, maxRetries int) (*asynq.Task, []asynq.Option, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	opts := []asynq.Option{
		asynq.Queue(queueName),
		asynq.TaskID(job.JobID),
		asynq.MaxRetry(maxRetries),
	}
	return asynq.NewTask(TaskTypeOCR, payload), opts, nil
}
