package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adverant/nexus/pdfocr-worker/internal/config"
	"github.com/adverant/nexus/pdfocr-worker/internal/logging"
	"github.com/adverant/nexus/pdfocr-worker/internal/queue"
)

// consumer is implemented by both queue backends.
type consumer interface {
	Start(ctx context.Context) error
	Stop() error
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Consume OCR jobs from the queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initRunner(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := newConsumer(ctx, cfg.Queue, env.Runner)
		if err != nil {
			return err
		}
		if err := c.Start(ctx); err != nil {
			return err
		}

		zap.L().Info("waiting for jobs",
			zap.String("backend", cfg.Queue.Backend),
			zap.String("queue", cfg.Queue.Name),
			zap.Int("concurrency", cfg.Queue.Concurrency),
		)

		<-ctx.Done()
		zap.L().Info("shutdown signal received")

		if err := c.Stop(); err != nil {
			zap.L().Warn("error stopping queue consumer", zap.Error(err))
		}
		zap.L().Info("shutdown complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func newConsumer(ctx context.Context, q config.QueueConfig, runner queue.Runner) (consumer, error) {
	log := logging.NewLogger("queue")

	switch q.Backend {
	case config.QueueBackendAsynq:
		return queue.NewConsumer(&queue.ConsumerConfig{
			RedisURL:    q.RedisURL,
			QueueName:   q.Name,
			Concurrency: q.Concurrency,
			Runner:      runner,
			JobTimeout:  q.JobTimeout,
			Logger:      log,
		})
	case config.QueueBackendRedis:
		return queue.NewRedisConsumer(ctx, &queue.RedisConsumerConfig{
			RedisURL:    q.RedisURL,
			QueueName:   q.Name,
			Concurrency: q.Concurrency,
			Runner:      runner,
			JobTimeout:  q.JobTimeout,
			MaxRetries:  q.MaxRetries,
			Logger:      log,
		})
	default:
		return nil, fmt.Errorf("unknown queue backend %q", q.Backend)
	}
}
