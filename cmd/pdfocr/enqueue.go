package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adverant/nexus/pdfocr-worker/internal/config"
	"github.com/adverant/nexus/pdfocr-worker/internal/queue"
)

var (
	enqueueList      string
	enqueueOutputDir string
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue [pdf...]",
	Short: "Submit PDFs to the OCR queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		paths, err := collectPaths(args, enqueueList)
		if err != nil {
			return err
		}

		enq, err := newEnqueuer(ctx, cfg.Queue)
		if err != nil {
			return err
		}
		defer enq.Close()

		for _, p := range paths {
			job := queue.NewJob(p, outputPathFor(p, enqueueOutputDir))
			if err := enq.Enqueue(ctx, job); err != nil {
				return eris.Wrapf(err, "enqueue %s", p)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", job.JobID, p)
		}

		zap.L().Info("jobs enqueued",
			zap.Int("count", len(paths)),
			zap.String("backend", cfg.Queue.Backend),
			zap.String("queue", cfg.Queue.Name),
		)
		return nil
	},
}

func init() {
	enqueueCmd.Flags().StringVar(&enqueueList, "list", "", "file with one PDF path per line")
	enqueueCmd.Flags().StringVar(&enqueueOutputDir, "output-dir", "", "directory for .txt output; empty leaves it to the worker's output.dir")
	rootCmd.AddCommand(enqueueCmd)
}

func newEnqueuer(ctx context.Context, q config.QueueConfig) (queue.Enqueuer, error) {
	switch q.Backend {
	case config.QueueBackendAsynq:
		return queue.NewAsynqEnqueuer(q.RedisURL, q.Name, q.MaxRetries)
	case config.QueueBackendRedis:
		return queue.NewRedisEnqueuer(ctx, q.RedisURL, q.Name)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", q.Backend)
	}
}

// outputPathFor maps a PDF to <dir>/<base>.txt, or "" when dir is empty.
func outputPathFor(pdfPath, dir string) string {
	if dir == "" {
		return ""
	}
	base := filepath.Base(pdfPath)
	return filepath.Join(dir, base[:len(base)-len(filepath.Ext(base))]+".txt")
}
