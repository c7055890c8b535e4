package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/adverant/nexus/pdfocr-worker/internal/config"
	"github.com/adverant/nexus/pdfocr-worker/internal/logging"
	"github.com/adverant/nexus/pdfocr-worker/internal/pdf"
	"github.com/adverant/nexus/pdfocr-worker/internal/planner"
	"github.com/adverant/nexus/pdfocr-worker/internal/processor"
	"github.com/adverant/nexus/pdfocr-worker/internal/storage"
)

// workerEnv holds the runner and the resources it owns.
type workerEnv struct {
	Runner *processor.JobRunner
	Ledger *storage.PostgresClient // nil when store.database_url is unset
}

// Close releases resources held by the environment.
func (we *workerEnv) Close() {
	if we.Ledger != nil {
		_ = we.Ledger.Close()
	}
}

// initRunner wires the page counter, renderer, OCR engine, planner and
// output writer into a JobRunner. Callers should defer env.Close().
func initRunner(ctx context.Context, c *config.Config) (*workerEnv, error) {
	log := logging.NewLogger("pdfocr")

	renderer := pdf.NewPopplerRenderer(c.Render.PdftoppmPath, c.Render.TempDir)
	recognizer := processor.NewTesseractOCR(&processor.TesseractConfig{
		TessdataPrefix: c.OCR.TessdataPrefix,
		DPI:            c.OCR.DPI,
	})
	worker := processor.NewBatchWorker(renderer, recognizer, processor.WorkerConfig{
		DPI:       c.OCR.DPI,
		Languages: c.OCR.Languages,
	}, log)

	env := &workerEnv{}
	runnerCfg := &processor.RunnerConfig{
		Counter: pdf.NewPageCounter(),
		Planner: planner.New(planner.Config{
			BatchMemoryBytes: c.Planner.BatchMemoryBytes,
			DefaultWorkers:   c.Planner.DefaultWorkers,
			MaxWorkers:       c.Planner.MaxWorkers,
		}),
		Resources: planner.SystemResources{},
		Worker:    worker,
		Writer:    processor.NewOutputWriter(c.Output.Dir, c.Output.PageMarkers),
		Logger:    log,
	}

	if c.Store.DatabaseURL != "" {
		ledger, err := storage.NewPostgresClient(c.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "connect job ledger")
		}
		if err := ledger.EnsureSchema(ctx); err != nil {
			_ = ledger.Close()
			return nil, eris.Wrap(err, "ensure job ledger schema")
		}
		env.Ledger = ledger
		runnerCfg.Ledger = ledger
		zap.L().Info("job ledger enabled")
	}

	runner, err := processor.NewJobRunner(runnerCfg)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "build job runner")
	}
	env.Runner = runner

	zap.L().Info("worker configured",
		zap.Int("dpi", c.OCR.DPI),
		zap.Strings("languages", c.OCR.Languages),
		zap.Int64("batch_memory_bytes", c.Planner.BatchMemoryBytes),
		zap.Int("max_workers", c.Planner.MaxWorkers),
		zap.String("output_dir", c.Output.Dir),
	)
	return env, nil
}
