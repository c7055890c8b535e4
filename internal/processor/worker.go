package processor

import (
	"context"
	"fmt"

	"github.com/adverant/nexus/pdfocr-worker/internal/errors"
	"github.com/adverant/nexus/pdfocr-worker/internal/logging"
	"github.com/adverant/nexus/pdfocr-worker/internal/planner"
)

// WorkerConfig holds the per-page rendering and recognition settings.
type WorkerConfig struct {
	DPI       int
	Languages []string
}

// BatchWorker renders a page range and recognizes each page. A batch is
// atomic: any page failure fails the whole batch and no pages are returned.
type BatchWorker struct {
	renderer   Renderer
	recognizer Recognizer
	cfg        WorkerConfig
	logger     *logging.Logger
}

// NewBatchWorker creates a batch worker.
func NewBatchWorker(renderer Renderer, recognizer Recognizer, cfg WorkerConfig, logger *logging.Logger) *BatchWorker {
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &BatchWorker{
		renderer:   renderer,
		recognizer: recognizer,
		cfg:        cfg,
		logger:     logging.OrNop(logger),
	}
}

// Process renders and recognizes pages r.Start..r.End of path.
func (w *BatchWorker) Process(ctx context.Context, path string, r planner.PageRange) BatchOutcome {
	images, err := w.renderer.RenderPages(ctx, path, r.Start, r.End, w.cfg.DPI)
	if err != nil {
		return BatchOutcome{Range: r, Err: errors.NewRenderFailedError(path, r.Start, r.End, err)}
	}
	if len(images) != r.Len() {
		return BatchOutcome{Range: r, Err: errors.NewRenderFailedError(path, r.Start, r.End,
			fmt.Errorf("renderer returned %d images for %d pages", len(images), r.Len()))}
	}

	pages := make([]PageResult, 0, r.Len())
	for i := range images {
		page := r.Start + i
		grey := toGrey(images[i])
		images[i] = nil

		text, err := w.recognizer.Recognize(ctx, grey, w.cfg.Languages)
		if err != nil {
			return BatchOutcome{Range: r, Err: errors.NewOCRFailedError(path, r.Start, r.End, page, err)}
		}
		w.logger.Debug("page recognized", "path", path, "page", page, "chars", len(text))
		pages = append(pages, PageResult{PageNumber: page, Text: text})
	}

	return BatchOutcome{Range: r, Pages: pages}
}
