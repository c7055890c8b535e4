/**
 * OCR Types - Shared data structures for batch OCR
 *
 * Collaborator interfaces (page counting, rendering, recognition) and the
 * values that flow from batch workers to the aggregator.
 */

package processor

import (
	"context"
	"image"

	"github.com/adverant/nexus/pdfocr-worker/internal/planner"
)

// PageCounter reports how many pages a PDF has
type PageCounter interface {
	Count(ctx context.Context, path string) (int, error)
}

// Renderer rasterises an inclusive page range, one image per page in order
type Renderer interface {
	RenderPages(ctx context.Context, path string, first, last, dpi int) ([]image.Image, error)
}

// Recognizer runs OCR on a single page image
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image, languages []string) (string, error)
}

// BatchProcessor turns one page range into exactly one outcome
type BatchProcessor interface {
	Process(ctx context.Context, path string, r planner.PageRange) BatchOutcome
}

// PageResult is the recognized text of one page. Text may be empty.
type PageResult struct {
	PageNumber int
	Text       string
}

// BatchOutcome is either the full set of pages for Range or a failure.
type BatchOutcome struct {
	Range planner.PageRange
	Pages []PageResult
	Err   error
}

// Failed reports whether the batch failed.
func (o BatchOutcome) Failed() bool {
	return o.Err != nil
}
