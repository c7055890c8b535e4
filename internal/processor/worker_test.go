package processor

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/pdfocr-worker/internal/errors"
	"github.com/adverant/nexus/pdfocr-worker/internal/planner"
)

func TestBatchWorker_Process(t *testing.T) {
	renderer := &fakeRenderer{}
	recognizer := &fakeRecognizer{}
	w := NewBatchWorker(renderer, recognizer, WorkerConfig{DPI: 150, Languages: []string{"eng", "fra"}}, nil)

	out := w.Process(context.Background(), "doc.pdf", planner.PageRange{Start: 3, End: 6})

	require.False(t, out.Failed())
	assert.Equal(t, planner.PageRange{Start: 3, End: 6}, out.Range)
	assert.Equal(t, []PageResult{
		{PageNumber: 3, Text: "text of page 3\n"},
		{PageNumber: 4, Text: "text of page 4\n"},
		{PageNumber: 5, Text: ""},
		{PageNumber: 6, Text: "text of page 6\n"},
	}, out.Pages)
	assert.Equal(t, []string{"eng", "fra"}, recognizer.langs)
	assert.Equal(t, 0, recognizer.notGrey, "recognizer must receive greyscale images")
}

func TestBatchWorker_OCRFailureFailsWholeBatch(t *testing.T) {
	cause := stderrors.New("tesseract: page unreadable")
	recognizer := &fakeRecognizer{failPages: map[int]error{7: cause}}
	w := NewBatchWorker(&fakeRenderer{}, recognizer, WorkerConfig{Languages: []string{"eng"}}, nil)

	out := w.Process(context.Background(), "doc.pdf", planner.PageRange{Start: 5, End: 8})

	require.True(t, out.Failed())
	assert.Empty(t, out.Pages, "a failed batch carries no pages")
	assert.Equal(t, planner.PageRange{Start: 5, End: 8}, out.Range)

	pe, ok := errors.AsProcessingError(out.Err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorOCRFailed, pe.Code)
	assert.Equal(t, 5, pe.FirstPage)
	assert.Equal(t, 8, pe.LastPage)
	assert.Equal(t, 7, pe.Details["page"])
	assert.ErrorIs(t, out.Err, cause)
	assert.Equal(t, []int{5, 6, 7}, recognizer.seen, "pages after the failure are not recognized")
}

func TestBatchWorker_RenderFailure(t *testing.T) {
	cause := stderrors.New("pdftoppm exited 1")
	renderer := &fakeRenderer{failAt: map[int]error{1: cause}}
	recognizer := &fakeRecognizer{}
	w := NewBatchWorker(renderer, recognizer, WorkerConfig{}, nil)

	out := w.Process(context.Background(), "doc.pdf", planner.PageRange{Start: 1, End: 4})

	require.True(t, out.Failed())
	assert.True(t, errors.HasCode(out.Err, errors.ErrorRenderFailed))
	assert.ErrorIs(t, out.Err, cause)
	assert.Empty(t, recognizer.seen)
}

func TestBatchWorker_ImageCountMismatch(t *testing.T) {
	w := NewBatchWorker(&fakeRenderer{short: true}, &fakeRecognizer{}, WorkerConfig{}, nil)

	out := w.Process(context.Background(), "doc.pdf", planner.PageRange{Start: 1, End: 3})

	require.True(t, out.Failed())
	assert.True(t, errors.HasCode(out.Err, errors.ErrorRenderFailed))
	assert.Contains(t, out.Err.Error(), "2 images for 3 pages")
}

func TestToGrey(t *testing.T) {
	renderer := &fakeRenderer{}
	images, err := renderer.RenderPages(context.Background(), "x.pdf", 2, 2, 72)
	require.NoError(t, err)

	grey := toGrey(images[0])
	assert.Equal(t, images[0].Bounds(), grey.Bounds())
	assert.NotZero(t, grey.GrayAt(0, 0).Y)
	assert.Same(t, grey, toGrey(grey))
}
