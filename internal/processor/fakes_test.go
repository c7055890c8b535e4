package processor

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adverant/nexus/pdfocr-worker/internal/planner"
	"github.com/adverant/nexus/pdfocr-worker/internal/storage"
)

// fakeRenderer returns one RGBA image per page whose width encodes the page
// number, so fakeRecognizer can tell pages apart.
type fakeRenderer struct {
	mu       sync.Mutex
	calls    []planner.PageRange
	failAt   map[int]error         // keyed by range start
	delays   map[int]time.Duration // keyed by range start
	short    bool                  // return one image too few
	inflight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeRenderer) RenderPages(ctx context.Context, path string, first, last, dpi int) ([]image.Image, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, planner.PageRange{Start: first, End: last})
	delay := f.delays[first]
	err := f.failAt[first]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}

	var images []image.Image
	for page := first; page <= last; page++ {
		img := image.NewRGBA(image.Rect(0, 0, page, 1))
		img.Set(0, 0, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		images = append(images, img)
	}
	if f.short {
		images = images[:len(images)-1]
	}
	return images, nil
}

func (f *fakeRenderer) rendered() []planner.PageRange {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]planner.PageRange, len(f.calls))
	copy(out, f.calls)
	return out
}

// fakeRecognizer returns "text of page N" and records the image types it saw.
type fakeRecognizer struct {
	mu        sync.Mutex
	failPages map[int]error
	langs     []string
	notGrey   int
	seen      []int
}

func (f *fakeRecognizer) Recognize(ctx context.Context, img image.Image, languages []string) (string, error) {
	page := img.Bounds().Dx()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.langs = languages
	f.seen = append(f.seen, page)
	if _, ok := img.(*image.Gray); !ok {
		f.notGrey++
	}
	if err := f.failPages[page]; err != nil {
		return "", err
	}
	if page%5 == 0 {
		return "", nil
	}
	return fmt.Sprintf("text of page %d\n", page), nil
}

type fakeCounter struct {
	pages int
	err   error
}

func (f fakeCounter) Count(ctx context.Context, path string) (int, error) {
	return f.pages, f.err
}

// scriptedWorker returns canned outcomes keyed by range start.
type scriptedWorker struct {
	outcomes map[int]BatchOutcome
}

func (s scriptedWorker) Process(ctx context.Context, path string, r planner.PageRange) BatchOutcome {
	if o, ok := s.outcomes[r.Start]; ok {
		return o
	}
	return BatchOutcome{Range: r, Pages: pagesFor(r)}
}

func pagesFor(r planner.PageRange) []PageResult {
	var out []PageResult
	for p := r.Start; p <= r.End; p++ {
		out = append(out, PageResult{PageNumber: p, Text: fmt.Sprintf("p%d", p)})
	}
	return out
}

type batchFunc func(ctx context.Context, path string, r planner.PageRange) BatchOutcome

func (f batchFunc) Process(ctx context.Context, path string, r planner.PageRange) BatchOutcome {
	return f(ctx, path, r)
}

type failingResources struct{ cpus int }

func (f failingResources) AvailableMemory(context.Context) (int64, error) {
	return 0, fmt.Errorf("meminfo unavailable")
}

func (f failingResources) CPUCount() int { return f.cpus }

type fakeLedger struct {
	mu   sync.Mutex
	recs []storage.JobRecord
	err  error
}

func (f *fakeLedger) UpsertJob(ctx context.Context, rec *storage.JobRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, *rec)
	return f.err
}

func (f *fakeLedger) statuses() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.recs {
		out = append(out, r.Status)
	}
	return out
}
