package processor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/adverant/nexus/pdfocr-worker/internal/errors"
	"github.com/adverant/nexus/pdfocr-worker/internal/logging"
	"github.com/adverant/nexus/pdfocr-worker/internal/planner"
)

// State is the aggregator's lifecycle position.
type State int

const (
	StatePending State = iota
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Aggregator collects batch outcomes in any completion order and produces
// the document's pages in page order once every batch has succeeded.
//
// Pending -> Completed | Failed. Both are terminal. After Completed every
// record call is ignored. After Failed, successful batches that were
// already running are still recorded but can never complete the document,
// and further failures are ignored; the first failure is the one reported.
type Aggregator struct {
	mu        sync.Mutex
	pageCount int
	pages     map[int]string
	ranges    []planner.PageRange
	state     State

	failedRange planner.PageRange
	failure     error

	final  []PageResult
	logger *logging.Logger
}

// NewAggregator creates an aggregator for a document of pageCount pages.
func NewAggregator(pageCount int, logger *logging.Logger) *Aggregator {
	return &Aggregator{
		pageCount: pageCount,
		pages:     make(map[int]string, pageCount),
		logger:    logging.OrNop(logger),
	}
}

// Record dispatches an outcome to RecordSuccess or RecordFailure.
func (a *Aggregator) Record(o BatchOutcome) error {
	if o.Failed() {
		a.RecordFailure(o.Range, o.Err)
		return nil
	}
	return a.RecordSuccess(o.Range, o.Pages)
}

// RecordSuccess stores the pages of a successful batch. It returns
// DUPLICATE_BATCH when r overlaps a recorded range and INVALID_BATCH when r
// lies outside the document or results do not cover r exactly.
func (a *Aggregator) RecordSuccess(r planner.PageRange, results []PageResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateCompleted {
		a.logger.Warn("late outcome ignored", "range", r.String(), "state", a.state.String())
		return nil
	}

	if r.Start < 1 || r.End < r.Start || r.End > a.pageCount {
		return errors.NewInvalidBatchError(r.Start, r.End,
			fmt.Sprintf("range outside document of %d pages", a.pageCount))
	}

	for _, done := range a.ranges {
		if done.Overlaps(r) {
			first := r.Start
			if done.Start > first {
				first = done.Start
			}
			return errors.NewDuplicateBatchError(r.Start, r.End, first)
		}
	}

	if len(results) != r.Len() {
		return errors.NewInvalidBatchError(r.Start, r.End,
			fmt.Sprintf("%d results for %d pages", len(results), r.Len()))
	}
	seen := make(map[int]struct{}, len(results))
	for _, res := range results {
		if !r.Contains(res.PageNumber) {
			return errors.NewInvalidBatchError(r.Start, r.End,
				fmt.Sprintf("result for page %d outside batch", res.PageNumber))
		}
		if _, dup := seen[res.PageNumber]; dup {
			return errors.NewInvalidBatchError(r.Start, r.End,
				fmt.Sprintf("page %d reported twice", res.PageNumber))
		}
		seen[res.PageNumber] = struct{}{}
	}

	for _, res := range results {
		a.pages[res.PageNumber] = res.Text
	}
	a.ranges = append(a.ranges, r)

	if a.state == StatePending && len(a.pages) == a.pageCount {
		a.state = StateCompleted
	}
	return nil
}

// RecordFailure marks the document failed. Only the first failure is kept.
func (a *Aggregator) RecordFailure(r planner.PageRange, cause error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StatePending {
		a.logger.Warn("late outcome ignored", "range", r.String(), "state", a.state.String(), "error", cause)
		return
	}

	a.state = StateFailed
	a.failedRange = r
	a.failure = cause
}

// IsComplete reports whether every page is recorded and no batch failed.
func (a *Aggregator) IsComplete() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == StateCompleted
}

// State returns the current lifecycle state.
func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Failure returns the first recorded failure, if any.
func (a *Aggregator) Failure() (planner.PageRange, error, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failedRange, a.failure, a.state == StateFailed
}

// RecordedPages returns how many pages have been recorded so far.
func (a *Aggregator) RecordedPages() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pages)
}

// Finalize returns every page sorted by page number. It fails with
// INCOMPLETE_DOCUMENT unless the document is complete.
func (a *Aggregator) Finalize() ([]PageResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateCompleted {
		return nil, errors.NewIncompleteDocumentError(len(a.pages), a.pageCount, a.state == StateFailed)
	}

	if a.final == nil {
		a.final = make([]PageResult, 0, len(a.pages))
		for page, text := range a.pages {
			a.final = append(a.final, PageResult{PageNumber: page, Text: text})
		}
		sort.Slice(a.final, func(i, j int) bool {
			return a.final[i].PageNumber < a.final[j].PageNumber
		})
	}

	out := make([]PageResult, len(a.final))
	copy(out, a.final)
	return out, nil
}
