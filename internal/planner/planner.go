// Package planner partitions a document's pages into memory-bounded batches
// and picks the worker concurrency for processing them.
package planner

import (
	"fmt"

	"github.com/adverant/nexus/pdfocr-worker/internal/errors"
)

// PageRange is a 1-indexed inclusive span of pages.
type PageRange struct {
	Start int
	End   int
}

// Len returns the number of pages in the range.
func (r PageRange) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Contains reports whether page lies within the range.
func (r PageRange) Contains(page int) bool {
	return page >= r.Start && page <= r.End
}

// Overlaps reports whether r and o share at least one page.
func (r PageRange) Overlaps(o PageRange) bool {
	return r.Start <= o.End && o.Start <= r.End
}

func (r PageRange) String() string {
	return fmt.Sprintf("[%d,%d]", r.Start, r.End)
}

// Batch is one unit of work. Its start page doubles as the sort key.
type Batch struct {
	Range PageRange
}

// Seq returns the batch's sequence position.
func (b Batch) Seq() int {
	return b.Range.Start
}

// Plan is the partition of one document.
type Plan struct {
	PageCount   int
	BatchSize   int
	WorkerLimit int
	Batches     []Batch
}

// Ranges returns the batch ranges in submission order.
func (p Plan) Ranges() []PageRange {
	out := make([]PageRange, len(p.Batches))
	for i, b := range p.Batches {
		out[i] = b.Range
	}
	return out
}

// Config holds the planner's fixed inputs.
type Config struct {
	// BatchMemoryBytes is the memory one batch's rendered images occupy.
	BatchMemoryBytes int64
	// DefaultWorkers is used when the CPU count is unknown (<= 0).
	DefaultWorkers int
	// MaxWorkers caps the worker limit; 0 means no cap.
	MaxWorkers int
}

// Planner computes batch partitions.
type Planner struct {
	cfg Config
}

// New creates a planner, filling zero fields with defaults.
func New(cfg Config) *Planner {
	if cfg.BatchMemoryBytes <= 0 {
		cfg.BatchMemoryBytes = 500 * 1024 * 1024
	}
	if cfg.DefaultWorkers <= 0 {
		cfg.DefaultWorkers = 4
	}
	if cfg.MaxWorkers < 0 {
		cfg.MaxWorkers = 0
	}
	return &Planner{cfg: cfg}
}

// BatchSize returns how many pages fit in one batch for the given amount of
// available memory. Never less than 1.
func (p *Planner) BatchSize(availableMemoryBytes int64) int {
	if availableMemoryBytes <= 0 {
		return 1
	}
	size := availableMemoryBytes / p.cfg.BatchMemoryBytes
	if size < 1 {
		return 1
	}
	// int64 -> int can only overflow on 32-bit targets with absurd memory.
	if size > int64(^uint(0)>>1) {
		return int(^uint(0) >> 1)
	}
	return int(size)
}

// WorkerLimit returns the number of concurrent batch workers for cpuCount.
func (p *Planner) WorkerLimit(cpuCount int) int {
	limit := cpuCount
	if limit <= 0 {
		limit = p.cfg.DefaultWorkers
	}
	if p.cfg.MaxWorkers > 0 && limit > p.cfg.MaxWorkers {
		limit = p.cfg.MaxWorkers
	}
	return limit
}

// Plan partitions [1, pageCount] into contiguous ascending batches.
func (p *Planner) Plan(pageCount int, availableMemoryBytes int64, cpuCount int) (Plan, error) {
	if pageCount < 1 {
		return Plan{}, errors.NewEmptyDocumentError("")
	}

	size := p.BatchSize(availableMemoryBytes)
	batches := make([]Batch, 0, (pageCount+size-1)/size)
	for start := 1; start <= pageCount; {
		end := pageCount
		if pageCount-start >= size {
			end = start + size - 1
		}
		batches = append(batches, Batch{Range: PageRange{Start: start, End: end}})
		start = end + 1
	}

	workers := p.WorkerLimit(cpuCount)
	if workers > len(batches) {
		workers = len(batches)
	}

	return Plan{
		PageCount:   pageCount,
		BatchSize:   size,
		WorkerLimit: workers,
		Batches:     batches,
	}, nil
}
