package planner

import (
	"context"
	"runtime"

	"github.com/rotisserie/eris"
	"github.com/shirou/gopsutil/v4/mem"
)

// Resources reports what the host can give to one document.
type Resources interface {
	AvailableMemory(ctx context.Context) (int64, error)
	CPUCount() int
}

// SystemResources reads live host figures.
type SystemResources struct{}

// AvailableMemory returns the memory available for new allocations without
// swapping.
func (SystemResources) AvailableMemory(ctx context.Context) (int64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "planner: read virtual memory")
	}
	if vm.Available > uint64(1<<63-1) {
		return 1<<63 - 1, nil
	}
	return int64(vm.Available), nil
}

// CPUCount returns the number of logical CPUs.
func (SystemResources) CPUCount() int {
	return runtime.NumCPU()
}

// StaticResources returns fixed figures. Used for tests and for pinning
// batch sizing from the command line.
type StaticResources struct {
	Memory int64
	CPUs   int
}

func (s StaticResources) AvailableMemory(context.Context) (int64, error) {
	return s.Memory, nil
}

func (s StaticResources) CPUCount() int {
	return s.CPUs
}
