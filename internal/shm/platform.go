// Package shm contains platform-specific helpers for mapping shared memory regions.
package shm

import (
	"errors"

	"github.com/srediag/shm-atomic/internal/logger"
)

var (
	// ErrInvalidSize is returned for a non-positive region size.
	ErrInvalidSize = errors.New("shm: invalid region size")
	// ErrNoSpace is returned when /dev/shm cannot hold a new region.
	ErrNoSpace = errors.New("shm: not enough space left on /dev/shm")
	// ErrUnsupported is returned on platforms without a shared memory implementation.
	ErrUnsupported = errors.New("shm: shared memory is not supported on this platform")

	log = logger.New("shm", nil)
)

// MappedRegion represents a memory-mapped shared region.
type MappedRegion struct {
	Addr []byte
	Name string

	// handle is the fd (unix) or file mapping handle (windows) kept until unmap.
	handle    uintptr
	hasHandle bool
}

// Size returns the mapped length in bytes.
func (r *MappedRegion) Size() int { return len(r.Addr) }

// MapOptions defines options for mapping shared memory.
type MapOptions struct {
	// Name identifies the region across processes. An empty name maps
	// anonymous shared memory, visible only to this process and its children.
	Name string
	// Size is the region length. When opening an existing region on Linux
	// a zero Size maps the whole region.
	Size int
	// Create creates the region if it does not exist.
	Create bool
}

// Function implementations are provided in platform-specific files (e.g., platform_linux.go, platform_windows.go).
