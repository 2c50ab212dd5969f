package shm

import (
	"errors"
	"fmt"
	"sort"

	"github.com/srediag/shm-atomic/pkg/atomics"
)

const (
	sliceFree  uint32 = 0
	sliceInUse uint32 = 1

	sliceStateSize = 4
	cacheLineSize  = 64
)

var (
	// ErrInvalidLayout is returned for a size class layout that cannot be used.
	ErrInvalidLayout = errors.New("shm: invalid buffer layout")
	// ErrNoFreeSlice is returned when every slice large enough is in use.
	ErrNoFreeSlice = errors.New("shm: no free buffer slice")
	// ErrDoubleRecycle is returned when a slice that is not in use is recycled.
	ErrDoubleRecycle = errors.New("shm: buffer slice recycled twice")
)

// SizePercentPair describes one size class of a buffer list: slices of Size
// bytes taking Percent of the managed memory.
type SizePercentPair struct {
	Size    uint32
	Percent uint32
}

// BufferSlice represents a slice of a shared memory buffer.
type BufferSlice struct {
	Data   []byte
	Offset uint32
	Cap    uint32

	index int
}

type sizeClass struct {
	size  uint32
	first int
	count int
}

// BufferManager hands out fixed size slices of a memory region. The state
// word of every slice lives in the region itself, so managers attached to
// the same memory from different processes share one pool.
type BufferManager struct {
	mem     []byte
	classes []sizeClass
	slices  []*BufferSlice
	states  []atomics.Ref[uint32]
}

// VerifyLayout checks that sizes are positive and percents, each at most
// 100, add up to 100.
func VerifyLayout(layout []SizePercentPair, capacity uint64) error {
	if len(layout) == 0 {
		return fmt.Errorf("%w: empty layout", ErrInvalidLayout)
	}
	sum := uint64(0)
	for _, pair := range layout {
		if pair.Size == 0 || uint64(pair.Size) > capacity {
			return fmt.Errorf("%w: slice size %d with capacity %d", ErrInvalidLayout, pair.Size, capacity)
		}
		if pair.Percent > 100 {
			return fmt.Errorf("%w: percent %d over 100", ErrInvalidLayout, pair.Percent)
		}
		sum += uint64(pair.Percent)
	}
	if sum != 100 {
		return fmt.Errorf("%w: percents sum to %d, want 100", ErrInvalidLayout, sum)
	}
	return nil
}

// NewBufferManager lays out mem according to layout and marks every slice free.
func NewBufferManager(mem []byte, layout []SizePercentPair) (*BufferManager, error) {
	bm, err := AttachBufferManager(mem, layout)
	if err != nil {
		return nil, err
	}
	for _, st := range bm.states {
		st.Store(sliceFree, atomics.OrderRelaxed)
	}
	return bm, nil
}

// AttachBufferManager lays out mem like NewBufferManager but keeps the slice
// states already stored there, joining a pool another process created.
func AttachBufferManager(mem []byte, layout []SizePercentPair) (*BufferManager, error) {
	if err := VerifyLayout(layout, uint64(len(mem))); err != nil {
		return nil, err
	}
	pairs := append([]SizePercentPair(nil), layout...)
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].Size < pairs[j].Size })

	counts := func(budget uint64) ([]int, int) {
		cs := make([]int, len(pairs))
		total := 0
		for i, p := range pairs {
			// budget*Percent/100 without overflowing budget*Percent.
			share := budget/100*uint64(p.Percent) + budget%100*uint64(p.Percent)/100
			cs[i] = int(share / uint64(p.Size))
			total += cs[i]
		}
		return cs, total
	}
	// The header only shrinks the data budget, so the second pass never
	// needs a larger header than the first.
	_, n := counts(uint64(len(mem)))
	header := alignUp(n*sliceStateSize, cacheLineSize)
	if header >= len(mem) {
		return nil, fmt.Errorf("%w: %d bytes leave no room for slices", ErrInvalidLayout, len(mem))
	}
	cs, n := counts(uint64(len(mem) - header))
	if n == 0 {
		return nil, fmt.Errorf("%w: %d bytes hold no slice", ErrInvalidLayout, len(mem))
	}

	bm := &BufferManager{
		mem:    mem,
		slices: make([]*BufferSlice, 0, n),
		states: make([]atomics.Ref[uint32], 0, n),
	}
	offset := header
	for i, p := range pairs {
		bm.classes = append(bm.classes, sizeClass{size: p.Size, first: len(bm.slices), count: cs[i]})
		for j := 0; j < cs[i]; j++ {
			end := offset + int(p.Size)
			bm.slices = append(bm.slices, &BufferSlice{
				Data:   mem[offset:end:end],
				Offset: uint32(offset),
				Cap:    p.Size,
				index:  len(bm.slices),
			})
			st, err := atomics.RefAt[uint32](mem, len(bm.states)*sliceStateSize)
			if err != nil {
				return nil, err
			}
			bm.states = append(bm.states, st)
			offset = end
		}
	}
	return bm, nil
}

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

// Alloc claims a free slice of the smallest class holding size bytes.
func (bm *BufferManager) Alloc(size uint32) (*BufferSlice, error) {
	for _, c := range bm.classes {
		if c.size < size {
			continue
		}
		for i := c.first; i < c.first+c.count; i++ {
			st := bm.states[i]
			if st.Load(atomics.OrderRelaxed) == sliceFree &&
				st.CompareAndSwap(sliceFree, sliceInUse, atomics.OrderAcqRel) {
				return bm.slices[i], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: size %d", ErrNoFreeSlice, size)
}

// Recycle returns a BufferSlice to the pool.
func (bm *BufferManager) Recycle(s *BufferSlice) error {
	if s == nil || s.index >= len(bm.slices) || bm.slices[s.index] != s {
		return fmt.Errorf("%w: slice not owned by this manager", ErrInvalidLayout)
	}
	if !bm.states[s.index].CompareAndSwap(sliceInUse, sliceFree, atomics.OrderRelease) {
		return ErrDoubleRecycle
	}
	return nil
}

// Stats returns the number of free slices for each size.
func (bm *BufferManager) Stats() map[uint32]int {
	stats := make(map[uint32]int, len(bm.classes))
	for _, c := range bm.classes {
		free := 0
		for i := c.first; i < c.first+c.count; i++ {
			if bm.states[i].Load(atomics.OrderAcquire) == sliceFree {
				free++
			}
		}
		stats[c.size] = free
	}
	return stats
}

// Slices returns the total number of slices per size.
func (bm *BufferManager) Slices() map[uint32]int {
	out := make(map[uint32]int, len(bm.classes))
	for _, c := range bm.classes {
		out[c.size] = c.count
	}
	return out
}
