package atomics

import (
	"errors"
	"fmt"
	"unsafe"
)

var (
	// ErrOutOfRange is returned when a word does not fit inside a region.
	ErrOutOfRange = errors.New("atomics: offset out of range")
	// ErrMisaligned is returned when a word is not naturally aligned.
	ErrMisaligned = errors.New("atomics: misaligned address")
)

// Ref grants atomic access to a T it does not own. The storage may be a
// plain Go variable or a word inside memory shared with other processes.
//
// Every concurrent access to the referenced word must go through a Ref for
// the lifetime of the Ref.
type Ref[T Word] struct {
	p *T
}

// NewRef returns a Ref to *p. It panics if p is nil or not aligned to the
// size of T.
func NewRef[T Word](p *T) Ref[T] {
	if p == nil {
		panic("atomics: NewRef of nil pointer")
	}
	if !aligned(p) {
		panic(fmt.Sprintf("atomics: NewRef of misaligned pointer %p", p))
	}
	return Ref[T]{p: p}
}

// RefAt returns a Ref to the T stored at mem[off:].
func RefAt[T Word](mem []byte, off int) (Ref[T], error) {
	size := int(wordSize[T]())
	if off < 0 || off > len(mem)-size {
		return Ref[T]{}, fmt.Errorf("%w: offset %d, size %d, region %d", ErrOutOfRange, off, size, len(mem))
	}
	p := (*T)(unsafe.Pointer(&mem[off]))
	if !aligned(p) {
		return Ref[T]{}, fmt.Errorf("%w: offset %d, size %d", ErrMisaligned, off, size)
	}
	return Ref[T]{p: p}, nil
}

// Ptr returns the referenced address.
func (r Ref[T]) Ptr() *T { return r.p }

// Load atomically loads the referenced value. o must be OrderRelaxed or OrderAcquire.
func (r Ref[T]) Load(o Order) T { return load(r.p, o) }

// Store atomically stores v. o must be OrderRelaxed or OrderRelease.
func (r Ref[T]) Store(v T, o Order) { store(r.p, v, o) }

// Swap atomically stores v and returns the previous value.
func (r Ref[T]) Swap(v T, o Order) T { return swap(r.p, v, o) }

// Add atomically adds delta and returns the new value.
func (r Ref[T]) Add(delta T, o Order) T { return add(r.p, delta, o) }

// And atomically applies mask with bitwise AND and returns the old value.
func (r Ref[T]) And(mask T, o Order) T { return and(r.p, mask, o) }

// Or atomically applies mask with bitwise OR and returns the old value.
func (r Ref[T]) Or(mask T, o Order) T { return or(r.p, mask, o) }

// CompareAndSwap stores new if the value equals old and reports whether it did.
func (r Ref[T]) CompareAndSwap(old, new T, o Order) bool {
	_, ok := compareExchange(r.p, old, new, o)
	return ok
}

// CompareExchange is like CompareAndSwap but also returns the value observed.
func (r Ref[T]) CompareExchange(old, new T, o Order) (T, bool) {
	return compareExchange(r.p, old, new, o)
}
