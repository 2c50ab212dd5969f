package atomics

import "sync/atomic"

// Value is a T accessed only through atomic operations. It owns its storage.
//
// The zero Value holds the zero T. A Value must not be copied after first use.
type Value[T Word] struct {
	_ noCopy
	_ [0]atomic.Uint64 // 8-byte alignment on 32-bit platforms
	v T
}

// NewValue returns a Value initialised to v.
func NewValue[T Word](v T) *Value[T] {
	return &Value[T]{v: v}
}

// Load atomically loads the value. o must be OrderRelaxed or OrderAcquire.
func (a *Value[T]) Load(o Order) T { return load(&a.v, o) }

// Store atomically stores v. o must be OrderRelaxed or OrderRelease.
func (a *Value[T]) Store(v T, o Order) { store(&a.v, v, o) }

// Swap atomically stores v and returns the previous value.
func (a *Value[T]) Swap(v T, o Order) T { return swap(&a.v, v, o) }

// Add atomically adds delta and returns the new value.
func (a *Value[T]) Add(delta T, o Order) T { return add(&a.v, delta, o) }

// And atomically applies mask with bitwise AND and returns the old value.
func (a *Value[T]) And(mask T, o Order) T { return and(&a.v, mask, o) }

// Or atomically applies mask with bitwise OR and returns the old value.
func (a *Value[T]) Or(mask T, o Order) T { return or(&a.v, mask, o) }

// CompareAndSwap stores new if the value equals old and reports whether it did.
// o applies on success; a failed comparison uses the matching load order.
func (a *Value[T]) CompareAndSwap(old, new T, o Order) bool {
	_, ok := compareExchange(&a.v, old, new, o)
	return ok
}

// CompareExchange is like CompareAndSwap but also returns the value observed.
func (a *Value[T]) CompareExchange(old, new T, o Order) (T, bool) {
	return compareExchange(&a.v, old, new, o)
}

// noCopy may be embedded into structs which must not be copied after first
// use. See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
