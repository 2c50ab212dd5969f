package atomics

import "unsafe"

// Word is the set of types an atomic value or reference can hold.
// int, uint and uintptr follow the platform word size.
type Word interface {
	~int32 | ~uint32 | ~int64 | ~uint64 | ~int | ~uint | ~uintptr
}

func wordSize[T Word]() uintptr {
	var z T
	return unsafe.Sizeof(z)
}

func aligned[T Word](p *T) bool {
	return uintptr(unsafe.Pointer(p))%wordSize[T]() == 0
}

func p32[T Word](p *T) *uint32 { return (*uint32)(unsafe.Pointer(p)) }
func p64[T Word](p *T) *uint64 { return (*uint64)(unsafe.Pointer(p)) }

// The functions below dispatch on the width of T to the primitive set of
// the backend compiled into this build.

func load[T Word](p *T, o Order) T {
	mustOrder(OpLoad, o)
	if wordSize[T]() == 8 {
		return T(load64(p64(p), o))
	}
	return T(load32(p32(p), o))
}

func store[T Word](p *T, v T, o Order) {
	mustOrder(OpStore, o)
	if wordSize[T]() == 8 {
		store64(p64(p), uint64(v), o)
		return
	}
	store32(p32(p), uint32(v), o)
}

func swap[T Word](p *T, v T, o Order) T {
	mustOrder(OpRMW, o)
	if wordSize[T]() == 8 {
		return T(swap64(p64(p), uint64(v), o))
	}
	return T(swap32(p32(p), uint32(v), o))
}

func add[T Word](p *T, delta T, o Order) T {
	mustOrder(OpRMW, o)
	if wordSize[T]() == 8 {
		return T(add64(p64(p), uint64(delta), o))
	}
	return T(add32(p32(p), uint32(delta), o))
}

func and[T Word](p *T, mask T, o Order) T {
	mustOrder(OpRMW, o)
	if wordSize[T]() == 8 {
		return T(and64(p64(p), uint64(mask), o))
	}
	return T(and32(p32(p), uint32(mask), o))
}

func or[T Word](p *T, mask T, o Order) T {
	mustOrder(OpRMW, o)
	if wordSize[T]() == 8 {
		return T(or64(p64(p), uint64(mask), o))
	}
	return T(or32(p32(p), uint32(mask), o))
}

func compareExchange[T Word](p *T, old, new T, o Order) (T, bool) {
	mustOrder(OpRMW, o)
	if wordSize[T]() == 8 {
		prev, ok := cas64(p64(p), uint64(old), uint64(new), o, o.failure())
		return T(prev), ok
	}
	prev, ok := cas32(p32(p), uint32(old), uint32(new), o, o.failure())
	return T(prev), ok
}
