//go:build stdpar_gpu

package atomics

/*
#include <stdatomic.h>
#include <stdint.h>
#include <stdbool.h>

static inline uint32_t shma_load32(uint32_t *p, int o) { return atomic_load_explicit((_Atomic uint32_t *)p, o); }
static inline uint64_t shma_load64(uint64_t *p, int o) { return atomic_load_explicit((_Atomic uint64_t *)p, o); }

static inline void shma_store32(uint32_t *p, uint32_t v, int o) { atomic_store_explicit((_Atomic uint32_t *)p, v, o); }
static inline void shma_store64(uint64_t *p, uint64_t v, int o) { atomic_store_explicit((_Atomic uint64_t *)p, v, o); }

static inline uint32_t shma_swap32(uint32_t *p, uint32_t v, int o) { return atomic_exchange_explicit((_Atomic uint32_t *)p, v, o); }
static inline uint64_t shma_swap64(uint64_t *p, uint64_t v, int o) { return atomic_exchange_explicit((_Atomic uint64_t *)p, v, o); }

static inline uint32_t shma_add32(uint32_t *p, uint32_t d, int o) { return atomic_fetch_add_explicit((_Atomic uint32_t *)p, d, o) + d; }
static inline uint64_t shma_add64(uint64_t *p, uint64_t d, int o) { return atomic_fetch_add_explicit((_Atomic uint64_t *)p, d, o) + d; }

static inline uint32_t shma_and32(uint32_t *p, uint32_t m, int o) { return atomic_fetch_and_explicit((_Atomic uint32_t *)p, m, o); }
static inline uint64_t shma_and64(uint64_t *p, uint64_t m, int o) { return atomic_fetch_and_explicit((_Atomic uint64_t *)p, m, o); }

static inline uint32_t shma_or32(uint32_t *p, uint32_t m, int o) { return atomic_fetch_or_explicit((_Atomic uint32_t *)p, m, o); }
static inline uint64_t shma_or64(uint64_t *p, uint64_t m, int o) { return atomic_fetch_or_explicit((_Atomic uint64_t *)p, m, o); }

static inline bool shma_cas32(uint32_t *p, uint32_t *expected, uint32_t desired, int s, int f) {
	return atomic_compare_exchange_strong_explicit((_Atomic uint32_t *)p, expected, desired, s, f);
}
static inline bool shma_cas64(uint64_t *p, uint64_t *expected, uint64_t desired, int s, int f) {
	return atomic_compare_exchange_strong_explicit((_Atomic uint64_t *)p, expected, desired, s, f);
}
*/
import "C"

import "unsafe"

// Backend names the backend compiled into this build.
const Backend = "stdpar"

// ActiveScope is the coherence scope of the compiled backend.
const ActiveScope = ScopeSystem

// nativeOrder maps o to the C11 memory_order enumerator.
func nativeOrder(o Order) int {
	switch o {
	case OrderRelaxed:
		return int(C.memory_order_relaxed)
	case OrderAcquire:
		return int(C.memory_order_acquire)
	case OrderRelease:
		return int(C.memory_order_release)
	case OrderAcqRel:
		return int(C.memory_order_acq_rel)
	}
	return int(C.memory_order_seq_cst)
}

func corder(o Order) C.int { return C.int(nativeOrder(o)) }

func c32(p *uint32) *C.uint32_t { return (*C.uint32_t)(unsafe.Pointer(p)) }
func c64(p *uint64) *C.uint64_t { return (*C.uint64_t)(unsafe.Pointer(p)) }

func load32(p *uint32, o Order) uint32 { return uint32(C.shma_load32(c32(p), corder(o))) }
func load64(p *uint64, o Order) uint64 { return uint64(C.shma_load64(c64(p), corder(o))) }

func store32(p *uint32, v uint32, o Order) { C.shma_store32(c32(p), C.uint32_t(v), corder(o)) }
func store64(p *uint64, v uint64, o Order) { C.shma_store64(c64(p), C.uint64_t(v), corder(o)) }

func swap32(p *uint32, v uint32, o Order) uint32 {
	return uint32(C.shma_swap32(c32(p), C.uint32_t(v), corder(o)))
}
func swap64(p *uint64, v uint64, o Order) uint64 {
	return uint64(C.shma_swap64(c64(p), C.uint64_t(v), corder(o)))
}

func add32(p *uint32, d uint32, o Order) uint32 {
	return uint32(C.shma_add32(c32(p), C.uint32_t(d), corder(o)))
}
func add64(p *uint64, d uint64, o Order) uint64 {
	return uint64(C.shma_add64(c64(p), C.uint64_t(d), corder(o)))
}

func and32(p *uint32, m uint32, o Order) uint32 {
	return uint32(C.shma_and32(c32(p), C.uint32_t(m), corder(o)))
}
func and64(p *uint64, m uint64, o Order) uint64 {
	return uint64(C.shma_and64(c64(p), C.uint64_t(m), corder(o)))
}

func or32(p *uint32, m uint32, o Order) uint32 {
	return uint32(C.shma_or32(c32(p), C.uint32_t(m), corder(o)))
}
func or64(p *uint64, m uint64, o Order) uint64 {
	return uint64(C.shma_or64(c64(p), C.uint64_t(m), corder(o)))
}

func cas32(p *uint32, old, new uint32, s, f Order) (uint32, bool) {
	expected := C.uint32_t(old)
	ok := C.shma_cas32(c32(p), &expected, C.uint32_t(new), corder(s), corder(f))
	return uint32(expected), bool(ok)
}

func cas64(p *uint64, old, new uint64, s, f Order) (uint64, bool) {
	expected := C.uint64_t(old)
	ok := C.shma_cas64(c64(p), &expected, C.uint64_t(new), corder(s), corder(f))
	return uint64(expected), bool(ok)
}
