//go:build !stdpar_gpu

package atomics

import "sync/atomic"

// Backend names the backend compiled into this build.
const Backend = "std"

// ActiveScope is the coherence scope of the compiled backend.
const ActiveScope = ScopeHost

// sync/atomic operations are sequentially consistent, which satisfies every
// Order. The order arguments are accepted and validated but not needed here.

func nativeOrder(o Order) int { return int(o) }

func load32(p *uint32, _ Order) uint32 { return atomic.LoadUint32(p) }
func load64(p *uint64, _ Order) uint64 { return atomic.LoadUint64(p) }

func store32(p *uint32, v uint32, _ Order) { atomic.StoreUint32(p, v) }
func store64(p *uint64, v uint64, _ Order) { atomic.StoreUint64(p, v) }

func swap32(p *uint32, v uint32, _ Order) uint32 { return atomic.SwapUint32(p, v) }
func swap64(p *uint64, v uint64, _ Order) uint64 { return atomic.SwapUint64(p, v) }

func add32(p *uint32, d uint32, _ Order) uint32 { return atomic.AddUint32(p, d) }
func add64(p *uint64, d uint64, _ Order) uint64 { return atomic.AddUint64(p, d) }

func and32(p *uint32, m uint32, _ Order) uint32 { return atomic.AndUint32(p, m) }
func and64(p *uint64, m uint64, _ Order) uint64 { return atomic.AndUint64(p, m) }

func or32(p *uint32, m uint32, _ Order) uint32 { return atomic.OrUint32(p, m) }
func or64(p *uint64, m uint64, _ Order) uint64 { return atomic.OrUint64(p, m) }

func cas32(p *uint32, old, new uint32, _, _ Order) (uint32, bool) {
	for {
		if atomic.CompareAndSwapUint32(p, old, new) {
			return old, true
		}
		// A strong CAS only fails when a different value was observed.
		if cur := atomic.LoadUint32(p); cur != old {
			return cur, false
		}
	}
}

func cas64(p *uint64, old, new uint64, _, _ Order) (uint64, bool) {
	for {
		if atomic.CompareAndSwapUint64(p, old, new) {
			return old, true
		}
		if cur := atomic.LoadUint64(p); cur != old {
			return cur, false
		}
	}
}
