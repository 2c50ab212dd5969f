package shm

import (
	"github.com/srediag/shm-atomic/pkg/atomics"
)

// Uint32At returns an atomic reference to the uint32 at off. The reference is
// valid until the region is unmapped.
func (r *MappedRegion) Uint32At(off int) (atomics.Ref[uint32], error) {
	return atomics.RefAt[uint32](r.Addr, off)
}

// Uint64At returns an atomic reference to the uint64 at off. The reference is
// valid until the region is unmapped.
func (r *MappedRegion) Uint64At(off int) (atomics.Ref[uint64], error) {
	return atomics.RefAt[uint64](r.Addr, off)
}
