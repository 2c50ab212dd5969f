// Package atomics exposes atomic values, atomic references and memory orders
// under names that do not depend on the backend compiled into the binary.
//
// Exactly one backend is selected at build time:
//
//   - default: the host backend ("std"), built on sync/atomic. Atomicity and
//     ordering hold within the host process.
//   - stdpar_gpu build tag: the system-scope backend ("stdpar"), built on C11
//     <stdatomic.h> through cgo. Operations are coherent for every processor
//     that maps the same memory (other processes, attached devices).
//
// The stdpar backend needs cgo. Building with -tags stdpar_gpu and
// CGO_ENABLED=0 fails to compile this package instead of falling back.
//
// Example usage:
//
//	var ready atomics.Value[uint32]
//	ready.Store(1, atomics.OrderRelease)
//	if ready.Load(atomics.OrderAcquire) == 1 {
//	  // ...
//	}
package atomics
