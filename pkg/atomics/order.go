package atomics

import "fmt"

// Order is the memory ordering applied to an atomic operation.
//
// The values match the C11 memory_order enumerators so they pass to a
// native backend unchanged.
type Order int

const (
	// OrderRelaxed guarantees atomicity only.
	OrderRelaxed Order = 0
	// OrderAcquire keeps later reads and writes after the operation.
	OrderAcquire Order = 2
	// OrderRelease keeps earlier reads and writes before the operation.
	OrderRelease Order = 3
	// OrderAcqRel combines acquire and release, for read-modify-write operations.
	OrderAcqRel Order = 4
)

// Op is the kind of atomic operation an order is applied to.
type Op int

const (
	// OpLoad is an atomic load.
	OpLoad Op = iota
	// OpStore is an atomic store.
	OpStore
	// OpRMW is a read-modify-write: swap, add, and, or, compare-and-swap.
	OpRMW
)

var opNames = [...]string{
	OpLoad:  "load",
	OpStore: "store",
	OpRMW:   "read-modify-write",
}

func (op Op) String() string {
	if op < 0 || int(op) >= len(opNames) {
		return fmt.Sprintf("Op(%d)", int(op))
	}
	return opNames[op]
}

func (o Order) String() string {
	switch o {
	case OrderRelaxed:
		return "relaxed"
	case OrderAcquire:
		return "acquire"
	case OrderRelease:
		return "release"
	case OrderAcqRel:
		return "acq_rel"
	}
	return fmt.Sprintf("Order(%d)", int(o))
}

// Valid reports whether o may be used with op.
func (o Order) Valid(op Op) bool {
	switch op {
	case OpLoad:
		return o == OrderRelaxed || o == OrderAcquire
	case OpStore:
		return o == OrderRelaxed || o == OrderRelease
	case OpRMW:
		return o == OrderRelaxed || o == OrderAcquire || o == OrderRelease || o == OrderAcqRel
	}
	return false
}

// failure returns the order used by a failed compare-and-swap whose
// successful path uses o.
func (o Order) failure() Order {
	switch o {
	case OrderAcqRel:
		return OrderAcquire
	case OrderRelease:
		return OrderRelaxed
	}
	return o
}

// OrderError is the panic value for an order that op does not accept.
type OrderError struct {
	Op    Op
	Order Order
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("atomics: %s order is invalid for %s", e.Order, e.Op)
}

func mustOrder(op Op, o Order) {
	if !o.Valid(op) {
		panic(&OrderError{Op: op, Order: o})
	}
}
