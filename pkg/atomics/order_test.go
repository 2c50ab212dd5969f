package atomics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderValid(t *testing.T) {
	cases := []struct {
		op    Op
		order Order
		valid bool
	}{
		{OpLoad, OrderRelaxed, true},
		{OpLoad, OrderAcquire, true},
		{OpLoad, OrderRelease, false},
		{OpLoad, OrderAcqRel, false},
		{OpStore, OrderRelaxed, true},
		{OpStore, OrderAcquire, false},
		{OpStore, OrderRelease, true},
		{OpStore, OrderAcqRel, false},
		{OpRMW, OrderRelaxed, true},
		{OpRMW, OrderAcquire, true},
		{OpRMW, OrderRelease, true},
		{OpRMW, OrderAcqRel, true},
		{OpRMW, Order(1), false},
		{Op(42), OrderRelaxed, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.valid, c.order.Valid(c.op), "%s with %s", c.op, c.order)
	}
}

func TestOrderString(t *testing.T) {
	assert.Equal(t, "relaxed", OrderRelaxed.String())
	assert.Equal(t, "acquire", OrderAcquire.String())
	assert.Equal(t, "release", OrderRelease.String())
	assert.Equal(t, "acq_rel", OrderAcqRel.String())
	assert.Equal(t, "Order(9)", Order(9).String())
	assert.Equal(t, "read-modify-write", OpRMW.String())
	assert.Equal(t, "Op(-1)", Op(-1).String())
}

func TestOrderFailure(t *testing.T) {
	assert.Equal(t, OrderAcquire, OrderAcqRel.failure())
	assert.Equal(t, OrderRelaxed, OrderRelease.failure())
	assert.Equal(t, OrderAcquire, OrderAcquire.failure())
	assert.Equal(t, OrderRelaxed, OrderRelaxed.failure())
	for _, o := range []Order{OrderRelaxed, OrderAcquire, OrderRelease, OrderAcqRel} {
		assert.True(t, o.failure().Valid(OpLoad), "failure order of %s must be a load order", o)
	}
}

func TestOrderMisusePanics(t *testing.T) {
	var v Value[uint32]
	assert.PanicsWithError(t, "atomics: release order is invalid for load", func() {
		v.Load(OrderRelease)
	})
	assert.PanicsWithError(t, "atomics: acquire order is invalid for store", func() {
		v.Store(1, OrderAcquire)
	})
	assert.PanicsWithError(t, "atomics: acq_rel order is invalid for store", func() {
		NewRef(new(uint64)).Store(1, OrderAcqRel)
	})
	assert.NotPanics(t, func() {
		v.Swap(1, OrderRelaxed)
	})
}

func TestOrderC11Values(t *testing.T) {
	// memory_order_relaxed, _acquire, _release and _acq_rel.
	want := map[Order]int{OrderRelaxed: 0, OrderAcquire: 2, OrderRelease: 3, OrderAcqRel: 4}
	for o, v := range want {
		assert.Equal(t, v, int(o), "order %s", o)
	}
}

// nativeOrder is the identity on the std backend; this only checks a mapping
// when the stdpar backend translates to the C enumerators.
func TestOrderMatchesNative(t *testing.T) {
	for _, o := range []Order{OrderRelaxed, OrderAcquire, OrderRelease, OrderAcqRel} {
		assert.Equal(t, int(o), nativeOrder(o), "order %s", o)
	}
}
