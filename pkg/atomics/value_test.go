package atomics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ValueTestSuite struct {
	suite.Suite
}

func (s *ValueTestSuite) TestStoreLoadEveryOrder() {
	var v32 Value[uint32]
	var v64 Value[int64]
	var vp Value[uintptr]
	for _, so := range []Order{OrderRelaxed, OrderRelease} {
		for _, lo := range []Order{OrderRelaxed, OrderAcquire} {
			v32.Store(7, so)
			v64.Store(-7, so)
			vp.Store(0xdead, so)
			s.Require().Equal(uint32(7), v32.Load(lo))
			s.Require().Equal(int64(-7), v64.Load(lo))
			s.Require().Equal(uintptr(0xdead), vp.Load(lo))
		}
	}
}

func (s *ValueTestSuite) TestCompareAndSwapAcqRel() {
	v := NewValue[uint64](1 << 40)
	s.False(v.CompareAndSwap(1, 2, OrderAcqRel))
	s.True(v.CompareAndSwap(1<<40, 3, OrderAcqRel))
	s.Equal(uint64(3), v.Load(OrderAcquire))

	prev, ok := v.CompareExchange(9, 10, OrderAcqRel)
	s.False(ok)
	s.Equal(uint64(3), prev)
	prev, ok = v.CompareExchange(3, 10, OrderRelease)
	s.True(ok)
	s.Equal(uint64(3), prev)
	s.Equal(uint64(10), v.Load(OrderRelaxed))
}

func (s *ValueTestSuite) TestReadModifyWrite() {
	v := NewValue[int32](5)
	s.Equal(int32(2), v.Add(-3, OrderAcqRel))
	s.Equal(int32(2), v.Swap(0b1100, OrderAcquire))
	s.Equal(int32(0b1100), v.And(0b0100, OrderRelease))
	s.Equal(int32(0b0100), v.Or(0b0011, OrderRelaxed))
	s.Equal(int32(0b0111), v.Load(OrderRelaxed))

	w := NewValue[uint](0)
	s.Equal(^uint(0), w.Add(^uint(0), OrderRelaxed))
}

func (s *ValueTestSuite) TestConcurrentAdd() {
	const workers, iterations = 8, 10000
	var v Value[int64]
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				v.Add(1, OrderAcqRel)
			}
		}()
	}
	wg.Wait()
	s.Equal(int64(workers*iterations), v.Load(OrderAcquire))
}

func (s *ValueTestSuite) TestConcurrentCompareAndSwap() {
	const workers, iterations = 8, 5000
	var v Value[uint32]
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				cur := v.Load(OrderRelaxed)
				for {
					prev, ok := v.CompareExchange(cur, cur+1, OrderAcqRel)
					if ok {
						break
					}
					cur = prev
				}
			}
		}()
	}
	wg.Wait()
	s.Equal(uint32(workers*iterations), v.Load(OrderAcquire))
}

func TestValueTestSuite(t *testing.T) {
	suite.Run(t, new(ValueTestSuite))
}
