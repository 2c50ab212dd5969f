package litmus

import (
	"context"
	"fmt"

	"github.com/srediag/shm-atomic/pkg/atomics"
)

// Names of the litmus tests.
const (
	TestMessagePassing = "message-passing"
	TestCASCounter     = "cas-counter"
	TestRefEquivalence = "ref-equivalence"
)

type mpCell struct {
	data atomics.Ref[uint64]
	flag atomics.Ref[uint64]
}

// MessagePassing checks the release/acquire handoff: a writer stores data
// (relaxed) then a flag (release); a reader that sees the flag (acquire)
// must see the data.
func (r *Runner) MessagePassing(ctx context.Context) (Result, error) {
	const slot = 16
	pairs := max(r.cfg.Workers/2, 1)
	mem, release := scratch(ctx, r.cfg.Iterations*slot)
	defer release()

	var tasks []func() outcome
	base := 0
	for _, n := range split(r.cfg.Iterations, pairs) {
		if n == 0 {
			continue
		}
		cells := make([]mpCell, n)
		for i := range cells {
			off := (base + i) * slot
			data, err := atomics.RefAt[uint64](mem, off)
			if err != nil {
				return Result{}, err
			}
			flag, err := atomics.RefAt[uint64](mem, off+8)
			if err != nil {
				return Result{}, err
			}
			cells[i] = mpCell{data: data, flag: flag}
		}
		base += n
		tasks = append(tasks, mpWriter(cells), mpReader(cells))
	}
	return r.dispatch(ctx, TestMessagePassing, tasks, nil)
}

func mpWriter(cells []mpCell) func() outcome {
	return func() outcome {
		for i, c := range cells {
			c.data.Store(uint64(i+1), atomics.OrderRelaxed)
			c.flag.Store(1, atomics.OrderRelease)
		}
		return outcome{}
	}
}

func mpReader(cells []mpCell) func() outcome {
	return func() outcome {
		o := outcome{runs: len(cells)}
		seen := 0
		for i, c := range cells {
			if c.flag.Load(atomics.OrderAcquire) != 1 {
				continue
			}
			seen++
			if c.data.Load(atomics.OrderRelaxed) != uint64(i+1) {
				o.violations++
			}
		}
		o.detail = fmt.Sprintf("flag observed in %d of %d trials", seen, len(cells))
		return o
	}
}

// CASCounter increments one shared counter from every worker with
// compare-and-swap loops (acq_rel). No increment may be lost.
func (r *Runner) CASCounter(ctx context.Context) (Result, error) {
	mem, release := scratch(ctx, 64)
	defer release()
	counter, err := atomics.RefAt[uint64](mem, 0)
	if err != nil {
		return Result{}, err
	}

	var tasks []func() outcome
	for _, n := range split(r.cfg.Iterations, r.cfg.Workers) {
		n := n
		tasks = append(tasks, func() outcome {
			retries := 0
			for i := 0; i < n; i++ {
				cur := counter.Load(atomics.OrderRelaxed)
				for {
					prev, ok := counter.CompareExchange(cur, cur+1, atomics.OrderAcqRel)
					if ok {
						break
					}
					retries++
					cur = prev
				}
			}
			return outcome{runs: n, detail: fmt.Sprintf("%d retries in last worker", retries)}
		})
	}
	return r.dispatch(ctx, TestCASCounter, tasks, func(res *Result) {
		got := counter.Load(atomics.OrderAcquire)
		if want := uint64(r.cfg.Iterations); got != want {
			res.Violations += int(max(got, want) - min(got, want))
			res.Detail = fmt.Sprintf("counter %d, want %d", got, want)
		}
	})
}

type uint32Ops interface {
	Load(atomics.Order) uint32
	Store(uint32, atomics.Order)
	Add(uint32, atomics.Order) uint32
	Swap(uint32, atomics.Order) uint32
	And(uint32, atomics.Order) uint32
	Or(uint32, atomics.Order) uint32
	CompareExchange(uint32, uint32, atomics.Order) (uint32, bool)
}

// sequence applies a fixed operation sequence and folds every result.
func sequence(a uint32Ops, seed uint32) uint32 {
	a.Store(seed, atomics.OrderRelease)
	acc := a.Add(7, atomics.OrderAcqRel)
	acc ^= a.Swap(seed^0xff, atomics.OrderAcquire)
	acc += a.And(0xf0f0f0f0, atomics.OrderRelaxed)
	acc ^= a.Or(3, atomics.OrderRelease)
	prev, ok := a.CompareExchange(a.Load(atomics.OrderAcquire), seed, atomics.OrderAcqRel)
	if ok {
		acc += prev
	}
	_, ok = a.CompareExchange(seed+1, 0, atomics.OrderAcqRel)
	if !ok {
		acc ^= 1
	}
	return acc ^ a.Load(atomics.OrderAcquire)
}

// RefEquivalence runs the same operation sequence on a Value, a Ref over a
// Go variable and a Ref over shared memory. All three must agree.
func (r *Runner) RefEquivalence(ctx context.Context) (Result, error) {
	const slot = 64
	mem, release := scratch(ctx, r.cfg.Workers*slot)
	defer release()

	var tasks []func() outcome
	for w, n := range split(r.cfg.Iterations, r.cfg.Workers) {
		shared, err := atomics.RefAt[uint32](mem, w*slot)
		if err != nil {
			return Result{}, err
		}
		n := n
		tasks = append(tasks, func() outcome {
			var (
				value atomics.Value[uint32]
				plain uint32
				o     = outcome{runs: n}
			)
			local := atomics.NewRef(&plain)
			for i := 0; i < n; i++ {
				seed := uint32(i) * 2654435761
				a, b, c := sequence(&value, seed), sequence(local, seed), sequence(shared, seed)
				if a != b || a != c {
					o.violations++
					o.detail = fmt.Sprintf("seed %#x: value %#x, ref %#x, shared ref %#x", seed, a, b, c)
				}
			}
			return o
		})
	}
	return r.dispatch(ctx, TestRefEquivalence, tasks, nil)
}
