package queue

import (
	"context"

	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

// Result is what a collective call resolves to: for Gather/AllGather/
// AllToAll, the payloads received, keyed by the party that sent them.
// Broadcast's caller-is-sender path and any call where nothing is
// received populate an empty map.
type Result struct {
	Received map[types.PartyID][]byte
}

// MultiResult is the analogous result for a multi_* call: one Result
// per outer-dimension slot, in the same order the caller supplied.
type MultiResult struct {
	Results []Result
}

// Future is what every non-blocking entry point returns: a suspension
// the caller drives to completion (§5: "non-blocking entries return
// suspensions the caller must drive").
type Future struct {
	done chan struct{}
	res  Result
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(res Result, err error) {
	f.res = res
	f.err = err
	close(f.done)
}

// Await blocks until the future resolves or ctx is cancelled.
func (f *Future) Await(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.res, f.err
	case <-ctx.Done():
		return Result{}, types.WrapError(types.ErrKindTaskCancelled, "await cancelled", ctx.Err())
	}
}

// Poll returns immediately: (result, err, true) if resolved, otherwise
// a zero Result and false.
func (f *Future) Poll() (Result, error, bool) {
	select {
	case <-f.done:
		return f.res, f.err, true
	default:
		return Result{}, nil, false
	}
}

// MultiFuture is the multi_* analogue of Future.
type MultiFuture struct {
	done chan struct{}
	res  MultiResult
	err  error
}

func newMultiFuture() *MultiFuture {
	return &MultiFuture{done: make(chan struct{})}
}

func (f *MultiFuture) resolve(res MultiResult, err error) {
	f.res = res
	f.err = err
	close(f.done)
}

func (f *MultiFuture) Await(ctx context.Context) (MultiResult, error) {
	select {
	case <-f.done:
		return f.res, f.err
	case <-ctx.Done():
		return MultiResult{}, types.WrapError(types.ErrKindTaskCancelled, "await cancelled", ctx.Err())
	}
}
