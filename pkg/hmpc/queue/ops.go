package queue

import (
	"context"
	"sync"

	"github.com/jabolina/hmpc/pkg/hmpc/consistency"
	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

// Broadcast sends payload from sender to every other member of comm
// (§4.1 Broadcast). The caller must be either the sender or a member of
// comm; every other combination is rejected before any task is opened.
func (q *Queue) Broadcast(ctx context.Context, comm *types.Communicator, sender types.PartyID, datatype types.MessageDatatype, payload []byte) (Result, error) {
	if err := q.validateCommunicator(comm); err != nil {
		return Result{}, err
	}
	if !comm.Contains(sender) {
		return Result{}, types.NewError(types.ErrKindInvalidCommunicator, "broadcast sender must be a member of the communicator")
	}
	if q.localID != sender && !comm.Contains(q.localID) {
		return Result{}, types.NewError(types.ErrKindInvalidCommunicator, "caller must be the sender or a member of the communicator")
	}

	id := q.nextID([]types.PartyID{sender}, comm.Members(), datatype, broadcastSpec{sender: sender})
	q.stats.addRound()

	if q.localID == sender {
		var tasks []task
		for _, r := range comm.Without(sender) {
			meta := types.Metadata{Kind: types.KindBroadcast, Datatype: datatype, Sender: sender, Receiver: r, ID: id, PayloadLen: uint64(len(payload))}
			tasks = append(tasks, q.sendTask(r, r, meta, payload))
		}
		if err := collectTasks(ctx, tasks); err != nil {
			return Result{}, err
		}
		return Result{Received: map[types.PartyID][]byte{}}, nil
	}

	if q.consistencyEnabled() {
		key := consistency.CheckKey{DataKind: types.KindBroadcast, Datatype: datatype, Sender: sender, ID: id}
		q.checker.Request(key, comm.Without(q.localID, sender))
	}

	meta := types.Metadata{Kind: types.KindBroadcast, Datatype: datatype, Sender: sender, Receiver: q.localID, ID: id}
	var out sync.Map
	if err := collectTasks(ctx, []task{q.receiveTask(meta, len(payload), &out)}); err != nil {
		return Result{}, err
	}
	return collectResult(&out), nil
}

// BroadcastAsync is the non-blocking form of Broadcast.
func (q *Queue) BroadcastAsync(ctx context.Context, comm *types.Communicator, sender types.PartyID, datatype types.MessageDatatype, payload []byte) *Future {
	f := newFuture()
	go func() {
		res, err := q.Broadcast(ctx, comm, sender, datatype, payload)
		f.resolve(res, err)
	}()
	return f
}

// MultiBroadcast runs len(payloads) independent Broadcast rounds
// concurrently, one per outer-dimension slot, preserving order in the
// returned MultiResult (§4.1 multi_broadcast).
func (q *Queue) MultiBroadcast(ctx context.Context, comm *types.Communicator, sender types.PartyID, datatype types.MessageDatatype, payloads [][]byte) (MultiResult, error) {
	return q.runMulti(ctx, len(payloads), func(ctx context.Context, i int) (Result, error) {
		return q.Broadcast(ctx, comm, sender, datatype, payloads[i])
	})
}

// MultiBroadcastAsync is the non-blocking form of MultiBroadcast.
func (q *Queue) MultiBroadcastAsync(ctx context.Context, comm *types.Communicator, sender types.PartyID, datatype types.MessageDatatype, payloads [][]byte) *MultiFuture {
	f := newMultiFuture()
	go func() {
		res, err := q.MultiBroadcast(ctx, comm, sender, datatype, payloads)
		f.resolve(res, err)
	}()
	return f
}

// Gather collects localPayload from every member of comm at receiver
// (§4.1 Gather). Every member, including the receiver, must contribute a
// payload of the same size; a mismatched arrival fails with SizeMismatch.
func (q *Queue) Gather(ctx context.Context, comm *types.Communicator, receiver types.PartyID, datatype types.MessageDatatype, localPayload []byte) (Result, error) {
	if err := q.validateCommunicator(comm); err != nil {
		return Result{}, err
	}
	if !comm.Contains(receiver) && q.localID != receiver {
		return Result{}, types.NewError(types.ErrKindInvalidCommunicator, "gather receiver must be a member of the communicator or the caller")
	}
	if !comm.Contains(q.localID) {
		return Result{}, types.NewError(types.ErrKindInvalidCommunicator, "caller must be a member of the communicator")
	}

	id := q.nextID(comm.Members(), []types.PartyID{receiver}, datatype, gatherSpec{receiver: receiver})
	q.stats.addRound()

	if q.localID == receiver {
		var out sync.Map
		out.Store(receiver, localPayload)
		var tasks []task
		for _, s := range comm.Without(receiver) {
			meta := types.Metadata{Kind: types.KindGather, Datatype: datatype, Sender: s, Receiver: receiver, ID: id}
			tasks = append(tasks, q.receiveTask(meta, len(localPayload), &out))
		}
		if err := collectTasks(ctx, tasks); err != nil {
			return Result{}, err
		}
		return collectResult(&out), nil
	}

	meta := types.Metadata{Kind: types.KindGather, Datatype: datatype, Sender: q.localID, Receiver: receiver, ID: id, PayloadLen: uint64(len(localPayload))}
	if err := collectTasks(ctx, []task{q.sendTask(receiver, receiver, meta, localPayload)}); err != nil {
		return Result{}, err
	}
	return Result{Received: map[types.PartyID][]byte{}}, nil
}

// GatherAsync is the non-blocking form of Gather.
func (q *Queue) GatherAsync(ctx context.Context, comm *types.Communicator, receiver types.PartyID, datatype types.MessageDatatype, localPayload []byte) *Future {
	f := newFuture()
	go func() {
		res, err := q.Gather(ctx, comm, receiver, datatype, localPayload)
		f.resolve(res, err)
	}()
	return f
}

// MultiGather is the multi_gather analogue of Gather.
func (q *Queue) MultiGather(ctx context.Context, comm *types.Communicator, receiver types.PartyID, datatype types.MessageDatatype, payloads [][]byte) (MultiResult, error) {
	return q.runMulti(ctx, len(payloads), func(ctx context.Context, i int) (Result, error) {
		return q.Gather(ctx, comm, receiver, datatype, payloads[i])
	})
}

// MultiGatherAsync is the non-blocking form of MultiGather.
func (q *Queue) MultiGatherAsync(ctx context.Context, comm *types.Communicator, receiver types.PartyID, datatype types.MessageDatatype, payloads [][]byte) *MultiFuture {
	f := newMultiFuture()
	go func() {
		res, err := q.MultiGather(ctx, comm, receiver, datatype, payloads)
		f.resolve(res, err)
	}()
	return f
}

// ExtendedAllGather is the general form of AllGather (§4.1): senders
// contribute localPayload, every member of receivers ends up with every
// sender's contribution. senders must be a subset of receivers, and the
// caller must be a member of receivers. Ordinary AllGather is the case
// senders == receivers; see AllGather below.
func (q *Queue) ExtendedAllGather(ctx context.Context, senders, receivers *types.Communicator, datatype types.MessageDatatype, localPayload []byte) (Result, error) {
	if err := q.validateCommunicator(senders); err != nil {
		return Result{}, err
	}
	if err := q.validateCommunicator(receivers); err != nil {
		return Result{}, err
	}
	if !senders.IsSubsetOf(receivers) {
		return Result{}, types.NewError(types.ErrKindInvalidCommunicator, "all_gather senders must be a subset of receivers")
	}
	if !receivers.Contains(q.localID) {
		return Result{}, types.NewError(types.ErrKindInvalidCommunicator, "caller must be a member of the receivers communicator")
	}

	id := q.nextID(senders.Members(), receivers.Members(), datatype, allGatherSpec{})
	q.stats.addRound()

	var out sync.Map
	var tasks []task
	isSender := senders.Contains(q.localID)
	if isSender {
		out.Store(q.localID, localPayload)
	}

	for _, s := range senders.Members() {
		if s == q.localID {
			if !isSender {
				continue
			}
			for _, r := range receivers.Without(q.localID) {
				meta := types.Metadata{Kind: types.KindAllGather, Datatype: datatype, Sender: s, Receiver: r, ID: id, PayloadLen: uint64(len(localPayload))}
				tasks = append(tasks, q.sendTask(r, r, meta, localPayload))
			}
			continue
		}
		meta := types.Metadata{Kind: types.KindAllGather, Datatype: datatype, Sender: s, Receiver: q.localID, ID: id}
		tasks = append(tasks, q.receiveTask(meta, len(localPayload), &out))
		if q.consistencyEnabled() {
			key := consistency.CheckKey{DataKind: types.KindAllGather, Datatype: datatype, Sender: s, ID: id}
			q.checker.Request(key, receivers.Without(q.localID, s))
		}
	}

	if err := collectTasks(ctx, tasks); err != nil {
		return Result{}, err
	}
	return collectResult(&out), nil
}

// ExtendedAllGatherAsync is the non-blocking form of ExtendedAllGather.
func (q *Queue) ExtendedAllGatherAsync(ctx context.Context, senders, receivers *types.Communicator, datatype types.MessageDatatype, localPayload []byte) *Future {
	f := newFuture()
	go func() {
		res, err := q.ExtendedAllGather(ctx, senders, receivers, datatype, localPayload)
		f.resolve(res, err)
	}()
	return f
}

// AllGather is ExtendedAllGather with senders == receivers == comm: every
// member contributes and every member receives every contribution.
func (q *Queue) AllGather(ctx context.Context, comm *types.Communicator, datatype types.MessageDatatype, localPayload []byte) (Result, error) {
	return q.ExtendedAllGather(ctx, comm, comm, datatype, localPayload)
}

// AllGatherAsync is the non-blocking form of AllGather.
func (q *Queue) AllGatherAsync(ctx context.Context, comm *types.Communicator, datatype types.MessageDatatype, localPayload []byte) *Future {
	return q.ExtendedAllGatherAsync(ctx, comm, comm, datatype, localPayload)
}

// MultiAllGather is the multi_all_gather analogue of AllGather.
func (q *Queue) MultiAllGather(ctx context.Context, comm *types.Communicator, datatype types.MessageDatatype, payloads [][]byte) (MultiResult, error) {
	return q.runMulti(ctx, len(payloads), func(ctx context.Context, i int) (Result, error) {
		return q.AllGather(ctx, comm, datatype, payloads[i])
	})
}

// MultiAllGatherAsync is the non-blocking form of MultiAllGather.
func (q *Queue) MultiAllGatherAsync(ctx context.Context, comm *types.Communicator, datatype types.MessageDatatype, payloads [][]byte) *MultiFuture {
	f := newMultiFuture()
	go func() {
		res, err := q.MultiAllGather(ctx, comm, datatype, payloads)
		f.resolve(res, err)
	}()
	return f
}

// ExtendedMultiAllGather is the multi_* analogue of ExtendedAllGather.
func (q *Queue) ExtendedMultiAllGather(ctx context.Context, senders, receivers *types.Communicator, datatype types.MessageDatatype, payloads [][]byte) (MultiResult, error) {
	return q.runMulti(ctx, len(payloads), func(ctx context.Context, i int) (Result, error) {
		return q.ExtendedAllGather(ctx, senders, receivers, datatype, payloads[i])
	})
}

// ExtendedMultiAllGatherAsync is the non-blocking form of ExtendedMultiAllGather.
func (q *Queue) ExtendedMultiAllGatherAsync(ctx context.Context, senders, receivers *types.Communicator, datatype types.MessageDatatype, payloads [][]byte) *MultiFuture {
	f := newMultiFuture()
	go func() {
		res, err := q.ExtendedMultiAllGather(ctx, senders, receivers, datatype, payloads)
		f.resolve(res, err)
	}()
	return f
}

// AllToAll exchanges a distinct payload per peer (§4.1 AllToAll):
// toPeers must hold exactly one entry for every member of comm other
// than the caller. The size a peer sends to us is assumed to match the
// size we send to that peer; a mismatch fails with SizeMismatch.
func (q *Queue) AllToAll(ctx context.Context, comm *types.Communicator, datatype types.MessageDatatype, toPeers map[types.PartyID][]byte) (Result, error) {
	if err := q.validateCommunicator(comm); err != nil {
		return Result{}, err
	}
	if !comm.Contains(q.localID) {
		return Result{}, types.NewError(types.ErrKindInvalidCommunicator, "caller must be a member of the communicator")
	}
	peers := comm.Without(q.localID)
	for _, p := range peers {
		if _, ok := toPeers[p]; !ok {
			return Result{}, types.NewError(types.ErrKindInvalidMetadata, "all_to_all is missing a payload for a communicator member")
		}
	}

	id := q.nextID(comm.Members(), comm.Members(), datatype, allToAllSpec{})
	q.stats.addRound()

	var out sync.Map
	var tasks []task
	for _, p := range peers {
		payload := toPeers[p]
		sendMeta := types.Metadata{Kind: types.KindAllToAll, Datatype: datatype, Sender: q.localID, Receiver: p, ID: id, PayloadLen: uint64(len(payload))}
		tasks = append(tasks, q.sendTask(p, p, sendMeta, payload))

		recvMeta := types.Metadata{Kind: types.KindAllToAll, Datatype: datatype, Sender: p, Receiver: q.localID, ID: id}
		tasks = append(tasks, q.receiveTask(recvMeta, len(payload), &out))
	}

	if err := collectTasks(ctx, tasks); err != nil {
		return Result{}, err
	}
	return collectResult(&out), nil
}

// AllToAllAsync is the non-blocking form of AllToAll.
func (q *Queue) AllToAllAsync(ctx context.Context, comm *types.Communicator, datatype types.MessageDatatype, toPeers map[types.PartyID][]byte) *Future {
	f := newFuture()
	go func() {
		res, err := q.AllToAll(ctx, comm, datatype, toPeers)
		f.resolve(res, err)
	}()
	return f
}

// MultiAllToAll is the multi_all_to_all analogue of AllToAll.
func (q *Queue) MultiAllToAll(ctx context.Context, comm *types.Communicator, datatype types.MessageDatatype, toPeers []map[types.PartyID][]byte) (MultiResult, error) {
	return q.runMulti(ctx, len(toPeers), func(ctx context.Context, i int) (Result, error) {
		return q.AllToAll(ctx, comm, datatype, toPeers[i])
	})
}

// MultiAllToAllAsync is the non-blocking form of MultiAllToAll.
func (q *Queue) MultiAllToAllAsync(ctx context.Context, comm *types.Communicator, datatype types.MessageDatatype, toPeers []map[types.PartyID][]byte) *MultiFuture {
	f := newMultiFuture()
	go func() {
		res, err := q.MultiAllToAll(ctx, comm, datatype, toPeers)
		f.resolve(res, err)
	}()
	return f
}

// Wait blocks until every consistency record this party has registered
// has closed (§4.1 wait); records for which only data has been observed
// do not hold it up. It is a no-op when the consistency
// feature is disabled.
func (q *Queue) Wait(ctx context.Context) error {
	if q.checker == nil {
		return nil
	}
	return q.checker.Wait(ctx)
}

// runMulti drives n independent Result-producing calls concurrently and
// aggregates their errors with the same first-error/MultipleErrors policy
// collectTasks uses for single tasks, preserving slot order in the
// returned MultiResult.
func (q *Queue) runMulti(ctx context.Context, n int, call func(ctx context.Context, i int) (Result, error)) (MultiResult, error) {
	if n == 0 {
		return MultiResult{}, nil
	}

	results := make([]Result, n)
	slotTasks := make([]task, n)
	for i := 0; i < n; i++ {
		i := i
		slotTasks[i] = func(ctx context.Context) error {
			res, err := call(ctx, i)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		}
	}

	if err := collectTasks(ctx, slotTasks); err != nil {
		return MultiResult{}, err
	}
	return MultiResult{Results: results}, nil
}
