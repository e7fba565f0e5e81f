package queue

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

func newTestQueue() *Queue {
	return &Queue{counters: make(map[counterKey]uint64)}
}

func TestNextIDIsStableForIdenticalCalls(t *testing.T) {
	q := newTestQueue()
	senders := []types.PartyID{1}
	receivers := []types.PartyID{2, 3}

	first := q.nextID(senders, receivers, 5, broadcastSpec{sender: 1})
	q2 := newTestQueue()
	same := q2.nextID(senders, receivers, 5, broadcastSpec{sender: 1})
	require.Equal(t, first, same)
}

func TestNextIDMonotoneWithinSameTuple(t *testing.T) {
	q := newTestQueue()
	senders := []types.PartyID{1}
	receivers := []types.PartyID{2, 3}

	first := q.nextID(senders, receivers, 5, broadcastSpec{sender: 1})
	second := q.nextID(senders, receivers, 5, broadcastSpec{sender: 1})
	require.Equal(t, first+1, second)
}

func TestNextIDDiffersAcrossKindsAndDatatypes(t *testing.T) {
	q := newTestQueue()
	senders := []types.PartyID{1}
	receivers := []types.PartyID{2, 3}

	broadcastID := q.nextID(senders, receivers, 5, broadcastSpec{sender: 1})
	allGatherID := q.nextID(senders, receivers, 5, allGatherSpec{})
	require.NotEqual(t, broadcastID, allGatherID)

	otherDatatype := q.nextID(senders, receivers, 6, broadcastSpec{sender: 1})
	require.NotEqual(t, broadcastID, otherDatatype)
}

func TestNextIDDiffersWhenReceiversDiffer(t *testing.T) {
	q := newTestQueue()
	senders := []types.PartyID{1}

	a := q.nextID(senders, []types.PartyID{2, 3}, 5, broadcastSpec{sender: 1})
	b := q.nextID(senders, []types.PartyID{2, 4}, 5, broadcastSpec{sender: 1})
	require.NotEqual(t, a, b)
}

func TestGatherSpecDigestFieldsCarryReceiver(t *testing.T) {
	spec := gatherSpec{receiver: 9}
	require.Equal(t, types.KindGather, spec.kind())
	require.Len(t, spec.digestFields(), 2)
}
