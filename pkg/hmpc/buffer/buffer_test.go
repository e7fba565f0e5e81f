package buffer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jabolina/hmpc/pkg/hmpc/logging"
	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

func sampleMeta() types.Metadata {
	return types.Metadata{
		Kind:     types.KindBroadcast,
		Datatype: 1,
		Sender:   1,
		Receiver: 2,
		ID:       99,
	}
}

func TestReceiveThenArrive(t *testing.T) {
	b := New(context.Background(), logging.New())
	defer b.Close()

	meta := sampleMeta()
	resultCh := make(chan types.Message, 1)
	go func() {
		msg, err := b.Receive(context.Background(), meta)
		require.NoError(t, err)
		resultCh <- msg
	}()

	time.Sleep(10 * time.Millisecond)
	arriving := meta
	arriving.PayloadLen = 5
	b.Received(types.Message{Metadata: arriving, Payload: []byte("hello")})

	select {
	case msg := <-resultCh:
		require.Equal(t, []byte("hello"), msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for receive")
	}
}

func TestArriveThenReceive(t *testing.T) {
	b := New(context.Background(), logging.New())
	defer b.Close()

	meta := sampleMeta()
	arriving := meta
	arriving.PayloadLen = 5
	b.Received(types.Message{Metadata: arriving, Payload: []byte("world")})

	time.Sleep(10 * time.Millisecond)
	msg, err := b.Receive(context.Background(), meta)
	require.NoError(t, err)
	require.Equal(t, []byte("world"), msg.Payload)
}

func TestReceiveMatchesDespitePayloadLenMismatch(t *testing.T) {
	// A receive request never knows the incoming payload size ahead of
	// time, so its metadata carries PayloadLen: 0 while the arrived
	// message carries the real size. bufferKey must still unify them.
	b := New(context.Background(), logging.New())
	defer b.Close()

	meta := sampleMeta()
	meta.PayloadLen = 0
	arriving := meta
	arriving.PayloadLen = 1234

	b.Received(types.Message{Metadata: arriving, Payload: []byte("x")})
	time.Sleep(10 * time.Millisecond)

	msg, err := b.Receive(context.Background(), meta)
	require.NoError(t, err)
	require.Equal(t, []byte("x"), msg.Payload)
}

func TestReceiveRespectsContextCancellation(t *testing.T) {
	b := New(context.Background(), logging.New())
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.Receive(ctx, sampleMeta())
	require.Error(t, err)
	require.Equal(t, types.ErrKindTaskCancelled, types.KindOf(err))
}

func TestReceiveFailsAfterBufferClosed(t *testing.T) {
	b := New(context.Background(), logging.New())
	b.Close()

	_, err := b.Receive(context.Background(), sampleMeta())
	require.Error(t, err)
	require.Equal(t, types.ErrKindLocallyClosed, types.KindOf(err))
}

func TestBufferShutsDownWithoutLeakingItsTask(t *testing.T) {
	b := New(context.Background(), logging.New())
	b.Close()
	time.Sleep(10 * time.Millisecond)
	goleak.VerifyNone(t)
}
