package consistency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jabolina/hmpc/pkg/hmpc/logging"
	"github.com/jabolina/hmpc/pkg/hmpc/signing"
	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

func newChecker(t *testing.T, keys *signing.KeyRing) (*Checker, chan SendCheckCommand) {
	t.Helper()
	out := make(chan SendCheckCommand, 32)
	c := New(context.Background(), logging.New(), types.PartyID(1), keys, out)
	t.Cleanup(c.Close)
	return c, out
}

func TestWaitIsNoOpWithNoOutstandingRecords(t *testing.T) {
	keys := signing.NewKeyRing()
	c, _ := newChecker(t, keys)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
}

func TestMatchingAttestationsCloseTheRecord(t *testing.T) {
	pub2, priv2, err := signing.GenerateKey()
	require.NoError(t, err)
	keys := signing.NewKeyRing()
	keys.Add(types.PartyID(2), pub2)

	c, out := newChecker(t, keys)

	key := CheckKey{DataKind: types.KindBroadcast, Datatype: 1, Sender: types.PartyID(1), ID: 7}
	hash := types.Hash{1, 2, 3}

	c.Request(key, []types.PartyID{2})
	c.ReceivedData(CheckMessage{Key: key, From: types.PartyID(1), Attestation: Attestation{Hash: hash}})

	select {
	case cmd := <-out:
		require.Equal(t, types.PartyID(2), cmd.Receiver)
		require.Equal(t, hash, cmd.Hash)
	case <-time.After(time.Second):
		t.Fatal("expected a SendCheckCommand to be emitted")
	}

	sig := Sign(priv2, key, hash)
	c.ReceivedCheck(CheckMessage{Key: key, From: types.PartyID(2), Attestation: Attestation{Hash: hash, Signature: sig}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
}

func TestHashMismatchIsDetectedAsEquivocation(t *testing.T) {
	pub2, priv2, err := signing.GenerateKey()
	require.NoError(t, err)
	keys := signing.NewKeyRing()
	keys.Add(types.PartyID(2), pub2)

	c, _ := newChecker(t, keys)

	key := CheckKey{DataKind: types.KindBroadcast, Datatype: 1, Sender: types.PartyID(1), ID: 7}
	localHash := types.Hash{1, 2, 3}
	peerHash := types.Hash{4, 5, 6}

	c.Request(key, []types.PartyID{2})
	c.ReceivedData(CheckMessage{Key: key, From: types.PartyID(1), Attestation: Attestation{Hash: localHash}})

	sig := Sign(priv2, key, peerHash)
	c.ReceivedCheck(CheckMessage{Key: key, From: types.PartyID(2), Attestation: Attestation{Hash: peerHash, Signature: sig}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err = c.Wait(ctx)
	require.Error(t, err)
	require.Equal(t, types.ErrKindInconsistentCollectiveCommunication, types.KindOf(err))
}

func TestInvalidSignatureIsRejected(t *testing.T) {
	pub2, _, err := signing.GenerateKey()
	require.NoError(t, err)
	_, otherPriv, err := signing.GenerateKey()
	require.NoError(t, err)
	keys := signing.NewKeyRing()
	keys.Add(types.PartyID(2), pub2)

	c, _ := newChecker(t, keys)

	key := CheckKey{DataKind: types.KindBroadcast, Datatype: 1, Sender: types.PartyID(1), ID: 7}
	hash := types.Hash{1, 2, 3}

	c.Request(key, []types.PartyID{2})
	c.ReceivedData(CheckMessage{Key: key, From: types.PartyID(1), Attestation: Attestation{Hash: hash}})

	sig := Sign(otherPriv, key, hash) // signed by the wrong key
	c.ReceivedCheck(CheckMessage{Key: key, From: types.PartyID(2), Attestation: Attestation{Hash: hash, Signature: sig}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err = c.Wait(ctx)
	require.Error(t, err)
	require.Equal(t, types.ErrKindConsistencySignatureFailed, types.KindOf(err))
}

func TestCheckerShutsDownWithoutLeakingItsTask(t *testing.T) {
	keys := signing.NewKeyRing()
	c := New(context.Background(), logging.New(), types.PartyID(1), keys, make(chan SendCheckCommand, 1))
	c.Close()
	time.Sleep(10 * time.Millisecond)
	goleak.VerifyNone(t)
}

func TestAttestationPayloadIsStableForSameKeyAndHash(t *testing.T) {
	key := CheckKey{DataKind: types.KindAllGather, Datatype: 2, Sender: types.PartyID(3), ID: 55}
	hash := types.Hash{9, 9, 9}
	require.Equal(t, AttestationPayload(key, hash), AttestationPayload(key, hash))

	other := key
	other.Sender = types.PartyID(4)
	require.NotEqual(t, AttestationPayload(key, hash), AttestationPayload(other, hash))
}
