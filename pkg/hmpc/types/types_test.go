package types

import "testing"

func TestCommunicatorDeduplicatesAndSorts(t *testing.T) {
	c := NewCommunicator([]PartyID{3, 1, 2, 1, 3})
	if c.Len() != 3 {
		t.Fatalf("expected 3 distinct members, got %d", c.Len())
	}
	members := c.Members()
	want := []PartyID{1, 2, 3}
	for i, id := range want {
		if members[i] != id {
			t.Fatalf("members[%d] = %d, want %d", i, members[i], id)
		}
	}
}

func TestCommunicatorWithoutAndContains(t *testing.T) {
	c := NewCommunicator([]PartyID{1, 2, 3, 4})
	if c.Contains(5) {
		t.Fatal("communicator should not contain 5")
	}
	without := c.Without(2, 4)
	want := []PartyID{1, 3}
	if len(without) != len(want) {
		t.Fatalf("Without returned %v, want %v", without, want)
	}
	for i := range want {
		if without[i] != want[i] {
			t.Fatalf("Without returned %v, want %v", without, want)
		}
	}
}

func TestCommunicatorIsSubsetOf(t *testing.T) {
	sub := NewCommunicator([]PartyID{1, 2})
	full := NewCommunicator([]PartyID{1, 2, 3})
	if !sub.IsSubsetOf(full) {
		t.Fatal("expected subset relationship to hold")
	}
	if full.IsSubsetOf(sub) {
		t.Fatal("full communicator should not be a subset of a smaller one")
	}
}

func TestEncodeSetIsOrderSensitiveOnContent(t *testing.T) {
	a := EncodeSet([]PartyID{1, 2, 3})
	b := EncodeSet([]PartyID{1, 2, 4})
	if string(a) == string(b) {
		t.Fatal("differing member sets must encode differently")
	}
}

func TestMessageKindClassification(t *testing.T) {
	if !KindBroadcast.NeedsCheck() || !KindAllGather.NeedsCheck() {
		t.Fatal("broadcast and all-gather must need consistency checking")
	}
	if KindGather.NeedsCheck() || KindAllToAll.NeedsCheck() {
		t.Fatal("gather and all-to-all must not need consistency checking")
	}
	if CheckKindFor(KindBroadcast) != KindConsistencyCheckBroadcast {
		t.Fatal("unexpected check kind for broadcast")
	}
	if CheckKindFor(KindAllGather) != KindConsistencyCheckAllGather {
		t.Fatal("unexpected check kind for all-gather")
	}
}

func TestMessageKindValid(t *testing.T) {
	if !KindBroadcast.Valid() {
		t.Fatal("KindBroadcast must be valid")
	}
	if MessageKind(250).Valid() {
		t.Fatal("unused discriminant must not be valid")
	}
}
