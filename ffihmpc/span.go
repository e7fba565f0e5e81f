//go:build cgo

package ffihmpc

/*
#include <stdint.h>
*/
import "C"

import (
	"encoding/binary"
	"unsafe"

	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

// Span is a pointer+length view of an array owned by foreign code
// (§2.4). A zero Len always yields an empty result regardless of Data;
// a nil Data with non-zero Len is rejected by the caller via ok=false.
type Span struct {
	Data unsafe.Pointer
	Len  C.size_t
}

// Span2D is an array of Spans: the outer dimension of a multi_* call.
type Span2D struct {
	Data unsafe.Pointer // *Span
	Len  C.size_t
}

func (s Span) bytes() ([]byte, bool) {
	if s.Len == 0 {
		return nil, true
	}
	if s.Data == nil {
		return nil, false
	}
	return C.GoBytes(s.Data, C.int(s.Len)), true
}

// partyIDs interprets the span as a little-endian uint16 array — the
// wire width of types.PartyID.
func (s Span) partyIDs() ([]types.PartyID, bool) {
	raw, ok := s.bytes()
	if !ok {
		return nil, false
	}
	if len(raw)%2 != 0 {
		return nil, false
	}
	out := make([]types.PartyID, len(raw)/2)
	for i := range out {
		out[i] = types.PartyID(binary.LittleEndian.Uint16(raw[2*i : 2*i+2]))
	}
	return out, true
}

func (s Span) communicator() (*types.Communicator, bool) {
	ids, ok := s.partyIDs()
	if !ok {
		return nil, false
	}
	return types.NewCommunicator(ids), true
}

// cSpan mirrors Span's memory layout (pointer, size_t) so a Span2D's
// backing array — laid out by the foreign caller as a contiguous C
// array of the equivalent struct — can be walked without a C header
// declaring it explicitly.
type cSpan struct {
	data unsafe.Pointer
	len  C.size_t
}

func (s Span2D) spans() ([]Span, bool) {
	if s.Len == 0 {
		return nil, true
	}
	if s.Data == nil {
		return nil, false
	}
	n := int(s.Len)
	raw := unsafe.Slice((*cSpan)(s.Data), n)
	out := make([]Span, n)
	for i, r := range raw {
		out[i] = Span{Data: r.data, Len: r.len}
	}
	return out, true
}
