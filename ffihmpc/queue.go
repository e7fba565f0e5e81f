//go:build cgo

package ffihmpc

/*
#include <stdint.h>
*/
import "C"

import (
	"context"
	"unsafe"

	hmpc "github.com/jabolina/hmpc/pkg/hmpc"
	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

// hmpc_queue_start brings up a full Runtime (outbound multiplexer,
// inbound dispatcher, buffer, optional consistency checker and
// planner) for the party identified by configHandle/localID, returning
// an opaque QueueHandle.
//
//export hmpc_queue_start
func hmpc_queue_start(configHandle C.int64_t, consistencyEnabled C.uint8_t, code *C.uint8_t) C.int64_t {
	v, ok := configHandles.get(Handle(configHandle))
	if !ok {
		writeCode(code, ErrInvalidHandle)
		return C.int64_t(invalidHandle)
	}
	lc := v.(*loadedConfig)

	rt, err := hmpc.Start(context.Background(), hmpc.Options{
		ConfigPath:         lc.path,
		LocalID:            lc.localID,
		ConsistencyEnabled: consistencyEnabled != 0,
	})
	if err != nil {
		writeCode(code, codeFromError(err))
		return C.int64_t(invalidHandle)
	}

	writeCode(code, Ok)
	return C.int64_t(queueHandles.put(rt))
}

// hmpc_queue_free stops the Runtime behind handle and releases it.
//
//export hmpc_queue_free
func hmpc_queue_free(handle C.int64_t) {
	v, ok := queueHandles.get(Handle(handle))
	if !ok {
		return
	}
	v.(*hmpc.Runtime).Close()
	queueHandles.remove(Handle(handle))
}

// hmpc_queue_broadcast is the FFI entry point for §4.1 Broadcast: the
// sender writes payload/payloadLen; every other member of communicator
// reads it back through the same parameters on return.
//
//export hmpc_queue_broadcast
func hmpc_queue_broadcast(handle C.int64_t, communicator Span, sender C.uint16_t, datatype C.uint8_t, payload Span, code *C.uint8_t) {
	rt, ok := runtimeFor(handle, code)
	if !ok {
		return
	}
	comm, ok := communicator.communicator()
	if !ok {
		writeCode(code, ErrInvalidPointer)
		return
	}
	data, ok := payload.bytes()
	if !ok {
		writeCode(code, ErrInvalidPointer)
		return
	}

	res, err := rt.Queue.Broadcast(context.Background(), comm, types.PartyID(sender), types.MessageDatatype(datatype), data)
	if err == nil && payload.Len > 0 {
		if got, ok := res.Received[types.PartyID(sender)]; ok {
			copy(unsafe.Slice((*byte)(payload.Data), int(payload.Len)), got)
		}
	}
	writeCode(code, codeFromError(err))
}

// hmpc_queue_wait is the FFI entry point for §4.1 wait.
//
//export hmpc_queue_wait
func hmpc_queue_wait(handle C.int64_t, code *C.uint8_t) {
	rt, ok := runtimeFor(handle, code)
	if !ok {
		return
	}
	err := rt.Queue.Wait(context.Background())
	writeCode(code, codeFromError(err))
}

// hmpc_queue_network_statistics reads the current sent/received/rounds
// counters (§4.1 network_statistics) into the three out-params.
//
//export hmpc_queue_network_statistics
func hmpc_queue_network_statistics(handle C.int64_t, sent, received, rounds *C.uint64_t, code *C.uint8_t) {
	rt, ok := runtimeFor(handle, code)
	if !ok {
		return
	}
	stats := rt.Queue.NetworkStatistics()
	if sent != nil {
		*sent = C.uint64_t(stats.Sent)
	}
	if received != nil {
		*received = C.uint64_t(stats.Received)
	}
	if rounds != nil {
		*rounds = C.uint64_t(stats.Rounds)
	}
	writeCode(code, Ok)
}

func runtimeFor(handle C.int64_t, code *C.uint8_t) (*hmpc.Runtime, bool) {
	v, ok := queueHandles.get(Handle(handle))
	if !ok {
		writeCode(code, ErrInvalidHandle)
		return nil, false
	}
	return v.(*hmpc.Runtime), true
}
