package ffihmpc

import "github.com/jabolina/hmpc/pkg/hmpc/types"

// ErrorCode is the flattened view of types.ErrorKind a foreign caller
// receives: no Go error values or wrapped causes cross the boundary,
// only this closed, stable, numeric enum (§7's taxonomy table, §2.4).
type ErrorCode uint8

const (
	Ok ErrorCode = iota
	ErrUnknown
	ErrInvalidHandle
	ErrInvalidPointer
	ErrInvalidSize
	ErrInvalidCommunicator
	ErrInvalidMetadata
	ErrSizeMismatch
	ErrSessionMismatch
	ErrUnknownSender
	ErrSignatureVerificationFailed
	ErrConsistencySignatureFailed
	ErrInconsistentCollectiveCommunication
	ErrMultipleChecks
	ErrMultipleRequests
	ErrMultipleMessages
	ErrUnknownCheck
	ErrTaskCancelled
	ErrTaskPanicked
	ErrMultipleErrors
	ErrTransport
	ErrPeerClosed
	ErrTimedOut
	ErrLocallyClosed
	ErrMissingConfigFile
	ErrUnparseableConfig
	ErrMissingSession
	ErrMissingCertificate
)

var kindToCode = map[types.ErrorKind]ErrorCode{
	types.ErrKindUnknown:                              ErrUnknown,
	types.ErrKindInvalidHandle:                        ErrInvalidHandle,
	types.ErrKindInvalidPointer:                        ErrInvalidPointer,
	types.ErrKindInvalidSize:                           ErrInvalidSize,
	types.ErrKindInvalidCommunicator:                   ErrInvalidCommunicator,
	types.ErrKindInvalidMetadata:                       ErrInvalidMetadata,
	types.ErrKindSizeMismatch:                          ErrSizeMismatch,
	types.ErrKindSessionMismatch:                       ErrSessionMismatch,
	types.ErrKindUnknownSender:                         ErrUnknownSender,
	types.ErrKindSignatureVerificationFailed:           ErrSignatureVerificationFailed,
	types.ErrKindConsistencySignatureFailed:            ErrConsistencySignatureFailed,
	types.ErrKindInconsistentCollectiveCommunication:   ErrInconsistentCollectiveCommunication,
	types.ErrKindMultipleChecks:                        ErrMultipleChecks,
	types.ErrKindMultipleRequests:                      ErrMultipleRequests,
	types.ErrKindMultipleMessages:                       ErrMultipleMessages,
	types.ErrKindUnknownCheck:                           ErrUnknownCheck,
	types.ErrKindTaskCancelled:                          ErrTaskCancelled,
	types.ErrKindTaskPanicked:                           ErrTaskPanicked,
	types.ErrKindMultipleErrors:                         ErrMultipleErrors,
	types.ErrKindTransport:                              ErrTransport,
	types.ErrKindPeerClosed:                             ErrPeerClosed,
	types.ErrKindTimedOut:                               ErrTimedOut,
	types.ErrKindLocallyClosed:                          ErrLocallyClosed,
	types.ErrKindMissingConfigFile:                      ErrMissingConfigFile,
	types.ErrKindUnparseableConfig:                      ErrUnparseableConfig,
	types.ErrKindMissingSession:                         ErrMissingSession,
	types.ErrKindMissingCertificate:                     ErrMissingCertificate,
}

// codeFromError flattens err to the ErrorCode a foreign caller can act
// on. A nil error maps to Ok; anything not constructed with
// types.NewError/WrapError maps to ErrUnknown, and so does any kind with
// no entry in kindToCode (for example the stream-lifecycle and
// frame-format kinds).
func codeFromError(err error) ErrorCode {
	if err == nil {
		return Ok
	}
	if code, ok := kindToCode[types.KindOf(err)]; ok {
		return code
	}
	return ErrUnknown
}
