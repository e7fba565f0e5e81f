package types

import "fmt"

// ErrorKind is the closed taxonomy of §7, distilled to kinds rather than
// per-site messages. It is also what the FFI boundary flattens every
// error down to.
type ErrorKind uint8

const (
	ErrKindUnknown ErrorKind = iota

	// Configuration
	ErrKindMissingConfigFile
	ErrKindUnparseableConfig
	ErrKindMissingSession
	ErrKindMissingCertificate

	// Connection lifecycle
	ErrKindVersionMismatch
	ErrKindTransport
	ErrKindPeerClosed
	ErrKindReset
	ErrKindTimedOut
	ErrKindLocallyClosed
	ErrKindConnectionIDsExhausted
	ErrKindApplicationClose

	// Stream lifecycle
	ErrKindStreamStopped
	ErrKindStreamClosed
	ErrKindStreamUnknown
	ErrKindIllegalOrderedRead
	ErrKindZeroRTTRejected
	ErrKindStreamFinishedEarly
	ErrKindStreamTooLong
	ErrKindStreamReset

	// Frame semantics
	ErrKindFormatVersionMismatch
	ErrKindFeatureMismatch
	ErrKindInvalidEnumValue
	ErrKindSizeMismatch
	ErrKindSessionMismatch

	// Cryptography
	ErrKindSignatureVerificationFailed
	ErrKindUnknownSender

	// Consistency
	ErrKindMultipleChecks
	ErrKindMultipleRequests
	ErrKindMultipleMessages
	ErrKindUnknownCheck
	ErrKindConsistencySignatureFailed
	ErrKindInconsistentCollectiveCommunication

	// Task
	ErrKindTaskCancelled
	ErrKindTaskPanicked
	ErrKindMultipleErrors

	// Boundary
	ErrKindInvalidHandle
	ErrKindInvalidPointer
	ErrKindInvalidSize
	ErrKindInvalidCommunicator
	ErrKindInvalidMetadata
)

var kindNames = map[ErrorKind]string{
	ErrKindUnknown:                              "unknown",
	ErrKindMissingConfigFile:                    "missing_config_file",
	ErrKindUnparseableConfig:                    "unparseable_config",
	ErrKindMissingSession:                       "missing_session",
	ErrKindMissingCertificate:                   "missing_certificate",
	ErrKindVersionMismatch:                      "version_mismatch",
	ErrKindTransport:                             "transport",
	ErrKindPeerClosed:                            "peer_closed",
	ErrKindReset:                                 "reset",
	ErrKindTimedOut:                              "timed_out",
	ErrKindLocallyClosed:                         "locally_closed",
	ErrKindConnectionIDsExhausted:                "connection_ids_exhausted",
	ErrKindApplicationClose:                      "application_close",
	ErrKindStreamStopped:                         "stream_stopped",
	ErrKindStreamClosed:                          "stream_closed",
	ErrKindStreamUnknown:                         "stream_unknown",
	ErrKindIllegalOrderedRead:                    "illegal_ordered_read",
	ErrKindZeroRTTRejected:                       "zero_rtt_rejected",
	ErrKindStreamFinishedEarly:                   "stream_finished_early",
	ErrKindStreamTooLong:                         "stream_too_long",
	ErrKindStreamReset:                           "stream_reset",
	ErrKindFormatVersionMismatch:                 "format_version_mismatch",
	ErrKindFeatureMismatch:                       "feature_mismatch",
	ErrKindInvalidEnumValue:                      "invalid_enum_value",
	ErrKindSizeMismatch:                          "size_mismatch",
	ErrKindSessionMismatch:                       "session_mismatch",
	ErrKindSignatureVerificationFailed:           "signature_verification_failed",
	ErrKindUnknownSender:                         "unknown_sender",
	ErrKindMultipleChecks:                        "multiple_checks",
	ErrKindMultipleRequests:                      "multiple_requests",
	ErrKindMultipleMessages:                      "multiple_messages",
	ErrKindUnknownCheck:                          "unknown_check",
	ErrKindConsistencySignatureFailed:            "consistency_signature_failed",
	ErrKindInconsistentCollectiveCommunication:   "inconsistent_collective_communication",
	ErrKindTaskCancelled:                         "task_cancelled",
	ErrKindTaskPanicked:                          "task_panicked",
	ErrKindMultipleErrors:                        "multiple_errors",
	ErrKindInvalidHandle:                         "invalid_handle",
	ErrKindInvalidPointer:                        "invalid_pointer",
	ErrKindInvalidSize:                           "invalid_size",
	ErrKindInvalidCommunicator:                   "invalid_communicator",
	ErrKindInvalidMetadata:                       "invalid_metadata",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// Error is the concrete error type carried through the engine. Every
// internal failure is constructed with NewError so the FFI boundary can
// always recover an ErrorKind.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error // optional wrapped cause
}

func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func WrapError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the kind from err if it (or something it wraps) is
// an *Error, otherwise ErrKindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	for err != nil {
		if asErr, ok := err.(*Error); ok {
			e = asErr
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if e == nil {
		return ErrKindUnknown
	}
	return e.Kind
}
