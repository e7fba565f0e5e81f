// Package ffihmpc is the foreign-function boundary the original
// hmpc-rs exposed to a hosting process (SPEC_FULL.md §2.4): opaque
// handles instead of raw pointers to Go values, Span/Span2D
// pointer+length descriptors for 1-D/2-D payload arrays, and an
// ErrorCode enum that flattens the internal error taxonomy (§7).
//
// Everything that actually touches cgo lives behind the "cgo" build
// tag so the rest of the module — including every other package in
// this repository — builds as pure Go without a C toolchain. The
// handle table and error-code mapping are plain Go and always build;
// only span.go, config.go and queue.go require cgo.
package ffihmpc
