// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package vgicdata moves columnar Arrow array data across a module or
// process boundary with zero copying whenever memory layout permits,
// using the struct layout of the Arrow C data interface as the
// interchange contract.
//
// The contract is the [CArray] struct: a fixed-field record carrying
// length, null count, offset, raw buffer pointers, raw child pointers,
// an optional dictionary pointer, and a release callback. Exactly one
// side is ever responsible for releasing each node, and that side is
// discoverable from the struct itself: whoever holds an unreleased
// [CArray] calls [CArray.Release] exactly once, which recursively tears
// down children and the dictionary.
//
// # Export
//
// [Bridge.Export] walks a native [arrow.ArrayData] depth-first and
// produces one [CArray] per node. Each node owns a private allocation
// holding a retained reference to the native array, the pointer tables
// the struct points into, and (for view-encoded types) the per-chunk
// byte-length buffer. The installed release callback frees exactly
// those resources. [NewEmptyCArray] builds the empty placeholder a
// consumer hands to a foreign producer for filling.
//
// # Import
//
// [Bridge.Import] walks a foreign [CArray] tree and reconstructs an
// [arrow.ArrayData] whose buffers alias the foreign memory directly
// when the pointers satisfy the native element alignment, falling back
// to a private copy otherwise. All nodes derived from one import share
// a single reference-counted ownership handle; the foreign release
// callback fires only when the last [ImportedArray] reference is
// dropped. The importer validates what it can (null pointers, declared
// buffer and child counts) and otherwise trusts that the producer
// honored the interchange contract, which cannot be proven from this
// side of the boundary.
//
// # Dictionary encoding
//
// [Dictionary] pairs a typed integer key array with a shared value
// pool and maintains the safety-critical invariant that every non-null
// key is a valid in-bounds index into the pool. [NewDictionary]
// verifies the invariant in O(n); [NewDictionaryUnchecked] documents it
// as a caller precondition. Slicing a dictionary narrows only the key
// window; the value pool is shared by every slice.
//
// # Observability
//
// The bridge is silent by default. A [BridgeHook] installed via
// [WithHook] observes exports, imports, and alignment-fallback copies;
// the vgicdata/otel submodule provides an OpenTelemetry
// implementation.
//
// # Crossing a real C boundary
//
// [CArray] matches the ArrowArray struct field-for-field, but the
// release slot holds a Go function value. Handing a struct to non-Go
// code requires the usual cgo trampoline around the release callback;
// within a Go process (plugins, shared-memory handoff between
// components) the structs are used as-is.
package vgicdata
