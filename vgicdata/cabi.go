// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgicdata

import (
	"unsafe"
)

// CArray mirrors struct ArrowArray from the Arrow C data interface,
// field for field:
//
//	int64_t length;
//	int64_t null_count;
//	int64_t offset;
//	int64_t n_buffers;
//	int64_t n_children;
//	const void** buffers;
//	struct ArrowArray** children;
//	struct ArrowArray* dictionary;
//	void (*release)(struct ArrowArray*);
//	void* private_data;
//
// The struct carries no destructor of its own. The only correct way to
// free its resources is to call [CArray.Release], at most once, which
// invokes the producer-installed callback. The callback recursively
// releases children and the dictionary, then clears ReleaseFn so a
// second Release is a no-op.
//
// A CArray with a nil ReleaseFn owns nothing; [NewEmptyCArray] returns
// such a struct for a consumer to hand to a producer for filling.
//
// Once published, a CArray must not be mutated; under that contract it
// is safe to share and send across goroutines without locking.
type CArray struct {
	Length    int64
	NullCount int64
	Offset    int64
	NBuffers  int64
	NChildren int64
	// Buffers points at the first entry of an array of NBuffers raw
	// buffer pointers. Entries may be null (e.g. an absent validity
	// bitmap). The pointed-at table is owned by the producer's private
	// data, not by the consumer.
	Buffers *unsafe.Pointer
	// Children points at the first entry of an array of NChildren
	// pointers to heap-allocated child structs, each independently
	// releasable.
	Children **CArray
	// Dictionary points to the value pool of a dictionary-encoded array,
	// or is nil for any other type.
	Dictionary *CArray
	// ReleaseFn is the release callback. Nil means the struct holds no
	// resources (already released, or never filled). Producers set it;
	// consumers call it only through Release.
	ReleaseFn func(*CArray)
	// PrivateData is opaque to the consumer. The exporter stores a
	// runtime/cgo handle here so the backing Go allocations stay
	// reachable while the struct is live.
	PrivateData uintptr
}

// NewEmptyCArray returns a zeroed CArray with no release callback,
// suitable for passing to a producer that will fill it in place.
func NewEmptyCArray() *CArray {
	return &CArray{}
}

// Released reports whether the struct's resources have been released
// (or were never attached).
func (a *CArray) Released() bool {
	return a == nil || a.ReleaseFn == nil
}

// Release frees the struct's resources by invoking the release callback
// exactly once. Calling Release on a nil, empty, or already-released
// struct is a no-op, so every code path that might own the struct can
// release it unconditionally.
func (a *CArray) Release() {
	if a == nil || a.ReleaseFn == nil {
		return
	}
	release := a.ReleaseFn
	a.ReleaseFn = nil
	release(a)
}

// Move transfers the contents of a into a freshly allocated struct and
// marks a released, matching the ArrowArrayMove semantics of the C
// helpers: the source keeps its field values for inspection but no
// longer owns anything.
func (a *CArray) Move() *CArray {
	out := *a
	a.ReleaseFn = nil
	a.PrivateData = 0
	return &out
}

// bufferPtrs returns the struct's buffer pointer table as a slice.
// Callers must have checked Buffers is non-nil.
func (a *CArray) bufferPtrs() []unsafe.Pointer {
	return unsafe.Slice(a.Buffers, int(a.NBuffers))
}

// childPtrs returns the struct's child pointer table as a slice.
// Callers must have checked Children is non-nil.
func (a *CArray) childPtrs() []*CArray {
	return unsafe.Slice(a.Children, int(a.NChildren))
}
