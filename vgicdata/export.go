// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgicdata

import (
	"runtime/cgo"
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// exportedPrivate is the private allocation backing one exported CArray
// node. It is reachable only through the cgo handle stored in the
// struct's PrivateData slot, which keeps every field alive until the
// release callback runs:
//
//   - data pins the native array and therefore all its buffers;
//   - bufferPtrs and childPtrs are the tables the struct's raw Buffers
//     and Children fields point into, so they must outlive the struct;
//   - variadicSizes backs the extra per-chunk byte-length buffer
//     appended for view-encoded types.
type exportedPrivate struct {
	data          arrow.ArrayData
	bufferPtrs    []unsafe.Pointer
	childPtrs     []*CArray
	dictionary    *CArray
	variadicSizes []int64
	hook          BridgeHook
	root          bool
}

// Export builds a CArray tree from a native array. Each node owns a
// private allocation that retains data, so the caller may release its
// own reference immediately; the buffers stay alive until the remote
// side calls [CArray.Release] on the root.
func (b *Bridge) Export(data arrow.ArrayData) *CArray {
	out := &CArray{}
	b.exportInto(data, out, true)
	if b.hook != nil {
		b.hook.OnExport(data.DataType(), int64(data.Len()))
	}
	return out
}

// ExportInto fills a caller-provided struct, typically one obtained
// from [NewEmptyCArray] by a consumer that asked to be filled. Any
// resources previously owned by out are released first.
func (b *Bridge) ExportInto(data arrow.ArrayData, out *CArray) {
	out.Release()
	b.exportInto(data, out, true)
	if b.hook != nil {
		b.hook.OnExport(data.DataType(), int64(data.Len()))
	}
}

func (b *Bridge) exportInto(data arrow.ArrayData, out *CArray, root bool) {
	data.Retain()

	private := &exportedPrivate{
		data: data,
		hook: b.hook,
		root: root,
	}

	buffers := exportBuffers(data)

	// View-encoded types append one extra buffer carrying the byte
	// length of each variadic data chunk. The table itself must stay
	// alive alongside the struct, so it lives in the private block.
	switch data.DataType().ID() {
	case arrow.STRING_VIEW, arrow.BINARY_VIEW:
		private.variadicSizes = variadicBufferSizes(data)
		var p unsafe.Pointer
		if len(private.variadicSizes) > 0 {
			p = unsafe.Pointer(unsafe.SliceData(private.variadicSizes))
		}
		buffers = append(buffers, p)
	}
	private.bufferPtrs = buffers

	// Children and the dictionary are exported recursively, each into
	// its own heap allocation so each can be independently released.
	children := data.Children()
	private.childPtrs = make([]*CArray, len(children))
	for i, child := range children {
		private.childPtrs[i] = &CArray{}
		b.exportInto(child, private.childPtrs[i], false)
	}

	if dict := data.Dictionary(); dict != nil && data.DataType().ID() == arrow.DICTIONARY {
		private.dictionary = &CArray{}
		b.exportInto(dict, private.dictionary, false)
	}

	out.Length = int64(data.Len())
	out.NullCount = int64(data.NullN())
	out.Offset = int64(data.Offset())
	out.NBuffers = int64(len(private.bufferPtrs))
	out.NChildren = int64(len(private.childPtrs))
	out.Buffers = nil
	if len(private.bufferPtrs) > 0 {
		out.Buffers = &private.bufferPtrs[0]
	}
	out.Children = nil
	if len(private.childPtrs) > 0 {
		out.Children = &private.childPtrs[0]
	}
	out.Dictionary = private.dictionary
	out.ReleaseFn = releaseExported
	out.PrivateData = uintptr(cgo.NewHandle(private))
}

// releaseExported is the release callback installed on every exported
// struct. It reclaims the private allocation, dropping the retained
// native array, then recursively releases children and the dictionary.
// A nil struct is a no-op.
func releaseExported(arr *CArray) {
	if arr == nil {
		return
	}
	h := cgo.Handle(arr.PrivateData)
	private := h.Value().(*exportedPrivate)

	for _, child := range private.childPtrs {
		child.Release()
	}
	private.dictionary.Release()

	if private.hook != nil && private.root {
		private.hook.OnRelease(private.data.DataType())
	}
	private.data.Release()
	h.Delete()
	arr.PrivateData = 0
	arr.ReleaseFn = nil
}

// exportBuffers builds the raw pointer table for data's buffers. Absent
// buffers (nil or empty) become null pointers; the consumer derives
// each buffer's length from the geometry rules, never from the table.
func exportBuffers(data arrow.ArrayData) []unsafe.Pointer {
	bufs := data.Buffers()
	ptrs := make([]unsafe.Pointer, len(bufs))
	for i, buf := range bufs {
		if buf == nil || buf.Len() == 0 {
			continue
		}
		ptrs[i] = unsafe.Pointer(unsafe.SliceData(buf.Bytes()))
	}
	return ptrs
}

// variadicBufferSizes returns the byte length of each variadic data
// buffer of a view-encoded array (buffers past the validity bitmap and
// the view-header buffer).
func variadicBufferSizes(data arrow.ArrayData) []int64 {
	bufs := data.Buffers()
	if len(bufs) <= 2 {
		return nil
	}
	sizes := make([]int64, 0, len(bufs)-2)
	for _, buf := range bufs[2:] {
		var n int64
		if buf != nil {
			n = int64(buf.Len())
		}
		sizes = append(sizes, n)
	}
	return sizes
}

// copyToBuffer copies src into a fresh allocator-backed buffer; the
// importer's alignment-fallback path lands here.
func copyToBuffer(mem memory.Allocator, src []byte) *memory.Buffer {
	buf := memory.NewResizableBuffer(mem)
	buf.Resize(len(src))
	copy(buf.Bytes(), src)
	return buf
}
