// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgicdata

import (
	"sync/atomic"
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ownerRef is the shared ownership handle for one imported CArray tree.
// The root import and every structurally-derived child or dictionary
// view hold the same ownerRef; the foreign release callback fires only
// on the last drop, so release can race safely across goroutines
// without double-freeing.
type ownerRef struct {
	refs  atomic.Int64
	arr   *CArray
	dtype arrow.DataType
}

func (o *ownerRef) retain() {
	o.refs.Add(1)
}

func (o *ownerRef) release() {
	if o.refs.Add(-1) == 0 {
		o.arr.Release()
	}
}

// ImportedArray is the result of an import: a native array whose
// buffers may alias foreign memory, plus the ownership handle keeping
// that memory alive.
//
// The foreign struct is released when the last reference is dropped via
// [ImportedArray.Release]. Buffers aliasing foreign memory, including
// those inside arrays obtained from [ImportedArray.MakeArray], are
// valid only until then.
type ImportedArray struct {
	data  arrow.ArrayData
	owner *ownerRef
}

// Data returns the reconstructed native array data.
func (ia *ImportedArray) Data() arrow.ArrayData { return ia.data }

// MakeArray materializes a typed array over the imported data.
func (ia *ImportedArray) MakeArray() arrow.Array { return array.MakeFromData(ia.data) }

// Retain adds a reference to the ownership handle.
func (ia *ImportedArray) Retain() {
	ia.data.Retain()
	ia.owner.retain()
}

// Release drops one reference; the last drop invokes the foreign
// release callback.
func (ia *ImportedArray) Release() {
	ia.data.Release()
	ia.owner.release()
}

// Import reconstructs a native array from a foreign CArray tree,
// assuming the tree is well-formed per the interchange contract, an
// invariant that cannot be fully verified from this side; null pointers
// and misdeclared counts are caught, everything else is trusted.
//
// Import takes ownership of arr: on failure the struct is released; on
// success release is deferred to the returned handle. Buffers alias the
// foreign memory whenever the pointer satisfies the native element
// alignment, and are copied into private allocations otherwise.
func (b *Bridge) Import(arr *CArray, dtype arrow.DataType) (*ImportedArray, error) {
	if arr == nil {
		return nil, errInvalidStruct("cannot import a nil CArray")
	}
	owner := &ownerRef{arr: arr, dtype: dtype}
	owner.refs.Store(1)

	ref := arrayRef{bridge: b, arr: arr, dtype: dtype, owner: owner}
	data, err := b.importData(ref)
	if err != nil {
		owner.release()
		return nil, err
	}
	if b.hook != nil {
		b.hook.OnImport(dtype, arr.Length)
	}
	return &ImportedArray{data: data, owner: owner}, nil
}

// ImportArray is a convenience wrapper around [Bridge.Import] that
// materializes the typed array alongside its ownership handle.
func (b *Bridge) ImportArray(arr *CArray, dtype arrow.DataType) (arrow.Array, *ImportedArray, error) {
	ia, err := b.Import(arr, dtype)
	if err != nil {
		return nil, nil, err
	}
	return ia.MakeArray(), ia, nil
}

// arrayRef is the capability object over one node of a foreign CArray
// tree: all pointer arithmetic and bounds validation of the import path
// is centralized here. Child and dictionary refs share the parent's
// ownership handle: following a structural edge is not a new release
// obligation.
type arrayRef struct {
	bridge *Bridge
	arr    *CArray
	dtype  arrow.DataType
	owner  *ownerRef
}

// validity returns the validity bitmap buffer, or nil if the struct
// declares no nulls. The null count is taken from the struct directly,
// not recomputed.
func (r arrayRef) validity() (*memory.Buffer, error) {
	if r.arr.NullCount == 0 {
		return nil, nil
	}
	return r.bitmap(0)
}

// bitmap returns buffer `index` interpreted as a packed bit-validity
// buffer of offset+length bits, rounded up to whole bytes. Byte
// pointers are always aligned, so bitmaps never hit the copy fallback.
func (r arrayRef) bitmap(index int) (*memory.Buffer, error) {
	if r.arr.Length == 0 && r.arr.Offset == 0 {
		return nil, nil
	}
	ptr, err := bufferPtrAt(r.arr, r.dtype, index)
	if err != nil {
		return nil, err
	}
	byteLen := bitutil.BytesForBits(r.arr.Offset + r.arr.Length)
	return memory.NewBufferBytes(unsafe.Slice((*byte)(ptr), byteLen)), nil
}

// buffer returns buffer `index` with its byte length computed from the
// physical-type geometry rules.
func (r arrayRef) buffer(index int) (*memory.Buffer, error) {
	byteLen, err := bufferByteLen(r.arr, r.dtype, index)
	if err != nil {
		return nil, err
	}
	return r.bufferKnownLen(index, byteLen)
}

// bufferKnownLen returns buffer `index` with a caller-supplied byte
// length, used where the geometry comes from elsewhere (variadic view
// chunks, whose lengths live in the trailing sizes buffer).
//
// This is the zero-copy decision point: a pointer aligned for the
// native element type is wrapped directly, lifetime tied to the owning
// handle; a misaligned pointer triggers an unconditional copy,
// reported through the hook but never an error.
func (r arrayRef) bufferKnownLen(index int, byteLen int64) (*memory.Buffer, error) {
	if byteLen == 0 {
		return nil, nil
	}
	ptr, err := bufferPtrAt(r.arr, r.dtype, index)
	if err != nil {
		return nil, err
	}

	align := bufferAlign(r.dtype, index)
	if uintptr(ptr)%uintptr(align) == 0 {
		return memory.NewBufferBytes(unsafe.Slice((*byte)(ptr), byteLen)), nil
	}

	if r.bridge.hook != nil {
		r.bridge.hook.OnAlignmentCopy(r.dtype, index, byteLen)
	}
	return copyToBuffer(r.bridge.mem, unsafe.Slice((*byte)(ptr), byteLen)), nil
}

// child returns a view over child `index`, its type resolved through
// the parent descriptor's child-type rule.
func (r arrayRef) child(index int) (arrayRef, error) {
	dtype, err := childType(r.dtype, index)
	if err != nil {
		return arrayRef{}, err
	}
	if r.arr.Children == nil {
		return arrayRef{}, errInvalidStruct("array of type %s must have non-null children", r.dtype)
	}
	if index >= int(r.arr.NChildren) {
		return arrayRef{}, errOutOfBounds("array of type %s has no child %d (declared %d)", r.dtype, index, r.arr.NChildren)
	}
	childArr := r.arr.childPtrs()[index]
	if childArr == nil {
		return arrayRef{}, errInvalidStruct("array of type %s must have a non-null child %d", r.dtype, index)
	}
	return arrayRef{bridge: r.bridge, arr: childArr, dtype: dtype, owner: r.owner}, nil
}

// dictionary returns a view over the dictionary value pool, or an error
// if the descriptor is dictionary-encoded but the struct carries no
// dictionary pointer.
func (r arrayRef) dictionary() (arrayRef, error) {
	dt, ok := r.dtype.(*arrow.DictionaryType)
	if !ok {
		return arrayRef{}, errTypeMismatch("array of type %s has no dictionary", r.dtype)
	}
	if r.arr.Dictionary == nil {
		return arrayRef{}, errInvalidStruct("array of type %s must have a non-null dictionary", r.dtype)
	}
	return arrayRef{bridge: r.bridge, arr: r.arr.Dictionary, dtype: dt.ValueType, owner: r.owner}, nil
}

// withType returns the same node viewed through a different descriptor;
// the keys of a dictionary node use the key integer type's geometry.
func (r arrayRef) withType(dtype arrow.DataType) arrayRef {
	r.dtype = dtype
	return r
}

// bufferPtrAt locates the raw pointer of buffer `index`, validating the
// table and the pointer are non-null and the index is within the
// declared buffer count.
func bufferPtrAt(arr *CArray, dtype arrow.DataType, index int) (unsafe.Pointer, error) {
	if arr.Buffers == nil {
		return nil, errInvalidStruct("array of type %s must have non-null buffers", dtype)
	}
	if index >= int(arr.NBuffers) {
		return nil, errOutOfBounds("array of type %s has no buffer %d (declared %d)", dtype, index, arr.NBuffers)
	}
	ptr := arr.bufferPtrs()[index]
	if ptr == nil {
		return nil, errInvalidStruct("array of type %s must have a non-null buffer %d", dtype, index)
	}
	return ptr, nil
}

// importData reconstructs the ArrayData for one node, dispatching on
// the closed set of physical layouts.
func (b *Bridge) importData(ref arrayRef) (arrow.ArrayData, error) {
	arr := ref.arr
	length := int(arr.Length)
	nulls := int(arr.NullCount)
	offset := int(arr.Offset)

	switch dt := ref.dtype.(type) {
	case *arrow.NullType:
		return array.NewData(dt, length, []*memory.Buffer{nil}, nil, length, offset), nil

	case *arrow.BooleanType:
		validity, err := ref.validity()
		if err != nil {
			return nil, err
		}
		values, err := ref.bitmap(1)
		if err != nil {
			return nil, err
		}
		return array.NewData(dt, length, []*memory.Buffer{validity, values}, nil, nulls, offset), nil

	case *arrow.StringType, *arrow.BinaryType, *arrow.LargeStringType, *arrow.LargeBinaryType:
		validity, err := ref.validity()
		if err != nil {
			return nil, err
		}
		offsets, err := ref.buffer(1)
		if err != nil {
			return nil, err
		}
		values, err := ref.buffer(2)
		if err != nil {
			return nil, err
		}
		return array.NewData(ref.dtype, length, []*memory.Buffer{validity, offsets, values}, nil, nulls, offset), nil

	case *arrow.StringViewType, *arrow.BinaryViewType:
		return b.importViewData(ref)

	case *arrow.FixedSizeBinaryType:
		validity, err := ref.validity()
		if err != nil {
			return nil, err
		}
		values, err := ref.buffer(1)
		if err != nil {
			return nil, err
		}
		return array.NewData(dt, length, []*memory.Buffer{validity, values}, nil, nulls, offset), nil

	case *arrow.ListType, *arrow.LargeListType, *arrow.MapType:
		validity, err := ref.validity()
		if err != nil {
			return nil, err
		}
		offsets, err := ref.buffer(1)
		if err != nil {
			return nil, err
		}
		childRef, err := ref.child(0)
		if err != nil {
			return nil, err
		}
		child, err := b.importData(childRef)
		if err != nil {
			return nil, err
		}
		return array.NewData(ref.dtype, length, []*memory.Buffer{validity, offsets}, []arrow.ArrayData{child}, nulls, offset), nil

	case *arrow.FixedSizeListType:
		validity, err := ref.validity()
		if err != nil {
			return nil, err
		}
		childRef, err := ref.child(0)
		if err != nil {
			return nil, err
		}
		child, err := b.importData(childRef)
		if err != nil {
			return nil, err
		}
		return array.NewData(dt, length, []*memory.Buffer{validity}, []arrow.ArrayData{child}, nulls, offset), nil

	case *arrow.StructType:
		validity, err := ref.validity()
		if err != nil {
			return nil, err
		}
		children := make([]arrow.ArrayData, dt.NumFields())
		for i := range children {
			childRef, err := ref.child(i)
			if err != nil {
				return nil, err
			}
			if children[i], err = b.importData(childRef); err != nil {
				return nil, err
			}
		}
		return array.NewData(dt, length, []*memory.Buffer{validity}, children, nulls, offset), nil

	case *arrow.DictionaryType:
		// The node's own buffers are the key array, laid out per the key
		// integer type; the value pool hangs off the dictionary pointer.
		keysRef := ref.withType(dt.IndexType)
		validity, err := keysRef.validity()
		if err != nil {
			return nil, err
		}
		keys, err := keysRef.buffer(1)
		if err != nil {
			return nil, err
		}
		dictRef, err := ref.dictionary()
		if err != nil {
			return nil, err
		}
		dictData, err := b.importData(dictRef)
		if err != nil {
			return nil, err
		}
		data := array.NewData(dt, length, []*memory.Buffer{validity, keys}, nil, nulls, offset)
		data.SetDictionary(dictData)
		return data, nil

	case arrow.FixedWidthDataType:
		validity, err := ref.validity()
		if err != nil {
			return nil, err
		}
		values, err := ref.buffer(1)
		if err != nil {
			return nil, err
		}
		return array.NewData(ref.dtype, length, []*memory.Buffer{validity, values}, nil, nulls, offset), nil
	}
	return nil, errUnsupported("cannot import array of type %s", ref.dtype)
}

// importViewData reconstructs a view-encoded array: validity, the view
// header buffer, then the variadic data buffers whose byte lengths come
// from the trailing per-chunk sizes buffer appended by the exporter.
func (b *Bridge) importViewData(ref arrayRef) (arrow.ArrayData, error) {
	arr := ref.arr
	if arr.NBuffers < 3 {
		return nil, errInvalidStruct("view array of type %s must declare at least 3 buffers, got %d", ref.dtype, arr.NBuffers)
	}
	validity, err := ref.validity()
	if err != nil {
		return nil, err
	}
	views, err := ref.buffer(1)
	if err != nil {
		return nil, err
	}

	nVariadic := int(arr.NBuffers) - 3
	buffers := make([]*memory.Buffer, 0, nVariadic+2)
	buffers = append(buffers, validity, views)

	if nVariadic > 0 {
		sizesBuf, err := ref.bufferKnownLen(int(arr.NBuffers)-1, int64(nVariadic)*int64(arrow.Int64SizeBytes))
		if err != nil {
			return nil, err
		}
		sizes := arrow.Int64Traits.CastFromBytes(sizesBuf.Bytes())
		for i := 0; i < nVariadic; i++ {
			chunk, err := ref.bufferKnownLen(2+i, sizes[i])
			if err != nil {
				return nil, err
			}
			buffers = append(buffers, chunk)
		}
	}
	return array.NewData(ref.dtype, int(arr.Length), buffers, nil, int(arr.NullCount), int(arr.Offset)), nil
}
