// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgicdata

import (
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
)

// viewHeaderSize is the byte width of one view-encoded slot (inline
// short value, or offset+length reference into a variadic data buffer).
const viewHeaderSize = 16

// bufferByteLen returns the byte length of buffer `index` of a foreign
// struct, derived from the physical type of dtype. Buffer indices follow
// the C data interface: buffer 0 is the validity bitmap (handled by the
// bitmap path, not here), buffer 1 is offsets or values depending on the
// type, buffer 2 is variable-length data.
//
// The rules are physical-type-dependent, not uniform:
//
//   - variable-length string/binary: the offsets buffer has
//     offset+length+1 entries, and the data buffer's length is the value
//     at offsets[offset+length] (data buffers are logically zero-based
//     regardless of the struct's own offset field);
//   - list-like types: offset+length+1 offset entries, no data buffer
//     (the child holds the data);
//   - view-encoded string/binary: offset+length view headers, no extra
//     slot; variadic data buffer lengths come from the trailing sizes
//     buffer and are resolved by the importer, not here;
//   - fixed-size binary: size*(offset+length) bytes, the struct offset
//     being scaled by the element size;
//   - everything else fixed-width: offset+length slots of the element
//     width, bit-packed for booleans.
//
// Reading the last offset entry dereferences foreign memory; this is
// sound only under the interchange contract's validity assumption.
func bufferByteLen(arr *CArray, dtype arrow.DataType, index int) (int64, error) {
	slots := arr.Offset + arr.Length

	switch dt := dtype.(type) {
	case *arrow.BooleanType:
		return bitutil.BytesForBits(slots), nil

	case *arrow.StringType, *arrow.BinaryType:
		if index == 2 {
			return lastOffset32(arr, dtype)
		}
		return (slots + 1) * int64(arrow.Int32SizeBytes), nil

	case *arrow.LargeStringType, *arrow.LargeBinaryType:
		if index == 2 {
			return lastOffset64(arr, dtype)
		}
		return (slots + 1) * int64(arrow.Int64SizeBytes), nil

	case *arrow.ListType, *arrow.LargeListType, *arrow.MapType:
		width := int64(arrow.Int32SizeBytes)
		if dtype.ID() == arrow.LARGE_LIST {
			width = int64(arrow.Int64SizeBytes)
		}
		return (slots + 1) * width, nil

	case *arrow.StringViewType, *arrow.BinaryViewType:
		return slots * viewHeaderSize, nil

	case *arrow.FixedSizeBinaryType:
		return slots * int64(dt.ByteWidth), nil

	case arrow.FixedWidthDataType:
		return slots * int64(dt.BitWidth()) / 8, nil
	}
	return 0, errUnsupported("no buffer geometry for type %s (buffer %d)", dtype, index)
}

// bufferAlign returns the pointer alignment required to alias buffer
// `index` of dtype without copying. Bitmaps, raw bytes, and fixed-size
// binary values have byte alignment; offsets and wider elements require
// their element alignment, capped at the largest alignment Go types use.
func bufferAlign(dtype arrow.DataType, index int) int {
	switch dt := dtype.(type) {
	case *arrow.BooleanType, *arrow.FixedSizeBinaryType:
		return 1
	case *arrow.StringType, *arrow.BinaryType:
		if index == 2 {
			return 1
		}
		return arrow.Int32SizeBytes
	case *arrow.LargeStringType, *arrow.LargeBinaryType:
		if index == 2 {
			return 1
		}
		return arrow.Int64SizeBytes
	case *arrow.ListType, *arrow.MapType:
		return arrow.Int32SizeBytes
	case *arrow.LargeListType:
		return arrow.Int64SizeBytes
	case *arrow.StringViewType, *arrow.BinaryViewType:
		// View headers are 16 bytes but hold int32/uint32 words; 8 keeps
		// them aliasable by any Go view representation.
		return 8
	case arrow.FixedWidthDataType:
		return min(dt.BitWidth()/8, 8)
	}
	return 1
}

// lastOffset32 reads the final entry of a 32-bit offsets buffer, which
// is the byte length of the data buffer that follows it.
func lastOffset32(arr *CArray, dtype arrow.DataType) (int64, error) {
	ptr, err := bufferPtrAt(arr, dtype, 1)
	if err != nil {
		return 0, err
	}
	offsets := unsafe.Slice((*int32)(ptr), arr.Offset+arr.Length+1)
	return int64(offsets[len(offsets)-1]), nil
}

// lastOffset64 is lastOffset32 for 64-bit offsets.
func lastOffset64(arr *CArray, dtype arrow.DataType) (int64, error) {
	ptr, err := bufferPtrAt(arr, dtype, 1)
	if err != nil {
		return 0, err
	}
	offsets := unsafe.Slice((*int64)(ptr), arr.Offset+arr.Length+1)
	return offsets[len(offsets)-1], nil
}

// childType resolves the type descriptor of child `index` from the
// parent descriptor's own child-type rule.
func childType(dtype arrow.DataType, index int) (arrow.DataType, error) {
	switch dt := dtype.(type) {
	case *arrow.ListType:
		return dt.Elem(), nil
	case *arrow.LargeListType:
		return dt.Elem(), nil
	case *arrow.FixedSizeListType:
		return dt.Elem(), nil
	case *arrow.MapType:
		return dt.Elem(), nil
	case *arrow.StructType:
		if index >= dt.NumFields() {
			return nil, errOutOfBounds("struct type %s has no field %d (have %d)", dt, index, dt.NumFields())
		}
		return dt.Field(index).Type, nil
	}
	return nil, errTypeMismatch("type %s has no child types", dtype)
}
