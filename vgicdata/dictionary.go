// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgicdata

import (
	"iter"
	"math"
	"math/bits"
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// DictionaryKey is the set of integer types usable as dictionary
// indices. Every key type converts losslessly to and from a machine
// index for all in-bounds values; the per-type traits additionally
// record the logical Arrow integer tag, the maximum representable
// index, and whether every value of the type fits a machine index
// without a runtime check.
type DictionaryKey interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64
}

// keyTraits describes one DictionaryKey type.
type keyTraits struct {
	keyType arrow.Type // logical integer tag
	// maxIndex is the largest value of the key type, as an index.
	maxIndex uint64
	// alwaysFitsIndex declares that every value of the type converts to
	// a machine index without a runtime check. True for unsigned types
	// narrower than the host index word; when set, the bounds scan skips
	// the fallible conversion and checks only the range. The declaration
	// is load-bearing: checkIndexes reinterprets raw key bits as indexes
	// under it.
	alwaysFitsIndex bool
}

func traitsOf[K DictionaryKey]() keyTraits {
	var z K
	switch any(z).(type) {
	case int8:
		return keyTraits{arrow.INT8, math.MaxInt8, false}
	case int16:
		return keyTraits{arrow.INT16, math.MaxInt16, false}
	case int32:
		return keyTraits{arrow.INT32, math.MaxInt32, false}
	case int64:
		return keyTraits{arrow.INT64, math.MaxInt64, false}
	case uint8:
		return keyTraits{arrow.UINT8, math.MaxUint8, true}
	case uint16:
		return keyTraits{arrow.UINT16, math.MaxUint16, true}
	case uint32:
		return keyTraits{arrow.UINT32, math.MaxUint32, bits.UintSize == 64}
	case uint64:
		// uint64 can exceed the signed index range even on 64-bit hosts.
		return keyTraits{arrow.UINT64, math.MaxUint64, false}
	}
	panic("unreachable: DictionaryKey covers exactly eight types")
}

// keyDataType returns the arrow type descriptor for K.
func keyDataType[K DictionaryKey]() arrow.DataType {
	switch traitsOf[K]().keyType {
	case arrow.INT8:
		return arrow.PrimitiveTypes.Int8
	case arrow.INT16:
		return arrow.PrimitiveTypes.Int16
	case arrow.INT32:
		return arrow.PrimitiveTypes.Int32
	case arrow.INT64:
		return arrow.PrimitiveTypes.Int64
	case arrow.UINT8:
		return arrow.PrimitiveTypes.Uint8
	case arrow.UINT16:
		return arrow.PrimitiveTypes.Uint16
	case arrow.UINT32:
		return arrow.PrimitiveTypes.Uint32
	default:
		return arrow.PrimitiveTypes.Uint64
	}
}

// asIndex converts a key to a machine index, reporting false for
// negative values and values beyond the host index range.
func asIndex[K DictionaryKey](k K) (int, bool) {
	if k < 0 {
		return 0, false
	}
	u := uint64(k)
	if u > uint64(math.MaxInt) {
		return 0, false
	}
	return int(u), true
}

// mustIndex is asIndex without the check. Callers rely on the
// dictionary bounds invariant having been established.
func mustIndex[K DictionaryKey](k K) int {
	return int(k)
}

// Dictionary is an array whose elements are stored as integer keys into
// a shared, deduplicated value pool. Useful when the cardinality of
// values is low compared to the length of the array.
//
// Every Dictionary constructed through [NewDictionary] maintains the
// invariant that each non-null key, read as a machine index, is
// strictly less than the value pool length; accessors rely on it
// without rechecking. [NewDictionaryUnchecked] shifts establishing the
// invariant to the caller.
//
// The value pool is shared: slices and splits retain it rather than
// copying, and its lifetime is the longest of any Dictionary
// referencing it. The pool is never mutated in place, so concurrent
// reads across Dictionary instances need no synchronization.
type Dictionary[K DictionaryKey] struct {
	dtype  *arrow.DictionaryType
	keys   arrow.ArrayData
	values arrow.ArrayData
}

// checkDictionaryType validates that dtype describes a dictionary
// encoding whose key tag matches K and whose value type matches the
// pool, compared on logical type (metadata that does not affect
// physical layout is ignored).
func checkDictionaryType[K DictionaryKey](dtype arrow.DataType, keys, values arrow.ArrayData) (*arrow.DictionaryType, error) {
	dt, ok := dtype.(*arrow.DictionaryType)
	if !ok {
		return nil, errTypeMismatch("dictionary must be initialized with a dictionary type, got %s", dtype)
	}
	tr := traitsOf[K]()
	if dt.IndexType.ID() != tr.keyType {
		return nil, errTypeMismatch("dictionary type has key tag %s, key array is %s", dt.IndexType, tr.keyType)
	}
	if keys.DataType().ID() != tr.keyType {
		return nil, errTypeMismatch("keys array has type %s, want %s", keys.DataType(), tr.keyType)
	}
	if !arrow.TypeEqual(dt.ValueType, values.DataType()) {
		return nil, errTypeMismatch("dictionary type declares value type %s, value pool is %s", dt.ValueType, values.DataType())
	}
	return dt, nil
}

// checkIndexes scans every non-null key and verifies it is representable
// as a machine index strictly less than poolLen. O(n) over the keys.
func checkIndexes[K DictionaryKey](keys arrow.ArrayData, poolLen int) error {
	tr := traitsOf[K]()
	vals := keySlice[K](keys)
	validity := validityBytes(keys)
	offset := keys.Offset()

	for i, k := range vals {
		if validity != nil && !bitutil.BitIsSet(validity, offset+i) {
			continue
		}
		var idx int
		if tr.alwaysFitsIndex {
			// Conversion cannot fail under the trait's contract; only the
			// range needs checking.
			idx = mustIndex(k)
		} else {
			var ok bool
			if idx, ok = asIndex(k); !ok {
				return errOutOfBounds("dictionary key %v at position %d is not representable as an index", k, i)
			}
		}
		if idx >= poolLen {
			return errOutOfBounds("dictionary key %d at position %d is out of bounds for value pool of length %d", idx, i, poolLen)
		}
	}
	return nil
}

// NewDictionary returns a Dictionary after validating the type
// descriptor and scanning every non-null key for the bounds invariant.
// O(n) in the length of keys. Retains keys and values.
func NewDictionary[K DictionaryKey](dtype arrow.DataType, keys, values arrow.ArrayData) (*Dictionary[K], error) {
	dt, err := checkDictionaryType[K](dtype, keys, values)
	if err != nil {
		return nil, err
	}
	if keys.NullN() != keys.Len() {
		if err := checkIndexes[K](keys, values.Len()); err != nil {
			return nil, err
		}
	}
	keys.Retain()
	values.Retain()
	return &Dictionary[K]{dtype: dt, keys: keys, values: values}, nil
}

// NewDictionaryUnchecked is [NewDictionary] without the bounds scan.
// The type descriptor is still validated.
//
// The caller must have proven that every non-null key is representable
// as a machine index strictly less than values.Len(). Accessors assume
// the invariant; violating it corrupts reads rather than erroring.
func NewDictionaryUnchecked[K DictionaryKey](dtype arrow.DataType, keys, values arrow.ArrayData) (*Dictionary[K], error) {
	dt, err := checkDictionaryType[K](dtype, keys, values)
	if err != nil {
		return nil, err
	}
	keys.Retain()
	values.Retain()
	return &Dictionary[K]{dtype: dt, keys: keys, values: values}, nil
}

// DefaultDictionaryType returns the dictionary descriptor pairing K's
// integer tag with the given value type, unordered.
func DefaultDictionaryType[K DictionaryKey](values arrow.DataType) *arrow.DictionaryType {
	return &arrow.DictionaryType{IndexType: keyDataType[K](), ValueType: values}
}

// NewDictionaryFromKeys builds a Dictionary with the default descriptor
// derived from K and the pool's type. Checked.
func NewDictionaryFromKeys[K DictionaryKey](keys, values arrow.ArrayData) (*Dictionary[K], error) {
	return NewDictionary[K](DefaultDictionaryType[K](values.DataType()), keys, values)
}

// NewEmptyDictionary returns a zero-length Dictionary of dtype.
func NewEmptyDictionary[K DictionaryKey](mem memory.Allocator, dtype *arrow.DictionaryType) (*Dictionary[K], error) {
	kb := array.NewBuilder(mem, dtype.IndexType)
	defer kb.Release()
	vb := array.NewBuilder(mem, dtype.ValueType)
	defer vb.Release()

	keys := kb.NewArray()
	defer keys.Release()
	values := vb.NewArray()
	defer values.Release()
	return NewDictionary[K](dtype, keys.Data(), values.Data())
}

// NewNullDictionary returns a Dictionary of the given length whose
// elements are all null, over a single-element value pool.
func NewNullDictionary[K DictionaryKey](mem memory.Allocator, dtype *arrow.DictionaryType, length int) (*Dictionary[K], error) {
	keys := array.MakeArrayOfNull(mem, dtype.IndexType, length)
	defer keys.Release()
	values := array.MakeArrayOfNull(mem, dtype.ValueType, 1)
	defer values.Release()
	return NewDictionary[K](dtype, keys.Data(), values.Data())
}

// DictionaryFromData reconstructs a typed Dictionary from
// dictionary-encoded array data (for example, imported data). The
// bounds invariant is verified: foreign keys are trusted no further
// than any other keys.
func DictionaryFromData[K DictionaryKey](data arrow.ArrayData) (*Dictionary[K], error) {
	dt, ok := data.DataType().(*arrow.DictionaryType)
	if !ok {
		return nil, errTypeMismatch("data has type %s, want a dictionary type", data.DataType())
	}
	values := data.Dictionary()
	if values == nil {
		return nil, errInvalidStruct("dictionary-typed data carries no value pool")
	}
	keys := array.NewData(dt.IndexType, data.Len(), data.Buffers(), nil, data.NullN(), data.Offset())
	defer keys.Release()
	return NewDictionary[K](dt, keys, values)
}

// ImportDictionary imports a dictionary-encoded foreign struct and
// reconstructs it as a typed Dictionary. The returned handle owns the
// foreign memory; release it only after the Dictionary is no longer in
// use.
func ImportDictionary[K DictionaryKey](b *Bridge, arr *CArray, dtype arrow.DataType) (*Dictionary[K], *ImportedArray, error) {
	ia, err := b.Import(arr, dtype)
	if err != nil {
		return nil, nil, err
	}
	d, err := DictionaryFromData[K](ia.Data())
	if err != nil {
		ia.Release()
		return nil, nil, err
	}
	return d, ia, nil
}

// DataType returns the dictionary type descriptor.
func (d *Dictionary[K]) DataType() arrow.DataType { return d.dtype }

// IsOrdered reports whether the descriptor declares the value pool
// ordered.
func (d *Dictionary[K]) IsOrdered() bool { return d.dtype.Ordered }

// Len returns the number of logical elements (the key window length).
func (d *Dictionary[K]) Len() int { return d.keys.Len() }

// NullN returns the number of null keys.
func (d *Dictionary[K]) NullN() int { return d.keys.NullN() }

// Keys returns the key array. Exclusively owned by this Dictionary:
// slices share the underlying key buffer, but each Dictionary's logical
// window is independent.
func (d *Dictionary[K]) Keys() arrow.ArrayData { return d.keys }

// Values returns the shared value pool.
func (d *Dictionary[K]) Values() arrow.ArrayData { return d.values }

// Validity returns the keys validity bitmap buffer, or nil when no
// bitmap is attached. Bits are addressed with the key window's element
// offset.
func (d *Dictionary[K]) Validity() *memory.Buffer {
	bufs := d.keys.Buffers()
	if len(bufs) == 0 {
		return nil
	}
	return bufs[0]
}

// IsValid reports whether element i is non-null.
func (d *Dictionary[K]) IsValid(i int) bool {
	if validity := validityBytes(d.keys); validity != nil {
		return bitutil.BitIsSet(validity, d.keys.Offset()+i)
	}
	return true
}

// KeyValue returns the key at position i as a machine index. Panics if
// i >= Len(), matching slice indexing conventions; the conversion
// itself is covered by the bounds invariant.
func (d *Dictionary[K]) KeyValue(i int) int {
	return mustIndex(keySlice[K](d.keys)[i])
}

// KeyIndices returns the full key sequence as a lazy sequence of
// machine indexes, ignoring validity: positions holding null yield
// whatever index is physically stored.
func (d *Dictionary[K]) KeyIndices() iter.Seq[int] {
	return func(yield func(int) bool) {
		for _, k := range keySlice[K](d.keys) {
			if !yield(mustIndex(k)) {
				return
			}
		}
	}
}

// Iter returns a lazy sequence of (index, valid) pairs; null positions
// yield valid == false.
func (d *Dictionary[K]) Iter() iter.Seq2[int, bool] {
	return func(yield func(int, bool) bool) {
		for i, k := range keySlice[K](d.keys) {
			if !yield(mustIndex(k), d.IsValid(i)) {
				return
			}
		}
	}
}

// Slice narrows the key window to [offset, offset+length). The value
// pool is shared, never resliced; other windows may reference it.
// Panics if the window exceeds the current bounds.
func (d *Dictionary[K]) Slice(offset, length int) *Dictionary[K] {
	if offset+length > d.Len() {
		panic("vgicdata: dictionary slice out of bounds")
	}
	keys := array.NewSliceData(d.keys, int64(offset), int64(offset+length))
	d.values.Retain()
	return &Dictionary[K]{dtype: d.dtype, keys: keys, values: d.values}
}

// SplitAt splits the dictionary at offset into two windows with
// disjoint keys and the same shared value pool (reference count
// increases, no copy).
func (d *Dictionary[K]) SplitAt(offset int) (*Dictionary[K], *Dictionary[K]) {
	return d.Slice(0, offset), d.Slice(offset, d.Len()-offset)
}

// WithValidity returns a Dictionary whose keys carry the given validity
// bitmap in place of the current one; the value pool is untouched. Bits
// are addressed with the same element offset as the key window. A nil
// bitmap marks every element valid. Panics if the bitmap is too short
// for the window.
func (d *Dictionary[K]) WithValidity(validity *memory.Buffer) *Dictionary[K] {
	nullCount := 0
	if validity != nil {
		if int64(validity.Len()) < bitutil.BytesForBits(int64(d.keys.Offset()+d.Len())) {
			panic("vgicdata: validity bitmap shorter than the key window")
		}
		nullCount = d.Len() - bitutil.CountSetBits(validity.Bytes(), d.keys.Offset(), d.Len())
	}
	var valueBuf *memory.Buffer
	if bufs := d.keys.Buffers(); len(bufs) > 1 {
		valueBuf = bufs[1]
	}
	keys := array.NewData(d.keys.DataType(), d.Len(), []*memory.Buffer{validity, valueBuf}, nil, nullCount, d.keys.Offset())
	d.values.Retain()
	return &Dictionary[K]{dtype: d.dtype, keys: keys, values: d.values}
}

// Data assembles dictionary-typed array data over the keys and pool,
// suitable for export.
func (d *Dictionary[K]) Data() arrow.ArrayData {
	data := array.NewData(d.dtype, d.keys.Len(), d.keys.Buffers(), nil, d.keys.NullN(), d.keys.Offset())
	data.SetDictionary(d.values)
	return data
}

// Retain adds a reference to the keys and the shared pool.
func (d *Dictionary[K]) Retain() {
	d.keys.Retain()
	d.values.Retain()
}

// Release drops the references held by this Dictionary.
func (d *Dictionary[K]) Release() {
	d.keys.Release()
	d.values.Release()
}

// Take decomposes the Dictionary, transferring its references to the
// caller.
func (d *Dictionary[K]) Take() (*arrow.DictionaryType, arrow.ArrayData, arrow.ArrayData) {
	return d.dtype, d.keys, d.values
}

// DictionaryValues returns a lazy sequence of looked-up values, typed
// through the concrete value accessor V (e.g. string for a string
// pool). Requires null-free keys; use [DictionaryIter] when keys may be
// null.
func DictionaryValues[V any, K DictionaryKey](d *Dictionary[K]) (iter.Seq[V], error) {
	if d.NullN() != 0 {
		return nil, errTypeMismatch("typed value iteration requires null-free keys (%d nulls present)", d.NullN())
	}
	va, err := typedValues[V](d.values)
	if err != nil {
		return nil, err
	}
	return func(yield func(V) bool) {
		for i := 0; i < d.Len(); i++ {
			if !yield(va.Value(d.KeyValue(i))) {
				return
			}
		}
	}, nil
}

// DictionaryIter is the null-tolerant variant of [DictionaryValues]:
// null positions yield (zero value, false).
func DictionaryIter[V any, K DictionaryKey](d *Dictionary[K]) (iter.Seq2[V, bool], error) {
	va, err := typedValues[V](d.values)
	if err != nil {
		return nil, err
	}
	return func(yield func(V, bool) bool) {
		var zero V
		for i := 0; i < d.Len(); i++ {
			if !d.IsValid(i) {
				if !yield(zero, false) {
					return
				}
				continue
			}
			if !yield(va.Value(d.KeyValue(i)), true) {
				return
			}
		}
	}, nil
}

// valueArray is the typed accessor surface shared by the concrete arrow
// array types (StringArray.Value, Int64Array.Value, ...).
type valueArray[V any] interface {
	arrow.Array
	Value(int) V
}

func typedValues[V any](values arrow.ArrayData) (valueArray[V], error) {
	arr := array.MakeFromData(values)
	va, ok := arr.(valueArray[V])
	if !ok {
		arr.Release()
		var zero V
		return nil, errTypeMismatch("value pool of type %s has no %T accessor", values.DataType(), zero)
	}
	return va, nil
}

// keySlice returns the logical key window of a key array as a typed
// slice over its raw buffer.
func keySlice[K DictionaryKey](keys arrow.ArrayData) []K {
	bufs := keys.Buffers()
	if len(bufs) < 2 || bufs[1] == nil || bufs[1].Len() == 0 {
		return nil
	}
	var z K
	n := bufs[1].Len() / int(unsafe.Sizeof(z))
	all := unsafe.Slice((*K)(unsafe.Pointer(unsafe.SliceData(bufs[1].Bytes()))), n)
	return all[keys.Offset() : keys.Offset()+keys.Len()]
}

// validityBytes returns the raw validity bitmap of data, or nil when
// absent.
func validityBytes(data arrow.ArrayData) []byte {
	bufs := data.Buffers()
	if len(bufs) == 0 || bufs[0] == nil {
		return nil
	}
	return bufs[0].Bytes()
}
