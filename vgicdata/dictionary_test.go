// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgicdata_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/Query-farm/vgi-cdata/vgicdata"
)

func uint8Keys(mem memory.Allocator, values []uint8, valid []bool) arrow.Array {
	b := array.NewUint8Builder(mem)
	defer b.Release()
	b.AppendValues(values, valid)
	return b.NewArray()
}

func stringPool(mem memory.Allocator, values ...string) arrow.Array {
	b := array.NewStringBuilder(mem)
	defer b.Release()
	for _, v := range values {
		b.Append(v)
	}
	return b.NewArray()
}

func TestNewDictionaryRejectsOutOfBoundsKey(t *testing.T) {
	mem := memory.NewGoAllocator()
	keys := uint8Keys(mem, []uint8{0, 1, 5}, nil)
	defer keys.Release()
	pool := stringPool(mem, "a", "b", "c")
	defer pool.Release()

	_, err := vgicdata.NewDictionaryFromKeys[uint8](keys.Data(), pool.Data())
	require.ErrorIs(t, err, &vgicdata.CDataError{Kind: vgicdata.ErrKindOutOfBounds})
	require.ErrorContains(t, err, "key 5")
	require.ErrorContains(t, err, "length 3")
}

func TestNewDictionaryIgnoresNullKeyPayload(t *testing.T) {
	mem := memory.NewGoAllocator()
	// Position 1 is null; whatever index bits it carries must not fail
	// the bounds scan.
	keys := uint8Keys(mem, []uint8{0, 200, 2}, []bool{true, false, true})
	defer keys.Release()
	pool := stringPool(mem, "a", "b", "c")
	defer pool.Release()

	d, err := vgicdata.NewDictionaryFromKeys[uint8](keys.Data(), pool.Data())
	require.NoError(t, err)
	defer d.Release()

	require.Equal(t, 3, d.Len())
	require.Equal(t, 1, d.NullN())
	require.True(t, d.IsValid(0))
	require.False(t, d.IsValid(1))
	require.Equal(t, 0, d.KeyValue(0))
	require.Equal(t, 2, d.KeyValue(2))
}

func TestNewDictionaryAllNullKeysSkipScan(t *testing.T) {
	mem := memory.NewGoAllocator()
	keys := uint8Keys(mem, []uint8{0, 0}, []bool{false, false})
	defer keys.Release()
	// Empty pool: only legal because no key is ever read.
	pool := stringPool(mem)
	defer pool.Release()

	d, err := vgicdata.NewDictionaryFromKeys[uint8](keys.Data(), pool.Data())
	require.NoError(t, err)
	defer d.Release()
	require.Equal(t, 2, d.NullN())
}

func TestNewDictionaryRejectsNegativeKey(t *testing.T) {
	mem := memory.NewGoAllocator()
	b := array.NewInt8Builder(mem)
	b.AppendValues([]int8{0, -1}, nil)
	keys := b.NewArray()
	b.Release()
	defer keys.Release()
	pool := stringPool(mem, "a", "b")
	defer pool.Release()

	_, err := vgicdata.NewDictionaryFromKeys[int8](keys.Data(), pool.Data())
	require.ErrorIs(t, err, &vgicdata.CDataError{Kind: vgicdata.ErrKindOutOfBounds})
	require.ErrorContains(t, err, "not representable")
}

func TestNewDictionaryTypeMismatches(t *testing.T) {
	mem := memory.NewGoAllocator()
	keys := uint8Keys(mem, []uint8{0}, nil)
	defer keys.Release()
	pool := stringPool(mem, "a")
	defer pool.Release()

	t.Run("not_a_dictionary_type", func(t *testing.T) {
		_, err := vgicdata.NewDictionary[uint8](arrow.PrimitiveTypes.Int32, keys.Data(), pool.Data())
		require.ErrorIs(t, err, &vgicdata.CDataError{Kind: vgicdata.ErrKindTypeMismatch})
	})

	t.Run("key_tag_mismatch", func(t *testing.T) {
		dt := &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Int16, ValueType: arrow.BinaryTypes.String}
		_, err := vgicdata.NewDictionary[uint8](dt, keys.Data(), pool.Data())
		require.ErrorIs(t, err, &vgicdata.CDataError{Kind: vgicdata.ErrKindTypeMismatch})
	})

	t.Run("value_type_mismatch", func(t *testing.T) {
		dt := &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Uint8, ValueType: arrow.PrimitiveTypes.Float32}
		_, err := vgicdata.NewDictionary[uint8](dt, keys.Data(), pool.Data())
		require.ErrorIs(t, err, &vgicdata.CDataError{Kind: vgicdata.ErrKindTypeMismatch})
	})
}

func TestNewDictionaryUncheckedSkipsBoundsScan(t *testing.T) {
	mem := memory.NewGoAllocator()
	keys := uint8Keys(mem, []uint8{9}, nil)
	defer keys.Release()
	pool := stringPool(mem, "only")
	defer pool.Release()

	d, err := vgicdata.NewDictionaryUnchecked[uint8](
		vgicdata.DefaultDictionaryType[uint8](arrow.BinaryTypes.String),
		keys.Data(), pool.Data())
	require.NoError(t, err)
	d.Release()
}

func TestDictionarySliceSharesPool(t *testing.T) {
	mem := memory.NewGoAllocator()
	keys := uint8Keys(mem, []uint8{0, 1, 2, 0, 1, 2, 0, 1, 2, 0}, nil)
	defer keys.Release()
	pool := stringPool(mem, "x", "y", "z")
	defer pool.Release()

	d, err := vgicdata.NewDictionaryFromKeys[uint8](keys.Data(), pool.Data())
	require.NoError(t, err)
	defer d.Release()

	left, right := d.SplitAt(4)
	defer left.Release()
	defer right.Release()

	require.Equal(t, 4, left.Len())
	require.Equal(t, 6, right.Len())
	require.Equal(t, d.Values(), left.Values(), "pool is shared, not copied")
	require.Equal(t, d.Values(), right.Values())

	// right's window starts at the original position 4.
	require.Equal(t, 1, right.KeyValue(0))
	require.Equal(t, 2, right.KeyValue(1))

	// The parent is untouched.
	require.Equal(t, 10, d.Len())
	require.Equal(t, 0, d.KeyValue(0))
}

func TestDictionarySliceOutOfBoundsPanics(t *testing.T) {
	mem := memory.NewGoAllocator()
	keys := uint8Keys(mem, []uint8{0, 1}, nil)
	defer keys.Release()
	pool := stringPool(mem, "x", "y")
	defer pool.Release()

	d, err := vgicdata.NewDictionaryFromKeys[uint8](keys.Data(), pool.Data())
	require.NoError(t, err)
	defer d.Release()

	require.Panics(t, func() { d.Slice(1, 2) })
}

func TestDictionaryWithValidity(t *testing.T) {
	mem := memory.NewGoAllocator()
	keys := uint8Keys(mem, []uint8{0, 1, 0}, nil)
	defer keys.Release()
	pool := stringPool(mem, "x", "y")
	defer pool.Release()

	d, err := vgicdata.NewDictionaryFromKeys[uint8](keys.Data(), pool.Data())
	require.NoError(t, err)
	defer d.Release()
	require.Equal(t, 0, d.NullN())

	masked := d.WithValidity(memory.NewBufferBytes([]byte{0b00000101}))
	defer masked.Release()
	require.Equal(t, 1, masked.NullN())
	require.NotNil(t, masked.Validity())
	require.True(t, masked.IsValid(0))
	require.False(t, masked.IsValid(1))
	require.True(t, masked.IsValid(2))

	cleared := masked.WithValidity(nil)
	defer cleared.Release()
	require.Equal(t, 0, cleared.NullN())

	require.Panics(t, func() { d.WithValidity(memory.NewBufferBytes(nil)) })
}

func TestDictionaryIterators(t *testing.T) {
	mem := memory.NewGoAllocator()
	keys := uint8Keys(mem, []uint8{2, 0, 1}, []bool{true, false, true})
	defer keys.Release()
	pool := stringPool(mem, "x", "y", "z")
	defer pool.Release()

	d, err := vgicdata.NewDictionaryFromKeys[uint8](keys.Data(), pool.Data())
	require.NoError(t, err)
	defer d.Release()

	var raw []int
	for idx := range d.KeyIndices() {
		raw = append(raw, idx)
	}
	require.Equal(t, []int{2, 0, 1}, raw)

	var indexes []int
	var valids []bool
	for idx, ok := range d.Iter() {
		indexes = append(indexes, idx)
		valids = append(valids, ok)
	}
	require.Equal(t, []int{2, 0, 1}, indexes)
	require.Equal(t, []bool{true, false, true}, valids)
}

func TestDictionaryValuesTyped(t *testing.T) {
	mem := memory.NewGoAllocator()
	pool := stringPool(mem, "x", "y", "z")
	defer pool.Release()

	t.Run("null_free", func(t *testing.T) {
		keys := uint8Keys(mem, []uint8{2, 2, 0}, nil)
		defer keys.Release()
		d, err := vgicdata.NewDictionaryFromKeys[uint8](keys.Data(), pool.Data())
		require.NoError(t, err)
		defer d.Release()

		seq, err := vgicdata.DictionaryValues[string](d)
		require.NoError(t, err)
		var got []string
		for v := range seq {
			got = append(got, v)
		}
		require.Equal(t, []string{"z", "z", "x"}, got)
	})

	t.Run("rejects_nulls", func(t *testing.T) {
		keys := uint8Keys(mem, []uint8{0, 0}, []bool{true, false})
		defer keys.Release()
		d, err := vgicdata.NewDictionaryFromKeys[uint8](keys.Data(), pool.Data())
		require.NoError(t, err)
		defer d.Release()

		_, err = vgicdata.DictionaryValues[string](d)
		require.ErrorIs(t, err, vgicdata.ErrCData)
	})

	t.Run("null_tolerant_iter", func(t *testing.T) {
		keys := uint8Keys(mem, []uint8{1, 0}, []bool{true, false})
		defer keys.Release()
		d, err := vgicdata.NewDictionaryFromKeys[uint8](keys.Data(), pool.Data())
		require.NoError(t, err)
		defer d.Release()

		seq, err := vgicdata.DictionaryIter[string](d)
		require.NoError(t, err)
		var got []string
		var valids []bool
		for v, ok := range seq {
			got = append(got, v)
			valids = append(valids, ok)
		}
		require.Equal(t, []string{"y", ""}, got)
		require.Equal(t, []bool{true, false}, valids)
	})

	t.Run("accessor_type_mismatch", func(t *testing.T) {
		keys := uint8Keys(mem, []uint8{0}, nil)
		defer keys.Release()
		d, err := vgicdata.NewDictionaryFromKeys[uint8](keys.Data(), pool.Data())
		require.NoError(t, err)
		defer d.Release()

		_, err = vgicdata.DictionaryValues[int64](d)
		require.ErrorIs(t, err, &vgicdata.CDataError{Kind: vgicdata.ErrKindTypeMismatch})
	})
}

func TestEmptyAndNullDictionaries(t *testing.T) {
	mem := memory.NewGoAllocator()
	dt := vgicdata.DefaultDictionaryType[int32](arrow.BinaryTypes.String)

	empty, err := vgicdata.NewEmptyDictionary[int32](mem, dt)
	require.NoError(t, err)
	defer empty.Release()
	require.Equal(t, 0, empty.Len())

	nulls, err := vgicdata.NewNullDictionary[int32](mem, dt, 5)
	require.NoError(t, err)
	defer nulls.Release()
	require.Equal(t, 5, nulls.Len())
	require.Equal(t, 5, nulls.NullN())
	for i := 0; i < 5; i++ {
		require.False(t, nulls.IsValid(i))
	}
}

func TestDictionaryDataRoundTrip(t *testing.T) {
	mem := memory.NewGoAllocator()
	keys := uint8Keys(mem, []uint8{1, 0, 1}, nil)
	defer keys.Release()
	pool := stringPool(mem, "left", "right")
	defer pool.Release()

	d, err := vgicdata.NewDictionaryFromKeys[uint8](keys.Data(), pool.Data())
	require.NoError(t, err)
	defer d.Release()

	data := d.Data()
	defer data.Release()
	require.Equal(t, arrow.DICTIONARY, data.DataType().ID())

	back, err := vgicdata.DictionaryFromData[uint8](data)
	require.NoError(t, err)
	defer back.Release()

	require.Equal(t, d.Len(), back.Len())
	seq, err := vgicdata.DictionaryValues[string](back)
	require.NoError(t, err)
	var got []string
	for v := range seq {
		got = append(got, v)
	}
	require.Equal(t, []string{"right", "left", "right"}, got)
}

func TestImportDictionaryTyped(t *testing.T) {
	mem := memory.NewGoAllocator()
	dt := &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Uint8, ValueType: arrow.BinaryTypes.String}
	b := array.NewDictionaryBuilder(mem, dt).(*array.BinaryDictionaryBuilder)
	defer b.Release()
	for _, s := range []string{"alpha", "beta", "alpha"} {
		require.NoError(t, b.AppendString(s))
	}
	arr := b.NewArray()
	defer arr.Release()

	c := vgicdata.Export(arr.Data())
	d, imp, err := vgicdata.ImportDictionary[uint8](vgicdata.NewBridge(), c, dt)
	require.NoError(t, err)
	defer imp.Release()
	defer d.Release()

	seq, err := vgicdata.DictionaryValues[string](d)
	require.NoError(t, err)
	var got []string
	for v := range seq {
		got = append(got, v)
	}
	require.Equal(t, []string{"alpha", "beta", "alpha"}, got)
}

func TestImportDictionaryRejectsForeignOutOfBoundsKeys(t *testing.T) {
	// A foreign producer hands over keys pointing past its own pool; the
	// typed constructor must catch it rather than trust the wire.
	mem := memory.NewGoAllocator()
	keys := uint8Keys(mem, []uint8{0, 7}, nil)
	defer keys.Release()
	pool := stringPool(mem, "only")
	defer pool.Release()

	dt := vgicdata.DefaultDictionaryType[uint8](arrow.BinaryTypes.String)
	bad, err := vgicdata.NewDictionaryUnchecked[uint8](dt, keys.Data(), pool.Data())
	require.NoError(t, err)
	defer bad.Release()

	data := bad.Data()
	defer data.Release()
	c := vgicdata.Export(data)
	_, _, err = vgicdata.ImportDictionary[uint8](vgicdata.NewBridge(), c, dt)
	require.ErrorIs(t, err, &vgicdata.CDataError{Kind: vgicdata.ErrKindOutOfBounds})
	require.True(t, c.Released(), "failed import must still release the struct")
}

func TestDictionaryTake(t *testing.T) {
	mem := memory.NewGoAllocator()
	keys := uint8Keys(mem, []uint8{0}, nil)
	defer keys.Release()
	pool := stringPool(mem, "v")
	defer pool.Release()

	d, err := vgicdata.NewDictionaryFromKeys[uint8](keys.Data(), pool.Data())
	require.NoError(t, err)

	dt, k, v := d.Take()
	require.Equal(t, arrow.UINT8, dt.IndexType.ID())
	require.Equal(t, 1, k.Len())
	require.Equal(t, 1, v.Len())
	k.Release()
	v.Release()
}
