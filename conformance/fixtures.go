// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Fixture is one named test array. The caller owns the array and must
// release it.
type Fixture struct {
	Name  string
	Array arrow.Array
}

// Fixtures builds one array per physical layout, each mixing null and
// non-null elements, plus sliced variants exercising non-zero offsets.
func Fixtures(mem memory.Allocator) []Fixture {
	fixtures := []Fixture{
		{"null", array.NewNull(4)},
		{"bool", boolFixture(mem)},
		{"int32", int32Fixture(mem)},
		{"uint16", uint16Fixture(mem)},
		{"float64", float64Fixture(mem)},
		{"timestamp_ms", timestampFixture(mem)},
		{"string", stringFixture(mem)},
		{"large_string", largeStringFixture(mem)},
		{"binary", binaryFixture(mem)},
		{"large_binary", largeBinaryFixture(mem)},
		{"string_view", stringViewFixture(mem)},
		{"binary_view", binaryViewFixture(mem)},
		{"fixed_size_binary", fixedSizeBinaryFixture(mem)},
		{"list", listFixture(mem)},
		{"large_list", largeListFixture(mem)},
		{"fixed_size_list", fixedSizeListFixture(mem)},
		{"map", mapFixture(mem)},
		{"struct", structFixture(mem)},
		{"dictionary", dictionaryFixture(mem)},
	}

	// Sliced windows: the struct offset must carry through interchange.
	sliceable := []Fixture{
		{"string_sliced", stringFixture(mem)},
		{"int32_sliced", int32Fixture(mem)},
		{"list_sliced", listFixture(mem)},
	}
	for _, f := range sliceable {
		sliced := array.NewSlice(f.Array, 1, int64(f.Array.Len()-1))
		f.Array.Release()
		fixtures = append(fixtures, Fixture{f.Name, sliced})
	}
	return fixtures
}

func boolFixture(mem memory.Allocator) arrow.Array {
	b := array.NewBooleanBuilder(mem)
	defer b.Release()
	b.AppendValues([]bool{true, false, true, true, false}, []bool{true, true, false, true, true})
	return b.NewArray()
}

func int32Fixture(mem memory.Allocator) arrow.Array {
	b := array.NewInt32Builder(mem)
	defer b.Release()
	b.AppendValues([]int32{1, -2, 0, 4, 5, -6}, []bool{true, true, false, true, true, true})
	return b.NewArray()
}

func uint16Fixture(mem memory.Allocator) arrow.Array {
	b := array.NewUint16Builder(mem)
	defer b.Release()
	b.AppendValues([]uint16{0, 1, 65535, 7}, nil)
	return b.NewArray()
}

func float64Fixture(mem memory.Allocator) arrow.Array {
	b := array.NewFloat64Builder(mem)
	defer b.Release()
	b.AppendValues([]float64{1.5, -0.25, 0, 3e12}, []bool{true, true, false, true})
	return b.NewArray()
}

func timestampFixture(mem memory.Allocator) arrow.Array {
	b := array.NewTimestampBuilder(mem, &arrow.TimestampType{Unit: arrow.Millisecond})
	defer b.Release()
	b.AppendValues([]arrow.Timestamp{0, 1700000000000, 1800000000000}, []bool{true, false, true})
	return b.NewArray()
}

func stringFixture(mem memory.Allocator) arrow.Array {
	b := array.NewStringBuilder(mem)
	defer b.Release()
	b.Append("foo")
	b.Append("")
	b.AppendNull()
	b.Append("quux")
	return b.NewArray()
}

func largeStringFixture(mem memory.Allocator) arrow.Array {
	b := array.NewLargeStringBuilder(mem)
	defer b.Release()
	b.Append("alpha")
	b.AppendNull()
	b.Append("beta")
	return b.NewArray()
}

func binaryFixture(mem memory.Allocator) arrow.Array {
	b := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
	defer b.Release()
	b.Append([]byte{0x01, 0x02})
	b.AppendNull()
	b.Append([]byte{})
	b.Append([]byte{0xff})
	return b.NewArray()
}

func largeBinaryFixture(mem memory.Allocator) arrow.Array {
	b := array.NewBinaryBuilder(mem, arrow.BinaryTypes.LargeBinary)
	defer b.Release()
	b.Append([]byte("large"))
	b.AppendNull()
	b.Append([]byte("binary"))
	return b.NewArray()
}

func stringViewFixture(mem memory.Allocator) arrow.Array {
	b := array.NewStringViewBuilder(mem)
	defer b.Release()
	b.Append("short")
	// Longer than the 12-byte inline limit, forcing a variadic buffer.
	b.Append("a value long enough to spill out of line")
	b.AppendNull()
	b.Append("tail")
	return b.NewArray()
}

func binaryViewFixture(mem memory.Allocator) arrow.Array {
	b := array.NewBinaryViewBuilder(mem)
	defer b.Release()
	b.Append([]byte{0x00})
	b.Append([]byte("another spilled value, well past twelve bytes"))
	b.AppendNull()
	return b.NewArray()
}

func fixedSizeBinaryFixture(mem memory.Allocator) arrow.Array {
	b := array.NewFixedSizeBinaryBuilder(mem, &arrow.FixedSizeBinaryType{ByteWidth: 3})
	defer b.Release()
	b.Append([]byte("abc"))
	b.AppendNull()
	b.Append([]byte("xyz"))
	return b.NewArray()
}

func listFixture(mem memory.Allocator) arrow.Array {
	b := array.NewListBuilder(mem, arrow.PrimitiveTypes.Int64)
	defer b.Release()
	vb := b.ValueBuilder().(*array.Int64Builder)
	b.Append(true)
	vb.AppendValues([]int64{1, 2, 3}, nil)
	b.AppendNull()
	b.Append(true)
	b.Append(true)
	vb.AppendValues([]int64{4}, nil)
	return b.NewArray()
}

func largeListFixture(mem memory.Allocator) arrow.Array {
	b := array.NewLargeListBuilder(mem, arrow.BinaryTypes.String)
	defer b.Release()
	vb := b.ValueBuilder().(*array.StringBuilder)
	b.Append(true)
	vb.Append("x")
	vb.Append("y")
	b.AppendNull()
	b.Append(true)
	return b.NewArray()
}

func fixedSizeListFixture(mem memory.Allocator) arrow.Array {
	b := array.NewFixedSizeListBuilder(mem, 2, arrow.PrimitiveTypes.Int32)
	defer b.Release()
	vb := b.ValueBuilder().(*array.Int32Builder)
	b.Append(true)
	vb.AppendValues([]int32{1, 2}, nil)
	b.AppendNull()
	vb.AppendValues([]int32{0, 0}, nil)
	b.Append(true)
	vb.AppendValues([]int32{3, 4}, nil)
	return b.NewArray()
}

func mapFixture(mem memory.Allocator) arrow.Array {
	b := array.NewMapBuilder(mem, arrow.BinaryTypes.String, arrow.PrimitiveTypes.Int32, false)
	defer b.Release()
	kb := b.KeyBuilder().(*array.StringBuilder)
	ib := b.ItemBuilder().(*array.Int32Builder)
	b.Append(true)
	kb.Append("a")
	ib.Append(1)
	kb.Append("b")
	ib.Append(2)
	b.AppendNull()
	b.Append(true)
	kb.Append("c")
	ib.Append(3)
	return b.NewArray()
}

func structFixture(mem memory.Allocator) arrow.Array {
	st := arrow.StructOf(
		arrow.Field{Name: "x", Type: arrow.PrimitiveTypes.Float64},
		arrow.Field{Name: "label", Type: arrow.BinaryTypes.String},
	)
	b := array.NewStructBuilder(mem, st)
	defer b.Release()
	xb := b.FieldBuilder(0).(*array.Float64Builder)
	lb := b.FieldBuilder(1).(*array.StringBuilder)
	b.Append(true)
	xb.Append(1.0)
	lb.Append("one")
	b.AppendNull()
	xb.AppendNull()
	lb.AppendNull()
	b.Append(true)
	xb.Append(3.0)
	lb.Append("three")
	return b.NewArray()
}

func dictionaryFixture(mem memory.Allocator) arrow.Array {
	dt := &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Uint8, ValueType: arrow.BinaryTypes.String}
	b := array.NewDictionaryBuilder(mem, dt).(*array.BinaryDictionaryBuilder)
	defer b.Release()
	b.AppendString("red")
	b.AppendString("green")
	b.AppendNull()
	b.AppendString("red")
	b.AppendString("blue")
	return b.NewArray()
}
