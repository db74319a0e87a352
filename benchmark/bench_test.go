// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package benchmark

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/Query-farm/vgi-cdata/vgicdata"
)

const benchRows = 1 << 16

func BenchmarkHandoff(b *testing.B) {
	mem := memory.NewGoAllocator()
	arr := BuildColumn(mem, benchRows)
	defer arr.Release()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c := vgicdata.Export(arr.Data())
		imp, err := vgicdata.Import(c, arr.DataType())
		if err != nil {
			b.Fatal(err)
		}
		imp.Release()
	}
}

func BenchmarkHandoffDictionary(b *testing.B) {
	mem := memory.NewGoAllocator()
	arr := BuildDictionaryColumn(mem, benchRows)
	defer arr.Release()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c := vgicdata.Export(arr.Data())
		imp, err := vgicdata.Import(c, arr.DataType())
		if err != nil {
			b.Fatal(err)
		}
		imp.Release()
	}
}

func BenchmarkIPCRoundTrip(b *testing.B) {
	mem := memory.NewGoAllocator()
	arr := BuildColumn(mem, benchRows)
	defer arr.Release()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		raw, err := IPCBytes(arr)
		if err != nil {
			b.Fatal(err)
		}
		got, err := ReadIPC(raw)
		if err != nil {
			b.Fatal(err)
		}
		got.Release()
	}
}

func BenchmarkIPCCompressedPayload(b *testing.B) {
	mem := memory.NewGoAllocator()
	arr := BuildColumn(mem, benchRows)
	defer arr.Release()

	raw, err := IPCBytes(arr)
	require.NoError(b, err)

	b.Run("zstd", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := ZstdSize(raw); err != nil {
				b.Fatal(err)
			}
		}
	})
	b.Run("lz4", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := LZ4Size(raw); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func TestIPCBaselineRoundTrips(t *testing.T) {
	mem := memory.NewGoAllocator()
	arr := BuildColumn(mem, 1024)
	defer arr.Release()

	raw, err := IPCBytes(arr)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	got, err := ReadIPC(raw)
	require.NoError(t, err)
	defer got.Release()
	require.Equal(t, arr.Len(), got.Len())

	zn, err := ZstdSize(raw)
	require.NoError(t, err)
	require.Greater(t, zn, 0)

	ln, err := LZ4Size(raw)
	require.NoError(t, err)
	require.Greater(t, ln, 0)
}
