// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package benchmark provides fixtures contrasting zero-copy interchange
// through the C data interface with IPC serialization, the transport it
// replaces for in-process handoff. The compressed payload helpers exist
// to size what a wire hop would actually move.
package benchmark

import (
	"bytes"
	"fmt"
	"math/rand"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// BuildColumn builds a rows-long float64 array with a few nulls,
// deterministic across runs.
func BuildColumn(mem memory.Allocator, rows int) arrow.Array {
	rng := rand.New(rand.NewSource(42))
	b := array.NewFloat64Builder(mem)
	defer b.Release()
	b.Reserve(rows)
	for i := 0; i < rows; i++ {
		if i%97 == 0 {
			b.AppendNull()
			continue
		}
		b.Append(rng.NormFloat64())
	}
	return b.NewArray()
}

// BuildDictionaryColumn builds a rows-long dictionary-encoded string
// array with a small value pool, the shape dictionary encoding exists
// for.
func BuildDictionaryColumn(mem memory.Allocator, rows int) arrow.Array {
	pool := []string{"us-east", "us-west", "eu-central", "ap-south"}
	dt := &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Uint8, ValueType: arrow.BinaryTypes.String}
	b := array.NewDictionaryBuilder(mem, dt).(*array.BinaryDictionaryBuilder)
	defer b.Release()
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < rows; i++ {
		b.AppendString(pool[rng.Intn(len(pool))])
	}
	return b.NewArray()
}

// IPCBytes serializes arr as a one-column IPC stream, the baseline the
// zero-copy handoff is measured against.
func IPCBytes(arr arrow.Array) ([]byte, error) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "v", Type: arr.DataType(), Nullable: true},
	}, nil)
	rec := array.NewRecord(schema, []arrow.Array{arr}, int64(arr.Len()))
	defer rec.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	if err := w.Write(rec); err != nil {
		return nil, fmt.Errorf("writing IPC stream: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing IPC writer: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadIPC deserializes a one-column IPC stream back into an array.
func ReadIPC(raw []byte) (arrow.Array, error) {
	r, err := ipc.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("opening IPC stream: %w", err)
	}
	defer r.Release()
	if !r.Next() {
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("reading IPC batch: %w", err)
		}
		return nil, fmt.Errorf("IPC stream carried no batch")
	}
	col := r.Record().Column(0)
	col.Retain()
	return col, nil
}

// ZstdSize returns the zstd-compressed size of payload.
func ZstdSize(payload []byte) (int, error) {
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	if err != nil {
		return 0, err
	}
	if _, err := w.Write(payload); err != nil {
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return buf.Len(), nil
}

// LZ4Size returns the lz4-compressed size of payload.
func LZ4Size(payload []byte) (int, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(payload); err != nil {
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return buf.Len(), nil
}
