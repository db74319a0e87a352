// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgicdata

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// BridgeHook provides observability callpoints around array interchange.
// Implementations must be safe for concurrent use: a Bridge may be
// shared by many goroutines.
//
// All callpoints are invoked synchronously on the hot path and should
// return quickly.
type BridgeHook interface {
	// OnExport is called once per exported root array, after the CArray
	// tree has been built.
	OnExport(dtype arrow.DataType, length int64)
	// OnImport is called once per imported root array, after the native
	// array has been reconstructed.
	OnImport(dtype arrow.DataType, length int64)
	// OnAlignmentCopy is called when an imported buffer could not alias
	// foreign memory because the pointer was misaligned for the native
	// element type, and a private copy was made instead. Misalignment is
	// not an error; this callpoint exists so performance-sensitive
	// callers can see the copies they would otherwise never notice.
	OnAlignmentCopy(dtype arrow.DataType, bufferIndex int, byteLen int64)
	// OnRelease is called when an exported root struct's release
	// callback runs.
	OnRelease(dtype arrow.DataType)
}
