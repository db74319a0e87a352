// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgicdata

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Bridge performs array interchange in both directions. The zero-config
// bridge obtained from [NewBridge] uses the default Go allocator for
// alignment-fallback copies and installs no hook.
//
// A Bridge is immutable after construction and safe for concurrent use.
type Bridge struct {
	mem  memory.Allocator
	hook BridgeHook
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithAllocator sets the allocator used for buffers the importer must
// copy (misaligned foreign pointers). Aliased foreign buffers never
// touch the allocator.
func WithAllocator(mem memory.Allocator) Option {
	return func(b *Bridge) { b.mem = mem }
}

// WithHook installs an observability hook. See [BridgeHook].
func WithHook(hook BridgeHook) Option {
	return func(b *Bridge) { b.hook = hook }
}

// NewBridge returns a Bridge with the given options applied.
func NewBridge(opts ...Option) *Bridge {
	b := &Bridge{mem: memory.DefaultAllocator}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var defaultBridge = NewBridge()

// Export builds a CArray tree from data using a default Bridge.
// See [Bridge.Export].
func Export(data arrow.ArrayData) *CArray {
	return defaultBridge.Export(data)
}

// Import reconstructs a native array from a foreign CArray tree using a
// default Bridge. See [Bridge.Import].
func Import(arr *CArray, dtype arrow.DataType) (*ImportedArray, error) {
	return defaultBridge.Import(arr, dtype)
}
