// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package conformance provides test fixtures for the vgi-cdata
// interchange test suite: one named array per physical layout the
// bridge exchanges (primitives, booleans, variable-length and
// view-encoded strings and binaries, fixed-size binary, lists, maps,
// fixed-size lists, structs, dictionary-encoded arrays) plus sliced
// variants with non-zero offsets, each with a mix of null and non-null
// elements.
//
// The only entry point intended for external use is [Fixtures].
package conformance
