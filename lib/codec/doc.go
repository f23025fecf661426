// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Concord's serialization primitives:
// deterministic CBOR encoding and a zstd-compressed framing of it.
//
// The audit archive export uses MarshalCompressed so that identical
// logical data always produces identical archive bytes, which keeps
// archive content hashes stable.
package codec
