// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit implements Concord's append-only moderation audit
// log.
//
// Every successful moderation or permission mutation produces exactly
// one Entry: who did what to whom, where, and the before/after
// snapshots of the changed record. Entries are hash-chained with
// BLAKE3 — each entry's hash covers the previous entry's hash — so
// after-the-fact edits to the log are detectable with Verify.
//
// Store persists entries in SQLite (WAL mode, connection pool) and
// supports filtered listing with keyset pagination plus a compressed
// CBOR archive export. Memory is the in-process recorder used by
// tests and by callers that only need the chain semantics.
package audit
