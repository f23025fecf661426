// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging implements the subset of the Matrix client-server
// API that Concord's moderation core needs: state event read/write,
// full room state, room membership listing, and the kick/ban/unban
// membership operations.
//
// Client is the unauthenticated transport (homeserver URL plus HTTP
// client). DirectSession wraps a Client with an access token. The
// Session interface abstracts DirectSession so the engine and
// moderation packages can run against a fake in tests.
//
// Homeserver refusals surface as *MatrixError carrying the Matrix
// errcode and HTTP status; lib/fault classifies them into the
// transient/permanent split.
package messaging
