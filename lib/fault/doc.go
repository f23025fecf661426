// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package fault defines the typed failure taxonomy shared by the
// permission, moderation, and engine packages.
//
// Every moderation or permission operation that refuses to act returns
// a *fault.Error carrying a machine-readable Code. Callers branch on
// the code with fault.Is or fault.CodeOf instead of matching error
// strings. Backend (Matrix) failures are classified into exactly two
// codes: BackendUnavailable for transient conditions worth retrying,
// and BackendRejected for permanent refusals that must surface
// immediately.
package fault
