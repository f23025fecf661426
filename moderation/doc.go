// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package moderation implements Concord's membership actions: kick,
// ban (permanent or timed), and unban, plus bulk application of those
// actions across many targets.
//
// Every action enforces the same preconditions before touching the
// homeserver: the actor may not target themselves, and the actor's
// effective power level must be strictly above the target's. Backend
// calls go through the fault taxonomy with bounded retry, and every
// successful action appends exactly one audit entry.
//
// Bans are recorded as m.concord.ban state events in the space room
// and mirrored in an in-memory BanStore. A Scheduler polls the store
// and lifts timed bans once they expire, attributed to the configured
// system actor.
package moderation
