// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for testability.
//
// Production code injects Real(); tests inject NewFake() and drive
// time forward deterministically with Advance. Every Concord function
// that would otherwise call time.Now, time.After, time.NewTicker, or
// time.Sleep takes a Clock instead (retry backoff, the ban expiry
// scheduler, audit timestamps), so no test ever sleeps real wall time.
package clock
