// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides small helpers shared by Concord tests:
// channel operations with timeout safety valves so a broken test
// fails with a message instead of hanging the run.
package testutil
