// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package fault

import (
	"context"
	"errors"

	"github.com/concord-chat/concord/messaging"
)

// FromBackend classifies a raw homeserver error into the taxonomy.
//
// Matrix errors with HTTP 429 or 5xx status are BackendUnavailable
// (rate limit or server trouble — transient). Other 4xx Matrix errors
// are BackendRejected (the server understood the request and refused
// it — permanent). Non-Matrix errors (connection refused, timeout,
// EOF) are BackendUnavailable: the request may never have reached the
// server.
//
// Context cancellation is passed through unwrapped so callers can
// distinguish shutdown from backend trouble. A nil err returns nil.
func FromBackend(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var matrixErr *messaging.MatrixError
	if errors.As(err, &matrixErr) {
		if matrixErr.StatusCode == 429 || matrixErr.StatusCode >= 500 {
			return Wrap(BackendUnavailable, err, "homeserver unavailable")
		}
		if matrixErr.StatusCode >= 400 {
			return Wrap(BackendRejected, err, "homeserver rejected request")
		}
	}

	return Wrap(BackendUnavailable, err, "homeserver unreachable")
}
