// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package fault

import (
	"errors"
	"fmt"
)

// Code identifies a failure class. Codes are stable strings: they
// appear in audit entries and bulk operation results, so renaming one
// is a compatibility break.
type Code string

const (
	// InsufficientPrivilege: the actor's power level does not permit
	// the operation (not strictly above the target, or lacking the
	// required permission in the channel).
	InsufficientPrivilege Code = "insufficient_privilege"

	// SelfTargetForbidden: the actor targeted themselves with a
	// moderation action.
	SelfTargetForbidden Code = "self_target_forbidden"

	// ProtectedRole: the operation would delete or demote the built-in
	// @everyone role.
	ProtectedRole Code = "protected_role"

	// AlreadyInState: the operation is a no-op because the target is
	// already in the requested state (e.g., unbanning a user who is
	// not banned).
	AlreadyInState Code = "already_in_state"

	// InvalidPermissionName: the named permission is not in the closed
	// registry.
	InvalidPermissionName Code = "invalid_permission_name"

	// InvalidArgument: the request carried a malformed value, such as
	// a negative ban duration.
	InvalidArgument Code = "invalid_argument"

	// BackendUnavailable: the homeserver call failed with a transient
	// condition (connection failure, 429 rate limit, 5xx). Safe to
	// retry.
	BackendUnavailable Code = "backend_unavailable"

	// BackendRejected: the homeserver refused the call permanently
	// (4xx other than 429). Retrying cannot succeed.
	BackendRejected Code = "backend_rejected"

	// Cancelled: the operation was abandoned before it started because
	// the surrounding context was cancelled. Used for unstarted bulk
	// targets.
	Cancelled Code = "cancelled"
)

// Error is a failure with a taxonomy code. It wraps an underlying
// cause when one exists (backend classification) and is extracted
// with errors.As:
//
//	var fe *fault.Error
//	if errors.As(err, &fe) && fe.Code == fault.AlreadyInState { ... }
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a *Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns a *Error with the given code and message, wrapping
// cause so errors.Is/As still reach it.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: cause}
}

// CodeOf extracts the taxonomy code from err, or "" if err carries no
// *Error anywhere in its chain.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// Is reports whether err carries the given taxonomy code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// Transient reports whether err is worth retrying. Only
// BackendUnavailable is transient; every other code (and any error
// without a code) is permanent from the taxonomy's point of view.
// Classify raw backend errors with FromBackend before asking.
func Transient(err error) bool {
	return Is(err, BackendUnavailable)
}
