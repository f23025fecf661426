// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "fmt"

// State is one tri-state override value. Inherit is the zero value:
// an override map with no entry for a permission is equivalent to an
// entry set to Inherit, and setting a stored entry to Inherit deletes
// it.
type State uint8

const (
	// StateInherit defers to the next resolution layer.
	StateInherit State = iota
	// StateAllow grants the permission at this layer.
	StateAllow
	// StateDeny refuses the permission at this layer.
	StateDeny
)

var stateNames = map[State]string{
	StateInherit: "inherit",
	StateAllow:   "allow",
	StateDeny:    "deny",
}

// String returns the state's wire name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Valid reports whether s is one of the three defined states.
func (s State) Valid() bool {
	_, ok := stateNames[s]
	return ok
}

// Cycle returns the next state in the UI's click cycle:
// Inherit → Allow → Deny → Inherit. Cycling is a presentation
// affordance; the stored semantics are always a direct set.
func (s State) Cycle() State {
	switch s {
	case StateInherit:
		return StateAllow
	case StateAllow:
		return StateDeny
	default:
		return StateInherit
	}
}

// ParseState parses a wire name into a State.
func ParseState(raw string) (State, error) {
	for state, name := range stateNames {
		if name == raw {
			return state, nil
		}
	}
	return StateInherit, fmt.Errorf("unknown override state %q (want inherit, allow, or deny)", raw)
}

// MarshalText implements encoding.TextMarshaler; states serialize as
// their wire names.
func (s State) MarshalText() ([]byte, error) {
	name, ok := stateNames[s]
	if !ok {
		return nil, fmt.Errorf("cannot marshal invalid state %d", uint8(s))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(data []byte) error {
	parsed, err := ParseState(string(data))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
