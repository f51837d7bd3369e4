package entity

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a work order.
//
//	open <-> in_progress <-> fulfilled <-> closed
//
// Moves are one step at a time in either direction; there are no self loops.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusFulfilled  Status = "fulfilled"
	StatusClosed     Status = "closed"
)

// Transition is a single allowed move between two statuses.
type Transition struct {
	From   Status
	To     Status
	Action string
}

// Statuses lists every lifecycle state in workflow order.
var Statuses = []Status{StatusOpen, StatusInProgress, StatusFulfilled, StatusClosed}

var transitions = map[Status][]Transition{
	StatusOpen: {
		{From: StatusOpen, To: StatusInProgress, Action: "Mark In Progress"},
	},
	StatusInProgress: {
		{From: StatusInProgress, To: StatusOpen, Action: "Reopen"},
		{From: StatusInProgress, To: StatusFulfilled, Action: "Mark Fulfilled"},
	},
	StatusFulfilled: {
		{From: StatusFulfilled, To: StatusInProgress, Action: "Back to In Progress"},
		{From: StatusFulfilled, To: StatusClosed, Action: "Close & Bill"},
	},
	StatusClosed: {
		{From: StatusClosed, To: StatusFulfilled, Action: "Reopen (Unbill)"},
	},
}

var labels = map[Status]string{
	StatusOpen:       "Open",
	StatusInProgress: "In Progress",
	StatusFulfilled:  "Fulfilled",
	StatusClosed:     "Closed/Billed",
}

// ParseStatus resolves raw input into a known Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

// Valid reports whether s is one of the four lifecycle states.
func (s Status) Valid() bool {
	_, ok := labels[s]
	return ok
}

// Label returns the display name of the status.
func (s Status) Label() string {
	if label, ok := labels[s]; ok {
		return label
	}
	return string(s)
}

// String implements fmt.Stringer.
func (s Status) String() string {
	return string(s)
}

// Closing reports whether entering s stamps closed_at.
func (s Status) Closing() bool {
	return s == StatusFulfilled || s == StatusClosed
}

// Transitions returns the moves available from s, in display order.
func (s Status) Transitions() []Transition {
	out := make([]Transition, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

// CanTransitionTo reports whether target is reachable from s in one step.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range transitions[s] {
		if t.To == target {
			return true
		}
	}
	return false
}
