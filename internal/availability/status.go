// Package availability holds the slot and reservation models shared by the
// scheduling workflow, the API client and the stub server, together with the
// slot status state machine.
package availability

import (
	"encoding/json"
	"fmt"
)

// Status is the closed set of slot states. It crosses the wire as a string
// but unmarshals strictly, so an unknown state surfaces immediately instead
// of leaking through as an empty value.
type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusTaken     Status = "TAKEN"
	StatusCompleted Status = "COMPLETED"
	StatusCanceled  Status = "CANCELED"
)

// ParseStatus validates a wire value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusAvailable, StatusTaken, StatusCompleted, StatusCanceled:
		return Status(s), nil
	}
	return "", fmt.Errorf("availability: unknown status %q", s)
}

func (s Status) String() string { return string(s) }

// MarshalJSON encodes the status as its wire string.
func (s Status) MarshalJSON() ([]byte, error) {
	if _, err := ParseStatus(string(s)); err != nil {
		return nil, err
	}
	return json.Marshal(string(s))
}

// UnmarshalJSON rejects values outside the closed set.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// InvalidTransitionError reports a status change outside the legal table.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("availability: illegal transition %s -> %s", e.From, e.To)
}

// legalTransitions is the full transition table. The reservation flow moves a
// slot AVAILABLE -> TAKEN; the owning professional drives the rest. CANCELED
// slots can be re-published.
var legalTransitions = map[Status][]Status{
	StatusAvailable: {StatusTaken, StatusCanceled},
	StatusTaken:     {StatusCompleted},
	StatusCanceled:  {StatusAvailable},
	StatusCompleted: {},
}

// CanTransition reports whether from -> to is in the legal table.
func CanTransition(from, to Status) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates from -> to, returning *InvalidTransitionError for any
// pair outside the table. The remote service remains the authority; this
// rejects obviously illegal changes before they are sent.
func Transition(from, to Status) (Status, error) {
	if !CanTransition(from, to) {
		return "", &InvalidTransitionError{From: from, To: to}
	}
	return to, nil
}
