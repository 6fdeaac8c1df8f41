package claim

import (
	"fmt"
	"strings"

	"github.com/claimtrack/claimtrack/internal/platform/apperr"
	"github.com/claimtrack/claimtrack/internal/platform/auth"
)

// Status labels where a claim is in its processing.
type Status string

const (
	StatusAdmitted      Status = "Admitted"
	StatusDischarged    Status = "Discharged"
	StatusFileSubmitted Status = "File Submitted"
	StatusInReview      Status = "In Review"
	StatusSettled       Status = "Settled"
)

// Statuses lists every status in workflow order. Settled is terminal by
// convention only.
var Statuses = []Status{
	StatusAdmitted,
	StatusDischarged,
	StatusFileSubmitted,
	StatusInReview,
	StatusSettled,
}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus rejects anything outside the enumeration.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.TrimSpace(raw))
	if s == "" {
		return "", apperr.Validation("Status is required", apperr.FieldError{Field: "status", Message: "Status is required"})
	}
	if !s.Valid() {
		return "", apperr.Validation("Invalid status", apperr.FieldError{Field: "status", Message: "Invalid status"})
	}
	return s, nil
}

// Lifecycle decides a new claim's status and gates status changes. Any
// status may follow any other; only the caller's role restricts a change.
type Lifecycle struct {
	initial Status
}

// NewLifecycle accepts Admitted or In Review as the initial status.
func NewLifecycle(initial string) (*Lifecycle, error) {
	s := Status(initial)
	if s != StatusAdmitted && s != StatusInReview {
		return nil, fmt.Errorf("initial claim status must be %q or %q, got %q", StatusAdmitted, StatusInReview, initial)
	}
	return &Lifecycle{initial: s}, nil
}

func (l *Lifecycle) Initial() Status { return l.initial }

// Transition validates the requested status and then the caller's role.
func (l *Lifecycle) Transition(raw string, role auth.Role) (Status, error) {
	next, err := ParseStatus(raw)
	if err != nil {
		return "", err
	}
	if err := auth.Authorize(role, auth.ResourceClaimStatus, auth.OpUpdate); err != nil {
		return "", err
	}
	return next, nil
}
