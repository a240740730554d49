package order

import "fmt"

type Status string

const (
	StatusDraft      Status = "draft"
	StatusEstimated  Status = "estimated"
	StatusApproved   Status = "approved"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusDraft, StatusEstimated, StatusApproved, StatusInProgress, StatusCompleted, StatusCancelled:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown status: %s", s)
	}
}

var allowedTransitions = map[Status]map[Status]bool{
	StatusDraft:      {StatusEstimated: true, StatusCancelled: true},
	StatusEstimated:  {StatusApproved: true, StatusCancelled: true, StatusDraft: true},
	StatusApproved:   {StatusInProgress: true, StatusCancelled: true},
	StatusInProgress: {StatusCompleted: true}, // work in progress is never cancelled
	StatusCompleted:  {},
	StatusCancelled:  {},
}

func CanTransition(from, to Status) bool {
	m, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return m[to]
}

// AllowedTargets lists the legal next statuses in lifecycle order.
func AllowedTargets(from Status) []Status {
	var out []Status
	for _, s := range lifecycle {
		if CanTransition(from, s) {
			out = append(out, s)
		}
	}
	return out
}

var lifecycle = []Status{StatusDraft, StatusEstimated, StatusApproved, StatusInProgress, StatusCompleted, StatusCancelled}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Cancellable reports whether work has not started yet.
func (s Status) Cancellable() bool {
	return CanTransition(s, StatusCancelled)
}
