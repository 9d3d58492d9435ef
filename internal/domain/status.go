package domain

import "fmt"

// AuditStatus is the lifecycle status shared by closed-role and open-role audit tasks.
//
//	NOT_RUN ──► PENDING ──► IN_PROGRESS ──► COMPLETED
//	               │             │
//	               └─────────────┴────────► FAILED
//
// Dispatch may move any status back to PENDING.
type AuditStatus string

const (
	AuditStatusNotRun     AuditStatus = "NOT_RUN"
	AuditStatusPending    AuditStatus = "PENDING"
	AuditStatusInProgress AuditStatus = "IN_PROGRESS"
	AuditStatusCompleted  AuditStatus = "COMPLETED"
	AuditStatusFailed     AuditStatus = "FAILED"
)

// Status messages written alongside transitions
const (
	StatusMessageNotRun     = "Task has not run"
	StatusMessagePending    = "Task is pending"
	StatusMessageInProgress = "Task is running"
	StatusMessageCompleted  = "Task is complete"
	StatusMessageNoJobs     = "Task is complete: no new jobs found"
)

var forwardTransitions = map[AuditStatus][]AuditStatus{
	AuditStatusNotRun:     {AuditStatusPending},
	AuditStatusPending:    {AuditStatusInProgress, AuditStatusFailed},
	AuditStatusInProgress: {AuditStatusCompleted, AuditStatusFailed},
}

// ParseAuditStatus converts a raw string to an AuditStatus.
func ParseAuditStatus(s string) (AuditStatus, error) {
	st := AuditStatus(s)
	switch st {
	case AuditStatusNotRun, AuditStatusPending, AuditStatusInProgress, AuditStatusCompleted, AuditStatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// IsTerminal reports whether no further automatic transition occurs from s.
func (s AuditStatus) IsTerminal() bool {
	return s == AuditStatusCompleted || s == AuditStatusFailed
}

// CanTransition reports whether from → to is allowed. Moving to PENDING is
// always allowed because dispatch is an explicit reset.
func CanTransition(from, to AuditStatus) bool {
	if to == AuditStatusPending {
		return true
	}
	for _, s := range forwardTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
