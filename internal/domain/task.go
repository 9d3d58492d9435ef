package domain

import (
	"fmt"
	"time"
)

// TaskType selects the handler for a queued task
type TaskType string

const (
	TaskTypeClosedRoleAudit TaskType = "CLOSED_ROLE_AUDIT"
	TaskTypeOpenRoleAudit   TaskType = "OPEN_ROLE_AUDIT"
)

// ParseTaskType converts a raw string to a TaskType.
func ParseTaskType(s string) (TaskType, error) {
	t := TaskType(s)
	switch t {
	case TaskTypeClosedRoleAudit, TaskTypeOpenRoleAudit:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTaskType, s)
}

// ClosedRoleResult is the verdict of a closed-role check
type ClosedRoleResult string

const (
	ClosedRoleResultOpen   ClosedRoleResult = "open"
	ClosedRoleResultClosed ClosedRoleResult = "closed"
	ClosedRoleResultUnsure ClosedRoleResult = "unsure"
)

// ClosedRoleAuditTask checks whether one live position has closed.
type ClosedRoleAuditTask struct {
	ID            int64            `db:"id" json:"id"`
	JobID         int64            `db:"job_id" json:"jobId"`
	URL           string           `db:"url" json:"url"`
	JobTitle      string           `db:"job_title" json:"jobTitle"`
	CompanyName   string           `db:"company_name" json:"companyName"`
	Status        AuditStatus      `db:"status" json:"status"`
	StatusMessage string           `db:"status_message" json:"statusMessage"`
	Result        ClosedRoleResult `db:"result" json:"result"`
	Justification string           `db:"justification" json:"justification"`
	Screenshot    string           `db:"screenshot" json:"screenshot"`
	CreatedAt     time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updatedAt"`
}

// OpenRoleAuditTask scrapes one source page for new postings.
type OpenRoleAuditTask struct {
	ID             int64       `db:"id" json:"id"`
	URL            string      `db:"url" json:"url"`
	Status         AuditStatus `db:"status" json:"status"`
	StatusMessage  string      `db:"status_message" json:"statusMessage"`
	ExtraNotes     string      `db:"extra_notes" json:"extraNotes"`
	CompanyID      *int64      `db:"company_id" json:"companyId,omitempty"`
	CompanyName    string      `db:"company_name" json:"companyName"`
	Site           string      `db:"site" json:"site"`
	JobTitleFilter string      `db:"job_title_filter" json:"jobTitleFilter"`
	CreatedAt      time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updatedAt"`
}

// ClosedRoleOutcome is written to a closed-role task when it completes
type ClosedRoleOutcome struct {
	Result        ClosedRoleResult
	Justification string
	Screenshot    string
}

// TaskMessage is the queue payload for one audit task. Closed-role messages
// carry JobID and URL; open-role messages carry URL, ExtraNotes and Site.
type TaskMessage struct {
	TaskID     int64    `json:"taskId"`
	Type       TaskType `json:"type"`
	JobID      int64    `json:"jobId,omitempty"`
	URL        string   `json:"url,omitempty"`
	ExtraNotes string   `json:"extraNotes,omitempty"`
	Site       string   `json:"site,omitempty"`
}
