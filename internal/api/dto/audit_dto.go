package dto

import "github.com/cuongbtq/job-audit/internal/domain"

type StartAuditRequest struct {
	TaskIDs []int64 `json:"taskIds"`
}

type AddOpenTaskRequest struct {
	URL            string `json:"url" binding:"required"`
	ExtraNotes     string `json:"extraNotes"`
	CompanyID      *int64 `json:"companyId"`
	Site           string `json:"site"`
	JobTitleFilter string `json:"jobTitleFilter"`
}

type HandleTaskRequest struct {
	TaskID     int64  `json:"taskId" binding:"required"`
	Type       string `json:"type" binding:"required"`
	JobID      int64  `json:"jobId"`
	URL        string `json:"url"`
	ExtraNotes string `json:"extraNotes"`
	Site       string `json:"site"`
}

type UpdatePositionStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type CreateAuditResponse struct {
	Created int64 `json:"created"`
}

type ClosedTasksResponse struct {
	Tasks []domain.ClosedRoleAuditTask `json:"tasks"`
}

type OpenTasksResponse struct {
	Tasks []domain.OpenRoleAuditTask `json:"tasks"`
}

type BroadcastResponse struct {
	Outcome string `json:"outcome"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
