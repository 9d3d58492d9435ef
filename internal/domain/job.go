package domain

import (
	"fmt"
	"time"
)

// JobType values
const (
	JobTypeInternship = "internship"
	JobTypeFullTime   = "full-time"
)

// Visa sponsorship values
const (
	VisaYes     = "yes"
	VisaNo      = "no"
	VisaUnknown = "unknown"
)

// Position status values
const (
	PositionStatusOpen   = "open"
	PositionStatusClosed = "closed"
)

// Education levels, lowest first
const (
	EducationNone       = "none"
	EducationHighSchool = "high_school"
	EducationAssociate  = "associate"
	EducationBachelor   = "bachelor"
	EducationMaster     = "master"
	EducationDoctorate  = "doctorate"
	EducationUnknown    = "unknown"
)

// ScrapedJob is a posting extracted from one detail page. URL is unique
// across all scraped jobs.
type ScrapedJob struct {
	ID                 int64     `db:"id" json:"id"`
	URL                string    `db:"url" json:"url"`
	Title              string    `db:"title" json:"title"`
	CompanyID          *int64    `db:"company_id" json:"companyId,omitempty"`
	Location           string    `db:"location" json:"location"`
	Description        string    `db:"description" json:"description"`
	Other              string    `db:"other" json:"other"`
	JobType            string    `db:"job_type" json:"jobType"`
	SalaryText         string    `db:"salary_text" json:"salaryText"`
	VisaSponsored      string    `db:"visa_sponsored" json:"visaSponsored"`
	Status             string    `db:"status" json:"status"`
	Site               Site      `db:"site" json:"site"`
	MinYearsExperience int       `db:"min_years_experience" json:"minYearsExperience"`
	MinEducation       string    `db:"min_education" json:"minEducation"`
	ScrapingTaskID     *int64    `db:"scraping_task" json:"scrapingTask,omitempty"`
	Hidden             bool      `db:"hidden" json:"hidden"`
	CreatedAt          time.Time `db:"created_at" json:"createdAt"`
}

// Position is a curated live listing.
type Position struct {
	ID            int64     `db:"id" json:"id"`
	CompanyID     *int64    `db:"company_id" json:"companyId,omitempty"`
	Title         string    `db:"title" json:"title"`
	URL           string    `db:"url" json:"url"`
	JobType       string    `db:"job_type" json:"jobType"`
	Status        string    `db:"status" json:"status"`
	Hidden        bool      `db:"hidden" json:"hidden"`
	ClosedOn      *string   `db:"closed_on" json:"closedOn,omitempty"`
	SalaryText    string    `db:"salary_text" json:"salaryText"`
	VisaSponsored string    `db:"visa_sponsored" json:"visaSponsored"`
	Location      string    `db:"location" json:"location"`
	Site          Site      `db:"site" json:"site"`
	ScrapedID     *int64    `db:"scraped_id" json:"scrapedId,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// Company owns positions and audit sources
type Company struct {
	ID            int64  `db:"id" json:"id"`
	Name          string `db:"name" json:"name"`
	CareerPageURL string `db:"career_page_url" json:"careerPageUrl"`
	Industry      string `db:"industry" json:"industry"`
}

// ValidJobType reports whether t is a known job type.
func ValidJobType(t string) bool {
	return t == JobTypeInternship || t == JobTypeFullTime
}

// NormalizeVisa maps an empty value to unknown and rejects anything else outside the enum.
func NormalizeVisa(v string) (string, error) {
	switch v {
	case "":
		return VisaUnknown, nil
	case VisaYes, VisaNo, VisaUnknown:
		return v, nil
	}
	return "", fmt.Errorf("invalid visa sponsorship %q", v)
}

// NormalizeEducation maps an empty value to unknown and rejects anything else outside the enum.
func NormalizeEducation(e string) (string, error) {
	switch e {
	case "":
		return EducationUnknown, nil
	case EducationNone, EducationHighSchool, EducationAssociate, EducationBachelor,
		EducationMaster, EducationDoctorate, EducationUnknown:
		return e, nil
	}
	return "", fmt.Errorf("invalid education level %q", e)
}

// ParsePositionStatus accepts the statuses an operator may set on a position.
func ParsePositionStatus(s string) (string, error) {
	switch s {
	case PositionStatusOpen, PositionStatusClosed:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}
