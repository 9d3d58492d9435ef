package broadcast

import "github.com/cuongbtq/job-audit/internal/domain"

// Payload is the body posted for one category
type Payload struct {
	Category       string    `json:"category"`
	Date           string    `json:"date"`
	FullTimeData   []Listing `json:"fullTimeData"`
	InternshipData []Listing `json:"internshipData"`
}

// Listing is one job in a broadcast
type Listing struct {
	ID                 int64  `json:"id"`
	Title              string `json:"title"`
	URL                string `json:"url"`
	Location           string `json:"location"`
	SalaryText         string `json:"salaryText"`
	VisaSponsored      string `json:"visaSponsored"`
	MinYearsExperience int    `json:"minYearsExperience"`
	MinEducation       string `json:"minEducation"`
}

func newListing(j domain.ScrapedJob) Listing {
	return Listing{
		ID:                 j.ID,
		Title:              j.Title,
		URL:                j.URL,
		Location:           j.Location,
		SalaryText:         j.SalaryText,
		VisaSponsored:      j.VisaSponsored,
		MinYearsExperience: j.MinYearsExperience,
		MinEducation:       j.MinEducation,
	}
}
