package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cuongbtq/job-audit/internal/domain"
)

const jobSystemPrompt = "You are a specialized job data extraction agent that structures job posting information from page content."

const jobPromptTemplate = `Analyze the following job posting and extract its details.
Source URL: %s

Rules:
1. Use an empty string for text fields the posting does not mention.
2. job_type is "internship" for internships and co-ops, otherwise "full-time".
3. Use "unknown" when visa sponsorship or education requirements are not stated.
4. min_years_experience is 0 when no experience requirement is stated.
5. Set every category flag that applies to the role.

Page content:
%s`

// jobExtraction is the response schema for one posting
type jobExtraction struct {
	Title              string `json:"title" description:"Title of the job position"`
	Location           string `json:"location" description:"Geographic location of the job"`
	Description        string `json:"description" description:"Summary of the responsibilities and requirements"`
	Other              string `json:"other" description:"Additional notes about the posting"`
	JobType            string `json:"job_type" enum:"internship,full-time"`
	SalaryText         string `json:"salary_text" description:"Salary or pay range as written, empty if absent"`
	VisaSponsored      string `json:"visa_sponsored" enum:"yes,no,unknown"`
	MinYearsExperience int    `json:"min_years_experience" description:"Minimum years of experience required"`
	MinEducation       string `json:"min_education" enum:"none,high_school,associate,bachelor,master,doctorate,unknown"`
	IsProduct          bool   `json:"is_product" description:"Product management or product ownership role"`
	IsConsulting       bool   `json:"is_consulting" description:"Consulting or advisory role"`
	IsEngineering      bool   `json:"is_engineering" description:"Software or hardware engineering role"`
	IsOther            bool   `json:"is_other" description:"Role outside product, consulting and engineering"`
}

// JobExtractor reads one job detail page
type JobExtractor struct {
	llm    Completer
	logger *slog.Logger
}

// NewJobExtractor creates a JobExtractor
func NewJobExtractor(llm Completer, logger *slog.Logger) *JobExtractor {
	return &JobExtractor{llm: llm, logger: logger}
}

// ExtractJob returns the validated job described by text. Output that fails
// validation is reported as domain.ErrExtractionInvalid.
func (e *JobExtractor) ExtractJob(ctx context.Context, text, sourceURL string) (*domain.ScrapedJob, error) {
	var out jobExtraction
	prompt := fmt.Sprintf(jobPromptTemplate, sourceURL, clip(text))

	if err := e.llm.Complete(ctx, jobSystemPrompt, prompt, "job_posting", &out); err != nil {
		return nil, classify(err, "extract job data")
	}

	job, err := out.toScrapedJob(sourceURL)
	if err != nil {
		e.logger.Warn("Discarding invalid job extraction",
			slog.String("url", sourceURL),
			slog.Any("error", err),
		)
		return nil, err
	}

	return job, nil
}

func (x *jobExtraction) toScrapedJob(sourceURL string) (*domain.ScrapedJob, error) {
	title := strings.TrimSpace(x.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: empty title", domain.ErrExtractionInvalid)
	}

	if !domain.ValidJobType(x.JobType) {
		return nil, fmt.Errorf("%w: job type %q", domain.ErrExtractionInvalid, x.JobType)
	}

	visa, err := domain.NormalizeVisa(x.VisaSponsored)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractionInvalid, err)
	}

	if x.MinYearsExperience < 0 {
		return nil, fmt.Errorf("%w: negative years of experience %d", domain.ErrExtractionInvalid, x.MinYearsExperience)
	}

	education, err := domain.NormalizeEducation(x.MinEducation)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractionInvalid, err)
	}

	return &domain.ScrapedJob{
		URL:                sourceURL,
		Title:              title,
		Location:           strings.TrimSpace(x.Location),
		Description:        strings.TrimSpace(x.Description),
		Other:              strings.TrimSpace(x.Other),
		JobType:            x.JobType,
		SalaryText:         strings.TrimSpace(x.SalaryText),
		VisaSponsored:      visa,
		MinYearsExperience: x.MinYearsExperience,
		MinEducation:       education,
		Site: domain.ResolveSite(domain.CategoryFlags{
			Product:     x.IsProduct,
			Consulting:  x.IsConsulting,
			Engineering: x.IsEngineering,
			Other:       x.IsOther,
		}),
	}, nil
}
