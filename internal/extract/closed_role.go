package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cuongbtq/job-audit/internal/domain"
	"github.com/cuongbtq/job-audit/internal/fetcher"
)

const closedRoleSystemPrompt = "You are a helpful assistant that checks whether a job posting is still accepting applications."

const closedRolePromptTemplate = `Use the context clues on the page to decide whether the role is open or closed.
Posting URL: %s

Hints that the role is closed:
- Text on the page says the role is closed, filled or no longer accepting applications
- The page redirects to a generic careers or search page

Hints that the role is open:
- There is an "Apply" button on the page
- The page describes the role, location, interview process, salary or technology stack

Answer "unsure" when the page gives no clear signal.

Page content:
%s`

type closedRoleVerdict struct {
	Result        string `json:"result" enum:"open,closed,unsure"`
	Justification string `json:"justification" description:"A short explanation for the answer"`
}

// PageFetcher renders a page with a screenshot
type PageFetcher interface {
	FetchWithScreenshot(ctx context.Context, url string) (*fetcher.Page, error)
}

// ClosedRoleChecker decides whether a live posting has closed
type ClosedRoleChecker struct {
	pages  PageFetcher
	llm    Completer
	blobs  fetcher.BlobStore
	logger *slog.Logger
}

// NewClosedRoleChecker creates a ClosedRoleChecker. blobs may be nil.
func NewClosedRoleChecker(pages PageFetcher, llm Completer, blobs fetcher.BlobStore, logger *slog.Logger) *ClosedRoleChecker {
	return &ClosedRoleChecker{
		pages:  pages,
		llm:    llm,
		blobs:  blobs,
		logger: logger,
	}
}

// CheckClosedRole renders url, asks the model for a verdict and stores the
// screenshot. A screenshot upload failure leaves Screenshot empty.
func (c *ClosedRoleChecker) CheckClosedRole(ctx context.Context, url string) (*domain.ClosedRoleOutcome, error) {
	page, err := c.pages.FetchWithScreenshot(ctx, url)
	if err != nil {
		return nil, err
	}

	var v closedRoleVerdict
	prompt := fmt.Sprintf(closedRolePromptTemplate, url, clip(page.Text))
	if err := c.llm.Complete(ctx, closedRoleSystemPrompt, prompt, "closed_role_verdict", &v); err != nil {
		return nil, classify(err, "check closed role")
	}

	result := domain.ClosedRoleResult(strings.ToLower(strings.TrimSpace(v.Result)))
	switch result {
	case domain.ClosedRoleResultOpen, domain.ClosedRoleResultClosed, domain.ClosedRoleResultUnsure:
	default:
		return nil, fmt.Errorf("%w: verdict %q", domain.ErrExtractionInvalid, v.Result)
	}

	outcome := &domain.ClosedRoleOutcome{
		Result:        result,
		Justification: strings.TrimSpace(v.Justification),
	}

	if c.blobs != nil && len(page.Screenshot) > 0 {
		path := "screenshots/" + fetcher.SanitizeURL(url) + ".png"
		if err := c.blobs.Put(ctx, path, page.Screenshot, "image/png"); err != nil {
			c.logger.Warn("Failed to upload screenshot",
				slog.String("url", url),
				slog.Any("error", err),
			)
		} else {
			outcome.Screenshot = path
		}
	}

	c.logger.Info("Closed role verdict",
		slog.String("url", url),
		slog.String("result", string(outcome.Result)),
	)

	return outcome, nil
}
