package extract

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/cuongbtq/job-audit/internal/domain"
	"github.com/cuongbtq/job-audit/internal/fetcher"
	"github.com/cuongbtq/job-audit/shared/llm"
	"github.com/cuongbtq/job-audit/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLLM answers every call with reply encoded as JSON
type fakeLLM struct {
	reply   any
	err     error
	prompts []string
	schemas []string
}

func (f *fakeLLM) Complete(ctx context.Context, system, prompt, schemaName string, out any) error {
	f.prompts = append(f.prompts, prompt)
	f.schemas = append(f.schemas, schemaName)
	if f.err != nil {
		return f.err
	}
	b, err := json.Marshal(f.reply)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func TestNormalizeLinks(t *testing.T) {
	raw := []string{
		"/jobs/1",
		"https://careers.example.com/jobs/2#apply",
		"jobs/3",
		"#top",
		"",
		"mailto:jobs@example.com",
		"javascript:void(0)",
		"https://www.linkedin.com/company/example",
		"https://twitter.com/example",
		"https://careers.example.com/jobs/1",
		"https://boards.greenhouse.io/example/jobs/4",
	}

	got := NormalizeLinks("https://careers.example.com/en/", raw)

	assert.Equal(t, []string{
		"https://careers.example.com/jobs/1",
		"https://careers.example.com/jobs/2",
		"https://careers.example.com/en/jobs/3",
		"https://boards.greenhouse.io/example/jobs/4",
	}, got)
}

func TestNormalizeLinks_Empty(t *testing.T) {
	assert.Empty(t, NormalizeLinks("https://a.com", nil))
}

func TestLinkExtractor_ExtractLinks(t *testing.T) {
	fake := &fakeLLM{reply: jobLinks{JobPostings: []string{"/jobs/1", "/jobs/1", "https://x.com/acme"}}}
	e := NewLinkExtractor(fake, logger.NewNop())

	links, err := e.ExtractLinks(context.Background(), "page text", "https://a.com/careers", Hints{JobTitleFilter: "Product"})
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.com/jobs/1"}, links)
	assert.Equal(t, []string{"job_links"}, fake.schemas)
	assert.Contains(t, fake.prompts[0], "Only keep postings whose title matches: Product")
}

func TestLinkExtractor_LLMError(t *testing.T) {
	e := NewLinkExtractor(&fakeLLM{err: errors.New("rate limited")}, logger.NewNop())

	_, err := e.ExtractLinks(context.Background(), "page text", "https://a.com/careers", Hints{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrExtractionInvalid)
}

func validExtraction() jobExtraction {
	return jobExtraction{
		Title:              "  Associate Product Manager ",
		Location:           "Remote",
		JobType:            domain.JobTypeFullTime,
		MinYearsExperience: 2,
		IsProduct:          true,
		IsEngineering:      true,
	}
}

func TestJobExtractor_ExtractJob(t *testing.T) {
	e := NewJobExtractor(&fakeLLM{reply: validExtraction()}, logger.NewNop())

	job, err := e.ExtractJob(context.Background(), "text", "https://a.com/jobs/1")
	require.NoError(t, err)

	assert.Equal(t, "https://a.com/jobs/1", job.URL)
	assert.Equal(t, "Associate Product Manager", job.Title)
	assert.Equal(t, domain.SiteProduct, job.Site)
	assert.Equal(t, domain.VisaUnknown, job.VisaSponsored)
	assert.Equal(t, domain.EducationUnknown, job.MinEducation)
	assert.Equal(t, 2, job.MinYearsExperience)
}

func TestJobExtractor_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(x *jobExtraction)
	}{
		{"empty title", func(x *jobExtraction) { x.Title = "   " }},
		{"bad job type", func(x *jobExtraction) { x.JobType = "contract" }},
		{"bad visa", func(x *jobExtraction) { x.VisaSponsored = "maybe" }},
		{"negative years", func(x *jobExtraction) { x.MinYearsExperience = -1 }},
		{"bad education", func(x *jobExtraction) { x.MinEducation = "phd" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := validExtraction()
			tt.mutate(&x)
			e := NewJobExtractor(&fakeLLM{reply: x}, logger.NewNop())

			job, err := e.ExtractJob(context.Background(), "text", "https://a.com/jobs/1")
			assert.Nil(t, job)
			assert.ErrorIs(t, err, domain.ErrExtractionInvalid)
		})
	}
}

func TestJobExtractor_MalformedOutput(t *testing.T) {
	e := NewJobExtractor(&fakeLLM{err: llm.ErrTruncated}, logger.NewNop())

	_, err := e.ExtractJob(context.Background(), "text", "https://a.com/jobs/1")
	assert.ErrorIs(t, err, domain.ErrExtractionInvalid)
}

type fakePages struct {
	page *fetcher.Page
	err  error
}

func (f *fakePages) FetchWithScreenshot(ctx context.Context, url string) (*fetcher.Page, error) {
	return f.page, f.err
}

type memBlobs struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (m *memBlobs) Put(ctx context.Context, path string, content []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.paths = append(m.paths, path)
	return nil
}

func TestClosedRoleChecker(t *testing.T) {
	pages := &fakePages{page: &fetcher.Page{Text: "This position has been filled", Screenshot: []byte("png")}}
	blobs := &memBlobs{}
	c := NewClosedRoleChecker(pages, &fakeLLM{reply: closedRoleVerdict{Result: "Closed", Justification: "Filled banner"}}, blobs, logger.NewNop())

	out, err := c.CheckClosedRole(context.Background(), "https://a.com/jobs/1")
	require.NoError(t, err)

	assert.Equal(t, domain.ClosedRoleResultClosed, out.Result)
	assert.Equal(t, "Filled banner", out.Justification)
	assert.Equal(t, "screenshots/a.com__jobs_1.png", out.Screenshot)
	assert.Equal(t, []string{"screenshots/a.com__jobs_1.png"}, blobs.paths)
}

func TestClosedRoleChecker_ScreenshotUploadFailure(t *testing.T) {
	pages := &fakePages{page: &fetcher.Page{Text: "Apply now", Screenshot: []byte("png")}}
	c := NewClosedRoleChecker(pages, &fakeLLM{reply: closedRoleVerdict{Result: "open"}}, &memBlobs{err: errors.New("denied")}, logger.NewNop())

	out, err := c.CheckClosedRole(context.Background(), "https://a.com/jobs/1")
	require.NoError(t, err)
	assert.Equal(t, domain.ClosedRoleResultOpen, out.Result)
	assert.Empty(t, out.Screenshot)
}

func TestClosedRoleChecker_Errors(t *testing.T) {
	t.Run("fetch failure", func(t *testing.T) {
		c := NewClosedRoleChecker(&fakePages{err: domain.ErrFetchFailed}, &fakeLLM{}, nil, logger.NewNop())
		_, err := c.CheckClosedRole(context.Background(), "https://a.com/jobs/1")
		assert.ErrorIs(t, err, domain.ErrFetchFailed)
	})

	t.Run("invalid verdict", func(t *testing.T) {
		pages := &fakePages{page: &fetcher.Page{Text: "text"}}
		c := NewClosedRoleChecker(pages, &fakeLLM{reply: closedRoleVerdict{Result: "maybe"}}, nil, logger.NewNop())
		_, err := c.CheckClosedRole(context.Background(), "https://a.com/jobs/1")
		assert.ErrorIs(t, err, domain.ErrExtractionInvalid)
	})
}

func TestClip(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantLen int
	}{
		{"short text unchanged", "Senior Engineer", len("Senior Engineer")},
		{"ascii cut at limit", strings.Repeat("a", maxPromptChars+10), maxPromptChars},
		{"two byte rune across limit", strings.Repeat("a", maxPromptChars-1) + "é tail", maxPromptChars - 1},
		{"three byte rune across limit", strings.Repeat("a", maxPromptChars-2) + "€ tail", maxPromptChars - 2},
		{"rune ending at limit kept", strings.Repeat("a", maxPromptChars-2) + "é tail", maxPromptChars},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clip(tt.text)
			assert.Len(t, got, tt.wantLen)
			assert.True(t, utf8.ValidString(got))
			assert.True(t, strings.HasPrefix(tt.text, got))
		})
	}
}
