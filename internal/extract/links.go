package extract

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

const linkSystemPrompt = "You are a specialized URL extraction agent that identifies job posting links in career page content."

const linkPromptTemplate = `Analyze the following page content and extract every link that points to an individual job posting.
Source URL: %s

Rules:
1. Only extract links that are likely to be job postings. These usually carry an ID or a job-related keyword in the URL.
2. Ignore social media links, navigation links and general website pages.
3. Return links exactly as they appear in the content.
%s
Page content:
%s`

// socialHosts are never job postings
var socialHosts = []string{
	"facebook.com", "twitter.com", "x.com", "instagram.com", "linkedin.com",
	"youtube.com", "tiktok.com", "threads.net", "pinterest.com", "glassdoor.com",
}

// Hints narrows link extraction for one source
type Hints struct {
	ExtraNotes     string
	JobTitleFilter string
}

func (h Hints) render() string {
	var b strings.Builder
	if h.JobTitleFilter != "" {
		fmt.Fprintf(&b, "4. Only keep postings whose title matches: %s\n", h.JobTitleFilter)
	}
	if h.ExtraNotes != "" {
		fmt.Fprintf(&b, "Operator notes: %s\n", h.ExtraNotes)
	}
	return b.String()
}

type jobLinks struct {
	JobPostings []string `json:"job_postings" description:"Direct links to specific job postings"`
}

// LinkExtractor finds job posting links on a listing page
type LinkExtractor struct {
	llm    Completer
	logger *slog.Logger
}

// NewLinkExtractor creates a LinkExtractor
func NewLinkExtractor(llm Completer, logger *slog.Logger) *LinkExtractor {
	return &LinkExtractor{llm: llm, logger: logger}
}

// ExtractLinks returns the ordered set of absolute posting URLs found in
// text. An empty result is not an error.
func (e *LinkExtractor) ExtractLinks(ctx context.Context, text, sourceURL string, hints Hints) ([]string, error) {
	var out jobLinks
	prompt := fmt.Sprintf(linkPromptTemplate, sourceURL, hints.render(), clip(text))

	if err := e.llm.Complete(ctx, linkSystemPrompt, prompt, "job_links", &out); err != nil {
		return nil, classify(err, "extract job links")
	}

	links := NormalizeLinks(sourceURL, out.JobPostings)

	e.logger.Info("Job links extracted",
		slog.String("source_url", sourceURL),
		slog.Int("raw", len(out.JobPostings)),
		slog.Int("kept", len(links)),
	)

	return links, nil
}

// NormalizeLinks resolves raw against base and keeps absolute http(s) links
// that are not social profiles. Fragments are stripped and the first
// occurrence of each link wins.
func NormalizeLinks(base string, raw []string) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		baseURL = &url.URL{}
	}

	seen := make(map[string]struct{}, len(raw))
	links := make([]string, 0, len(raw))

	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" || strings.HasPrefix(r, "#") {
			continue
		}

		ref, err := url.Parse(r)
		if err != nil {
			continue
		}

		abs := baseURL.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			continue
		}
		if abs.Host == "" || isSocialHost(abs.Hostname()) {
			continue
		}

		abs.Fragment = ""
		abs.RawFragment = ""

		s := abs.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		links = append(links, s)
	}

	return links
}

func isSocialHost(host string) bool {
	host = strings.ToLower(host)
	for _, h := range socialHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
