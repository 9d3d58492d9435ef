// Package extract turns page text into structured results with an LLM.
package extract

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/cuongbtq/job-audit/internal/domain"
	"github.com/cuongbtq/job-audit/shared/llm"
)

// maxPromptChars bounds the page text sent in one prompt
const maxPromptChars = 60000

// Completer requests a structured completion decoded into out
type Completer interface {
	Complete(ctx context.Context, system, prompt, schemaName string, out any) error
}

// clip cuts text to at most maxPromptChars bytes on a rune boundary
func clip(text string) string {
	if len(text) <= maxPromptChars {
		return text
	}
	cut := maxPromptChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// classify marks model output problems as invalid extractions and leaves
// transport errors as they are.
func classify(err error, what string) error {
	if errors.Is(err, llm.ErrMalformedResponse) ||
		errors.Is(err, llm.ErrTruncated) ||
		errors.Is(err, llm.ErrEmptyResponse) ||
		errors.Is(err, llm.ErrRefused) {
		return fmt.Errorf("%w: %s: %v", domain.ErrExtractionInvalid, what, err)
	}
	return fmt.Errorf("failed to %s: %w", what, err)
}
