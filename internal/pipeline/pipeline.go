// Package pipeline turns raw article text into structured results by
// rendering a prompt, invoking the configured LLM client, and deterministically
// post-processing the response.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"text-services/internal/llm"
	"text-services/internal/prompts"
)

// Status tags a processing result.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusError   Status = "ERROR"
)

const (
	minTextLength = 10
	maxSentences  = 3
	maxKeywords   = 10
)

// SummarizeResult holds a summary of at most three sentences.
type SummarizeResult struct {
	Summary string `json:"summary"`
	Status  Status `json:"status"`
}

// CategorizeResult holds the category label returned by the model, verbatim.
type CategorizeResult struct {
	Category string `json:"category"`
	Status   Status `json:"status"`
}

// KeywordsResult holds up to ten cleaned keywords in model order.
type KeywordsResult struct {
	Keywords []string `json:"keywords"`
	Status   Status   `json:"status"`
}

// ProcessResult combines all three operations.
type ProcessResult struct {
	Summary  string   `json:"summary"`
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
	Status   Status   `json:"status"`
}

// Service executes the text processing operations against an LLM client.
type Service struct {
	llm     llm.Client
	prompts prompts.Bank
	log     *slog.Logger
}

// New builds a Service.
func New(client llm.Client, bank prompts.Bank, log *slog.Logger) *Service {
	return &Service{llm: client, prompts: bank, log: log}
}

// validate enforces the single local input constraint: trimmed text must be
// at least 10 characters. Returns the trimmed text.
func validate(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minTextLength {
		return "", validationError("text is too short to process")
	}
	return trimmed, nil
}

// Summarize asks the model for a summary and truncates it to three sentences.
func (s *Service) Summarize(ctx context.Context, text string) (SummarizeResult, error) {
	text, err := validate(text)
	if err != nil {
		return SummarizeResult{Status: StatusError}, err
	}

	response, err := s.llm.Complete(ctx, s.prompts.System, prompts.Render(s.prompts.Summarize, text))
	if err != nil {
		s.log.Error("summarize failed", "err", err)
		return SummarizeResult{Status: StatusError}, providerError(err)
	}

	summary := strings.TrimSpace(response)
	sentences := splitSentences(summary)
	if len(sentences) > maxSentences {
		summary = strings.Join(sentences[:maxSentences], " ")
	}
	return SummarizeResult{Summary: summary, Status: StatusSuccess}, nil
}

// Categorize asks the model for a category label and returns it verbatim.
// The label is not checked against the category set; the prompt requests it.
func (s *Service) Categorize(ctx context.Context, text string) (CategorizeResult, error) {
	text, err := validate(text)
	if err != nil {
		return CategorizeResult{Status: StatusError}, err
	}

	response, err := s.llm.Complete(ctx, s.prompts.System, prompts.Render(s.prompts.Categorize, text))
	if err != nil {
		s.log.Error("categorize failed", "err", err)
		return CategorizeResult{Status: StatusError}, providerError(err)
	}
	return CategorizeResult{Category: strings.TrimSpace(response), Status: StatusSuccess}, nil
}

// ExtractKeywords asks the model for comma-separated keywords and cleans up
// the response. An empty list after cleanup is a failure even though no
// transport error occurred.
func (s *Service) ExtractKeywords(ctx context.Context, text string) (KeywordsResult, error) {
	text, err := validate(text)
	if err != nil {
		return KeywordsResult{Keywords: []string{}, Status: StatusError}, err
	}

	response, err := s.llm.Complete(ctx, s.prompts.System, prompts.Render(s.prompts.ExtractKeywords, text))
	if err != nil {
		s.log.Error("extract keywords failed", "err", err)
		return KeywordsResult{Keywords: []string{}, Status: StatusError}, providerError(err)
	}

	keywords := cleanKeywords(response)
	if len(keywords) == 0 {
		s.log.Warn("no keywords extracted from response")
		return KeywordsResult{Keywords: []string{}, Status: StatusError},
			validationError("no keywords extracted from response")
	}
	return KeywordsResult{Keywords: keywords, Status: StatusSuccess}, nil
}

// Process runs summarize, categorize, and extract-keywords as three
// independent sequential sub-calls. The summary is a hard dependency: if it
// fails, the combined result is an error. Category and keyword sub-failures
// are tolerated; the combined result carries whatever data is available.
func (s *Service) Process(ctx context.Context, text string) (ProcessResult, error) {
	text, err := validate(text)
	if err != nil {
		return ProcessResult{Keywords: []string{}, Status: StatusError}, err
	}

	summary, err := s.Summarize(ctx, text)
	if err != nil {
		s.log.Error("process: summarize sub-task failed", "err", err)
		return ProcessResult{Keywords: []string{}, Status: StatusError}, err
	}

	category, err := s.Categorize(ctx, text)
	if err != nil {
		s.log.Warn("process: categorize sub-task failed", "err", err)
	}
	keywords, err := s.ExtractKeywords(ctx, text)
	if err != nil {
		s.log.Warn("process: extract keywords sub-task failed", "err", err)
	}

	kws := keywords.Keywords
	if len(kws) > maxKeywords {
		kws = kws[:maxKeywords]
	}
	return ProcessResult{
		Summary:  summary.Summary,
		Category: category.Category,
		Keywords: kws,
		Status:   StatusSuccess,
	}, nil
}

// splitSentences splits text at sentence-terminal punctuation followed by
// whitespace, keeping the punctuation with its sentence.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		sentence := strings.TrimSpace(string(runes[start : i+1]))
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = i + 1
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

var markdownStripper = strings.NewReplacer("*", "", "#", "", "-", "")

// cleanKeywords strips markdown artifacts, splits on commas, trims each
// token, drops empties, and caps the list at ten entries.
func cleanKeywords(response string) []string {
	cleaned := markdownStripper.Replace(strings.TrimSpace(response))
	var keywords []string
	for _, token := range strings.Split(cleaned, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		keywords = append(keywords, token)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}
