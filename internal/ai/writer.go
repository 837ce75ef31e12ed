package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"
)

// LetterRequest holds everything one letter is written from.
type LetterRequest struct {
	Resume       string
	SampleLetter string
	Posting      string // rendered posting text or fetched page text
}

// LetterWriter renders the cover-letter prompt and asks the LLM for exactly
// one completion per call.
type LetterWriter struct {
	provider LLMProvider
	tmpl     *template.Template
	language string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewLetterWriter creates a writer. A zero timeout means no extra deadline.
func NewLetterWriter(provider LLMProvider, tmpl *template.Template, language string, timeout time.Duration, logger *slog.Logger) *LetterWriter {
	if language == "" {
		language = "English"
	}
	return &LetterWriter{
		provider: provider,
		tmpl:     tmpl,
		language: language,
		timeout:  timeout,
		logger:   logger,
	}
}

// Write returns the generated letter text.
func (w *LetterWriter) Write(ctx context.Context, req LetterRequest) (string, error) {
	var promptBuf bytes.Buffer
	if err := w.tmpl.Execute(&promptBuf, struct {
		LetterRequest
		Language string
	}{req, w.language}); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := w.provider.Complete(ctx, promptBuf.String())
	if err != nil {
		return "", fmt.Errorf("llm complete: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("llm returned an empty letter")
	}

	w.logger.Debug("letter generated", "duration", time.Since(start), "chars", len(text))
	return text, nil
}
