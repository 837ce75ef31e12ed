// Package generate resolves a pressed button to its posting and writes a
// cover letter for it.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/amishk599/jobletter/internal/ai"
	"github.com/amishk599/jobletter/internal/model"
	"github.com/amishk599/jobletter/internal/retry"
)

// Store is the read-only state the pipeline needs.
type Store interface {
	GetControl(ctx context.Context, token string) (model.PendingControl, error)
	GetPosting(ctx context.Context, postingID string) (model.Posting, error)
	GetUser(ctx context.Context, userID int64) (model.UserProfile, error)
}

// Writer produces letter text from a request.
type Writer interface {
	Write(ctx context.Context, req ai.LetterRequest) (string, error)
}

// PageFetcher fetches a job page as plain text.
type PageFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// Letter is a generated cover letter.
type Letter struct {
	UserID  int64
	Posting model.Posting // zero for letters generated from a URL
	Text    string
}

// Pipeline generates letters. It never writes state, so the same token can
// be used any number of times.
type Pipeline struct {
	store  Store
	writer Writer
	pages  PageFetcher
	policy retry.Policy
	logger *slog.Logger
}

// New creates a Pipeline. policy bounds retries of transient LLM failures.
func New(store Store, writer Writer, pages PageFetcher, policy retry.Policy, logger *slog.Logger) *Pipeline {
	return &Pipeline{store: store, writer: writer, pages: pages, policy: policy, logger: logger}
}

// Generate writes a letter for the posting behind token.
func (p *Pipeline) Generate(ctx context.Context, token string) (Letter, error) {
	control, err := p.resolve(ctx, token)
	if err != nil {
		return Letter{}, err
	}
	return p.generate(ctx, control)
}

// GenerateForUser is Generate restricted to tokens minted for userID. A token
// belonging to someone else is reported as unknown.
func (p *Pipeline) GenerateForUser(ctx context.Context, userID int64, token string) (Letter, error) {
	control, err := p.resolve(ctx, token)
	if err != nil {
		return Letter{}, err
	}
	if control.UserID != userID {
		return Letter{}, fmt.Errorf("token %q: %w", token, model.ErrUnknownToken)
	}
	return p.generate(ctx, control)
}

// GenerateFromURL writes a letter for the job page at url.
func (p *Pipeline) GenerateFromURL(ctx context.Context, userID int64, url string) (Letter, error) {
	user, err := p.configuredUser(ctx, userID)
	if err != nil {
		return Letter{}, err
	}
	text, err := p.pages.FetchText(ctx, url)
	if err != nil {
		return Letter{}, fmt.Errorf("%w: %v", model.ErrGenerationFailed, err)
	}
	letter, err := p.write(ctx, user, "URL: "+url+"\n\n"+text)
	if err != nil {
		return Letter{}, err
	}
	p.logger.Info("letter generated from url", "user", userID, "url", url)
	return Letter{UserID: userID, Text: letter}, nil
}

func (p *Pipeline) resolve(ctx context.Context, token string) (model.PendingControl, error) {
	control, err := p.store.GetControl(ctx, token)
	if errors.Is(err, model.ErrNotFound) {
		return model.PendingControl{}, fmt.Errorf("token %q: %w", token, model.ErrUnknownToken)
	}
	if err != nil {
		return model.PendingControl{}, err
	}
	return control, nil
}

func (p *Pipeline) generate(ctx context.Context, control model.PendingControl) (Letter, error) {
	posting, err := p.store.GetPosting(ctx, control.PostingID)
	if errors.Is(err, model.ErrNotFound) {
		return Letter{}, fmt.Errorf("posting %s: %w", control.PostingID, model.ErrUnknownToken)
	}
	if err != nil {
		return Letter{}, err
	}

	user, err := p.configuredUser(ctx, control.UserID)
	if err != nil {
		return Letter{}, err
	}

	text, err := p.write(ctx, user, RenderPosting(posting))
	if err != nil {
		return Letter{}, err
	}
	p.logger.Info("letter generated", "user", control.UserID, "posting", posting.ID)
	return Letter{UserID: control.UserID, Posting: posting, Text: text}, nil
}

func (p *Pipeline) configuredUser(ctx context.Context, userID int64) (model.UserProfile, error) {
	user, err := p.store.GetUser(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.UserProfile{}, fmt.Errorf("user %d: %w", userID, model.ErrUserNotConfigured)
	}
	if err != nil {
		return model.UserProfile{}, err
	}
	if !user.Configured() {
		return model.UserProfile{}, fmt.Errorf("user %d: %w", userID, model.ErrUserNotConfigured)
	}
	return user, nil
}

func (p *Pipeline) write(ctx context.Context, user model.UserProfile, posting string) (string, error) {
	req := ai.LetterRequest{Resume: user.Resume, SampleLetter: user.SampleLetter, Posting: posting}
	text, err := retry.Do(ctx, p.policy, p.logger, func(ctx context.Context) (string, error) {
		text, err := p.writer.Write(ctx, req)
		if errors.Is(err, ai.ErrDisabled) {
			return "", retry.Permanent(err)
		}
		return text, err
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrGenerationFailed, err)
	}
	return text, nil
}

// RenderPosting formats a posting as the job text handed to the LLM.
func RenderPosting(p model.Posting) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", p.Title)
	if p.Company != "" {
		fmt.Fprintf(&b, "Company: %s\n", p.Company)
	}
	if p.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", p.Location)
	}
	if p.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", p.URL)
	}
	if p.Description != "" {
		b.WriteString("\n")
		b.WriteString(p.Description)
	}
	return b.String()
}
