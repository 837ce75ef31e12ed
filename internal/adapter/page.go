package adapter

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/amishk599/jobletter/internal/model"
)

const (
	// MaxPageTextRunes caps text extracted from a user-supplied job page.
	MaxPageTextRunes = 12000
	maxPageBytes     = 2 << 20
	pageUserAgent    = "Mozilla/5.0 (compatible; jobletter/1.0)"
)

// PageFetcher downloads an arbitrary job page and reduces it to plain text.
type PageFetcher struct {
	client *http.Client
}

// NewPageFetcher creates a fetcher using client.
func NewPageFetcher(client *http.Client) *PageFetcher {
	return &PageFetcher{client: client}
}

// FetchText returns the visible text of the page at url, capped at
// MaxPageTextRunes.
func (f *PageFetcher) FetchText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("fetch page %s: %w", url, err)
	}
	req.Header.Set("User-Agent", pageUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &model.HTTPError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("fetch page %s: unexpected status %d", url, resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read page %s: %w", url, err)
	}

	text := model.TruncateRunes(extractText(string(body)), MaxPageTextRunes)
	if text == "" {
		return "", fmt.Errorf("fetch page %s: no readable text", url)
	}
	return text, nil
}
