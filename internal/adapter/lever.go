package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/amishk599/jobletter/internal/model"
)

const leverBaseURL = "https://api.lever.co/v0/postings"

// leverCategories represents the categories object in a Lever job.
type leverCategories struct {
	Location     string   `json:"location"`
	AllLocations []string `json:"allLocations"`
}

// leverJob represents a single job in the Lever API response.
type leverJob struct {
	ID               string          `json:"id"`
	Text             string          `json:"text"`
	DescriptionPlain string          `json:"descriptionPlain"`
	Categories       leverCategories `json:"categories"`
	CreatedAt        int64           `json:"createdAt"`
	WorkplaceType    string          `json:"workplaceType"`
	HostedURL        string          `json:"hostedUrl"`
}

// LeverAdapter searches a set of Lever public postings boards.
type LeverAdapter struct {
	boards []Board
	client *http.Client
}

// NewLeverAdapter creates a source over the given Lever boards.
func NewLeverAdapter(boards []Board, client *http.Client) *LeverAdapter {
	return &LeverAdapter{boards: boards, client: client}
}

func (a *LeverAdapter) Name() string { return "lever" }

// Search fetches every configured board and returns the postings matching q.
func (a *LeverAdapter) Search(ctx context.Context, q model.Query) ([]model.Posting, error) {
	return searchBoards(ctx, a.boards, q, a.fetchBoard)
}

func (a *LeverAdapter) fetchBoard(ctx context.Context, b Board) ([]model.Posting, error) {
	url := fmt.Sprintf("%s/%s?mode=json", leverBaseURL, b.Token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("lever fetch for %s: %w", b.Token, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lever fetch for %s: %w", b.Token, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("lever fetch for %s: unexpected status %d", b.Token, resp.StatusCode),
		}
	}

	var leverJobs []leverJob
	if err := json.NewDecoder(resp.Body).Decode(&leverJobs); err != nil {
		return nil, fmt.Errorf("lever fetch for %s: %w", b.Token, err)
	}

	postings := make([]model.Posting, 0, len(leverJobs))
	for _, lj := range leverJobs {
		// Prefer allLocations if available, fallback to location.
		location := lj.Categories.Location
		if len(lj.Categories.AllLocations) > 0 {
			location = strings.Join(lj.Categories.AllLocations, ", ")
		}
		if lj.WorkplaceType == "remote" && !strings.Contains(strings.ToLower(location), "remote") {
			location = strings.TrimPrefix(location+", Remote", ", ")
		}

		// createdAt is Unix milliseconds.
		var postedAt *time.Time
		if lj.CreatedAt > 0 {
			t := time.UnixMilli(lj.CreatedAt).UTC()
			postedAt = &t
		}

		postings = append(postings, model.Posting{
			ID:          model.PostingID(a.Name(), lj.ID, lj.HostedURL),
			NativeID:    lj.ID,
			Company:     b.Company,
			Title:       lj.Text,
			Location:    location,
			URL:         lj.HostedURL,
			Description: model.TruncateRunes(lj.DescriptionPlain, model.MaxDescriptionRunes),
			PostedAt:    postedAt,
			Source:      a.Name(),
		})
	}

	return postings, nil
}
