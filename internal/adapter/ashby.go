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

const ashbyBaseURL = "https://api.ashbyhq.com/posting-api/job-board"

// ashbyJob represents a single job in the Ashby API response.
type ashbyJob struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Location         string `json:"location"`
	IsRemote         bool   `json:"isRemote"`
	JobURL           string `json:"jobUrl"`
	PublishedAt      string `json:"publishedAt"`
	IsListed         bool   `json:"isListed"`
	DescriptionPlain string `json:"descriptionPlain"`
}

// ashbyResponse is the top-level Ashby job board API response.
type ashbyResponse struct {
	Jobs []ashbyJob `json:"jobs"`
}

// AshbyAdapter searches a set of Ashby public job boards.
type AshbyAdapter struct {
	boards []Board
	client *http.Client
}

// NewAshbyAdapter creates a source over the given Ashby boards.
func NewAshbyAdapter(boards []Board, client *http.Client) *AshbyAdapter {
	return &AshbyAdapter{boards: boards, client: client}
}

func (a *AshbyAdapter) Name() string { return "ashby" }

// Search fetches every configured board and returns the postings matching q.
func (a *AshbyAdapter) Search(ctx context.Context, q model.Query) ([]model.Posting, error) {
	return searchBoards(ctx, a.boards, q, a.fetchBoard)
}

func (a *AshbyAdapter) fetchBoard(ctx context.Context, b Board) ([]model.Posting, error) {
	url := fmt.Sprintf("%s/%s", ashbyBaseURL, b.Token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ashby fetch for %s: %w", b.Token, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ashby fetch for %s: %w", b.Token, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("ashby fetch for %s: unexpected status %d", b.Token, resp.StatusCode),
		}
	}

	var ashbyResp ashbyResponse
	if err := json.NewDecoder(resp.Body).Decode(&ashbyResp); err != nil {
		return nil, fmt.Errorf("ashby fetch for %s: %w", b.Token, err)
	}

	postings := make([]model.Posting, 0, len(ashbyResp.Jobs))
	for _, aj := range ashbyResp.Jobs {
		if !aj.IsListed {
			continue
		}

		location := aj.Location
		if aj.IsRemote && !strings.Contains(strings.ToLower(location), "remote") {
			location = strings.TrimPrefix(location+", Remote", ", ")
		}

		p := model.Posting{
			ID:          model.PostingID(a.Name(), aj.ID, aj.JobURL),
			NativeID:    aj.ID,
			Company:     b.Company,
			Title:       aj.Title,
			Location:    location,
			URL:         aj.JobURL,
			Description: model.TruncateRunes(aj.DescriptionPlain, model.MaxDescriptionRunes),
			Source:      a.Name(),
		}

		if aj.PublishedAt != "" {
			if t, err := time.Parse(time.RFC3339, aj.PublishedAt); err == nil {
				p.PostedAt = &t
			}
		}

		postings = append(postings, p)
	}

	return postings, nil
}
