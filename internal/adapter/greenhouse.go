package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/amishk599/jobletter/internal/model"
)

const greenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"

// greenhouseJob represents a single job in the Greenhouse API response.
type greenhouseJob struct {
	ID             int64              `json:"id"`
	Title          string             `json:"title"`
	Location       greenhouseLocation `json:"location"`
	AbsoluteURL    string             `json:"absolute_url"`
	UpdatedAt      string             `json:"updated_at"`
	FirstPublished string             `json:"first_published"`
	Content        string             `json:"content"`
}

type greenhouseLocation struct {
	Name string `json:"name"`
}

// greenhouseResponse is the top-level Greenhouse jobs API response.
type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
}

// GreenhouseAdapter searches a set of Greenhouse public boards.
type GreenhouseAdapter struct {
	boards []Board
	client *http.Client
}

// NewGreenhouseAdapter creates a source over the given Greenhouse boards.
func NewGreenhouseAdapter(boards []Board, client *http.Client) *GreenhouseAdapter {
	return &GreenhouseAdapter{boards: boards, client: client}
}

func (a *GreenhouseAdapter) Name() string { return "greenhouse" }

// Search fetches every configured board and returns the postings matching q.
func (a *GreenhouseAdapter) Search(ctx context.Context, q model.Query) ([]model.Posting, error) {
	return searchBoards(ctx, a.boards, q, a.fetchBoard)
}

func (a *GreenhouseAdapter) fetchBoard(ctx context.Context, b Board) ([]model.Posting, error) {
	url := fmt.Sprintf("%s/%s/jobs?content=true", greenhouseBaseURL, b.Token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("greenhouse fetch for %s: %w", b.Token, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("greenhouse fetch for %s: %w", b.Token, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("greenhouse fetch for %s: unexpected status %d", b.Token, resp.StatusCode),
		}
	}

	var ghResp greenhouseResponse
	if err := json.NewDecoder(resp.Body).Decode(&ghResp); err != nil {
		return nil, fmt.Errorf("greenhouse fetch for %s: %w", b.Token, err)
	}

	postings := make([]model.Posting, 0, len(ghResp.Jobs))
	for _, gj := range ghResp.Jobs {
		nativeID := strconv.FormatInt(gj.ID, 10)
		p := model.Posting{
			ID:          model.PostingID(a.Name(), nativeID, gj.AbsoluteURL),
			NativeID:    nativeID,
			Company:     b.Company,
			Title:       gj.Title,
			Location:    gj.Location.Name,
			URL:         gj.AbsoluteURL,
			Description: description(gj.Content),
			Source:      a.Name(),
		}

		published := gj.FirstPublished
		if published == "" {
			published = gj.UpdatedAt
		}
		if published != "" {
			if t, err := time.Parse(time.RFC3339, published); err == nil {
				p.PostedAt = &t
			}
		}

		postings = append(postings, p)
	}

	return postings, nil
}
