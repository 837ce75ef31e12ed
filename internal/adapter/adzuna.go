package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/jobletter/internal/model"
)

const (
	adzunaBaseURL     = "https://api.adzuna.com/v1/api/jobs"
	adzunaMaxPageSize = 50
)

// adzunaResponse mirrors the top-level Adzuna JSON response.
type adzunaResponse struct {
	Results []adzunaResult `json:"results"`
	Count   int            `json:"count"`
}

// adzunaResult mirrors a single Adzuna job listing.
type adzunaResult struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Company     adzunaNamed `json:"company"`
	Location    adzunaNamed `json:"location"`
	RedirectURL string      `json:"redirect_url"`
	Created     string      `json:"created"`
}

type adzunaNamed struct {
	DisplayName string `json:"display_name"`
}

// AdzunaAdapter searches the Adzuna job search API by keyword and location.
type AdzunaAdapter struct {
	appID   string
	appKey  string
	country string // "gb", "us", "de", ...
	client  *http.Client
}

// NewAdzunaAdapter creates an Adzuna source for one country index.
func NewAdzunaAdapter(appID, appKey, country string, client *http.Client) *AdzunaAdapter {
	return &AdzunaAdapter{appID: appID, appKey: appKey, country: country, client: client}
}

func (a *AdzunaAdapter) Name() string { return "adzuna" }

// Search queries the first result page, newest first.
func (a *AdzunaAdapter) Search(ctx context.Context, q model.Query) ([]model.Posting, error) {
	pageSize := q.MaxResults
	if pageSize <= 0 || pageSize > adzunaMaxPageSize {
		pageSize = adzunaMaxPageSize
	}

	what := q.Terms()
	if q.Remote {
		what = strings.TrimSpace(what + " remote")
	}

	params := url.Values{}
	params.Set("app_id", a.appID)
	params.Set("app_key", a.appKey)
	params.Set("results_per_page", strconv.Itoa(pageSize))
	params.Set("what", what)
	if q.Location != "" {
		params.Set("where", q.Location)
	}
	if days := int(q.MaxAge / (24 * time.Hour)); days > 0 {
		params.Set("max_days_old", strconv.Itoa(days))
	}
	params.Set("sort_by", "date")

	reqURL := fmt.Sprintf("%s/%s/search/1?%s", adzunaBaseURL, a.country, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("adzuna search: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("adzuna search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("adzuna search: unexpected status %d", resp.StatusCode),
		}
	}

	var apiResp adzunaResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("adzuna search: %w", err)
	}

	postings := make([]model.Posting, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		p := model.Posting{
			ID:          model.PostingID(a.Name(), r.ID, r.RedirectURL),
			NativeID:    r.ID,
			Company:     r.Company.DisplayName,
			Title:       extractText(r.Title),
			Location:    r.Location.DisplayName,
			URL:         r.RedirectURL,
			Description: description(r.Description),
			Source:      a.Name(),
		}
		if r.Created != "" {
			if t, err := time.Parse(time.RFC3339, r.Created); err == nil {
				p.PostedAt = &t
			}
		}
		postings = append(postings, p)
	}

	return postings, nil
}
