package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/amishk599/jobletter/internal/filter"
	"github.com/amishk599/jobletter/internal/model"
)

// Board identifies one company's board on an ATS.
type Board struct {
	Token   string // board token or company slug
	Company string // display name
}

type boardFetchFunc func(ctx context.Context, b Board) ([]model.Posting, error)

// searchBoards fetches every board and narrows the union down to the query.
// A board that fails is skipped; the search only fails when every board did.
func searchBoards(ctx context.Context, boards []Board, q model.Query, fetch boardFetchFunc) ([]model.Posting, error) {
	var (
		all  []model.Posting
		errs []error
	)
	for _, b := range boards {
		postings, err := fetch(ctx, b)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			errs = append(errs, err)
			continue
		}
		all = append(all, postings...)
	}
	if len(boards) > 0 && len(errs) == len(boards) {
		return nil, errors.Join(errs...)
	}
	return filter.Apply(filter.NewQueryFilter(q, time.Now()), all, q.MaxResults), nil
}
