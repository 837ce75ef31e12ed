package digest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/jobletter/internal/dedup"
	"github.com/amishk599/jobletter/internal/model"
	"github.com/amishk599/jobletter/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTransport struct {
	delay     time.Duration // applied to SendDigest, ignoring ctx like tgbotapi does
	digestErr error
	textErr   error
	digests   [][]model.DigestItem
	texts     []string
}

func (f *fakeTransport) SendDigest(_ context.Context, _ int64, items []model.DigestItem) error {
	time.Sleep(f.delay)
	if f.digestErr != nil {
		return f.digestErr
	}
	f.digests = append(f.digests, items)
	return nil
}

func (f *fakeTransport) SendText(_ context.Context, _ int64, text string) error {
	if f.textErr != nil {
		return f.textErr
	}
	f.texts = append(f.texts, text)
	return nil
}

func setup(t *testing.T, tr *fakeTransport) (*Dispatcher, *store.SQLiteStore) {
	t.Helper()
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "digest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	d := NewDispatcher(db, db, tr, discardLogger())
	n := 0
	d.newToken = func() string {
		n++
		return fmt.Sprintf("tok-%d", n)
	}
	return d, db
}

func selection(n int) dedup.Selection {
	var sel dedup.Selection
	for i := 0; i < n; i++ {
		sel.Postings = append(sel.Postings, model.Posting{
			ID:     fmt.Sprintf("adzuna:%d", i),
			Source: "adzuna",
			Title:  fmt.Sprintf("Role %d", i),
		})
	}
	return sel
}

func TestDispatch_Success(t *testing.T) {
	ctx := context.Background()
	tr := &fakeTransport{}
	d, db := setup(t, tr)

	sel := selection(2)
	sel.Overflow = []model.Posting{{ID: "adzuna:99", Source: "adzuna", Title: "Overflow"}}

	res, err := d.Dispatch(ctx, 7, sel)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Delivered)
	require.Len(t, tr.digests, 1)
	assert.Equal(t, "tok-1", tr.digests[0][0].Token)
	assert.Equal(t, "adzuna:0", tr.digests[0][0].Posting.ID)

	c, err := db.GetControl(ctx, "tok-2")
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.UserID)
	assert.Equal(t, "adzuna:1", c.PostingID)

	p, err := db.GetPosting(ctx, "adzuna:1")
	require.NoError(t, err)
	assert.Equal(t, "Role 1", p.Title)

	seen, err := db.SeenCount(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, seen)

	known, err := db.Known(ctx, 7, sel.Overflow[0].ID)
	require.NoError(t, err)
	assert.True(t, known, "overflow must be recorded after delivery")
}

func TestDispatch_SendFinishingAfterDeadlineIsRecorded(t *testing.T) {
	tr := &fakeTransport{delay: 60 * time.Millisecond}
	d, db := setup(t, tr)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res, err := d.Dispatch(ctx, 7, selection(3))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Delivered)
	require.Error(t, ctx.Err(), "the send should have outlived the cycle deadline")

	seen, err := db.SeenCount(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 3, seen)
}

type failingSeen struct{}

func (failingSeen) MarkSeen(context.Context, int64, []model.Posting) error {
	return errors.New("disk full")
}

func (failingSeen) MarkSkipped(context.Context, int64, []model.Posting) error {
	return errors.New("disk full")
}

func TestDispatch_BookkeepingFailureAfterSendStillDelivered(t *testing.T) {
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "digest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	tr := &fakeTransport{}
	d := NewDispatcher(db, failingSeen{}, tr, discardLogger())

	res, err := d.Dispatch(context.Background(), 7, selection(2))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Delivered)
	assert.Len(t, res.Tokens, 2)
	assert.Len(t, tr.digests, 1)
}

func TestDispatch_DeliveryFailureLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	tr := &fakeTransport{digestErr: errors.New("telegram: 502")}
	d, db := setup(t, tr)

	sel := selection(3)
	sel.Overflow = []model.Posting{{ID: "adzuna:99", Title: "Overflow"}}

	_, err := d.Dispatch(ctx, 7, sel)
	require.ErrorIs(t, err, model.ErrDeliveryFailed)

	for _, tok := range []string{"tok-1", "tok-2", "tok-3"} {
		_, err := db.GetControl(ctx, tok)
		assert.ErrorIs(t, err, model.ErrNotFound, "control %s should be discarded", tok)
	}
	seen, err := db.SeenCount(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, seen)

	known, err := db.Known(ctx, 7, sel.Overflow[0].ID)
	require.NoError(t, err)
	assert.False(t, known)
}

func TestDispatch_EmptySelectionSendsNotice(t *testing.T) {
	tr := &fakeTransport{}
	d, _ := setup(t, tr)

	res, err := d.Dispatch(context.Background(), 7, dedup.Selection{})
	require.NoError(t, err)
	assert.Zero(t, res.Delivered)
	assert.Equal(t, []string{NoNewPostingsText}, tr.texts)
	assert.Empty(t, tr.digests)
}

func TestDispatch_EmptySelectionDeliveryFailure(t *testing.T) {
	tr := &fakeTransport{textErr: errors.New("blocked by user")}
	d, _ := setup(t, tr)

	_, err := d.Dispatch(context.Background(), 7, dedup.Selection{})
	assert.ErrorIs(t, err, model.ErrDeliveryFailed)
}
