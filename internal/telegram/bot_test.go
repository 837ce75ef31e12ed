package telegram

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/jobletter/internal/generate"
	"github.com/amishk599/jobletter/internal/model"
	"github.com/amishk599/jobletter/internal/poller"
	"github.com/amishk599/jobletter/internal/store"
)

// --- Fakes ---

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	fileURL  string
	sendErr  error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.sendErr
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetFileDirectURL(string) (string, error) {
	return f.fileURL, nil
}

// texts returns the text of every plain message sent so far.
func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeAPI) lastText() string {
	texts := f.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

type fakeTrigger struct {
	err   error
	calls []int64
}

func (f *fakeTrigger) Trigger(_ context.Context, userID int64) (poller.Outcome, error) {
	f.calls = append(f.calls, userID)
	return poller.Outcome{}, f.err
}

type fakeLetters struct {
	text   string
	err    error
	tokens []string
	urls   []string
}

func (f *fakeLetters) GenerateForUser(_ context.Context, userID int64, token string) (generate.Letter, error) {
	f.tokens = append(f.tokens, token)
	if f.err != nil {
		return generate.Letter{}, f.err
	}
	return generate.Letter{
		UserID:  userID,
		Posting: model.Posting{Title: "Backend Engineer", Company: "Acme GmbH"},
		Text:    f.text,
	}, nil
}

func (f *fakeLetters) GenerateFromURL(_ context.Context, userID int64, url string) (generate.Letter, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return generate.Letter{}, f.err
	}
	return generate.Letter{UserID: userID, Text: f.text}, nil
}

// --- Helpers ---

const uid int64 = 4242

type harness struct {
	bot     *Bot
	api     *fakeAPI
	db      *store.SQLiteStore
	trigger *fakeTrigger
	letters *fakeLetters
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	api := &fakeAPI{}
	tr := &fakeTrigger{}
	letters := &fakeLetters{text: "Dear hiring team,\n\nI am writing to apply."}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bot := NewBot(api, db, tr, letters, []string{"adzuna", "greenhouse"},
		Defaults{Hour: 9, Minute: 0, Timezone: "UTC"}, http.DefaultClient, logger)
	return &harness{bot: bot, api: api, db: db, trigger: tr, letters: letters}
}

func (h *harness) send(text string) {
	m := &tgbotapi.Message{
		From: &tgbotapi.User{ID: uid},
		Chat: &tgbotapi.Chat{ID: uid},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		cmd, _, _ := strings.Cut(text, " ")
		m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: m})
	h.bot.wg.Wait()
}

func (h *harness) sendDocument(fileID string) {
	m := &tgbotapi.Message{
		From:     &tgbotapi.User{ID: uid},
		Chat:     &tgbotapi.Chat{ID: uid},
		Document: &tgbotapi.Document{FileID: fileID, FileName: "letter.txt"},
	}
	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: m})
	h.bot.wg.Wait()
}

func (h *harness) press(data string) {
	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: uid},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: uid}},
		Data:    data,
	}})
	h.bot.wg.Wait()
}

func (h *harness) configure(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.db.SetResume(ctx, uid, "Ten years of Go."))
	require.NoError(t, h.db.SetSampleLetter(ctx, uid, "Dear team, ..."))
	require.NoError(t, h.db.SetPreferences(ctx, uid, model.Preferences{Title: "Go Developer", Location: "Berlin", Hour: 8}))
}

// --- Tests ---

func TestStartRegistersUser(t *testing.T) {
	h := newHarness(t)
	h.send("/start")

	_, err := h.db.GetUser(context.Background(), uid)
	require.NoError(t, err)
	assert.Contains(t, h.api.lastText(), "Welcome")
}

func TestJobSetupConversation(t *testing.T) {
	h := newHarness(t)
	for _, msg := range []string{"/jobsetup", "Backend Engineer", "Berlin", "go kubernetes", "yes", "07:30", "Europe/Berlin"} {
		h.send(msg)
	}

	u, err := h.db.GetUser(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, model.Preferences{
		Title:    "Backend Engineer",
		Location: "Berlin",
		Keywords: []string{"go", "kubernetes"},
		Remote:   true,
		Hour:     7,
		Minute:   30,
		Timezone: "Europe/Berlin",
	}, u.Prefs)
	assert.Contains(t, h.api.lastText(), "Job preferences saved")
	assert.Nil(t, h.bot.conversation(uid))
}

func TestJobSetup_DefaultsAndRetries(t *testing.T) {
	h := newHarness(t)
	for _, msg := range []string{"/jobsetup", "Data Analyst", "Munich", "skip", "no", "25:00"} {
		h.send(msg)
	}
	assert.Contains(t, h.api.lastText(), "Invalid format")

	h.send("ok")
	h.send("Mars/Olympus")
	assert.Contains(t, h.api.lastText(), "Unknown timezone")
	h.send("ok")

	u, err := h.db.GetUser(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, "Data Analyst", u.Prefs.Title)
	assert.Empty(t, u.Prefs.Keywords)
	assert.False(t, u.Prefs.Remote)
	assert.Equal(t, 9, u.Prefs.Hour)
	assert.Equal(t, "UTC", u.Prefs.Timezone)
}

func TestCancelEndsConversation(t *testing.T) {
	h := newHarness(t)
	h.send("/jobsetup")
	h.send("/cancel")
	assert.Equal(t, cancelledText, h.api.lastText())
	assert.Nil(t, h.bot.conversation(uid))

	h.send("/cancel")
	assert.Equal(t, nothingToCancel, h.api.lastText())
}

func TestSetupBoth_PastedResumeThenDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// "Grüße" in Latin-1.
		w.Write([]byte{'G', 'r', 0xfc, 0xdf, 'e'})
	}))
	defer srv.Close()

	h := newHarness(t)
	h.api.fileURL = srv.URL
	h.send("/setup")
	h.send("3")
	h.send("Ten years of Go.")
	assert.Contains(t, h.api.lastText(), "Résumé saved")
	h.sendDocument("file-1")

	u, err := h.db.GetUser(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, "Ten years of Go.", u.Resume)
	assert.Equal(t, "Grüße", u.SampleLetter)
	assert.Contains(t, h.api.lastText(), "Sample cover letter saved")
}

func TestSetup_InvalidChoice(t *testing.T) {
	h := newHarness(t)
	h.send("/setup")
	h.send("4")
	assert.Equal(t, setupChoiceInvalid, h.api.lastText())
}

func TestAlertRequiresPreferences(t *testing.T) {
	h := newHarness(t)
	h.send("/alert")
	assert.Equal(t, needJobSetupText, h.api.lastText())

	h.configure(t)
	h.send("/alert")
	u, err := h.db.GetUser(context.Background(), uid)
	require.NoError(t, err)
	assert.True(t, u.AlertEnabled)
	assert.Contains(t, h.api.lastText(), "enabled")

	h.send("/alert")
	u, err = h.db.GetUser(context.Background(), uid)
	require.NoError(t, err)
	assert.False(t, u.AlertEnabled)
}

func TestSearchNow(t *testing.T) {
	h := newHarness(t)
	h.send("/searchnow")
	assert.Equal(t, needJobSetupText, h.api.lastText())
	assert.Empty(t, h.trigger.calls)

	h.configure(t)
	h.send("/searchnow")
	assert.Equal(t, []int64{uid}, h.trigger.calls)
	assert.Equal(t, searchingText, h.api.lastText())

	h.trigger.err = model.ErrCycleInFlight
	h.send("/searchnow")
	assert.Contains(t, h.api.lastText(), "already running")
}

func TestSourcesToggle(t *testing.T) {
	h := newHarness(t)
	h.send("/sources greenhouse off")

	u, err := h.db.GetUser(context.Background(), uid)
	require.NoError(t, err)
	assert.False(t, u.SourceEnabled("greenhouse"))
	assert.True(t, u.SourceEnabled("adzuna"))
	assert.Contains(t, h.api.lastText(), "❌ greenhouse")

	h.send("/sources indeed on")
	assert.Contains(t, h.api.lastText(), "Unknown source")
}

func TestCallbackGeneratesLetter(t *testing.T) {
	h := newHarness(t)
	h.press("cl:tok-1")

	assert.Equal(t, []string{"tok-1"}, h.letters.tokens)
	require.Len(t, h.api.requests, 1)
	last := h.api.lastText()
	assert.Contains(t, last, "Backend Engineer @ Acme GmbH")
	assert.Contains(t, last, "I am writing to apply.")
}

func TestCallbackErrorsAreMapped(t *testing.T) {
	h := newHarness(t)
	h.letters.err = model.ErrUnknownToken
	h.press("cl:gone")
	assert.Contains(t, h.api.lastText(), "no longer available")

	h.letters.err = model.ErrUserNotConfigured
	h.press("cl:tok")
	assert.Equal(t, needSetupText, h.api.lastText())
}

func TestCallbackIgnoresForeignData(t *testing.T) {
	h := newHarness(t)
	h.press("something-else")
	assert.Empty(t, h.letters.tokens)
	assert.Empty(t, h.api.texts())
}

func TestLongLetterIsSentAsDocument(t *testing.T) {
	h := newHarness(t)
	h.letters.text = strings.Repeat("word ", 1000)
	h.press("cl:tok-1")

	h.api.mu.Lock()
	defer h.api.mu.Unlock()
	doc, ok := h.api.sent[len(h.api.sent)-1].(tgbotapi.DocumentConfig)
	require.True(t, ok, "expected a document")
	file, ok := doc.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Equal(t, "CoverLetter_Acme_GmbH.txt", file.Name)
	assert.Equal(t, h.letters.text, string(file.Bytes))
}

func TestURLMessage(t *testing.T) {
	h := newHarness(t)
	h.send("https://jobs.example.com/123")
	assert.Equal(t, needSetupText, h.api.lastText())
	assert.Empty(t, h.letters.urls)

	h.configure(t)
	h.send("https://jobs.example.com/123")
	assert.Equal(t, []string{"https://jobs.example.com/123"}, h.letters.urls)
	assert.Contains(t, h.api.lastText(), "I am writing to apply.")
}

func TestStatus(t *testing.T) {
	h := newHarness(t)
	h.configure(t)
	require.NoError(t, h.db.RecordFired(context.Background(), uid, "2026-06-01", time.Now()))
	h.send("/status")

	text := h.api.lastText()
	assert.Contains(t, text, "✅ Résumé")
	assert.Contains(t, text, "Go Developer in Berlin")
	assert.Contains(t, text, "08:00 (UTC)")
	assert.Contains(t, text, "2 of 2 enabled")
	assert.Contains(t, text, "2026-06-01")
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in           string
		hour, minute int
		ok           bool
	}{
		{"07:30", 7, 30, true},
		{"7", 7, 0, true},
		{"23:59", 23, 59, true},
		{"24:00", 0, 0, false},
		{"12:5", 0, 0, false},
		{"noon", 0, 0, false},
	}
	for _, tt := range tests {
		h, m, err := parseClock(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.hour, h, tt.in)
		assert.Equal(t, tt.minute, m, tt.in)
	}
}

func TestDecodeText(t *testing.T) {
	text, err := decodeText([]byte("\xef\xbb\xbf  Hello résumé \n"))
	require.NoError(t, err)
	assert.Equal(t, "Hello résumé", text)

	_, err = decodeText([]byte("%PDF-1.7 binary"))
	assert.ErrorIs(t, err, errNotText)

	_, err = decodeText([]byte("   "))
	assert.ErrorIs(t, err, errNotText)
}

func TestIsURL(t *testing.T) {
	assert.True(t, isURL("https://boards.greenhouse.io/acme/jobs/1"))
	assert.False(t, isURL("hello https://x.y"))
	assert.False(t, isURL("https://"))
	assert.False(t, isURL("ftp://example.com"))
}
