package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/amishk599/jobletter/internal/generate"
	"github.com/amishk599/jobletter/internal/model"
	"github.com/amishk599/jobletter/internal/poller"
)

// Store is the user state the bot reads and edits.
type Store interface {
	EnsureUser(ctx context.Context, userID int64) error
	GetUser(ctx context.Context, userID int64) (model.UserProfile, error)
	GetScheduleState(ctx context.Context, userID int64) (model.ScheduleState, error)
	SetResume(ctx context.Context, userID int64, text string) error
	SetSampleLetter(ctx context.Context, userID int64, text string) error
	SetPreferences(ctx context.Context, userID int64, p model.Preferences) error
	SetAlert(ctx context.Context, userID int64, enabled bool) error
	SetSourceEnabled(ctx context.Context, userID int64, source string, enabled bool) error
}

// Trigger starts an on-demand digest cycle.
type Trigger interface {
	Trigger(ctx context.Context, userID int64) (poller.Outcome, error)
}

// LetterGenerator writes cover letters for tokens and job URLs.
type LetterGenerator interface {
	GenerateForUser(ctx context.Context, userID int64, token string) (generate.Letter, error)
	GenerateFromURL(ctx context.Context, userID int64, url string) (generate.Letter, error)
}

// Defaults prefill the time questions of /jobsetup.
type Defaults struct {
	Hour     int
	Minute   int
	Timezone string
}

// Bot handles updates from Telegram. Commands and conversation steps are
// handled in order on the update loop; searches and letter generation run
// in the background so one slow user never stalls the others.
type Bot struct {
	api       API
	transport *Transport
	store     Store
	trigger   Trigger
	letters   LetterGenerator
	sources   []string
	defaults  Defaults
	client    *http.Client
	logger    *slog.Logger

	mu    sync.Mutex
	convs map[int64]*conversation
	wg    sync.WaitGroup
}

// NewBot wires a bot. sources lists the configured source names in
// priority order.
func NewBot(
	api API,
	store Store,
	trigger Trigger,
	letters LetterGenerator,
	sources []string,
	defaults Defaults,
	client *http.Client,
	logger *slog.Logger,
) *Bot {
	return &Bot{
		api:       api,
		transport: NewTransport(api, logger),
		store:     store,
		trigger:   trigger,
		letters:   letters,
		sources:   sources,
		defaults:  defaults,
		client:    client,
		logger:    logger,
		convs:     make(map[int64]*conversation),
	}
}

// Run consumes updates until ctx is cancelled or the channel closes, then
// waits for background work to finish.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	b.logger.Info("telegram bot started")
	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("shutting down telegram bot")
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, u)
		}
	}
}

// HandleUpdate processes one update.
func (b *Bot) HandleUpdate(ctx context.Context, u tgbotapi.Update) {
	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil && u.Message.From != nil:
		b.handleMessage(ctx, u.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	userID, chatID := m.From.ID, m.Chat.ID
	if err := b.store.EnsureUser(ctx, userID); err != nil {
		b.fail(chatID, userID, "registering user", err)
		return
	}

	if m.IsCommand() {
		// Any command ends a half-finished conversation.
		active := b.conversation(userID) != nil
		b.setConversation(userID, nil)
		if m.Command() == "cancel" {
			if active {
				b.reply(chatID, cancelledText)
			} else {
				b.reply(chatID, nothingToCancel)
			}
			return
		}
		b.handleCommand(ctx, m)
		return
	}
	if c := b.conversation(userID); c != nil {
		b.continueConversation(ctx, m, userID, c)
		return
	}
	if link := strings.TrimSpace(m.Text); isURL(link) {
		b.letterFromURL(ctx, chatID, userID, link)
		return
	}
	b.reply(chatID, fallbackText)
}

func (b *Bot) handleCommand(ctx context.Context, m *tgbotapi.Message) {
	userID, chatID := m.From.ID, m.Chat.ID
	switch m.Command() {
	case "start":
		b.reply(chatID, welcomeText)
	case "help":
		b.reply(chatID, helpText)
	case "status":
		b.showStatus(ctx, chatID, userID)
	case "alert":
		b.toggleAlert(ctx, chatID, userID)
	case "searchnow":
		b.searchNow(ctx, chatID, userID)
	case "jobsetup":
		b.startJobSetup(chatID, userID)
	case "setup":
		b.startSetup(chatID, userID)
	case "sources":
		b.handleSources(ctx, chatID, userID, strings.Fields(m.CommandArguments()))
	default:
		b.reply(chatID, fallbackText)
	}
}

func (b *Bot) showStatus(ctx context.Context, chatID, userID int64) {
	u, err := b.store.GetUser(ctx, userID)
	if err != nil {
		b.fail(chatID, userID, "loading user", err)
		return
	}
	st, err := b.store.GetScheduleState(ctx, userID)
	if err != nil {
		b.fail(chatID, userID, "loading schedule state", err)
		return
	}
	b.reply(chatID, statusText(u, st, b.sources))
}

func (b *Bot) toggleAlert(ctx context.Context, chatID, userID int64) {
	u, err := b.store.GetUser(ctx, userID)
	if err != nil {
		b.fail(chatID, userID, "loading user", err)
		return
	}
	if !u.HasPreferences() {
		b.reply(chatID, needJobSetupText)
		return
	}
	enabled := !u.AlertEnabled
	if err := b.store.SetAlert(ctx, userID, enabled); err != nil {
		b.fail(chatID, userID, "toggling alert", err)
		return
	}
	if enabled {
		b.replyf(chatID, alertOnTextFormat, u.Prefs.Hour, u.Prefs.Minute, zoneName(u.Prefs.Timezone))
		return
	}
	b.reply(chatID, alertOffText)
}

func (b *Bot) searchNow(ctx context.Context, chatID, userID int64) {
	u, err := b.store.GetUser(ctx, userID)
	if err != nil {
		b.fail(chatID, userID, "loading user", err)
		return
	}
	if !u.HasPreferences() {
		b.reply(chatID, needJobSetupText)
		return
	}
	b.reply(chatID, searchingText)
	b.background(ctx, func(ctx context.Context) {
		// On success the digest itself is the reply.
		if _, err := b.trigger.Trigger(ctx, userID); err != nil {
			b.logger.Warn("manual search failed", "user", userID, "error", err)
			b.reply(chatID, userMessage(err))
		}
	})
}

func (b *Bot) handleSources(ctx context.Context, chatID, userID int64, args []string) {
	if len(args) == 2 {
		name := strings.ToLower(args[0])
		if !slices.Contains(b.sources, name) {
			b.replyf(chatID, "Unknown source <code>%s</code>.", html.EscapeString(name))
			return
		}
		var enabled bool
		switch strings.ToLower(args[1]) {
		case "on":
			enabled = true
		case "off":
		default:
			b.reply(chatID, "Use <code>/sources NAME on</code> or <code>/sources NAME off</code>.")
			return
		}
		if err := b.store.SetSourceEnabled(ctx, userID, name, enabled); err != nil {
			b.fail(chatID, userID, "toggling source", err)
			return
		}
	} else if len(args) != 0 {
		b.reply(chatID, "Use <code>/sources NAME on</code> or <code>/sources NAME off</code>.")
		return
	}

	u, err := b.store.GetUser(ctx, userID)
	if err != nil {
		b.fail(chatID, userID, "loading user", err)
		return
	}
	b.reply(chatID, sourcesText(u, b.sources))
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		b.logger.Debug("answering callback", "error", err)
	}
	token, ok := strings.CutPrefix(q.Data, CallbackPrefix)
	if !ok || q.From == nil {
		return
	}
	userID := q.From.ID
	chatID := userID
	if q.Message != nil && q.Message.Chat != nil {
		chatID = q.Message.Chat.ID
	}

	b.reply(chatID, writingText)
	b.background(ctx, func(ctx context.Context) {
		letter, err := b.letters.GenerateForUser(ctx, userID, token)
		if err != nil {
			b.logger.Warn("letter generation failed", "user", userID, "error", err)
			b.reply(chatID, userMessage(err))
			return
		}
		b.sendLetter(ctx, chatID, letter)
	})
}

func (b *Bot) letterFromURL(ctx context.Context, chatID, userID int64, link string) {
	u, err := b.store.GetUser(ctx, userID)
	if err != nil {
		b.fail(chatID, userID, "loading user", err)
		return
	}
	if !u.Configured() {
		b.reply(chatID, needSetupText)
		return
	}
	b.reply(chatID, loadingPageText)
	b.background(ctx, func(ctx context.Context) {
		letter, err := b.letters.GenerateFromURL(ctx, userID, link)
		if err != nil {
			b.logger.Warn("letter from url failed", "user", userID, "url", link, "error", err)
			b.reply(chatID, userMessage(err))
			return
		}
		b.sendLetter(ctx, chatID, letter)
	})
}

// sendLetter sends the letter inline, or as a .txt file when it would not
// fit in one message.
func (b *Bot) sendLetter(ctx context.Context, chatID int64, letter generate.Letter) {
	full := letterHeader(letter.Posting) + letter.Text
	if utf8.RuneCountInString(full) <= MaxMessageRunes {
		if err := b.transport.SendText(ctx, chatID, full); err != nil {
			b.logger.Error("sending letter", "chat", chatID, "error", err)
		}
		return
	}
	caption := "📄 Your cover letter"
	if letter.Posting.Title != "" {
		caption += " for " + letter.Posting.Title + " @ " + orDash(letter.Posting.Company)
	}
	if err := b.transport.SendDocument(ctx, chatID, letterFileName(letter.Posting), caption, letter.Text); err != nil {
		b.logger.Error("sending letter document", "chat", chatID, "error", err)
	}
}

func (b *Bot) background(ctx context.Context, fn func(context.Context)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn(ctx)
	}()
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("sending reply", "chat", chatID, "error", err)
	}
}

func (b *Bot) replyf(chatID int64, format string, args ...any) {
	b.reply(chatID, fmt.Sprintf(format, args...))
}

func (b *Bot) fail(chatID, userID int64, action string, err error) {
	b.logger.Error(action, "user", userID, "error", err)
	if errors.Is(err, context.Canceled) {
		return
	}
	b.reply(chatID, userMessage(err))
}

func isURL(s string) bool {
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return false
	}
	if strings.ContainsAny(s, " \n\t") {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && u.Host != ""
}
