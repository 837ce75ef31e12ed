package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/amishk599/jobletter/internal/model"
)

type step int

const (
	stepNone step = iota
	stepTitle
	stepLocation
	stepKeywords
	stepRemote
	stepTime
	stepTimezone
	stepSetupChoice
	stepResume
	stepSample
)

// conversation is the in-progress state of /jobsetup or /setup for one user.
// It lives only in memory: a restart simply drops half-finished setups.
type conversation struct {
	step  step
	draft model.Preferences
	both  bool // /setup option 3: résumé then sample
}

func (b *Bot) conversation(userID int64) *conversation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.convs[userID]
}

func (b *Bot) setConversation(userID int64, c *conversation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c == nil {
		delete(b.convs, userID)
		return
	}
	b.convs[userID] = c
}

func (b *Bot) startJobSetup(chatID, userID int64) {
	b.setConversation(userID, &conversation{step: stepTitle})
	b.reply(chatID, "🔍 <b>Job preferences</b>\n\n"+
		"What <b>job title</b> are you looking for?\n"+
		"<i>(e.g. “Software Engineer”, “Marketing Manager”, “Data Analyst”)</i>")
}

func (b *Bot) startSetup(chatID, userID int64) {
	b.setConversation(userID, &conversation{step: stepSetupChoice})
	b.reply(chatID, "⚙️ <b>Store your documents</b>\n\n"+
		"• <code>1</code> – résumé\n"+
		"• <code>2</code> – sample cover letter\n"+
		"• <code>3</code> – both")
}

// continueConversation feeds one message into the user's active
// conversation.
func (b *Bot) continueConversation(ctx context.Context, m *tgbotapi.Message, userID int64, c *conversation) {
	chatID := m.Chat.ID
	text := strings.TrimSpace(m.Text)

	switch c.step {
	case stepTitle:
		if text == "" {
			b.reply(chatID, "Please type a job title.")
			return
		}
		c.draft.Title = text
		c.step = stepLocation
		b.reply(chatID, "📍 Which <b>city or region</b>?\n<i>(e.g. “Berlin”, “Munich”, “Remote”, “Germany”)</i>")

	case stepLocation:
		c.draft.Location = text
		c.step = stepKeywords
		b.reply(chatID, "🏷️ Any <b>extra keywords</b> the search should include?\n"+
			"<i>(e.g. “Python React”, “agile Scrum”, or <code>skip</code> for none)</i>")

	case stepKeywords:
		if !strings.EqualFold(text, "skip") {
			c.draft.Keywords = strings.Fields(text)
		}
		c.step = stepRemote
		b.reply(chatID, "🏠 Show <b>remote jobs</b> only?\nAnswer <code>yes</code> or <code>no</code>.")

	case stepRemote:
		c.draft.Remote = isYes(text)
		c.step = stepTime
		b.reply(chatID, fmt.Sprintf("⏰ At what time should the daily digest arrive?\n"+
			"<i>(default %02d:%02d, just type <code>ok</code>)</i>\nOr your own time, e.g. <code>07:30</code>",
			b.defaults.Hour, b.defaults.Minute))

	case stepTime:
		hour, minute := b.defaults.Hour, b.defaults.Minute
		if !strings.EqualFold(text, "ok") {
			var err error
			if hour, minute, err = parseClock(text); err != nil {
				b.reply(chatID, "Invalid format. Use <code>HH:MM</code> or <code>ok</code>.")
				return
			}
		}
		c.draft.Hour, c.draft.Minute = hour, minute
		c.step = stepTimezone
		b.reply(chatID, fmt.Sprintf("🌍 Which <b>timezone</b> is that in?\n"+
			"<i>(e.g. <code>Europe/Berlin</code>, or <code>ok</code> for %s)</i>", zoneName(b.defaults.Timezone)))

	case stepTimezone:
		tz := b.defaults.Timezone
		if !strings.EqualFold(text, "ok") {
			if _, err := time.LoadLocation(text); err != nil || text == "" {
				b.reply(chatID, "Unknown timezone. Use a name like <code>Europe/Berlin</code> or <code>ok</code>.")
				return
			}
			tz = text
		}
		c.draft.Timezone = tz
		if err := b.store.SetPreferences(ctx, userID, c.draft); err != nil {
			b.fail(chatID, userID, "saving preferences", err)
			return
		}
		b.setConversation(userID, nil)
		b.reply(chatID, prefsSavedText(c.draft))

	case stepSetupChoice:
		switch text {
		case "1", "3":
			c.both = text == "3"
			c.step = stepResume
			b.reply(chatID, "📄 Send your <b>résumé</b> as a .txt file or paste it as text.")
		case "2":
			c.step = stepSample
			b.reply(chatID, "📝 Send your <b>sample cover letter</b> as a .txt file or paste it as text.")
		default:
			b.reply(chatID, setupChoiceInvalid)
		}

	case stepResume, stepSample:
		doc, ok := b.readDocument(ctx, m)
		if !ok {
			return
		}
		b.saveDocument(ctx, chatID, userID, c, doc)
	}
}

// readDocument extracts text from an uploaded file or a pasted message.
func (b *Bot) readDocument(ctx context.Context, m *tgbotapi.Message) (string, bool) {
	chatID := m.Chat.ID
	if m.Document == nil {
		if text := strings.TrimSpace(m.Text); text != "" {
			return text, true
		}
		b.reply(chatID, sendDocumentText)
		return "", false
	}

	b.reply(chatID, processingText)
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	text, err := downloadText(ctx, b.api, b.client, m.Document.FileID)
	if err != nil {
		b.logger.Warn("document rejected", "user", m.From.ID, "file", m.Document.FileName, "error", err)
		b.reply(chatID, sendDocumentText)
		return "", false
	}
	return text, true
}

func (b *Bot) saveDocument(ctx context.Context, chatID, userID int64, c *conversation, text string) {
	if c.step == stepResume {
		if err := b.store.SetResume(ctx, userID, text); err != nil {
			b.fail(chatID, userID, "saving résumé", err)
			return
		}
		if c.both {
			c.step = stepSample
			b.reply(chatID, "✅ Résumé saved!\n\nNow send your <b>sample cover letter</b>.")
			return
		}
		b.setConversation(userID, nil)
		b.reply(chatID, "✅ Résumé saved!")
		return
	}

	if err := b.store.SetSampleLetter(ctx, userID, text); err != nil {
		b.fail(chatID, userID, "saving sample letter", err)
		return
	}
	b.setConversation(userID, nil)
	b.reply(chatID, "✅ Sample cover letter saved! Use /searchnow for an instant job search.")
}

// parseClock accepts "H", "HH", "H:MM" or "HH:MM".
func parseClock(s string) (hour, minute int, err error) {
	hs, ms, hasMinute := strings.Cut(strings.TrimSpace(s), ":")
	if hour, err = strconv.Atoi(hs); err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	if hasMinute {
		if minute, err = strconv.Atoi(ms); err != nil || minute < 0 || minute > 59 || len(ms) != 2 {
			return 0, 0, fmt.Errorf("invalid minute in %q", s)
		}
	}
	return hour, minute, nil
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "ja", "j":
		return true
	}
	return false
}
