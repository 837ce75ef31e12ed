package telegram

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/amishk599/jobletter/internal/model"
)

const (
	maxFieldRunes = 120 // title, company and location each
	minFieldRunes = 8
)

// Transport delivers digests and texts to private chats. The chat ID of a
// private chat equals the user ID.
type Transport struct {
	api    API
	now    func() time.Time
	logger *slog.Logger
}

// NewTransport creates a Transport over api.
func NewTransport(api API, logger *slog.Logger) *Transport {
	return &Transport{api: api, now: time.Now, logger: logger}
}

// SendDigest sends all items as one message. Each posting gets a letter
// button carrying its token and, when it has one, a link button.
func (t *Transport) SendDigest(ctx context.Context, userID int64, items []model.DigestItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(userID, t.renderDigest(items))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = digestKeyboard(items)

	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("sending digest to %d: %w", userID, err)
	}
	t.logger.Debug("digest sent", "user", userID, "postings", len(items))
	return nil
}

// SendText sends plain text. Text over the message limit goes out as a
// .txt document instead of being cut.
func (t *Transport) SendText(ctx context.Context, userID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if utf8.RuneCountInString(text) > MaxMessageRunes {
		return t.SendDocument(ctx, userID, "message.txt", "", text)
	}
	if _, err := t.api.Send(tgbotapi.NewMessage(userID, text)); err != nil {
		return fmt.Errorf("sending text to %d: %w", userID, err)
	}
	return nil
}

// SendDocument sends body as a UTF-8 text file.
func (t *Transport) SendDocument(ctx context.Context, userID int64, name, caption, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(userID, tgbotapi.FileBytes{Name: name, Bytes: []byte(body)})
	doc.Caption = caption
	if _, err := t.api.Send(doc); err != nil {
		return fmt.Errorf("sending document to %d: %w", userID, err)
	}
	return nil
}

// renderDigest renders items into one message under MaxMessageRunes,
// halving the per-field cap until the whole digest fits.
func (t *Transport) renderDigest(items []model.DigestItem) string {
	limit := maxFieldRunes
	for {
		text := t.renderDigestWith(items, limit)
		if utf8.RuneCountInString(text) <= MaxMessageRunes || limit <= minFieldRunes {
			return text
		}
		limit = max(limit/2, minFieldRunes)
	}
}

func (t *Transport) renderDigestWith(items []model.DigestItem, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🌅 <b>Your daily job digest</b> (%s)\n", t.now().Format("02.01.2006"))
	fmt.Fprintf(&b, "I found <b>%d matching jobs</b> for you:\n", len(items))
	b.WriteString(strings.Repeat("─", 20))
	b.WriteString("\n")
	for i, it := range items {
		p := it.Posting
		fmt.Fprintf(&b, "\n%s <b>%d. %s</b>\n", sourceEmoji(p.Source), i+1, html.EscapeString(model.TruncateRunes(p.Title, limit)))
		if p.Company != "" {
			fmt.Fprintf(&b, "🏢 %s\n", html.EscapeString(model.TruncateRunes(p.Company, limit)))
		}
		if p.Location != "" {
			fmt.Fprintf(&b, "📍 %s\n", html.EscapeString(model.TruncateRunes(p.Location, limit)))
		}
		if p.PostedAt != nil {
			fmt.Fprintf(&b, "📅 %s\n", p.PostedAt.Format("02.01.2006"))
		}
	}
	return b.String()
}

func digestKeyboard(items []model.DigestItem) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(items))
	for i, it := range items {
		row := tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✍️ Letter #%d", i+1), CallbackPrefix+it.Token),
		)
		if it.Posting.URL != "" {
			row = append(row, tgbotapi.NewInlineKeyboardButtonURL(fmt.Sprintf("🔗 Job #%d", i+1), it.Posting.URL))
		}
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func sourceEmoji(source string) string {
	switch source {
	case "adzuna":
		return "🔍"
	case "greenhouse", "lever", "ashby":
		return "💼"
	default:
		return "📌"
	}
}
