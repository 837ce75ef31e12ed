package telegram

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/amishk599/jobletter/internal/model"
)

const (
	welcomeText = "👋 <b>Welcome to jobletter!</b>\n\n" +
		"📋 <b>Commands:</b>\n" +
		"• /setup – store your résumé and a sample cover letter\n" +
		"• /jobsetup – set your job search preferences\n" +
		"• /searchnow – search for jobs right now\n" +
		"• /alert – turn the daily digest on or off\n" +
		"• /sources – choose which job boards to search\n" +
		"• /status – show your settings\n" +
		"• /help – how it works\n\n" +
		"💡 Or just send me a <b>link</b> to a job posting!"

	helpText = "📖 <b>How it works:</b>\n\n" +
		"1️⃣ /setup → upload your résumé and a sample cover letter\n" +
		"2️⃣ /jobsetup → job title, location and keywords\n" +
		"3️⃣ /alert → enable the daily digest\n" +
		"4️⃣ Every day you get up to 10 new jobs. Tap <b>✍️ Letter</b> under any of them!\n\n" +
		"📌 You can also send a job link at any time for an instant letter."

	fallbackText       = "Send me a <b>link</b> to a job posting or use /searchnow to search automatically."
	needJobSetupText   = "❌ Please run /jobsetup first!"
	needSetupText      = "❌ Please run /setup first (résumé and sample cover letter)."
	searchingText      = "🔍 Searching for matching jobs… (this can take a minute)"
	writingText        = "✍️ Writing your cover letter… (20–30 seconds)"
	loadingPageText    = "🔍 Loading the job posting…"
	cancelledText      = "Cancelled."
	nothingToCancel    = "Nothing to cancel."
	processingText     = "⏳ Processing…"
	sendDocumentText   = "Please send a .txt file or paste the text."
	alertOnTextFormat  = "🔔 Daily job digest <b>enabled</b>!\nYou'll get your jobs every day at %02d:%02d (%s)."
	alertOffText       = "🔕 Daily job digest <b>disabled</b>."
	setupChoiceInvalid = "Please answer 1, 2 or 3."
)

// userMessage maps a pipeline error to the short text shown in chat.
func userMessage(err error) string {
	switch {
	case errors.Is(err, model.ErrUnknownToken):
		return "❌ This job is no longer available. Use /searchnow for a fresh search."
	case errors.Is(err, model.ErrUserNotConfigured):
		return needSetupText
	case errors.Is(err, model.ErrNoPreferences):
		return needJobSetupText
	case errors.Is(err, model.ErrCycleInFlight):
		return "⏳ A search is already running for you. The results are on their way."
	case errors.Is(err, model.ErrAllSourcesFailed):
		return "❌ No job board could be reached right now. I'll try again shortly."
	case errors.Is(err, model.ErrGenerationFailed):
		return "❌ I couldn't write the letter right now. Please try again in a moment."
	default:
		return "❌ Something went wrong. Please try again later."
	}
}

func statusText(u model.UserProfile, st model.ScheduleState, sources []string) string {
	check := func(ok bool) string {
		if ok {
			return "✅"
		}
		return "❌"
	}
	prefs := "❌ not set"
	if u.HasPreferences() {
		prefs = fmt.Sprintf("✅ %s in %s", html.EscapeString(u.Prefs.Title), html.EscapeString(orDash(u.Prefs.Location)))
	}
	alert := "❌ off"
	if u.AlertEnabled {
		alert = "✅ on"
	}
	enabled := 0
	for _, s := range sources {
		if u.SourceEnabled(s) {
			enabled++
		}
	}

	var b strings.Builder
	b.WriteString("📊 <b>Your status:</b>\n\n")
	fmt.Fprintf(&b, "%s Résumé\n", check(u.Resume != ""))
	fmt.Fprintf(&b, "%s Sample cover letter\n", check(u.SampleLetter != ""))
	fmt.Fprintf(&b, "🔍 Job preferences: %s\n", prefs)
	fmt.Fprintf(&b, "🔔 Daily digest: %s\n", alert)
	fmt.Fprintf(&b, "⏰ Digest time: %02d:%02d (%s)\n", u.Prefs.Hour, u.Prefs.Minute, zoneName(u.Prefs.Timezone))
	fmt.Fprintf(&b, "🧭 Sources: %d of %d enabled\n", enabled, len(sources))
	if st.LastFiredDate != "" {
		fmt.Fprintf(&b, "📬 Last digest: %s\n", st.LastFiredDate)
	}
	return b.String()
}

func sourcesText(u model.UserProfile, sources []string) string {
	var b strings.Builder
	b.WriteString("🧭 <b>Job sources:</b>\n\n")
	for _, s := range sources {
		mark := "❌"
		if u.SourceEnabled(s) {
			mark = "✅"
		}
		fmt.Fprintf(&b, "%s %s\n", mark, s)
	}
	b.WriteString("\nToggle with <code>/sources NAME on</code> or <code>/sources NAME off</code>.")
	return b.String()
}

func prefsSavedText(p model.Preferences) string {
	remote := "No"
	if p.Remote {
		remote = "Yes"
	}
	return fmt.Sprintf("✅ <b>Job preferences saved!</b>\n\n"+
		"🔎 Search: <code>%s</code> in <code>%s</code>\n"+
		"🏷️ Keywords: <code>%s</code>\n"+
		"🏠 Remote only: %s\n"+
		"⏰ Digest: daily at %02d:%02d (%s)\n\n"+
		"Use /alert to enable the daily digest or /searchnow for an instant search!",
		html.EscapeString(p.Title), html.EscapeString(orDash(p.Location)),
		html.EscapeString(orDash(strings.Join(p.Keywords, " "))), remote,
		p.Hour, p.Minute, zoneName(p.Timezone))
}

func letterHeader(p model.Posting) string {
	if p.Title == "" {
		return "📄 Your cover letter:\n" + strings.Repeat("─", 20) + "\n\n"
	}
	return fmt.Sprintf("📄 Cover letter – %s @ %s\n%s\n\n", p.Title, orDash(p.Company), strings.Repeat("─", 20))
}

func letterFileName(p model.Posting) string {
	if p.Company == "" {
		return "CoverLetter.txt"
	}
	return "CoverLetter_" + strings.Join(strings.Fields(p.Company), "_") + ".txt"
}

func orDash(s string) string {
	if s == "" {
		return "–"
	}
	return s
}

func zoneName(tz string) string {
	if tz == "" {
		return "UTC"
	}
	return tz
}
