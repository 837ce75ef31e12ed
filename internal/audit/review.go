package audit

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/jobletter/internal/model"
)

// Mark classifies a fetched posting against the user's history.
type Mark int

const (
	MarkKnown    Mark = iota // already delivered or passed over
	MarkDigest               // would be in the next digest
	MarkOverflow             // novel but cut by the digest size
)

func (m Mark) symbol() string {
	switch m {
	case MarkDigest:
		return "★"
	case MarkOverflow:
		return "+"
	default:
		return "·"
	}
}

// Report is what one dry-run search produced for a user.
type Report struct {
	User     model.UserProfile
	Fetched  []model.Posting
	Digest   []model.Posting
	Overflow []model.Posting
	Failures []model.SourceFailure
}

// Marks classifies every fetched posting by id.
func (r Report) Marks() map[string]Mark {
	marks := make(map[string]Mark, len(r.Fetched))
	for _, p := range r.Fetched {
		marks[p.ID] = MarkKnown
	}
	for _, p := range r.Overflow {
		marks[p.ID] = MarkOverflow
	}
	for _, p := range r.Digest {
		marks[p.ID] = MarkDigest
	}
	return marks
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(0, 1)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240"))

	focusedPaneStyle = paneStyle.
				BorderForeground(lipgloss.Color("39"))

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	digestStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	knownStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
)

type reviewModel struct {
	report     Report
	marks      map[string]Mark
	rows       []model.Posting
	digestOnly bool

	cursor int
	offset int
	detail viewport.Model

	width, height int
	focusDetail   bool
	ready         bool
	quit          bool
}

func newReviewModel(r Report) reviewModel {
	m := reviewModel{report: r, marks: r.Marks()}
	m.rows = m.visibleRows()
	return m
}

func (m reviewModel) visibleRows() []model.Posting {
	if !m.digestOnly {
		return m.report.Fetched
	}
	return m.report.Digest
}

func (m reviewModel) Init() tea.Cmd {
	return nil
}

func (m reviewModel) listHeight() int {
	return max(m.height-6, 1)
}

func (m reviewModel) listWidth() int {
	return max(m.width*2/5, 20)
}

func (m *reviewModel) layout() {
	w := max(m.width-m.listWidth()-4, 10)
	if !m.ready {
		m.detail = viewport.New(w, m.listHeight())
		m.ready = true
	} else {
		m.detail.Width = w
		m.detail.Height = m.listHeight()
	}
	m.refreshDetail()
}

func (m *reviewModel) refreshDetail() {
	if !m.ready {
		return
	}
	if len(m.rows) == 0 {
		m.detail.SetContent("Nothing to show.")
		return
	}
	m.detail.SetContent(describe(m.rows[m.cursor], m.marks[m.rows[m.cursor].ID], m.detail.Width))
	m.detail.GotoTop()
}

func (m *reviewModel) move(delta int) {
	if len(m.rows) == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.rows)-1)
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if h := m.listHeight(); m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	m.refreshDetail()
}

func (m reviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quit = true
			return m, tea.Quit
		case "esc", "b":
			return m, tea.Quit
		case "tab":
			m.focusDetail = !m.focusDetail
			return m, nil
		case "f":
			m.digestOnly = !m.digestOnly
			m.rows = m.visibleRows()
			m.cursor, m.offset = 0, 0
			m.refreshDetail()
			return m, nil
		}

		if m.focusDetail {
			var cmd tea.Cmd
			m.detail, cmd = m.detail.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "up", "k":
			m.move(-1)
		case "down", "j":
			m.move(1)
		case "pgup":
			m.move(-m.listHeight())
		case "pgdown":
			m.move(m.listHeight())
		case "home", "g":
			m.move(-len(m.rows))
		case "end", "G":
			m.move(len(m.rows))
		}
	}
	return m, nil
}

func (m reviewModel) View() string {
	if !m.ready {
		return "loading..."
	}

	r := m.report
	header := headerStyle.Render(fmt.Sprintf("User %d · %s · fetched %d · digest %d · overflow %d",
		r.User.UserID, r.User.Prefs.Title, len(r.Fetched), len(r.Digest), len(r.Overflow)))
	if len(r.Failures) > 0 {
		names := make([]string, len(r.Failures))
		for i, f := range r.Failures {
			names[i] = f.Source
		}
		header += "  " + errorStyle.Render("failed: "+strings.Join(names, ", "))
	}

	list, detail := paneStyle, focusedPaneStyle
	if !m.focusDetail {
		list, detail = focusedPaneStyle, paneStyle
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		list.Width(m.listWidth()).Height(m.listHeight()).Render(m.renderList()),
		detail.Render(m.detail.View()),
	)

	scope := "all fetched"
	if m.digestOnly {
		scope = "digest only"
	}
	footer := footerStyle.Render(fmt.Sprintf("★ digest  + overflow  · known   [%s]   j/k move  tab focus  f filter  b back  q quit", scope))

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m reviewModel) renderList() string {
	if len(m.rows) == 0 {
		return knownStyle.Render("no postings")
	}
	end := min(m.offset+m.listHeight(), len(m.rows))
	width := m.listWidth() - 4

	var b strings.Builder
	for i := m.offset; i < end; i++ {
		p := m.rows[i]
		mark := m.marks[p.ID]
		line := clip(fmt.Sprintf("%s %s · %s", mark.symbol(), p.Title, p.Company), width)
		switch {
		case i == m.cursor:
			line = cursorStyle.Render(line)
		case mark == MarkDigest:
			line = digestStyle.Render(line)
		case mark == MarkKnown:
			line = knownStyle.Render(line)
		}
		b.WriteString(line)
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func describe(p model.Posting, mark Mark, width int) string {
	var b strings.Builder
	b.WriteString(cursorStyle.Render(p.Title))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s · %s\n", p.Company, orNone(p.Location))
	fmt.Fprintf(&b, "source: %s\n", p.Source)
	if p.PostedAt != nil {
		fmt.Fprintf(&b, "posted: %s\n", p.PostedAt.Format("2006-01-02 15:04"))
	}
	switch mark {
	case MarkDigest:
		b.WriteString(digestStyle.Render("in next digest") + "\n")
	case MarkOverflow:
		b.WriteString("novel, over digest size\n")
	default:
		b.WriteString(knownStyle.Render("already seen") + "\n")
	}
	if p.URL != "" {
		fmt.Fprintf(&b, "%s\n", p.URL)
	}
	if p.Description != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Width(width).Render(p.Description))
	}
	return b.String()
}

func clip(s string, n int) string {
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func orNone(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}

// RunReview opens the full-screen review of a dry-run report.
// wantQuit is true when the operator pressed q rather than going back.
func RunReview(r Report) (wantQuit bool, err error) {
	p := tea.NewProgram(newReviewModel(r), tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return false, err
	}
	return result.(reviewModel).quit, nil
}
