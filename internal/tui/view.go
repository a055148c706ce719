package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/himanishpuri/AmramAI/pkg/utils"
)

func (m *Model) View() string {
	var body string
	switch m.state {
	case stateMenu:
		body = m.menuView()
	case stateURL:
		body = titleStyle.Render("Download from YouTube") + "\n\n" +
			m.url.View() + "\n\n" +
			helpStyle.Render("enter fetch info • esc back")
	case stateFetching:
		body = m.spin.View() + " Fetching video info..."
	case stateConfirmDownload:
		body = m.confirmDownloadView()
	case statePicker:
		body = titleStyle.Render("Process local file") + "\n" +
			dimStyle.Render(m.picker.CurrentDirectory) + "\n\n" +
			m.picker.View() + "\n" +
			helpStyle.Render("enter select • ←/→ navigate • esc back")
	case stateConfirmSeparate:
		body = titleStyle.Render("Separate tracks") + "\n\n" +
			panelStyle.Render(utils.BaseName(m.pendingPath)+"\n"+dimStyle.Render(m.pendingPath)) + "\n" +
			"Split this file into stems? " + helpStyle.Render("[y/n]")
	case stateWorking:
		body = titleStyle.Render(m.phase) + "\n\n" +
			m.bar.ViewAs(m.percent/100) + "\n\n" +
			helpStyle.Render("esc cancel")
	case stateResult:
		body = m.resultView()
	case stateHistory:
		body = m.historyView()
	case stateMixer:
		body = m.mix.View()
	}

	out := body
	if m.message != "" {
		style := okStyle
		if m.failed {
			style = errStyle
		}
		out += "\n\n" + style.Render(m.message)
	}
	return out + "\n"
}

func (m *Model) menuView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("AmramAI stem separator") + "\n")
	b.WriteString(sectionStyle.Render("What would you like to do?") + "\n")
	for i, item := range menuItems {
		if i == m.cursor {
			b.WriteString(focusStyle.Render("> "+item.label))
			if item.hint != "" {
				b.WriteString("  " + dimStyle.Render(item.hint))
			}
		} else {
			b.WriteString("  " + item.label)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n" + helpStyle.Render("↑/↓ move • enter select • q quit"))
	return b.String()
}

func (m *Model) confirmDownloadView() string {
	info := m.info
	lines := []string{info.Title, "Duration: " + clock(info.Length())}
	if author := info.Author(); author != "" {
		lines = append(lines, "Uploader: "+author)
	}
	if info.ViewCount > 0 {
		lines = append(lines, "Views:    "+humanize.Comma(info.ViewCount))
	}
	if up := info.Uploaded(); !up.IsZero() {
		lines = append(lines, "Uploaded: "+humanize.Time(up))
	}
	return titleStyle.Render("Download from YouTube") + "\n\n" +
		panelStyle.Render(strings.Join(lines, "\n")) + "\n" +
		"Download this audio? " + helpStyle.Render("[y/n]")
}

func (m *Model) resultView() string {
	res := m.result
	var b strings.Builder
	b.WriteString(titleStyle.Render("Separation "+string(res.Status)) + "\n\n")
	var rows []string
	for _, s := range res.Stems {
		rows = append(rows, fmt.Sprintf("%-8s %s", s.Name, dimStyle.Render(s.Path)))
	}
	b.WriteString(panelStyle.Render(strings.Join(rows, "\n")) + "\n")
	if len(res.Skipped) > 0 {
		b.WriteString(errStyle.Render(fmt.Sprintf("%d region(s) skipped", len(res.Skipped))) + "\n")
	}
	b.WriteString(helpStyle.Render("m build a custom mix • enter back to menu"))
	return b.String()
}

func (m *Model) historyView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("History") + "\n\n")
	if len(m.jobs) == 0 {
		b.WriteString(dimStyle.Render("No separations yet") + "\n")
	}
	for i, job := range m.jobs {
		line := fmt.Sprintf("%-32s %-8s %6s  %s", truncate(job.Title, 32), job.Status,
			clock(time.Duration(job.DurationMs)*time.Millisecond), humanize.Time(job.CreatedAt))
		if i == m.cursor {
			b.WriteString(focusStyle.Render("> "+line) + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}
	b.WriteString("\n" + helpStyle.Render("enter mix • d delete • esc back"))
	return b.String()
}

func clock(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
