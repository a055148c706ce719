package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/himanishpuri/AmramAI/pkg/amram/mixer"
	"github.com/himanishpuri/AmramAI/pkg/models"
)

type mixRow struct {
	stem  models.Stem
	level textinput.Model
	mute  bool
	solo  bool
	err   string
}

// stemMixer edits per-stem levels. Focus len(rows) is the save button.
type stemMixer struct {
	title string
	rows  []mixRow
	focus int
}

func newStemMixer(title string, stems []models.Stem) *stemMixer {
	sm := &stemMixer{title: title}
	for _, s := range stems {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = "0.0-1.0"
		ti.CharLimit = 5
		ti.Width = 6
		ti.SetValue("1.0")
		ti.Cursor.SetMode(cursor.CursorStatic)
		sm.rows = append(sm.rows, mixRow{stem: s, level: ti})
	}
	sm.setFocus(0)
	return sm
}

func (sm *stemMixer) setFocus(i int) {
	n := len(sm.rows) + 1
	sm.focus = (i%n + n) % n
	for j := range sm.rows {
		if j == sm.focus {
			sm.rows[j].level.Focus()
		} else {
			sm.rows[j].level.Blur()
		}
	}
}

func (sm *stemMixer) onSave() bool { return sm.focus == len(sm.rows) }

// toggleMute and toggleSolo are exclusive per row.
func (sm *stemMixer) toggleMute(i int) {
	r := &sm.rows[i]
	r.mute = !r.mute
	if r.mute {
		r.solo = false
	}
}

func (sm *stemMixer) toggleSolo(i int) {
	r := &sm.rows[i]
	r.solo = !r.solo
	if r.solo {
		r.mute = false
	}
}

func levelRune(r rune) bool {
	return (r >= '0' && r <= '9') || r == '.'
}

// handleKey applies msg and reports whether the user asked to save.
func (sm *stemMixer) handleKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "up", "shift+tab":
		sm.setFocus(sm.focus - 1)
		return false
	case "down", "tab":
		sm.setFocus(sm.focus + 1)
		return false
	case "enter":
		if sm.onSave() {
			return true
		}
		sm.validate(sm.focus)
		sm.setFocus(sm.focus + 1)
		return false
	case "ctrl+s":
		return true
	}
	if sm.onSave() {
		return false
	}

	switch msg.String() {
	case "m":
		sm.toggleMute(sm.focus)
		return false
	case "s":
		sm.toggleSolo(sm.focus)
		return false
	}
	if msg.Type == tea.KeyRunes {
		for _, r := range msg.Runes {
			if !levelRune(r) {
				return false
			}
		}
	}
	row := &sm.rows[sm.focus]
	row.level, _ = row.level.Update(msg)
	row.err = ""
	return false
}

func (sm *stemMixer) validate(i int) bool {
	row := &sm.rows[i]
	if _, err := mixer.ParseLevel(row.level.Value()); err != nil {
		row.err = "enter a level between 0.0 and 1.0"
		return false
	}
	row.err = ""
	return true
}

// tracks validates every row and builds the mix request.
func (sm *stemMixer) tracks() ([]models.MixTrack, error) {
	var bad []string
	out := make([]models.MixTrack, 0, len(sm.rows))
	for i, row := range sm.rows {
		if !sm.validate(i) {
			bad = append(bad, row.stem.Name)
			continue
		}
		lvl, _ := mixer.ParseLevel(row.level.Value())
		out = append(out, models.MixTrack{
			Name:  row.stem.Name,
			Path:  row.stem.Path,
			Level: lvl,
			Mute:  row.mute,
			Solo:  row.solo,
		})
	}
	if len(bad) > 0 {
		return nil, fmt.Errorf("invalid level for %s", strings.Join(bad, ", "))
	}
	return out, nil
}

func (sm *stemMixer) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Custom mix: "+sm.title) + "\n")
	for i, row := range sm.rows {
		label := fmt.Sprintf("%-8s", row.stem.Name)
		if i == sm.focus {
			label = focusStyle.Render("> " + label)
		} else {
			label = "  " + label
		}
		line := fmt.Sprintf("%s [%s]  %s %s", label, row.level.View(),
			renderToggle("M", row.mute, warnStyle), renderToggle("S", row.solo, btnOnStyle))
		if row.err != "" {
			line += "  " + errStyle.Render(row.err)
		}
		b.WriteString(line + "\n")
	}
	save := btnStyle.Render("Save mix")
	if sm.onSave() {
		save = btnOnStyle.Render("Save mix")
	}
	b.WriteString("\n" + save + "\n")
	b.WriteString(helpStyle.Render("↑/↓ move • type a level • m mute • s solo • enter/ctrl+s save • esc back"))
	return b.String()
}
