package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/himanishpuri/AmramAI/pkg/amram"
	"github.com/himanishpuri/AmramAI/pkg/amram/audio"
	"github.com/himanishpuri/AmramAI/pkg/amram/mixer"
	"github.com/himanishpuri/AmramAI/pkg/models"
)

type infoMsg struct {
	url  string
	info *audio.VideoInfo
	err  error
}

type progressMsg struct {
	phase   string
	percent float64
}

type downloadedMsg struct {
	path string
	info *audio.VideoInfo
	err  error
}

type separatedMsg struct {
	res *amram.SeparationResult
	err error
}

type jobsMsg struct {
	jobs []models.Job
	err  error
}

type deletedMsg struct {
	title string
	err   error
}

type mixedMsg struct {
	path string
	mix  *mixer.Mix
	err  error
}

// waitFor delivers the next event from a background job.
func waitFor(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// offer sends msg unless the channel is full. Progress updates are lossy.
func offer(ch chan<- tea.Msg, msg tea.Msg) {
	select {
	case ch <- msg:
	default:
	}
}
