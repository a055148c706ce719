package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/himanishpuri/AmramAI/pkg/amram"
	"github.com/himanishpuri/AmramAI/pkg/amram/audio"
	"github.com/himanishpuri/AmramAI/pkg/amram/separation"
	"github.com/himanishpuri/AmramAI/pkg/models"
	"github.com/himanishpuri/AmramAI/pkg/utils"
)

type state int

const (
	stateMenu state = iota
	stateURL
	stateFetching
	stateConfirmDownload
	statePicker
	stateConfirmSeparate
	stateWorking
	stateResult
	stateHistory
	stateMixer
)

const (
	menuDownload = iota
	menuLocal
	menuHistory
	menuExit
)

var menuItems = []struct{ label, hint string }{
	{"Download from YouTube", "fetch a video's audio and split it into stems"},
	{"Process local file", "pick an audio file on disk"},
	{"History", "past separations, remix or delete them"},
	{"Exit", ""},
}

const historyLimit = 50

// Options configures the menu shell.
type Options struct {
	// StartDir is where the file browser opens. Defaults to the working
	// directory.
	StartDir string
}

type Model struct {
	svc    amram.Service
	ctx    context.Context
	cancel context.CancelFunc

	state  state
	cursor int
	width  int
	height int

	url    textinput.Model
	picker filepicker.Model
	spin   spinner.Model
	bar    progress.Model

	info        *audio.VideoInfo
	pendingURL  string
	pendingPath string

	events  chan tea.Msg
	phase   string
	percent float64

	result  *amram.SeparationResult
	jobs    []models.Job
	mix     *stemMixer
	message string
	failed  bool
}

func New(ctx context.Context, svc amram.Service, opts Options) *Model {
	ti := textinput.New()
	ti.Placeholder = "https://www.youtube.com/watch?v=..."
	ti.CharLimit = 2048
	ti.Width = 60
	ti.Cursor.SetMode(cursor.CursorStatic)

	fp := filepicker.New()
	fp.AllowedTypes = audio.SupportedExtensions
	fp.CurrentDirectory = opts.StartDir
	if fp.CurrentDirectory == "" {
		if wd, err := os.Getwd(); err == nil {
			fp.CurrentDirectory = wd
		}
	}

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = focusStyle

	return &Model{
		svc:    svc,
		ctx:    ctx,
		url:    ti,
		picker: fp,
		spin:   sp,
		bar:    progress.New(progress.WithSolidFill(string(nord8)), progress.WithWidth(40)),
		width:  80,
		height: 24,
	}
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) setStatus(msg string, failed bool) {
	m.message = msg
	m.failed = failed
}

func (m *Model) toMenu() {
	m.state = stateMenu
	m.info = nil
	m.pendingURL = ""
	m.pendingPath = ""
	m.mix = nil
}

// stopJob cancels the running background job, if any.
func (m *Model) stopJob() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.bar.Width = min(60, max(20, msg.Width-20))
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(tea.WindowSizeMsg{Width: msg.Width, Height: m.pickerHeight()})
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.stopJob()
			return m, tea.Quit
		}
		return m.handleKey(msg)

	case spinner.TickMsg:
		if m.state != stateFetching {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case infoMsg:
		if m.state != stateFetching {
			return m, nil
		}
		if msg.err != nil {
			m.setStatus("Could not fetch video info: "+msg.err.Error(), true)
			m.toMenu()
			return m, nil
		}
		m.info = msg.info
		m.pendingURL = msg.url
		m.state = stateConfirmDownload
		return m, nil

	case progressMsg:
		m.phase = msg.phase
		m.percent = msg.percent
		return m, waitFor(m.events)

	case downloadedMsg:
		m.cancel = nil
		if msg.err != nil {
			m.setStatus(describe("Download", msg.err), true)
			m.toMenu()
			return m, nil
		}
		m.setStatus("Downloaded "+msg.info.Title, false)
		m.askSeparate(msg.path)
		return m, nil

	case separatedMsg:
		m.cancel = nil
		if msg.err != nil {
			m.setStatus(describe("Separation", msg.err), true)
			m.toMenu()
			return m, nil
		}
		m.result = msg.res
		m.state = stateResult
		if msg.res.Partial() {
			m.setStatus(fmt.Sprintf("Finished %s: %d region(s) are silent", msg.res.Status, len(msg.res.Gaps)), true)
		} else {
			m.setStatus(fmt.Sprintf("Separated into %d stems", len(msg.res.Stems)), false)
		}
		return m, nil

	case jobsMsg:
		if msg.err != nil {
			m.setStatus("Could not load history: "+msg.err.Error(), true)
			m.toMenu()
			return m, nil
		}
		m.jobs = msg.jobs
		m.cursor = min(m.cursor, max(0, len(m.jobs)-1))
		m.state = stateHistory
		return m, nil

	case deletedMsg:
		if msg.err != nil {
			m.setStatus("Delete failed: "+msg.err.Error(), true)
		} else {
			m.setStatus("Deleted "+msg.title, false)
		}
		return m, m.loadJobs()

	case mixedMsg:
		if msg.err != nil {
			m.setStatus("Mix failed: "+msg.err.Error(), true)
			return m, nil
		}
		text := "Custom mix saved to " + msg.path
		if len(msg.mix.Skipped) > 0 {
			text += " (skipped " + strings.Join(msg.mix.Skipped, ", ") + ")"
		}
		m.setStatus(text, false)
		m.toMenu()
		return m, nil
	}

	if m.state == statePicker {
		return m.updatePicker(msg)
	}
	return m, nil
}

func describe(op string, err error) string {
	if errors.Is(err, context.Canceled) {
		return op + " cancelled"
	}
	if errors.Is(err, amram.ErrBusy) {
		return op + " refused: another separation is running"
	}
	return op + " failed: " + err.Error()
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch m.state {
	case stateMenu:
		switch key {
		case "up", "k":
			m.cursor = (m.cursor + len(menuItems) - 1) % len(menuItems)
		case "down", "j", "tab":
			m.cursor = (m.cursor + 1) % len(menuItems)
		case "q", "esc":
			return m, tea.Quit
		case "enter":
			return m.choose(m.cursor)
		}
		return m, nil

	case stateURL:
		switch key {
		case "esc":
			m.url.Blur()
			m.toMenu()
			return m, nil
		case "enter":
			return m.submitURL()
		}
		var cmd tea.Cmd
		m.url, cmd = m.url.Update(msg)
		return m, cmd

	case stateFetching:
		if key == "esc" {
			m.toMenu()
		}
		return m, nil

	case stateConfirmDownload:
		switch key {
		case "y", "Y", "enter":
			return m, m.startDownload(m.pendingURL)
		case "n", "N", "esc":
			m.setStatus("Download cancelled", false)
			m.toMenu()
		}
		return m, nil

	case statePicker:
		if key == "esc" || key == "q" {
			m.toMenu()
			return m, nil
		}
		return m.updatePicker(msg)

	case stateConfirmSeparate:
		switch key {
		case "y", "Y", "enter":
			return m, m.startSeparation(m.pendingPath)
		case "n", "N", "esc":
			m.setStatus("Separation skipped", false)
			m.toMenu()
		}
		return m, nil

	case stateWorking:
		if key == "esc" {
			m.stopJob()
			m.phase = "Cancelling"
		}
		return m, nil

	case stateResult:
		switch key {
		case "m":
			if m.result != nil {
				m.openMixer(m.result.Job.Title, m.result.Stems)
			}
		case "enter", "esc", "q":
			m.toMenu()
		}
		return m, nil

	case stateHistory:
		return m.historyKey(key)

	case stateMixer:
		if key == "esc" {
			m.toMenu()
			return m, nil
		}
		if save := m.mix.handleKey(msg); save {
			return m, m.saveMix()
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) choose(item int) (tea.Model, tea.Cmd) {
	m.setStatus("", false)
	switch item {
	case menuDownload:
		m.url.SetValue("")
		m.url.Focus()
		m.state = stateURL
		return m, nil
	case menuLocal:
		m.state = statePicker
		cmd := m.picker.Init()
		var sized tea.Cmd
		m.picker, sized = m.picker.Update(tea.WindowSizeMsg{Width: m.width, Height: m.pickerHeight()})
		return m, tea.Batch(cmd, sized)
	case menuHistory:
		m.cursor = 0
		return m, m.loadJobs()
	default:
		return m, tea.Quit
	}
}

func (m *Model) pickerHeight() int {
	return max(5, m.height-8)
}

func (m *Model) submitURL() (tea.Model, tea.Cmd) {
	url := strings.TrimSpace(m.url.Value())
	if url == "" {
		m.setStatus("Enter a URL first", true)
		return m, nil
	}
	if !utils.IsYouTubeURL(url) {
		m.setStatus("That does not look like a YouTube URL", true)
		return m, nil
	}
	m.url.Blur()
	m.setStatus("", false)
	m.state = stateFetching
	svc, ctx := m.svc, m.ctx
	fetch := func() tea.Msg {
		info, err := svc.GetVideoInfo(ctx, url)
		return infoMsg{url: url, info: info, err: err}
	}
	return m, tea.Batch(m.spin.Tick, fetch)
}

func (m *Model) updatePicker(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	if ok, path := m.picker.DidSelectFile(msg); ok {
		m.setStatus("", false)
		m.askSeparate(path)
		return m, cmd
	}
	if ok, path := m.picker.DidSelectDisabledFile(msg); ok {
		m.setStatus(utils.BaseName(path)+" is not a supported audio file ("+strings.Join(audio.SupportedExtensions, " ")+")", true)
	}
	return m, cmd
}

func (m *Model) askSeparate(path string) {
	m.pendingPath = path
	m.state = stateConfirmSeparate
}

// startJob prepares the event channel and cancellable context for a
// background job.
func (m *Model) startJob(phase string) (context.Context, chan tea.Msg) {
	m.stopJob()
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.events = make(chan tea.Msg, 32)
	m.state = stateWorking
	m.phase = phase
	m.percent = 0
	return ctx, m.events
}

func (m *Model) startDownload(url string) tea.Cmd {
	ctx, ch := m.startJob("Downloading")
	svc := m.svc
	go func() {
		path, info, err := svc.DownloadAudio(ctx, url, func(p float64) {
			offer(ch, progressMsg{phase: "Downloading", percent: p})
		})
		ch <- downloadedMsg{path: path, info: info, err: err}
	}()
	return waitFor(ch)
}

func (m *Model) startSeparation(path string) tea.Cmd {
	ctx, ch := m.startJob("Separating")
	svc := m.svc
	sink := separation.ProgressFunc(func(p float64) {
		phase := "Separating"
		if p >= separation.ExportBand.Lo {
			phase = "Writing stems"
		}
		offer(ch, progressMsg{phase: phase, percent: p})
	})
	go func() {
		res, err := svc.SeparateTracks(ctx, path, sink)
		ch <- separatedMsg{res: res, err: err}
	}()
	return waitFor(ch)
}

func (m *Model) loadJobs() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		jobs, err := svc.ListJobs(historyLimit)
		return jobsMsg{jobs: jobs, err: err}
	}
}

func (m *Model) historyKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.jobs)-1 {
			m.cursor++
		}
	case "esc", "q":
		m.cursor = menuHistory
		m.toMenu()
	case "enter", "m":
		if len(m.jobs) == 0 {
			return m, nil
		}
		job := m.jobs[m.cursor]
		if len(job.Stems) == 0 {
			m.setStatus(job.Title+" has no stems to mix", true)
			return m, nil
		}
		m.openMixer(job.Title, job.Stems)
	case "d", "delete":
		if len(m.jobs) == 0 {
			return m, nil
		}
		job := m.jobs[m.cursor]
		svc := m.svc
		return m, func() tea.Msg {
			return deletedMsg{title: job.Title, err: svc.DeleteJob(job.ID, true)}
		}
	}
	return m, nil
}

func (m *Model) openMixer(title string, stems []models.Stem) {
	m.mix = newStemMixer(title, stems)
	m.state = stateMixer
}

func (m *Model) saveMix() tea.Cmd {
	tracks, err := m.mix.tracks()
	if err != nil {
		m.setStatus(err.Error(), true)
		return nil
	}
	svc, ctx := m.svc, m.ctx
	out := svc.CustomMixPath(m.mix.title)
	m.setStatus("Mixing...", false)
	return func() tea.Msg {
		mix, err := svc.MixTracks(ctx, tracks, out)
		return mixedMsg{path: out, mix: mix, err: err}
	}
}

// Run shows the menu shell until the user exits.
func Run(ctx context.Context, svc amram.Service, opts Options) error {
	m := New(ctx, svc, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	m.stopJob()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
