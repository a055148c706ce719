package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/AmramAI/pkg/amram"
	"github.com/himanishpuri/AmramAI/pkg/amram/audio"
	"github.com/himanishpuri/AmramAI/pkg/amram/mixer"
	"github.com/himanishpuri/AmramAI/pkg/amram/separation"
	"github.com/himanishpuri/AmramAI/pkg/models"
)

var stems = []models.Stem{
	{Name: "drums", Path: "/p/song/drums.wav"},
	{Name: "bass", Path: "/p/song/bass.wav"},
	{Name: "vocals", Path: "/p/song/vocals.wav"},
}

type fakeService struct {
	mu       sync.Mutex
	jobs     []models.Job
	deleted  []string
	mixed    []models.MixTrack
	mixOut   string
	sepErr   error
	reports  []float64
	infoErr  error
	download string
}

func (f *fakeService) GetVideoInfo(_ context.Context, url string) (*audio.VideoInfo, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return &audio.VideoInfo{Title: "Remote Song", Duration: 125}, nil
}

func (f *fakeService) DownloadAudio(_ context.Context, url string, progress func(float64)) (string, *audio.VideoInfo, error) {
	progress(50)
	progress(100)
	return f.download, &audio.VideoInfo{Title: "Remote Song"}, nil
}

func (f *fakeService) SeparateTracks(ctx context.Context, path string, sink separation.ProgressSink) (*amram.SeparationResult, error) {
	for _, p := range f.reports {
		sink.Report(p)
	}
	if f.sepErr != nil {
		return nil, f.sepErr
	}
	return &amram.SeparationResult{
		Job:       &models.Job{ID: "job-1", Title: "song", Source: path},
		OutputDir: "/p/song",
		Stems:     stems,
		Status:    separation.StatusComplete,
	}, nil
}

func (f *fakeService) SeparateURL(ctx context.Context, url string, sink separation.ProgressSink) (*amram.SeparationResult, error) {
	return nil, errors.New("not used")
}

func (f *fakeService) MixTracks(_ context.Context, tracks []models.MixTrack, out string) (*mixer.Mix, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mixed = tracks
	f.mixOut = out
	return &mixer.Mix{Used: []string{"bass"}}, nil
}

func (f *fakeService) CustomMixPath(title string) string { return "/p/" + title + "_custom_mix.wav" }

func (f *fakeService) ListJobs(int) ([]models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Job(nil), f.jobs...), nil
}

func (f *fakeService) GetJob(id string) (*models.Job, error) { return nil, amram.ErrJobNotFound }

func (f *fakeService) DeleteJob(id string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	kept := f.jobs[:0]
	for _, j := range f.jobs {
		if j.ID != id {
			kept = append(kept, j)
		}
	}
	f.jobs = kept
	return nil
}

func (f *fakeService) Close() error { return nil }

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends keys and runs the resulting commands.
func press(t *testing.T, m *Model, keys ...string) {
	t.Helper()
	for _, k := range keys {
		_, cmd := m.Update(key(k))
		drain(t, m, cmd)
	}
}

// drain runs cmd and feeds our own messages back into the model until no
// work is left. Messages from bubbles components are dropped.
func drain(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		require.Less(t, steps, 500, "command loop did not settle")
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case infoMsg, progressMsg, downloadedMsg, separatedMsg, jobsMsg, deletedMsg, mixedMsg:
			_, next := m.Update(msg)
			queue = append(queue, next)
		}
	}
}

func newModel(svc *fakeService) *Model {
	return New(context.Background(), svc, Options{StartDir: "/"})
}

func TestMenuNavigation(t *testing.T) {
	m := newModel(&fakeService{})
	assert.Equal(t, stateMenu, m.state)

	press(t, m, "down", "down")
	assert.Equal(t, menuHistory, m.cursor)
	press(t, m, "up", "up", "up")
	assert.Equal(t, menuExit, m.cursor)
	press(t, m, "down")
	assert.Equal(t, menuDownload, m.cursor)
	assert.Contains(t, m.View(), "> Download from YouTube")

	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestDownloadFlow(t *testing.T) {
	svc := &fakeService{download: "/d/Remote Song.wav", reports: []float64{20, 80, 100}}
	m := newModel(svc)

	press(t, m, "enter")
	require.Equal(t, stateURL, m.state)

	press(t, m, "not a url", "enter")
	assert.Equal(t, stateURL, m.state)
	assert.True(t, m.failed)

	m.url.SetValue("")
	press(t, m, "https://youtu.be/dQw4w9WgXcQ", "enter")
	require.Equal(t, stateConfirmDownload, m.state)
	assert.Contains(t, m.View(), "Remote Song")
	assert.Contains(t, m.View(), "2:05")

	press(t, m, "y")
	require.Equal(t, stateConfirmSeparate, m.state)
	assert.Equal(t, "/d/Remote Song.wav", m.pendingPath)

	press(t, m, "y")
	require.Equal(t, stateResult, m.state)
	assert.False(t, m.failed)
	assert.Contains(t, m.View(), "vocals")
}

func TestDeclineDownload(t *testing.T) {
	m := newModel(&fakeService{})
	press(t, m, "enter", "https://youtu.be/dQw4w9WgXcQ", "enter", "n")
	assert.Equal(t, stateMenu, m.state)
	assert.Equal(t, "Download cancelled", m.message)
}

func TestInfoFailureReturnsToMenu(t *testing.T) {
	m := newModel(&fakeService{infoErr: errors.New("private video")})
	press(t, m, "enter", "https://youtu.be/dQw4w9WgXcQ", "enter")
	assert.Equal(t, stateMenu, m.state)
	assert.True(t, m.failed)
	assert.Contains(t, m.message, "private video")
}

func TestSeparationFailure(t *testing.T) {
	m := newModel(&fakeService{sepErr: amram.ErrBusy})
	m.askSeparate("/music/a.mp3")
	press(t, m, "y")
	assert.Equal(t, stateMenu, m.state)
	assert.Contains(t, m.message, "another separation is running")
}

func TestSeparationProgress(t *testing.T) {
	m := newModel(&fakeService{})
	m.askSeparate("/music/a.mp3")
	_, cmd := m.Update(key("y"))
	require.Equal(t, stateWorking, m.state)

	m.Update(progressMsg{phase: "Writing stems", percent: 90})
	assert.Equal(t, 90.0, m.percent)
	assert.Contains(t, m.View(), "Writing stems")
	drain(t, m, cmd)
	assert.Equal(t, stateResult, m.state)
}

func TestHistoryDeleteAndMix(t *testing.T) {
	svc := &fakeService{jobs: []models.Job{
		{ID: "a", Title: "First", Status: models.JobComplete, Stems: stems},
		{ID: "b", Title: "Second", Status: models.JobFailed},
	}}
	m := newModel(svc)

	press(t, m, "down", "down", "enter")
	require.Equal(t, stateHistory, m.state)
	require.Len(t, m.jobs, 2)
	assert.Contains(t, m.View(), "First")

	press(t, m, "down", "enter")
	assert.Equal(t, stateHistory, m.state)
	assert.Contains(t, m.message, "no stems")

	press(t, m, "d")
	assert.Equal(t, []string{"b"}, svc.deleted)
	require.Len(t, m.jobs, 1)
	assert.Equal(t, 0, m.cursor)

	press(t, m, "enter")
	require.Equal(t, stateMixer, m.state)
	assert.Equal(t, "First", m.mix.title)
}

func TestMixerLevels(t *testing.T) {
	svc := &fakeService{}
	m := newModel(svc)
	m.openMixer("song", stems)

	// drums: clear the default and type an invalid level
	press(t, m, "backspace", "backspace", "backspace", "1.5", "x")
	assert.Equal(t, "1.5", m.mix.rows[0].level.Value())
	press(t, m, "down", "m", "s", "down", "m")
	assert.True(t, m.mix.rows[1].solo)
	assert.False(t, m.mix.rows[1].mute)
	assert.True(t, m.mix.rows[2].mute)

	press(t, m, "down")
	require.True(t, m.mix.onSave())
	press(t, m, "enter")
	assert.Equal(t, stateMixer, m.state)
	assert.True(t, m.failed)
	assert.Contains(t, m.message, "drums")
	assert.Nil(t, svc.mixed)

	m.mix.setFocus(0)
	press(t, m, "backspace", "backspace", "backspace", "0.25")
	assert.Contains(t, m.View(), "> drums")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	drain(t, m, cmd)

	require.Len(t, svc.mixed, 3)
	assert.Equal(t, 0.25, svc.mixed[0].Level)
	assert.True(t, svc.mixed[1].Solo)
	assert.True(t, svc.mixed[2].Mute)
	assert.Equal(t, "/p/song_custom_mix.wav", svc.mixOut)
	assert.Equal(t, stateMenu, m.state)
	assert.True(t, strings.HasPrefix(m.message, "Custom mix saved"))
}

func TestMuteSoloExclusive(t *testing.T) {
	sm := newStemMixer("x", stems)
	sm.toggleSolo(0)
	sm.toggleMute(0)
	assert.True(t, sm.rows[0].mute)
	assert.False(t, sm.rows[0].solo)
	sm.toggleSolo(0)
	assert.False(t, sm.rows[0].mute)
	assert.True(t, sm.rows[0].solo)
}

func TestCtrlCQuits(t *testing.T) {
	m := newModel(&fakeService{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
