package tui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blog_generator/blog"
	"blog_generator/workflow"
)

type fakeWorkflow struct {
	mu       sync.Mutex
	snap     workflow.Snapshot
	err      error
	requests []blog.GenerationRequest
	feedback []string
	images   []string
	resets   int
}

func newFake(stage blog.Stage) *fakeWorkflow {
	state := blog.NewWorkflowState()
	state.Stage = stage
	return &fakeWorkflow{snap: workflow.Snapshot{SessionID: "s", State: state, Stage: stage}}
}

func (f *fakeWorkflow) Snapshot() workflow.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeWorkflow) Generate(_ context.Context, req blog.GenerationRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err == nil {
		f.snap.Stage = blog.StageOutlines
		f.snap.State.Stage = blog.StageOutlines
		f.snap.State.Outlines = &blog.Outlines{Title: req.Topic, Outlines: []blog.OutlineSection{{Section: "Intro", Description: "Opening"}}}
	}
	return f.err
}

func (f *fakeWorkflow) SubmitFeedback(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedback = append(f.feedback, text)
	return f.err
}

func (f *fakeWorkflow) RegenerateImage(_ context.Context, feedback string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images = append(f.images, feedback)
	return f.err
}

func (f *fakeWorkflow) NewBlog(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.snap.Stage = blog.StageForm
	f.snap.State = blog.NewWorkflowState()
	return f.err
}

// drain runs cmd and feeds controller completions back into the model.
// Spinner ticks are dropped so the loop terminates.
func drain(t *testing.T, a *App, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			drain(t, a, c)
		}
	case actionDoneMsg:
		_, next := a.Update(msg)
		drain(t, a, next)
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "alt+enter":
		return tea.KeyMsg{Type: tea.KeyEnter, Alt: true}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+n":
		return tea.KeyMsg{Type: tea.KeyCtrlN}
	case "ctrl+e":
		return tea.KeyMsg{Type: tea.KeyCtrlE}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(a *App, s string) tea.Cmd {
	_, cmd := a.Update(key(s))
	return cmd
}

func TestPresetCyclingIncludesCustom(t *testing.T) {
	a := New(context.Background(), newFake(blog.StageForm), nil)
	a.setFocus(fieldTone)

	press(a, "left")
	assert.Equal(t, len(blog.Tones), a.toneIdx, "left from the first preset wraps to Custom")
	assert.True(t, a.visible(fieldToneCustom))
	press(a, "right")
	assert.Equal(t, 0, a.toneIdx)
	press(a, "right")
	assert.Equal(t, blog.Tones[1], a.request().Tone.Value())

	// custom inputs are skipped while hidden
	a.setFocus(fieldTone)
	press(a, "tab")
	assert.Equal(t, fieldAudience, a.focus)
}

func TestInvalidFormShowsErrorsWithoutDispatch(t *testing.T) {
	wf := newFake(blog.StageForm)
	a := New(context.Background(), wf, nil)
	a.inputs[fieldLength].SetValue("50")

	cmd := press(a, "enter")
	assert.Nil(t, cmd)
	assert.Equal(t, "topic is required", a.formErrs["topic"])
	assert.Contains(t, a.formErrs["length"], "between")
	assert.Empty(t, wf.requests)
	assert.Contains(t, a.View(), "topic is required")
}

func TestFormCollectsURLsAndSubmits(t *testing.T) {
	wf := newFake(blog.StageForm)
	a := New(context.Background(), wf, nil)
	a.inputs[fieldTopic].SetValue("Future of AI")
	a.audIdx = len(blog.Audiences)
	a.inputs[fieldAudienceCustom].SetValue("Teachers")

	a.setFocus(fieldReferenceURL)
	for i := range blog.MaxURLs + 1 {
		a.inputs[fieldReferenceURL].SetValue("https://example.com/" + string(rune('a'+i)))
		assert.Nil(t, press(a, "enter"))
	}
	assert.Equal(t, blog.MaxURLs, a.refURLs.Len())
	assert.NotEmpty(t, a.formErrs["reference_urls"])

	a.inputs[fieldReferenceURL].SetValue("")
	cmd := press(a, "enter")
	require.NotNil(t, cmd)
	assert.Equal(t, blog.StagePending, a.snap.Stage)
	assert.True(t, a.loading())
	drain(t, a, cmd)

	require.Len(t, wf.requests, 1)
	req := wf.requests[0]
	assert.Equal(t, "Future of AI", req.Topic)
	assert.Equal(t, "Teachers", req.TargetAudience.Value())
	assert.Len(t, req.ReferenceURLs, blog.MaxURLs)
	assert.False(t, a.loading())
	assert.Equal(t, blog.StageOutlines, a.snap.Stage)
	assert.Contains(t, a.content.View(), "Future of AI")
}

func TestChatEnterSubmitsAndAltEnterInsertsNewline(t *testing.T) {
	wf := newFake(blog.StageOutlines)
	a := New(context.Background(), wf, nil)

	a.chat.SetValue("first line")
	assert.Nil(t, press(a, "alt+enter"))
	assert.Equal(t, "first line\n", a.chat.Value())
	assert.Empty(t, wf.feedback)

	a.chat.SetValue("make it shorter")
	drain(t, a, press(a, "enter"))
	assert.Equal(t, []string{"make it shorter"}, wf.feedback)
	assert.Empty(t, a.chat.Value())

	a.chat.SetValue("/image warmer colors")
	drain(t, a, press(a, "enter"))
	assert.Equal(t, []string{"warmer colors"}, wf.images)
}

func TestSubmissionsBlockedWhileLoading(t *testing.T) {
	wf := newFake(blog.StageDraft)
	wf.snap.Loading = true
	a := New(context.Background(), wf, nil)

	a.chat.SetValue("again")
	assert.Nil(t, press(a, "enter"))
	assert.Empty(t, wf.feedback)
	assert.Contains(t, a.flash, "already in progress")
	assert.Equal(t, "again", a.chat.Value(), "input is kept for a retry")
}

func TestRefusalSurfacesAsFlash(t *testing.T) {
	wf := newFake(blog.StageOutlines)
	wf.err = workflow.ErrWrongStage
	a := New(context.Background(), wf, nil)

	a.chat.SetValue("hello")
	drain(t, a, press(a, "enter"))
	assert.Equal(t, "That action is not available right now.", a.flash)
}

func TestCtrlNStartsNewBlog(t *testing.T) {
	wf := newFake(blog.StageDraft)
	wf.snap.State.DraftArticle = &blog.DraftArticle{Title: "Old", Content: "body"}
	a := New(context.Background(), wf, nil)
	assert.Contains(t, a.content.View(), "Old")

	drain(t, a, press(a, "ctrl+n"))
	assert.Equal(t, 1, wf.resets)
	assert.Equal(t, blog.StageForm, a.snap.Stage)
	assert.Equal(t, fieldTopic, a.focus)
	assert.False(t, strings.Contains(a.content.View(), "Old"))
}

func TestRenderContentDraft(t *testing.T) {
	s := blog.NewWorkflowState()
	s.DraftArticle = &blog.DraftArticle{
		Title:     "Future of AI",
		Content:   "# Future of AI\n\nBody.",
		Citations: []blog.Citation{{Title: "Source", URL: "https://src.example", Relevance: "high"}},
	}
	s.GeneratedImages = []string{"abc"}
	s.ImagePrompt = "a classroom"
	out := renderContent(s, 80)
	assert.Contains(t, out, "1 image(s) generated")
	assert.Contains(t, out, "a classroom")
	assert.Contains(t, out, "https://src.example")
}

func TestCtrlEExportsDraft(t *testing.T) {
	wf := newFake(blog.StageOutlines)
	a := New(context.Background(), wf, nil)
	a.exportDir = t.TempDir()

	assert.Nil(t, press(a, "ctrl+e"))
	assert.Equal(t, "There is no draft yet.", a.flash)

	wf.snap.Stage = blog.StageDraft
	wf.snap.State.DraftArticle = &blog.DraftArticle{Title: "Future of AI", Content: "# Future of AI\n\nBody."}
	a.refresh()
	cmd := press(a, "ctrl+e")
	require.NotNil(t, cmd)
	a.Update(cmd())

	path := filepath.Join(a.exportDir, "future-of-ai.md")
	assert.Equal(t, "Exported to "+path, a.notice)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Body.")
}
