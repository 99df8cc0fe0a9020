// Package tui is the terminal front end of the blog workflow. It renders the
// same three steps as the web pages: the form, the refinement chat and the
// generated content.
package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"blog_generator/blog"
	"blog_generator/publisher"
	"blog_generator/workflow"
)

// Workflow is the controller surface the terminal drives.
type Workflow interface {
	Snapshot() workflow.Snapshot
	Generate(ctx context.Context, req blog.GenerationRequest) error
	SubmitFeedback(ctx context.Context, text string) error
	RegenerateImage(ctx context.Context, feedback string) error
	NewBlog(ctx context.Context) error
}

// field identifies one row of the form.
type field int

const (
	fieldTopic field = iota
	fieldTone
	fieldToneCustom
	fieldAudience
	fieldAudienceCustom
	fieldLength
	fieldSections
	fieldKeywords
	fieldReferenceURL
	fieldCustomURL
	fieldCount
)

// actionDoneMsg reports that a controller call returned.
type actionDoneMsg struct {
	action string
	err    error
}

// exportDoneMsg reports where the draft was written.
type exportDoneMsg struct {
	path string
	err  error
}

// App is the bubbletea model.
type App struct {
	ctx    context.Context
	wf     Workflow
	logger *zap.Logger

	snap      workflow.Snapshot
	busy      bool
	flash     string
	notice    string
	exportDir string
	width     int
	height    int
	spinner   spinner.Model

	// form
	focus      field
	inputs     [fieldCount]textinput.Model
	toneIdx    int
	audIdx     int
	refURLs    blog.URLList
	customURLs blog.URLList
	formErrs   map[string]string

	chat    textarea.Model
	content viewport.Model
}

func New(ctx context.Context, wf Workflow, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		ctx:       ctx,
		wf:        wf,
		logger:    logger.Named("tui"),
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		content:   viewport.New(60, 20),
		exportDir: ".",
	}
	placeholders := map[field]string{
		fieldTopic:          "What should the post be about?",
		fieldToneCustom:     "Describe the tone",
		fieldAudienceCustom: "Describe the audience",
		fieldKeywords:       "comma separated",
		fieldReferenceURL:   "https://... then Enter",
		fieldCustomURL:      "https://... then Enter",
	}
	for f := range fieldCount {
		ti := textinput.New()
		ti.Placeholder = placeholders[f]
		ti.CharLimit = 500
		a.inputs[f] = ti
	}
	a.resetForm()

	a.chat = textarea.New()
	a.chat.Placeholder = "Ask for changes, or /image <what to change>"
	a.chat.ShowLineNumbers = false
	a.chat.SetHeight(4)
	// Enter submits; alt+enter is handled by the app.
	a.chat.KeyMap.InsertNewline.SetEnabled(false)

	a.refresh()
	return a
}

func (a *App) resetForm() {
	for f := range fieldCount {
		a.inputs[f].SetValue("")
	}
	a.inputs[fieldLength].SetValue(strconv.Itoa(blog.DefaultLength))
	a.inputs[fieldSections].SetValue(strconv.Itoa(blog.DefaultOutlines))
	a.toneIdx, a.audIdx = 0, 0
	a.refURLs, a.customURLs = blog.URLList{}, blog.URLList{}
	a.formErrs = nil
	a.setFocus(fieldTopic)
}

func (a *App) Init() tea.Cmd {
	return textinput.Blink
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)
		return a, nil

	case actionDoneMsg:
		a.busy = false
		a.refresh()
		if msg.err != nil {
			a.logger.Warn("action refused", zap.String("action", msg.action), zap.Error(msg.err))
			a.flash = refusalMessage(msg.err)
		}
		return a, nil

	case exportDoneMsg:
		if msg.err != nil {
			a.flash = "Export failed: " + msg.err.Error()
		} else {
			a.notice = "Exported to " + msg.path
		}
		return a, nil

	case spinner.TickMsg:
		if !a.loading() {
			return a, nil
		}
		// poll so status lines set at dispatch show up while waiting
		a.refresh()
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		case "ctrl+n":
			a.resetForm()
			a.chat.Reset()
			a.flash = ""
			return a, a.run("new", a.wf.NewBlog)
		case "ctrl+e":
			return a, a.export()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			a.content, cmd = a.content.Update(msg)
			return a, cmd
		}
		if a.snap.Stage == blog.StageForm {
			return a, a.updateForm(msg)
		}
		if a.snap.Stage != blog.StagePending {
			return a, a.updateChat(msg)
		}
	}
	return a, nil
}

func (a *App) updateForm(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab", "down":
		a.moveFocus(1)
		return nil
	case "shift+tab", "up":
		a.moveFocus(-1)
		return nil
	case "left", "right":
		step := 1
		if msg.String() == "left" {
			step = -1
		}
		switch a.focus {
		case fieldTone:
			a.toneIdx = cycle(a.toneIdx, step, len(blog.Tones)+1)
			return nil
		case fieldAudience:
			a.audIdx = cycle(a.audIdx, step, len(blog.Audiences)+1)
			return nil
		}
	case "ctrl+x":
		switch a.focus {
		case fieldReferenceURL:
			a.refURLs.Remove(a.refURLs.Len() - 1)
		case fieldCustomURL:
			a.customURLs.Remove(a.customURLs.Len() - 1)
		}
		return nil
	case "enter":
		if a.addURL() {
			return nil
		}
		return a.submitForm()
	}

	if a.isTextField(a.focus) {
		var cmd tea.Cmd
		a.inputs[a.focus], cmd = a.inputs[a.focus].Update(msg)
		return cmd
	}
	return nil
}

// addURL moves a typed URL into its list. It reports whether Enter was consumed.
func (a *App) addURL() bool {
	var list *blog.URLList
	key := ""
	switch a.focus {
	case fieldReferenceURL:
		list, key = &a.refURLs, "reference_urls"
	case fieldCustomURL:
		list, key = &a.customURLs, "custom_urls"
	default:
		return false
	}
	url := strings.TrimSpace(a.inputs[a.focus].Value())
	if url == "" {
		return false
	}
	if err := list.Add(url); err != nil {
		a.setFormErr(key, err.Error())
		return true
	}
	delete(a.formErrs, key)
	a.inputs[a.focus].SetValue("")
	return true
}

func (a *App) submitForm() tea.Cmd {
	if a.loading() {
		a.flash = refusalMessage(workflow.ErrBusy)
		return nil
	}
	req := a.request()
	if err := req.Validate(); err != nil {
		a.formErrs = nil
		var ve *blog.ValidationError
		if errors.As(err, &ve) {
			for _, f := range ve.Fields {
				a.setFormErr(f.Field, f.Message)
			}
		}
		return nil
	}
	a.formErrs = nil
	a.snap.Stage = blog.StagePending
	return a.run("generate", func(ctx context.Context) error {
		return a.wf.Generate(ctx, req)
	})
}

func (a *App) request() blog.GenerationRequest {
	length, _ := strconv.Atoi(strings.TrimSpace(a.inputs[fieldLength].Value()))
	sections, _ := strconv.Atoi(strings.TrimSpace(a.inputs[fieldSections].Value()))
	return blog.GenerationRequest{
		Topic:          strings.TrimSpace(a.inputs[fieldTopic].Value()),
		Tone:           choice(blog.Tones, a.toneIdx, a.inputs[fieldToneCustom].Value()),
		TargetAudience: choice(blog.Audiences, a.audIdx, a.inputs[fieldAudienceCustom].Value()),
		Length:         length,
		NumOutlines:    sections,
		Keywords:       strings.TrimSpace(a.inputs[fieldKeywords].Value()),
		ReferenceURLs:  a.refURLs.Items(),
		CustomURLs:     a.customURLs.Items(),
	}
}

func (a *App) updateChat(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "alt+enter":
		a.chat.InsertString("\n")
		return nil
	case "enter":
		text := a.chat.Value()
		if strings.TrimSpace(text) == "" {
			return nil
		}
		if a.loading() {
			a.flash = refusalMessage(workflow.ErrBusy)
			return nil
		}
		a.chat.Reset()
		a.flash = ""
		if feedback, ok := workflow.ParseImageCommand(text); ok {
			return a.run("image", func(ctx context.Context) error {
				return a.wf.RegenerateImage(ctx, feedback)
			})
		}
		return a.run("feedback", func(ctx context.Context) error {
			return a.wf.SubmitFeedback(ctx, text)
		})
	}
	if !a.chat.Focused() {
		a.chat.Focus()
	}
	var cmd tea.Cmd
	a.chat, cmd = a.chat.Update(msg)
	return cmd
}

// export writes the current draft as Markdown into exportDir.
func (a *App) export() tea.Cmd {
	state := a.snap.State
	if state.DraftArticle == nil {
		a.flash = refusalMessage(workflow.ErrNoDraft)
		return nil
	}
	dir := a.exportDir
	return func() tea.Msg {
		body, err := publisher.Export(state, publisher.FormatMarkdown, publisher.Params{})
		if err != nil {
			return exportDoneMsg{err: err}
		}
		path := filepath.Join(dir, publisher.Filename(state.DraftArticle.Title, publisher.FormatMarkdown))
		if err := os.WriteFile(path, body, 0o644); err != nil {
			return exportDoneMsg{err: err}
		}
		return exportDoneMsg{path: path}
	}
}

// run calls the controller off the update loop and reports back with
// actionDoneMsg.
func (a *App) run(action string, fn func(ctx context.Context) error) tea.Cmd {
	a.busy = true
	ctx := a.ctx
	call := func() tea.Msg {
		return actionDoneMsg{action: action, err: fn(ctx)}
	}
	return tea.Batch(call, a.spinner.Tick)
}

func (a *App) loading() bool {
	return a.busy || a.snap.Loading
}

func (a *App) refresh() {
	a.snap = a.wf.Snapshot()
	a.content.SetContent(renderContent(a.snap.State, a.content.Width))
	if a.snap.Stage == blog.StageOutlines || a.snap.Stage == blog.StageDraft {
		a.chat.Focus()
	}
}

func (a *App) resize(w, h int) {
	a.width, a.height = w, h
	left := max(30, w*2/5)
	right := max(20, w-left-6)
	for f := range fieldCount {
		a.inputs[f].Width = max(10, left-24)
	}
	a.chat.SetWidth(max(10, left-4))
	a.content.Width = right
	a.content.Height = max(5, h-8)
	a.content.SetContent(renderContent(a.snap.State, right))
}

func (a *App) isTextField(f field) bool {
	return f != fieldTone && f != fieldAudience
}

func (a *App) visible(f field) bool {
	switch f {
	case fieldToneCustom:
		return a.toneIdx == len(blog.Tones)
	case fieldAudienceCustom:
		return a.audIdx == len(blog.Audiences)
	}
	return true
}

func (a *App) moveFocus(step int) {
	f := a.focus
	for {
		f = field(cycle(int(f), step, int(fieldCount)))
		if a.visible(f) {
			break
		}
	}
	a.setFocus(f)
}

func (a *App) setFocus(f field) {
	a.focus = f
	for i := range fieldCount {
		if i == f && a.isTextField(i) {
			a.inputs[i].Focus()
		} else {
			a.inputs[i].Blur()
		}
	}
}

func (a *App) setFormErr(key, msg string) {
	if a.formErrs == nil {
		a.formErrs = make(map[string]string)
	}
	a.formErrs[key] = msg
}

func choice(presets []string, idx int, custom string) blog.Choice {
	if idx == len(presets) {
		return blog.Custom(custom)
	}
	return blog.Preset(presets[idx])
}

func cycle(i, step, n int) int {
	return ((i+step)%n + n) % n
}

func refusalMessage(err error) string {
	switch {
	case errors.Is(err, workflow.ErrBusy):
		return "A request is already in progress. Please wait."
	case errors.Is(err, workflow.ErrEmptyFeedback):
		return "Please enter a message first."
	case errors.Is(err, workflow.ErrNoDraft):
		return "There is no draft yet."
	case errors.Is(err, workflow.ErrWrongStage):
		return "That action is not available right now."
	default:
		return "Something went wrong: " + err.Error()
	}
}
