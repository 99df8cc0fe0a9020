package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blog_generator/blog"
	"blog_generator/genclient"
	"blog_generator/session"
)

type fakeGenerator struct {
	mu       sync.Mutex
	outlines genclient.Outlines
	feedback genclient.Feedback
	images   genclient.Images
	err      error
	calls    []string
	// gate, when set, blocks each call until a value is received.
	gate chan struct{}
}

func (f *fakeGenerator) wait(op, id string) error {
	f.mu.Lock()
	f.calls = append(f.calls, op+":"+id)
	gate, err := f.gate, f.err
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeGenerator) StartGeneration(_ context.Context, id string, _ blog.GenerationRequest) (genclient.Outlines, error) {
	if err := f.wait("generate", id); err != nil {
		return genclient.Outlines{}, err
	}
	return f.outlines, nil
}

func (f *fakeGenerator) SubmitFeedback(_ context.Context, id, _ string) (genclient.Feedback, error) {
	if err := f.wait("feedback", id); err != nil {
		return genclient.Feedback{}, err
	}
	return f.feedback, nil
}

func (f *fakeGenerator) RegenerateImage(_ context.Context, id, _ string) (genclient.Images, error) {
	if err := f.wait("image", id); err != nil {
		return genclient.Images{}, err
	}
	return f.images, nil
}

func fixedClock() time.Time {
	return time.Date(2026, 10, 15, 14, 7, 0, 0, time.UTC)
}

func newLoaded(t *testing.T, gen Generator) (*Controller, *session.Store) {
	t.Helper()
	store := session.NewStore(session.NewMemoryKV(), nil)
	c := New(store, gen, WithClock(fixedClock))
	require.NoError(t, c.Load(context.Background()))
	return c, store
}

func fiveSections() genclient.Outlines {
	sections := make([]blog.OutlineSection, 5)
	for i := range sections {
		sections[i] = blog.OutlineSection{Section: "S", Description: "d"}
	}
	return genclient.Outlines{
		Outlines:         blog.Outlines{Title: "Future of AI", Outlines: sections},
		FollowUpQuestion: "Shall I write it?",
	}
}

func request() blog.GenerationRequest {
	return blog.GenerationRequest{
		Topic:          "Future of AI",
		Tone:           blog.Preset("Professional"),
		TargetAudience: blog.Preset("Students"),
		Length:         500,
		NumOutlines:    5,
	}
}

func draftFeedback() genclient.Feedback {
	return genclient.Feedback{
		Draft: &blog.DraftArticle{
			Title:   "Future of AI",
			Content: "# Future of AI\n\nSome **bold** text.",
			Citations: []blog.Citation{
				{Title: "a", URL: "https://a"}, {Title: "b", URL: "https://b"}, {Title: "c", URL: "https://c"},
			},
		},
		GeneratedImages:  []string{"img-1"},
		ImagePrompt:      "robot",
		FollowUpQuestion: "Any changes?",
	}
}

func TestLoadStartsFreshSession(t *testing.T) {
	c, store := newLoaded(t, &fakeGenerator{})
	snap := c.Snapshot()
	assert.NotEmpty(t, snap.SessionID)
	assert.Equal(t, blog.StageForm, snap.Stage)
	assert.Equal(t, 1, snap.State.CurrentStep)
	assert.Empty(t, snap.State.ChatMessages)

	_, ok := store.LoadState(context.Background(), snap.SessionID)
	assert.False(t, ok, "loading must not write the default state back")
}

func TestGenerateMovesToOutlines(t *testing.T) {
	c, store := newLoaded(t, &fakeGenerator{outlines: fiveSections()})

	require.NoError(t, c.Generate(context.Background(), request()))

	snap := c.Snapshot()
	assert.Equal(t, blog.StageOutlines, snap.Stage)
	assert.Equal(t, 2, snap.State.CurrentStep)
	assert.False(t, snap.Loading)
	assert.Equal(t, statusOutlinesGenerated, snap.Status)
	require.Len(t, snap.State.ChatMessages, 1)
	msg := snap.State.ChatMessages[0]
	assert.Equal(t, blog.RoleAI, msg.Role)
	assert.Contains(t, msg.Content, "5 main sections")
	assert.Contains(t, msg.Content, "professional tone")
	assert.Contains(t, msg.Content, "Shall I write it?")
	assert.Equal(t, "2:07 PM", msg.Time)

	saved, ok := store.LoadState(context.Background(), snap.SessionID)
	require.True(t, ok)
	assert.Equal(t, snap.State, saved)
}

func TestGenerateFailureStaysOnForm(t *testing.T) {
	c, _ := newLoaded(t, &fakeGenerator{err: genclient.ErrGenerationFailed})

	require.NoError(t, c.Generate(context.Background(), request()))

	snap := c.Snapshot()
	assert.Equal(t, blog.StageForm, snap.Stage)
	assert.Equal(t, 1, snap.State.CurrentStep)
	assert.False(t, snap.Loading)
	assert.Equal(t, statusOutlinesFailed, snap.Status)
	assert.Empty(t, snap.State.ChatMessages)
}

func TestGenerateReportsPendingWhileInFlight(t *testing.T) {
	gen := &fakeGenerator{outlines: fiveSections(), gate: make(chan struct{})}
	c, _ := newLoaded(t, gen)

	done := make(chan error, 1)
	go func() { done <- c.Generate(context.Background(), request()) }()

	require.Eventually(t, func() bool { return c.Snapshot().Loading }, time.Second, time.Millisecond)
	snap := c.Snapshot()
	assert.Equal(t, blog.StagePending, snap.Stage)
	assert.Equal(t, blog.StageForm, snap.State.Stage)
	assert.Equal(t, statusGeneratingOutlines, snap.Status)

	assert.ErrorIs(t, c.Generate(context.Background(), request()), ErrBusy)

	gen.gate <- struct{}{}
	require.NoError(t, <-done)
	assert.Equal(t, blog.StageOutlines, c.Snapshot().Stage)
}

func TestFeedbackPromotesToDraft(t *testing.T) {
	gen := &fakeGenerator{outlines: fiveSections(), feedback: draftFeedback()}
	c, _ := newLoaded(t, gen)
	ctx := context.Background()
	require.NoError(t, c.Generate(ctx, request()))

	require.NoError(t, c.SubmitFeedback(ctx, "  looks good, write it  "))

	snap := c.Snapshot()
	assert.Equal(t, blog.StageDraft, snap.Stage)
	assert.Equal(t, 3, snap.State.CurrentStep)
	assert.Equal(t, []string{"img-1"}, snap.State.GeneratedImages)
	assert.Equal(t, "robot", snap.State.ImagePrompt)
	assert.Equal(t, "Any changes?", snap.State.FollowUpQuestion)
	assert.Len(t, snap.State.DraftArticle.Citations, 3)
	assert.Contains(t, snap.State.EditedContent, "<strong>bold</strong>")
	require.Len(t, snap.State.ChatMessages, 3)
	assert.Equal(t, blog.ChatMessage{Role: blog.RoleUser, Content: "looks good, write it", Time: "2:07 PM"}, snap.State.ChatMessages[1])
	assert.Contains(t, snap.State.ChatMessages[2].Content, "Any changes?")
}

func TestEditedContentInitializedOnce(t *testing.T) {
	gen := &fakeGenerator{outlines: fiveSections(), feedback: draftFeedback()}
	c, _ := newLoaded(t, gen)
	ctx := context.Background()
	require.NoError(t, c.Generate(ctx, request()))
	require.NoError(t, c.SubmitFeedback(ctx, "write it"))
	require.NoError(t, c.SaveEditedContent(ctx, "<p>mine</p>"))

	revised := draftFeedback()
	revised.Draft.Content = "# Rewritten"
	gen.feedback = revised
	require.NoError(t, c.SubmitFeedback(ctx, "shorter please"))

	snap := c.Snapshot()
	assert.Equal(t, "# Rewritten", snap.State.DraftArticle.Content)
	assert.Equal(t, "<p>mine</p>", snap.State.EditedContent)
}

func TestFeedbackOutlineRevision(t *testing.T) {
	revised := fiveSections().Outlines
	revised.Title = "Revised"
	gen := &fakeGenerator{
		outlines: fiveSections(),
		feedback: genclient.Feedback{Outlines: &revised},
	}
	c, _ := newLoaded(t, gen)
	ctx := context.Background()
	require.NoError(t, c.Generate(ctx, request()))
	require.NoError(t, c.SubmitFeedback(ctx, "add a section on ethics"))

	snap := c.Snapshot()
	assert.Equal(t, blog.StageOutlines, snap.Stage)
	assert.Equal(t, 2, snap.State.CurrentStep)
	assert.Equal(t, "Revised", snap.State.Outlines.Title)
	assert.Equal(t, statusOutlineUpdated, snap.Status)
	last := snap.State.ChatMessages[len(snap.State.ChatMessages)-1]
	assert.Contains(t, last.Content, "Would you like to proceed with this updated outline?")
}

func TestOutlineRevisionAfterDraftKeepsStep(t *testing.T) {
	gen := &fakeGenerator{outlines: fiveSections(), feedback: draftFeedback()}
	c, _ := newLoaded(t, gen)
	ctx := context.Background()
	require.NoError(t, c.Generate(ctx, request()))
	require.NoError(t, c.SubmitFeedback(ctx, "write it"))

	revised := fiveSections().Outlines
	gen.feedback = genclient.Feedback{Outlines: &revised}
	require.NoError(t, c.SubmitFeedback(ctx, "tweak outline"))

	snap := c.Snapshot()
	assert.Equal(t, blog.StageDraft, snap.Stage, "stage never regresses")
	assert.Equal(t, 3, snap.State.CurrentStep, "step never decreases")
}

func TestFeedbackWithoutPayloadOnlySetsStatus(t *testing.T) {
	gen := &fakeGenerator{outlines: fiveSections()}
	c, _ := newLoaded(t, gen)
	ctx := context.Background()
	require.NoError(t, c.Generate(ctx, request()))
	before := c.Snapshot()

	require.NoError(t, c.SubmitFeedback(ctx, "hmm"))

	snap := c.Snapshot()
	assert.Equal(t, statusNoChanges, snap.Status)
	assert.Equal(t, before.State.Outlines, snap.State.Outlines)
	assert.Len(t, snap.State.ChatMessages, len(before.State.ChatMessages)+1, "only the user message is added")
}

func TestFeedbackFailureAppendsApology(t *testing.T) {
	gen := &fakeGenerator{outlines: fiveSections()}
	c, _ := newLoaded(t, gen)
	ctx := context.Background()
	require.NoError(t, c.Generate(ctx, request()))

	gen.err = genclient.ErrFeedbackFailed
	for i := 0; i < 3; i++ {
		before := len(c.Snapshot().State.ChatMessages)
		require.NoError(t, c.SubmitFeedback(ctx, "same text"))
		snap := c.Snapshot()
		require.Len(t, snap.State.ChatMessages, before+2, "user message and apology, never deduplicated")
		assert.Equal(t, apologyDraft, snap.State.ChatMessages[before+1].Content)
		assert.False(t, snap.Loading)
		assert.Equal(t, statusDraftFailed, snap.Status)
	}
}

func TestFeedbackRejectedBeforeDispatch(t *testing.T) {
	gen := &fakeGenerator{}
	c, _ := newLoaded(t, gen)
	ctx := context.Background()

	assert.ErrorIs(t, c.SubmitFeedback(ctx, "   "), ErrEmptyFeedback)
	assert.ErrorIs(t, c.SubmitFeedback(ctx, "hello"), ErrWrongStage)
	assert.ErrorIs(t, c.RegenerateImage(ctx, "brighter"), ErrNoDraft)
	assert.Empty(t, gen.calls)
	assert.Empty(t, c.Snapshot().State.ChatMessages)
}

func TestControllerRequiresLoad(t *testing.T) {
	c := New(session.NewStore(session.NewMemoryKV(), nil), &fakeGenerator{})
	assert.ErrorIs(t, c.Generate(context.Background(), request()), ErrNotLoaded)
	assert.ErrorIs(t, c.SaveEditedContent(context.Background(), "x"), ErrNotLoaded)
}

func TestRegenerateImageSuccess(t *testing.T) {
	gen := &fakeGenerator{outlines: fiveSections(), feedback: draftFeedback()}
	c, _ := newLoaded(t, gen)
	ctx := context.Background()
	require.NoError(t, c.Generate(ctx, request()))
	require.NoError(t, c.SubmitFeedback(ctx, "write it"))

	gen.images = genclient.Images{GeneratedImages: []string{"img-2"}, ImagePrompt: "brighter robot"}
	require.NoError(t, c.RegenerateImage(ctx, "brighter"))

	snap := c.Snapshot()
	assert.Equal(t, blog.StageDraft, snap.Stage)
	assert.Equal(t, []string{"img-2"}, snap.State.GeneratedImages)
	assert.Equal(t, "brighter robot", snap.State.ImagePrompt)
	last := snap.State.ChatMessages[len(snap.State.ChatMessages)-1]
	assert.Equal(t, `I've regenerated the image based on your feedback: "brighter"`, last.Content)
}

func TestRegenerateImageFailureKeepsImages(t *testing.T) {
	gen := &fakeGenerator{outlines: fiveSections(), feedback: draftFeedback()}
	c, _ := newLoaded(t, gen)
	ctx := context.Background()
	require.NoError(t, c.Generate(ctx, request()))
	require.NoError(t, c.SubmitFeedback(ctx, "write it"))
	before := c.Snapshot()

	gen.err = errors.New("network down")
	require.NoError(t, c.RegenerateImage(ctx, "brighter"))

	snap := c.Snapshot()
	assert.Equal(t, before.State.GeneratedImages, snap.State.GeneratedImages)
	require.Len(t, snap.State.ChatMessages, len(before.State.ChatMessages)+1)
	assert.Equal(t, apologyImage, snap.State.ChatMessages[len(snap.State.ChatMessages)-1].Content)
	assert.False(t, snap.Loading)
	assert.Equal(t, statusImageFailed, snap.Status)
}

func TestNewBlogResetsEverything(t *testing.T) {
	gen := &fakeGenerator{outlines: fiveSections(), feedback: draftFeedback()}
	c, store := newLoaded(t, gen)
	ctx := context.Background()
	require.NoError(t, c.Generate(ctx, request()))
	require.NoError(t, c.SubmitFeedback(ctx, "write it"))
	old := c.Snapshot().SessionID

	require.NoError(t, c.NewBlog(ctx))

	snap := c.Snapshot()
	assert.NotEqual(t, old, snap.SessionID)
	assert.Equal(t, blog.NewWorkflowState(), snap.State)
	assert.Equal(t, blog.StageForm, snap.Stage)
	assert.Empty(t, snap.Status)

	_, ok := store.LoadState(ctx, old)
	assert.False(t, ok, "old blob removed")
	active, ok := store.LoadSessionID(ctx)
	require.True(t, ok)
	assert.Equal(t, snap.SessionID, active)
}

func TestLateResponseAfterNewBlogIsDiscarded(t *testing.T) {
	gen := &fakeGenerator{outlines: fiveSections(), gate: make(chan struct{})}
	c, store := newLoaded(t, gen)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- c.Generate(ctx, request()) }()
	require.Eventually(t, func() bool { return c.Snapshot().Loading }, time.Second, time.Millisecond)

	require.NoError(t, c.NewBlog(ctx))
	fresh := c.Snapshot()
	assert.False(t, fresh.Loading, "reset reopens the gate")

	gen.gate <- struct{}{}
	require.NoError(t, <-done)

	snap := c.Snapshot()
	assert.Equal(t, fresh.SessionID, snap.SessionID)
	assert.Equal(t, blog.StageForm, snap.Stage)
	assert.Nil(t, snap.State.Outlines)
	saved, ok := store.LoadState(ctx, snap.SessionID)
	require.True(t, ok)
	assert.Nil(t, saved.Outlines)
}

func TestReloadRestoresSnapshot(t *testing.T) {
	gen := &fakeGenerator{outlines: fiveSections(), feedback: draftFeedback()}
	store := session.NewStore(session.NewMemoryKV(), nil)
	ctx := context.Background()

	first := New(store, gen, WithClock(fixedClock))
	require.NoError(t, first.Load(ctx))
	require.NoError(t, first.Generate(ctx, request()))
	require.NoError(t, first.SubmitFeedback(ctx, "write it"))
	want := first.Snapshot()

	second := New(store, gen, WithClock(fixedClock))
	require.NoError(t, second.Load(ctx))
	got := second.Snapshot()
	assert.Equal(t, want.SessionID, got.SessionID)
	assert.Equal(t, want.State, got.State)
}

func TestLoadTruncatedStateStartsFresh(t *testing.T) {
	ctx := context.Background()
	kv := session.NewMemoryKV()
	store := session.NewStore(kv, nil)
	id, err := store.CreateSessionID(ctx)
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, session.StateKey(id), []byte(`{"stage":"draft","outlines":{"title":"Fut`)))

	gen := &fakeGenerator{outlines: fiveSections()}
	c := New(store, gen, WithClock(fixedClock))
	require.NoError(t, c.Load(ctx))

	snap := c.Snapshot()
	assert.Equal(t, id, snap.SessionID, "the active session is kept")
	assert.Equal(t, blog.NewWorkflowState(), snap.State)
	assert.Equal(t, blog.StageForm, snap.Stage)
	assert.False(t, snap.Loading)

	// the session is usable and the corrupt blob is overwritten on the next save
	require.NoError(t, c.Generate(ctx, request()))
	saved, ok := store.LoadState(ctx, id)
	require.True(t, ok)
	assert.Equal(t, blog.StageOutlines, saved.Stage)
}

func TestStepIsMonotonicAcrossTransitions(t *testing.T) {
	revised := fiveSections().Outlines
	gen := &fakeGenerator{outlines: fiveSections()}
	c, _ := newLoaded(t, gen)
	ctx := context.Background()

	steps := []int{c.Snapshot().State.CurrentStep}
	require.NoError(t, c.Generate(ctx, request()))
	steps = append(steps, c.Snapshot().State.CurrentStep)
	gen.feedback = genclient.Feedback{Outlines: &revised}
	require.NoError(t, c.SubmitFeedback(ctx, "revise"))
	steps = append(steps, c.Snapshot().State.CurrentStep)
	gen.feedback = draftFeedback()
	require.NoError(t, c.SubmitFeedback(ctx, "write"))
	steps = append(steps, c.Snapshot().State.CurrentStep)

	assert.Equal(t, []int{1, 2, 2, 3}, steps)
	require.NoError(t, c.NewBlog(ctx))
	assert.Equal(t, 1, c.Snapshot().State.CurrentStep)
}

func TestParseImageCommand(t *testing.T) {
	cases := []struct {
		in       string
		feedback string
		ok       bool
	}{
		{"/image brighter colors", "brighter colors", true},
		{"  /image\tmore blue ", "more blue", true},
		{"/image", "", true},
		{"/images are nice", "", false},
		{"make the image brighter", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseImageCommand(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.feedback, got, tc.in)
	}
}
