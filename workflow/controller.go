package workflow

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"blog_generator/blog"
	"blog_generator/genclient"
	"blog_generator/session"
)

var (
	// ErrBusy is returned while another generation-family request is in flight.
	ErrBusy          = errors.New("workflow: a request is already in progress")
	ErrNotLoaded     = errors.New("workflow: session not loaded")
	ErrWrongStage    = errors.New("workflow: action not available in the current stage")
	ErrEmptyFeedback = errors.New("workflow: feedback is empty")
	ErrNoDraft       = errors.New("workflow: no draft article yet")
)

// Generator is the remote generation API as seen by the controller.
type Generator interface {
	StartGeneration(ctx context.Context, sessionID string, req blog.GenerationRequest) (genclient.Outlines, error)
	SubmitFeedback(ctx context.Context, sessionID, feedback string) (genclient.Feedback, error)
	RegenerateImage(ctx context.Context, sessionID, feedback string) (genclient.Images, error)
}

// Snapshot is a copy of the controller state handed to presentations.
type Snapshot struct {
	SessionID string             `json:"session_id"`
	State     blog.WorkflowState `json:"state"`
	// Stage is State.Stage, or StagePending while a form submission is unresolved.
	Stage   blog.Stage `json:"stage"`
	Loading bool       `json:"loading"`
	Status  string     `json:"status"`
}

// Controller owns one session's workflow state. Remote failures never
// escape as errors: they become status lines and chat apologies. The
// returned errors only describe requests that were refused before dispatch.
type Controller struct {
	repo   session.Repository
	gen    Generator
	logger *zap.Logger
	now    func() time.Time
	md     goldmark.Markdown

	mu        sync.Mutex
	loaded    bool
	sessionID string
	state     blog.WorkflowState
	loading   bool
	pending   bool
	status    string
}

type Option func(*Controller)

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the clock used for chat timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

func New(repo session.Repository, gen Generator, opts ...Option) *Controller {
	c := &Controller{
		repo:   repo,
		gen:    gen,
		logger: zap.NewNop(),
		now:    time.Now,
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		state:  blog.NewWorkflowState(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("workflow")
	return c
}

// Load resumes the active session or creates one. The restored snapshot is
// not written back.
func (c *Controller) Load(ctx context.Context) error {
	id, ok := c.repo.LoadSessionID(ctx)
	if !ok {
		var err error
		if id, err = c.repo.CreateSessionID(ctx); err != nil {
			return err
		}
	}
	state := blog.NewWorkflowState()
	restored := false
	if s, ok := c.repo.LoadState(ctx, id); ok {
		state, restored = s, true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = id
	c.state = state
	c.loading, c.pending, c.status = false, false, ""
	c.loaded = true
	c.logger.Info("session loaded",
		zap.String("session_id", id),
		zap.Bool("restored", restored),
		zap.String("stage", string(state.Stage)))
	return nil
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	stage := c.state.Stage
	if c.pending {
		stage = blog.StagePending
	}
	return Snapshot{
		SessionID: c.sessionID,
		State:     c.state.Clone(),
		Stage:     stage,
		Loading:   c.loading,
		Status:    c.status,
	}
}

// Generate submits a validated form. Validation is the form's job.
func (c *Controller) Generate(ctx context.Context, req blog.GenerationRequest) error {
	id, err := c.begin(ctx, statusGeneratingOutlines, true, func(s *blog.WorkflowState) (bool, error) {
		if s.Stage != blog.StageForm {
			return false, ErrWrongStage
		}
		return false, nil
	})
	if err != nil {
		return err
	}

	out, err := c.gen.StartGeneration(ctx, id, req)
	c.finish(ctx, id, func(s *blog.WorkflowState) string {
		if err != nil {
			c.logger.Warn("generate failed", zap.String("session_id", id), zap.Error(err))
			return statusOutlinesFailed
		}
		outlines := out.Outlines
		s.Outlines = &outlines
		s.FollowUpQuestion = out.FollowUpQuestion
		s.CurrentStep = max(s.CurrentStep, blog.StepOutlines)
		c.appendChat(s, blog.RoleAI, outlineCreatedMessage(
			req.Topic, req.Tone.Value(), len(outlines.Outlines), out.FollowUpQuestion))
		c.logger.Info("outlines generated",
			zap.String("session_id", id),
			zap.Int("sections", len(outlines.Outlines)))
		return statusOutlinesGenerated
	})
	return nil
}

// SubmitFeedback sends chat feedback on the outline or draft.
func (c *Controller) SubmitFeedback(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyFeedback
	}
	id, err := c.begin(ctx, statusGeneratingDraft, false, func(s *blog.WorkflowState) (bool, error) {
		if s.Stage == blog.StageForm {
			return false, ErrWrongStage
		}
		c.appendChat(s, blog.RoleUser, text)
		return true, nil
	})
	if err != nil {
		return err
	}

	fb, err := c.gen.SubmitFeedback(ctx, id, text)
	c.finish(ctx, id, func(s *blog.WorkflowState) string {
		if err != nil {
			c.logger.Warn("feedback failed", zap.String("session_id", id), zap.Error(err))
			c.appendChat(s, blog.RoleAI, apologyDraft)
			return statusDraftFailed
		}
		switch {
		case fb.Draft != nil:
			draft := *fb.Draft
			s.DraftArticle = &draft
			s.GeneratedImages = fb.GeneratedImages
			s.ImagePrompt = fb.ImagePrompt
			s.FollowUpQuestion = fb.FollowUpQuestion
			s.CurrentStep = blog.StepDraft
			if s.EditedContent == "" {
				s.EditedContent = c.renderHTML(draft.Content)
			}
			c.appendChat(s, blog.RoleAI, draftReadyMessage(fb.FollowUpQuestion))
			c.logger.Info("draft generated",
				zap.String("session_id", id),
				zap.Int("citations", len(draft.Citations)),
				zap.Int("images", len(fb.GeneratedImages)))
			return statusDraftGenerated
		case fb.Outlines != nil:
			outlines := *fb.Outlines
			s.Outlines = &outlines
			s.FollowUpQuestion = fb.FollowUpQuestion
			s.CurrentStep = max(s.CurrentStep, blog.StepOutlines)
			c.appendChat(s, blog.RoleAI, outlineUpdatedMessage(fb.FollowUpQuestion))
			c.logger.Info("outline revised", zap.String("session_id", id))
			return statusOutlineUpdated
		default:
			c.logger.Warn("feedback response carried no payload", zap.String("session_id", id))
			return statusNoChanges
		}
	})
	return nil
}

// RegenerateImage asks for new draft images. It does not change the stage.
func (c *Controller) RegenerateImage(ctx context.Context, feedback string) error {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return ErrEmptyFeedback
	}
	id, err := c.begin(ctx, statusRegeneratingImage, false, func(s *blog.WorkflowState) (bool, error) {
		if s.DraftArticle == nil {
			return false, ErrNoDraft
		}
		return false, nil
	})
	if err != nil {
		return err
	}

	imgs, err := c.gen.RegenerateImage(ctx, id, feedback)
	c.finish(ctx, id, func(s *blog.WorkflowState) string {
		if err != nil {
			c.logger.Warn("image regeneration failed", zap.String("session_id", id), zap.Error(err))
			c.appendChat(s, blog.RoleAI, apologyImage)
			return statusImageFailed
		}
		s.GeneratedImages = imgs.GeneratedImages
		s.ImagePrompt = imgs.ImagePrompt
		c.appendChat(s, blog.RoleAI, imageRegeneratedMessage(feedback))
		return statusImageRegenerated
	})
	return nil
}

// SaveEditedContent persists an edit made in the content display.
func (c *Controller) SaveEditedContent(ctx context.Context, html string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return ErrNotLoaded
	}
	if c.state.DraftArticle == nil {
		return ErrNoDraft
	}
	c.state.EditedContent = html
	c.status = statusContentSaved
	c.persistLocked(ctx)
	return nil
}

// NewBlog discards the current session and starts over under a new identifier.
// A response still in flight for the old session is dropped when it arrives.
func (c *Controller) NewBlog(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, err := c.repo.CreateSessionID(ctx)
	if err != nil {
		return err
	}
	old := c.sessionID
	if err := c.repo.ClearState(ctx, old); err != nil {
		c.logger.Warn("clear old session failed", zap.String("session_id", old), zap.Error(err))
	}

	c.sessionID = id
	c.state = blog.NewWorkflowState()
	c.loading, c.pending, c.status = false, false, ""
	c.loaded = true
	c.persistLocked(ctx)
	c.logger.Info("new blog started", zap.String("old_session_id", old), zap.String("session_id", id))
	return nil
}

// begin closes the single-flight gate and returns the session id the request
// is tagged with. prepare runs under the lock; when it reports a change the
// state is persisted before dispatch.
func (c *Controller) begin(ctx context.Context, status string, pending bool, prepare func(*blog.WorkflowState) (bool, error)) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return "", ErrNotLoaded
	}
	if c.loading {
		return "", ErrBusy
	}
	changed, err := prepare(&c.state)
	if err != nil {
		return "", err
	}
	c.loading = true
	c.pending = pending
	c.status = status
	if changed {
		c.persistLocked(ctx)
	}
	return c.sessionID, nil
}

// finish applies a response if the session it was dispatched for is still
// active, reopens the gate and persists.
func (c *Controller) finish(ctx context.Context, id string, apply func(*blog.WorkflowState) string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID != id {
		c.logger.Info("discarding response for replaced session",
			zap.String("dispatched_session_id", id),
			zap.String("active_session_id", c.sessionID))
		return
	}
	c.status = apply(&c.state)
	c.state.Stage = blog.DeriveStage(c.state)
	c.loading = false
	c.pending = false
	c.persistLocked(ctx)
}

func (c *Controller) persistLocked(ctx context.Context) {
	if err := c.repo.SaveState(context.WithoutCancel(ctx), c.sessionID, c.state); err != nil {
		c.logger.Error("save state failed", zap.String("session_id", c.sessionID), zap.Error(err))
	}
}

func (c *Controller) appendChat(s *blog.WorkflowState, role blog.Role, content string) {
	s.ChatMessages = append(s.ChatMessages, blog.ChatMessage{
		Role:    role,
		Content: content,
		Time:    c.now().Format(chatTimeLayout),
	})
}

// renderHTML converts draft markdown into the HTML the editor starts from.
// On failure the markdown is escaped into a <pre> block.
func (c *Controller) renderHTML(markdown string) string {
	var buf bytes.Buffer
	if err := c.md.Convert([]byte(markdown), &buf); err != nil {
		c.logger.Warn("markdown conversion failed", zap.Error(err))
		return "<pre>" + htmlEscaper.Replace(markdown) + "</pre>"
	}
	return buf.String()
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
