package generator

import (
	"context"
	"errors"
	"sync"
	"time"

	"blog_generator/blog"
)

// ErrNoDraft is returned when images are requested before a draft exists.
var ErrNoDraft = errors.New("session has no draft yet")

// Session holds the multi-turn outline/draft context for one topic.
type Session struct {
	ID string

	mu          sync.Mutex
	spec        Spec
	stage       Stage
	outlines    *blog.Outlines
	draft       *blog.DraftArticle
	images      []string
	imagePrompt string
	history     []Turn
	agent       *Agent
}

// NewSession creates a session; nothing is generated yet.
func NewSession(id string, spec Spec, agent *Agent) *Session {
	return &Session{
		ID:    id,
		spec:  spec,
		agent: agent,
	}
}

// Propose generates the first outline.
func (s *Session) Propose(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	outlines, question, err := s.agent.Outline(ctx, s.spec, nil, "")
	if err != nil {
		return Result{}, err
	}
	s.outlines = &outlines
	s.stage = StageOutlines
	s.appendTurn("", "outline")
	return Result{Stage: s.stage, Outlines: s.outlines, FollowUpQuestion: question}, nil
}

// Revise applies user feedback: in the outline stage it either revises the
// outline or writes the draft; in the draft stage it revises the draft.
func (s *Session) Revise(ctx context.Context, comment string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.outlines == nil {
		return Result{}, errors.New("session has no outline yet")
	}

	if s.stage == StageDraft {
		return s.writeDraft(ctx, comment, "draft revision")
	}

	action, err := s.agent.Route(ctx, *s.outlines, comment)
	if err != nil {
		return Result{}, err
	}
	if action == ActionProceed {
		return s.writeDraft(ctx, comment, "draft")
	}

	outlines, question, err := s.agent.Outline(ctx, s.spec, s.outlines, comment)
	if err != nil {
		return Result{}, err
	}
	s.outlines = &outlines
	s.appendTurn(comment, "outline revision")
	return Result{Stage: s.stage, Outlines: s.outlines, FollowUpQuestion: question}, nil
}

func (s *Session) writeDraft(ctx context.Context, comment, summary string) (Result, error) {
	draft, question, err := s.agent.Draft(ctx, s.spec, *s.outlines, s.draft, comment, s.history)
	if err != nil {
		return Result{}, err
	}
	if s.draft == nil {
		images, prompt, err := s.agent.Images(ctx, s.spec, draft.Title, "")
		if err != nil {
			// a draft without images is still useful
			images, prompt = []string{}, ""
		}
		s.images, s.imagePrompt = images, prompt
	}
	s.draft = &draft
	s.stage = StageDraft
	s.appendTurn(comment, summary)
	return Result{
		Stage:            s.stage,
		Outlines:         s.outlines,
		Draft:            s.draft,
		Images:           s.images,
		ImagePrompt:      s.imagePrompt,
		FollowUpQuestion: question,
	}, nil
}

// RegenerateImage replaces the draft images using feedback.
func (s *Session) RegenerateImage(ctx context.Context, feedback string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draft == nil {
		return Result{}, ErrNoDraft
	}
	images, prompt, err := s.agent.Images(ctx, s.spec, s.draft.Title, feedback)
	if err != nil {
		return Result{}, err
	}
	s.images, s.imagePrompt = images, prompt
	s.appendTurn(feedback, "image")
	return Result{Stage: s.stage, Images: s.images, ImagePrompt: s.imagePrompt}, nil
}

func (s *Session) appendTurn(comment, summary string) {
	s.history = append(s.history, Turn{
		Comment:   comment,
		Summary:   summary,
		CreatedAt: time.Now(),
	})
}
