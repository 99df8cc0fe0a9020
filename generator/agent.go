package generator

import (
	"context"
	"errors"

	"blog_generator/blog"
)

// Agent turns a Spec plus feedback into outlines, drafts and images.
type Agent struct {
	llm    LLMClient
	images ImageClient
}

// NewAgent requires an LLM. images may be nil when the LLM also generates images.
func NewAgent(llm LLMClient, images ImageClient) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if images == nil {
		ic, ok := llm.(ImageClient)
		if !ok {
			return nil, errors.New("image client is required")
		}
		images = ic
	}
	return &Agent{llm: llm, images: images}, nil
}

// Outline creates a new outline, or revises prev when it is non-nil.
func (a *Agent) Outline(ctx context.Context, spec Spec, prev *blog.Outlines, comment string) (blog.Outlines, string, error) {
	raw, err := a.llm.Complete(ctx, BuildOutlinePrompt(spec, prev, comment))
	if err != nil {
		return blog.Outlines{}, "", err
	}
	return ParseOutline(raw, spec)
}

// Route decides whether outline feedback asks for changes or approves drafting.
func (a *Agent) Route(ctx context.Context, outlines blog.Outlines, comment string) (Action, error) {
	raw, err := a.llm.Complete(ctx, BuildRoutePrompt(outlines, comment))
	if err != nil {
		return "", err
	}
	return ParseRoute(raw), nil
}

// Draft writes the article from outlines, or revises prev when it is non-nil.
func (a *Agent) Draft(ctx context.Context, spec Spec, outlines blog.Outlines, prev *blog.DraftArticle, comment string, history []Turn) (blog.DraftArticle, string, error) {
	raw, err := a.llm.Complete(ctx, BuildDraftPrompt(spec, outlines, prev, comment, history))
	if err != nil {
		return blog.DraftArticle{}, "", err
	}
	return ParseDraft(raw)
}

// Images renders the hero image for title.
func (a *Agent) Images(ctx context.Context, spec Spec, title, feedback string) ([]string, string, error) {
	prompt := BuildImagePrompt(spec, title, feedback)
	images, err := a.images.GenerateImages(ctx, prompt, 1)
	if err != nil {
		return nil, "", err
	}
	return images, prompt, nil
}
