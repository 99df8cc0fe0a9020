package generator

import (
	"time"

	"blog_generator/blog"
)

// Spec describes the intended article before outlining or drafting.
type Spec struct {
	Topic         string
	Tone          string
	Audience      string
	Words         int
	Sections      int
	Keywords      string
	ReferenceURLs []string
	CustomURLs    []string
}

// Stage of a backend session, reported as current_stage.
type Stage string

const (
	StageOutlines Stage = "outlines"
	StageDraft    Stage = "draft"
)

// Action is the router's decision for a piece of feedback on the outline.
type Action string

const (
	ActionRevise  Action = "revise"
	ActionProceed Action = "proceed"
)

// Result is what one session step produced.
type Result struct {
	Stage            Stage
	Outlines         *blog.Outlines
	Draft            *blog.DraftArticle
	Images           []string
	ImagePrompt      string
	FollowUpQuestion string
}

// Turn records one feedback-driven step.
type Turn struct {
	Comment   string
	Summary   string
	CreatedAt time.Time
}
