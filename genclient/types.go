package genclient

import "blog_generator/blog"

type generateReq struct {
	SessionID      string   `json:"session_id"`
	Topic          string   `json:"topic"`
	Tone           string   `json:"tone"`
	Length         int      `json:"length"`
	TargetAudience string   `json:"target_audience"`
	NumOutlines    int      `json:"num_outlines"`
	Keywords       string   `json:"keywords"`
	ReferenceURLs  []string `json:"reference_urls"`
	CustomURLs     []string `json:"custom_urls"`
}

type userInputReq struct {
	SessionID    string `json:"session_id"`
	UserFeedback string `json:"user_feedback"`
}

type regenerateImageReq struct {
	SessionID     string `json:"session_id"`
	ImageFeedback string `json:"image_feedback"`
}

// apiResp is the union of every field the generation API may return.
type apiResp struct {
	Status           string             `json:"status,omitempty"`
	SessionID        string             `json:"session_id,omitempty"`
	CurrentStage     string             `json:"current_stage,omitempty"`
	Outlines         *blog.Outlines     `json:"outlines_json,omitempty"`
	DraftArticle     *blog.DraftArticle `json:"draft_article,omitempty"`
	GeneratedImages  []string           `json:"generated_images,omitempty"`
	ImagePrompt      string             `json:"image_prompt,omitempty"`
	FollowUpQuestion string             `json:"follow_up_question,omitempty"`
}

type errorResp struct {
	Detail string `json:"detail"`
}

// Outlines is the result of StartGeneration.
type Outlines struct {
	Outlines         blog.Outlines
	FollowUpQuestion string
}

// Feedback is the result of SubmitFeedback. Draft set means the workflow was
// promoted to the draft stage; only Outlines set means an outline revision;
// neither means the API returned nothing actionable.
type Feedback struct {
	Outlines         *blog.Outlines
	Draft            *blog.DraftArticle
	GeneratedImages  []string
	ImagePrompt      string
	FollowUpQuestion string
}

// Images is the result of RegenerateImage.
type Images struct {
	GeneratedImages []string
	ImagePrompt     string
}
