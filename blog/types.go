package blog

// Stage is the workflow phase that decides which payload and view are active.
type Stage string

const (
	StageForm     Stage = "form"
	StageOutlines Stage = "outlines"
	StageDraft    Stage = "draft"

	// StagePending is only reported by the in-memory view while a generation
	// request submitted from the form is unresolved. It is never persisted.
	StagePending Stage = "pending"
)

// Role of a chat transcript entry.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Step values shown by the progress indicator.
const (
	StepGettingStarted = 1
	StepOutlines       = 2
	StepDraft          = 3
)

// OutlineSection is one entry of the outline table of contents.
type OutlineSection struct {
	Section     string `json:"section"`
	Description string `json:"description"`
}

// Outlines is the structured outline returned by the generation API.
type Outlines struct {
	Title    string           `json:"title"`
	Outlines []OutlineSection `json:"outlines"`
}

// Citation references a source used by the draft.
type Citation struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Relevance string `json:"relevance"`
}

// DraftArticle is the full generated article: markdown body plus citations.
type DraftArticle struct {
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Citations []Citation `json:"citations"`
}

// ChatMessage is one transcript entry. Time is a display string (e.g. "3:04 PM").
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Time    string `json:"time"`
}

// WorkflowState is the serializable snapshot of one session.
// Field names match the blob persisted by earlier clients.
type WorkflowState struct {
	ChatMessages     []ChatMessage `json:"chatMessages"`
	Stage            Stage         `json:"stage"`
	CurrentStep      int           `json:"currentStep"`
	Outlines         *Outlines     `json:"outlines"`
	DraftArticle     *DraftArticle `json:"draftArticle"`
	EditedContent    string        `json:"editedContent"`
	GeneratedImages  []string      `json:"generatedImages"`
	ImagePrompt      string        `json:"imagePrompt"`
	FollowUpQuestion string        `json:"followUpQuestion"`
}

// NewWorkflowState returns the initial state: form, step 1, no payload.
func NewWorkflowState() WorkflowState {
	return WorkflowState{
		ChatMessages: []ChatMessage{},
		Stage:        StageForm,
		CurrentStep:  StepGettingStarted,
	}
}

// DeriveStage computes the stage from the payload that is present.
func DeriveStage(s WorkflowState) Stage {
	switch {
	case s.DraftArticle != nil:
		return StageDraft
	case s.Outlines != nil:
		return StageOutlines
	default:
		return StageForm
	}
}

// Normalize repairs a restored snapshot: the stage is recomputed from the
// payload and the step is clamped to the range the progress indicator knows.
func (s WorkflowState) Normalize() WorkflowState {
	s.Stage = DeriveStage(s)
	if s.CurrentStep < StepGettingStarted {
		s.CurrentStep = StepGettingStarted
	}
	if s.CurrentStep > StepDraft {
		s.CurrentStep = StepDraft
	}
	if s.ChatMessages == nil {
		s.ChatMessages = []ChatMessage{}
	}
	return s
}

// Clone returns a deep copy so callers can't mutate controller-owned slices.
func (s WorkflowState) Clone() WorkflowState {
	out := s
	out.ChatMessages = append([]ChatMessage{}, s.ChatMessages...)
	if s.Outlines != nil {
		o := *s.Outlines
		o.Outlines = append([]OutlineSection(nil), s.Outlines.Outlines...)
		out.Outlines = &o
	}
	if s.DraftArticle != nil {
		d := *s.DraftArticle
		d.Citations = append([]Citation(nil), s.DraftArticle.Citations...)
		out.DraftArticle = &d
	}
	if s.GeneratedImages != nil {
		out.GeneratedImages = append([]string{}, s.GeneratedImages...)
	}
	return out
}
