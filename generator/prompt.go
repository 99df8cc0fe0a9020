package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"blog_generator/blog"
)

// Task tells implementations (the mock in particular) what shape of answer is expected.
type Task string

const (
	TaskOutline Task = "outline"
	TaskRoute   Task = "route"
	TaskDraft   Task = "draft"
)

// Prompt is the message set sent to the LLM.
type Prompt struct {
	Task    Task
	System  string
	User    string
	History []Message
}

// Message is one optional history entry.
type Message struct {
	Role    string
	Content string
}

const jsonOnly = "Respond with a single JSON object and nothing else: no prose, no code fences."

func writeSpec(sb *strings.Builder, spec Spec) {
	fmt.Fprintf(sb, "- Topic: %s\n", spec.Topic)
	if spec.Tone != "" {
		fmt.Fprintf(sb, "- Tone: %s\n", spec.Tone)
	}
	if spec.Audience != "" {
		fmt.Fprintf(sb, "- Target audience: %s\n", spec.Audience)
	}
	if spec.Words > 0 {
		fmt.Fprintf(sb, "- Target length: about %d words (±15%%)\n", spec.Words)
	}
	if spec.Keywords != "" {
		fmt.Fprintf(sb, "- Keywords: %s\n", spec.Keywords)
	}
	if len(spec.ReferenceURLs) > 0 {
		fmt.Fprintf(sb, "- Match the writing style of: %s\n", strings.Join(spec.ReferenceURLs, ", "))
	}
	if len(spec.CustomURLs) > 0 {
		fmt.Fprintf(sb, "- Draw facts from: %s\n", strings.Join(spec.CustomURLs, ", "))
	}
}

func mustJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// BuildOutlinePrompt asks for a new outline, or a revision of prev when comment is set.
func BuildOutlinePrompt(spec Spec, prev *blog.Outlines, comment string) Prompt {
	var sb strings.Builder
	sb.WriteString("You are a senior content strategist planning a blog post.\n")
	writeSpec(&sb, spec)
	if spec.Sections > 0 {
		fmt.Fprintf(&sb, "- Produce exactly %d sections.\n", spec.Sections)
	}
	sb.WriteString(`Output schema: {"title": string, "outlines": [{"section": string, "description": string}], "follow_up_question": string}` + "\n")
	sb.WriteString(jsonOnly)

	user := fmt.Sprintf("Create the outline for a blog post about %q.", spec.Topic)
	if prev != nil {
		user = fmt.Sprintf("Current outline:\n%s\n\nUser feedback: %s\nRevise the outline accordingly.", mustJSON(prev), comment)
	}
	return Prompt{Task: TaskOutline, System: sb.String(), User: user}
}

// BuildRoutePrompt asks whether outline feedback approves the outline or requests changes.
func BuildRoutePrompt(outlines blog.Outlines, comment string) Prompt {
	system := "You classify user feedback on a blog outline. " +
		`Answer {"action": "proceed"} when the user approves the outline or asks to write the article, ` +
		`and {"action": "revise"} when they ask for changes. ` + jsonOnly
	user := fmt.Sprintf("Outline:\n%s\n\nFeedback: %s", mustJSON(outlines), comment)
	return Prompt{Task: TaskRoute, System: system, User: user}
}

// BuildDraftPrompt asks for the full article, or a revision of prev when comment is set.
func BuildDraftPrompt(spec Spec, outlines blog.Outlines, prev *blog.DraftArticle, comment string, history []Turn) Prompt {
	var sb strings.Builder
	sb.WriteString("You are a professional blog writer. Write in Markdown with a level-one title.\n")
	writeSpec(&sb, spec)
	sb.WriteString(`Output schema: {"title": string, "content": string (markdown), "citations": [{"title": string, "url": string, "relevance": string}], "follow_up_question": string}` + "\n")
	sb.WriteString(jsonOnly)

	user := fmt.Sprintf("Write the article following this outline:\n%s", mustJSON(outlines))
	if prev != nil {
		user = fmt.Sprintf("Current article:\n%s\n\nUser feedback: %s\nRevise with the smallest necessary changes.", prev.Content, comment)
	}

	var msgs []Message
	for _, t := range history {
		if t.Comment == "" {
			continue
		}
		msgs = append(msgs, Message{Role: "user", Content: t.Comment})
	}
	return Prompt{Task: TaskDraft, System: sb.String(), User: user, History: msgs}
}

// BuildImagePrompt describes the hero image for a draft.
func BuildImagePrompt(spec Spec, title, feedback string) string {
	p := fmt.Sprintf("A clean editorial illustration for a blog post titled %q", title)
	if spec.Tone != "" {
		p += fmt.Sprintf(", %s mood", strings.ToLower(spec.Tone))
	}
	if spec.Audience != "" {
		p += fmt.Sprintf(", aimed at %s", strings.ToLower(spec.Audience))
	}
	if feedback != "" {
		p += ". Adjustments: " + feedback
	}
	return p + ". No text in the image."
}
