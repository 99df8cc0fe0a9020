package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"blog_generator/blog"
)

var fenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// coerceJSON decodes the first JSON object found in raw model output,
// tolerating code fences and surrounding prose.
func coerceJSON(raw string, v any) error {
	text := strings.TrimSpace(raw)
	if text == "" {
		return errors.New("model returned empty output")
	}
	if m := fenceRe.FindStringSubmatch(text); len(m) == 2 {
		text = m[1]
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("model output has no json object: %.80q", text)
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}
	return nil
}

type outlineOut struct {
	blog.Outlines
	FollowUpQuestion string `json:"follow_up_question"`
}

type draftOut struct {
	blog.DraftArticle
	FollowUpQuestion string `json:"follow_up_question"`
}

type routeOut struct {
	Action Action `json:"action"`
}

// ParseOutline validates an outline answer.
func ParseOutline(raw string, spec Spec) (blog.Outlines, string, error) {
	var out outlineOut
	if err := coerceJSON(raw, &out); err != nil {
		return blog.Outlines{}, "", err
	}
	if len(out.Outlines.Outlines) == 0 {
		return blog.Outlines{}, "", errors.New("model returned an outline without sections")
	}
	if strings.TrimSpace(out.Title) == "" {
		out.Title = spec.Topic
	}
	return out.Outlines, out.FollowUpQuestion, nil
}

// ParseDraft validates a draft answer and fills the title from the markdown when missing.
func ParseDraft(raw string) (blog.DraftArticle, string, error) {
	var out draftOut
	if err := coerceJSON(raw, &out); err != nil {
		return blog.DraftArticle{}, "", err
	}
	out.Content = strings.TrimSpace(out.Content)
	if out.Content == "" {
		return blog.DraftArticle{}, "", errors.New("model returned empty markdown")
	}
	if strings.TrimSpace(out.Title) == "" {
		out.Title = extractTitle(out.Content)
	}
	if out.Citations == nil {
		out.Citations = []blog.Citation{}
	}
	return out.DraftArticle, out.FollowUpQuestion, nil
}

// ParseRoute reads the router decision; anything unrecognized means revise.
func ParseRoute(raw string) Action {
	var out routeOut
	if err := coerceJSON(raw, &out); err != nil {
		return ActionRevise
	}
	if out.Action == ActionProceed {
		return ActionProceed
	}
	return ActionRevise
}

var titleRe = regexp.MustCompile(`(?m)^#\s+(.+)$`)

func extractTitle(md string) string {
	m := titleRe.FindStringSubmatch(md)
	if len(m) >= 2 {
		return strings.TrimSpace(m[1])
	}
	return ""
}
