package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"blog_generator/blog"
)

// placeholderPNG is a 1x1 transparent PNG.
const placeholderPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

var (
	mockSectionsRe = regexp.MustCompile(`exactly (\d+) sections`)
	mockTopicRe    = regexp.MustCompile(`(?m)^- Topic: (.+)$`)
	mockApproveRe  = regexp.MustCompile(`(?i)\b(looks good|write|proceed|go ahead|approve|yes|perfect)\b`)
)

// MockLLM is a deterministic stand-in for local debugging; it never calls a model.
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	switch prompt.Task {
	case TaskOutline:
		return m.outline(prompt), nil
	case TaskRoute:
		if mockApproveRe.MatchString(afterLast(prompt.User, "Feedback: ")) {
			return `{"action": "proceed"}`, nil
		}
		return `{"action": "revise"}`, nil
	case TaskDraft:
		return m.draft(prompt), nil
	default:
		return "", fmt.Errorf("mock llm: unknown task %q", prompt.Task)
	}
}

func (m MockLLM) GenerateImages(_ context.Context, _ string, n int) ([]string, error) {
	if n < 1 {
		n = 1
	}
	images := make([]string, n)
	for i := range images {
		images[i] = placeholderPNG
	}
	return images, nil
}

func (MockLLM) outline(prompt Prompt) string {
	topic := "Untitled"
	if mt := mockTopicRe.FindStringSubmatch(prompt.System); len(mt) == 2 {
		topic = strings.TrimSpace(mt[1])
	}

	var out outlineOut
	if current, ok := between(prompt.User, "Current outline:\n", "\n\nUser feedback: "); ok {
		_ = json.Unmarshal([]byte(current), &out.Outlines)
		feedback := strings.TrimSuffix(afterLast(prompt.User, "User feedback: "), "\nRevise the outline accordingly.")
		out.Outlines.Outlines = append(out.Outlines.Outlines, blog.OutlineSection{
			Section:     "Reader Requests",
			Description: feedback,
		})
		out.FollowUpQuestion = "Does the updated outline work for you?"
	} else {
		n := 5
		if ms := mockSectionsRe.FindStringSubmatch(prompt.System); len(ms) == 2 {
			n, _ = strconv.Atoi(ms[1])
		}
		out.Title = topic
		for i := 1; i <= n; i++ {
			out.Outlines.Outlines = append(out.Outlines.Outlines, blog.OutlineSection{
				Section:     fmt.Sprintf("Part %d", i),
				Description: fmt.Sprintf("Key point %d about %s.", i, topic),
			})
		}
		out.FollowUpQuestion = "Would you like to change anything, or shall I write the article?"
	}
	b, _ := json.Marshal(out)
	return "```json\n" + string(b) + "\n```"
}

func (MockLLM) draft(prompt Prompt) string {
	var out draftOut
	if prev, ok := between(prompt.User, "Current article:\n", "\n\nUser feedback: "); ok {
		out.Content = prev + "\n\n## Revision Notes\n\n" + afterLast(prompt.User, "User feedback: ")
	} else {
		var outlines blog.Outlines
		_ = json.Unmarshal([]byte(afterLast(prompt.User, "this outline:\n")), &outlines)
		var sb strings.Builder
		fmt.Fprintf(&sb, "# %s\n\n", outlines.Title)
		for _, s := range outlines.Outlines {
			fmt.Fprintf(&sb, "## %s\n\n%s\n\n", s.Section, s.Description)
		}
		out.Content = sb.String()
	}
	out.Citations = []blog.Citation{
		{Title: "Example Source", URL: "https://example.com/source", Relevance: "Background reading"},
	}
	out.FollowUpQuestion = "Is there anything you would like to modify?"
	b, _ := json.Marshal(out)
	return string(b)
}

func between(s, start, end string) (string, bool) {
	i := strings.Index(s, start)
	if i < 0 {
		return "", false
	}
	rest := s[i+len(start):]
	j := strings.Index(rest, end)
	if j < 0 {
		return "", false
	}
	return rest[:j], true
}

func afterLast(s, sep string) string {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s
	}
	return s[i+len(sep):]
}
