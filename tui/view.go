package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"blog_generator/blog"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	activeStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	userStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	aiStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Width(18)
	focusedLabel = labelStyle.Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
)

var stepLabels = []string{"Getting Started", "Generating Content", "Review & Refine"}

func (a *App) View() string {
	header := lipgloss.JoinHorizontal(lipgloss.Top, titleStyle.Render("Blog Generator  "), renderSteps(a.snap.State.CurrentStep))

	var left string
	switch a.snap.Stage {
	case blog.StageForm:
		left = a.viewForm()
	case blog.StagePending:
		left = a.spinner.View() + " Generating outlines..."
	default:
		left = a.viewChat()
	}
	leftWidth := max(30, a.width*2/5)
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		boxStyle.Width(leftWidth).Render(left),
		boxStyle.Render(a.content.View()),
	)

	status := a.snap.Status
	if a.loading() && a.snap.Stage != blog.StagePending {
		status = a.spinner.View() + " " + status
	}
	lines := []string{header, body, mutedStyle.Render(status)}
	if a.flash != "" {
		lines = append(lines, errorStyle.Render(a.flash))
	}
	if a.notice != "" {
		lines = append(lines, doneStyle.Render(a.notice))
	}
	lines = append(lines, mutedStyle.Render(a.hints()))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (a *App) hints() string {
	switch a.snap.Stage {
	case blog.StageForm:
		return "tab/↑↓ move · ←/→ change option · enter submit (adds URL in URL fields) · ctrl+x drop last URL · ctrl+n new · ctrl+c quit"
	default:
		return "enter send · alt+enter newline · /image <text> new image · ctrl+e export · pgup/pgdn scroll · ctrl+n new blog · ctrl+c quit"
	}
}

func renderSteps(current int) string {
	parts := make([]string, len(stepLabels))
	for i, label := range stepLabels {
		n := i + 1
		text := fmt.Sprintf("%d. %s", n, label)
		switch {
		case n == current:
			parts[i] = activeStyle.Render(text)
		case n < current:
			parts[i] = doneStyle.Render("✓ " + text)
		default:
			parts[i] = mutedStyle.Render(text)
		}
	}
	return strings.Join(parts, mutedStyle.Render("  →  "))
}

func (a *App) viewForm() string {
	var sb strings.Builder
	row := func(f field, label, value string) {
		ls := labelStyle
		if a.focus == f {
			ls = focusedLabel
		}
		sb.WriteString(ls.Render(label) + value + "\n")
	}
	errFor := func(key string) {
		if msg := a.formErrs[key]; msg != "" {
			sb.WriteString(errorStyle.Render("  "+msg) + "\n")
		}
	}

	row(fieldTopic, "Topic", a.inputs[fieldTopic].View())
	errFor("topic")
	row(fieldTone, "Tone", selector(blog.Tones, a.toneIdx))
	if a.visible(fieldToneCustom) {
		row(fieldToneCustom, "  Custom tone", a.inputs[fieldToneCustom].View())
	}
	errFor("tone")
	row(fieldAudience, "Audience", selector(blog.Audiences, a.audIdx))
	if a.visible(fieldAudienceCustom) {
		row(fieldAudienceCustom, "  Custom audience", a.inputs[fieldAudienceCustom].View())
	}
	errFor("audience")
	row(fieldLength, fmt.Sprintf("Words %d-%d", blog.MinLength, blog.MaxLength), a.inputs[fieldLength].View())
	errFor("length")
	row(fieldSections, fmt.Sprintf("Sections %d-%d", blog.MinOutlines, blog.MaxOutlines), a.inputs[fieldSections].View())
	errFor("num_outlines")
	row(fieldKeywords, "Keywords", a.inputs[fieldKeywords].View())
	row(fieldReferenceURL, fmt.Sprintf("Reference URLs %d/%d", a.refURLs.Len(), blog.MaxURLs), a.inputs[fieldReferenceURL].View())
	listURLs(&sb, a.refURLs.Items())
	errFor("reference_urls")
	row(fieldCustomURL, fmt.Sprintf("Custom URLs %d/%d", a.customURLs.Len(), blog.MaxURLs), a.inputs[fieldCustomURL].View())
	listURLs(&sb, a.customURLs.Items())
	errFor("custom_urls")
	return sb.String()
}

func selector(presets []string, idx int) string {
	value := "Custom"
	if idx < len(presets) {
		value = presets[idx]
	}
	return "‹ " + value + " ›"
}

func listURLs(sb *strings.Builder, urls []string) {
	for _, u := range urls {
		sb.WriteString(mutedStyle.Render("  • "+u) + "\n")
	}
}

func (a *App) viewChat() string {
	var sb strings.Builder
	msgs := a.snap.State.ChatMessages
	// keep the tail that fits; older turns scroll off
	if keep := max(3, (a.height-14)/3); len(msgs) > keep {
		msgs = msgs[len(msgs)-keep:]
	}
	width := max(20, a.width*2/5-4)
	for _, m := range msgs {
		who := aiStyle.Render("AI")
		if m.Role == blog.RoleUser {
			who = userStyle.Render("You")
		}
		sb.WriteString(who + " " + mutedStyle.Render(m.Time) + "\n")
		sb.WriteString(lipgloss.NewStyle().Width(width).Render(m.Content) + "\n\n")
	}
	sb.WriteString(a.chat.View())
	return sb.String()
}

// renderContent is the right pane: the outline until a draft exists, then
// the draft with its citations and images.
func renderContent(s blog.WorkflowState, width int) string {
	var sb strings.Builder
	wrap := lipgloss.NewStyle().Width(max(20, width))
	switch {
	case s.DraftArticle != nil:
		d := s.DraftArticle
		sb.WriteString(titleStyle.Render(d.Title) + "\n\n")
		if n := len(s.GeneratedImages); n > 0 {
			sb.WriteString(mutedStyle.Render(fmt.Sprintf("%d image(s) generated", n)))
			if s.ImagePrompt != "" {
				sb.WriteString(mutedStyle.Render(": " + s.ImagePrompt))
			}
			sb.WriteString("\n\n")
		}
		sb.WriteString(wrap.Render(d.Content) + "\n")
		if len(d.Citations) > 0 {
			sb.WriteString("\n" + titleStyle.Render("Citations") + "\n")
			for i, c := range d.Citations {
				line := fmt.Sprintf("%d. %s (%s)", i+1, c.Title, c.URL)
				if c.Relevance != "" {
					line += " " + c.Relevance
				}
				sb.WriteString(wrap.Render(line) + "\n")
			}
		}
	case s.Outlines != nil:
		sb.WriteString(titleStyle.Render(s.Outlines.Title) + "\n\n")
		for i, o := range s.Outlines.Outlines {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, o.Section))
			sb.WriteString(wrap.Render(mutedStyle.Render("   "+o.Description)) + "\n")
		}
	default:
		sb.WriteString(mutedStyle.Render("Your outline and draft will appear here."))
	}
	return sb.String()
}
