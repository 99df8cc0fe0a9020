package workflow

import (
	"fmt"
	"strings"
)

// Status lines shown above the chat transcript.
const (
	statusGeneratingOutlines = "Generating outlines..."
	statusOutlinesGenerated  = "Step 1: Outlines Generated"
	statusOutlinesFailed     = "Error generating outlines. Please try again."
	statusGeneratingDraft    = "Generating draft article..."
	statusDraftGenerated     = "Step 3: Draft Generated"
	statusOutlineUpdated     = "Outline Updated"
	statusNoChanges          = "No changes were returned. Please try again."
	statusDraftFailed        = "Error generating draft. Please try again."
	statusRegeneratingImage  = "Regenerating image..."
	statusImageRegenerated   = "Image regenerated successfully"
	statusImageFailed        = "Error regenerating image. Please try again."
	statusContentSaved       = "Changes saved"
)

const (
	apologyDraft = "Sorry, there was an error generating the draft. Please try again."
	apologyImage = "Sorry, there was an error regenerating the image. Please try again."
)

const chatTimeLayout = "3:04 PM"

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func outlineCreatedMessage(topic, tone string, sections int, followUp string) string {
	return fmt.Sprintf(
		"Great! I've created an outline for your blog post about %q with a %s tone.\n\nThe structure includes %d main sections.\n\n%s",
		topic, strings.ToLower(tone), sections,
		orDefault(followUp, "Would you like to proceed with this outline?"),
	)
}

func outlineUpdatedMessage(followUp string) string {
	return "I've updated the outline based on your feedback.\n\n" +
		orDefault(followUp, "Would you like to proceed with this updated outline?")
}

func draftReadyMessage(followUp string) string {
	var b strings.Builder
	b.WriteString("Perfect! I've generated your complete blog post based on your feedback. The article includes:\n\n")
	for _, item := range []string{
		"Comprehensive introduction and conclusion",
		"Detailed sections covering all key topics",
		"Practical examples and insights",
		"Professional tone",
		"Supporting citations and references",
	} {
		b.WriteString("✓ ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(orDefault(followUp, "Is there anything you would like to modify?"))
	return b.String()
}

func imageRegeneratedMessage(feedback string) string {
	return fmt.Sprintf("I've regenerated the image based on your feedback: %q", feedback)
}

// ParseImageCommand reports whether chat input is "/image <feedback>" and
// returns the feedback.
func ParseImageCommand(text string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(text), "/image")
	if !ok || (rest != "" && rest[0] != ' ' && rest[0] != '\n' && rest[0] != '\t') {
		return "", false
	}
	return strings.TrimSpace(rest), true
}
