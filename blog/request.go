package blog

import (
	"errors"
	"fmt"
	"strings"
)

// Bounds accepted by the generation form.
const (
	MinOutlines = 3
	MaxOutlines = 8
	MinLength   = 200
	MaxLength   = 3000
	MaxURLs     = 5

	DefaultOutlines = 5
	DefaultLength   = 500
)

var (
	Tones = []string{
		"Professional",
		"Casual",
		"Friendly",
		"Academic",
		"Conversational",
		"Technical",
	}
	Audiences = []string{
		"General Public",
		"Students",
		"Professionals",
		"Beginners",
		"Experts",
		"Business Leaders",
	}
)

// ErrURLLimit is returned when a URL list already holds MaxURLs entries.
var ErrURLLimit = fmt.Errorf("at most %d urls allowed", MaxURLs)

// Choice is either one of a fixed set of presets or free text typed by the user.
type Choice struct {
	preset string
	custom string
	isSet  bool
	isCust bool
}

// Preset selects one of the enumerated values.
func Preset(value string) Choice {
	return Choice{preset: value, isSet: true}
}

// Custom selects a free-text value.
func Custom(text string) Choice {
	return Choice{custom: text, isSet: true, isCust: true}
}

// IsCustom reports whether the free-text variant is selected.
func (c Choice) IsCustom() bool { return c.isCust }

// IsZero reports whether nothing was selected.
func (c Choice) IsZero() bool { return !c.isSet }

// Value is the string sent to the generation API.
func (c Choice) Value() string {
	if c.isCust {
		return strings.TrimSpace(c.custom)
	}
	return c.preset
}

// ParseChoice maps a form value onto a Choice. The form posts the selected
// option and, when "custom" is selected, the free text separately.
func ParseChoice(selected, customText string) Choice {
	selected = strings.TrimSpace(selected)
	switch {
	case selected == "":
		return Choice{}
	case strings.EqualFold(selected, "custom"):
		return Custom(customText)
	default:
		return Preset(selected)
	}
}

// URLList is an append-only list of at most MaxURLs entries with index removal.
// Duplicates are kept.
type URLList struct {
	items []string
}

// Add appends url, rejecting it when the list is full.
func (l *URLList) Add(url string) error {
	if len(l.items) >= MaxURLs {
		return ErrURLLimit
	}
	l.items = append(l.items, url)
	return nil
}

// Remove drops the entry at index i; out of range indexes are ignored.
func (l *URLList) Remove(i int) {
	if i < 0 || i >= len(l.items) {
		return
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
}

func (l *URLList) Len() int { return len(l.items) }

// Items returns a copy of the entries.
func (l *URLList) Items() []string {
	return append([]string(nil), l.items...)
}

// GenerationRequest carries the blog parameters collected by the form.
type GenerationRequest struct {
	Topic          string
	Tone           Choice
	TargetAudience Choice
	Length         int
	NumOutlines    int
	Keywords       string
	ReferenceURLs  []string
	CustomURLs     []string
}

// FieldError describes one rejected form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates every field problem found by Validate.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation rejected: " + strings.Join(parts, "; ")
}

// For returns the message recorded for field, or "".
func (e *ValidationError) For(field string) string {
	for _, f := range e.Fields {
		if f.Field == field {
			return f.Message
		}
	}
	return ""
}

// Validate checks the form contract. It returns *ValidationError on failure.
func (r GenerationRequest) Validate() error {
	var ve ValidationError
	add := func(field, msg string) {
		ve.Fields = append(ve.Fields, FieldError{Field: field, Message: msg})
	}
	if strings.TrimSpace(r.Topic) == "" {
		add("topic", "topic is required")
	}
	checkChoice := func(field string, c Choice) {
		switch {
		case c.IsZero():
			add(field, field+" is required")
		case c.IsCustom() && c.Value() == "":
			add(field, "custom "+field+" must not be empty")
		case !c.IsCustom() && strings.TrimSpace(c.Value()) == "":
			add(field, field+" is required")
		}
	}
	checkChoice("tone", r.Tone)
	checkChoice("audience", r.TargetAudience)
	if r.NumOutlines < MinOutlines || r.NumOutlines > MaxOutlines {
		add("num_outlines", fmt.Sprintf("must be between %d and %d", MinOutlines, MaxOutlines))
	}
	if r.Length < MinLength || r.Length > MaxLength {
		add("length", fmt.Sprintf("must be between %d and %d words", MinLength, MaxLength))
	}
	if len(r.ReferenceURLs) > MaxURLs {
		add("reference_urls", ErrURLLimit.Error())
	}
	if len(r.CustomURLs) > MaxURLs {
		add("custom_urls", ErrURLLimit.Error())
	}
	if len(ve.Fields) > 0 {
		return &ve
	}
	return nil
}

// IsValidationError reports whether err came from Validate.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
