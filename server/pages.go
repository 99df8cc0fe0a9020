package server

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"blog_generator/blog"
	"blog_generator/publisher"
	"blog_generator/workflow"
)

var templateFuncs = template.FuncMap{
	"imageSrc":  publisher.ImageSrc,
	"sanitized": publisher.SanitizeHTML,
}

type stepView struct {
	Number int
	Label  string
	Active bool
	Done   bool
}

// formView echoes the submitted form back with its field errors.
type formView struct {
	Topic          string
	Tone           string
	ToneCustom     string
	Audience       string
	AudienceCustom string
	Length         string
	NumOutlines    string
	Keywords       string
	ReferenceURLs  string
	CustomURLs     string
	Errors         map[string]string
}

func defaultForm() formView {
	return formView{
		Tone:        blog.Tones[0],
		Audience:    blog.Audiences[0],
		Length:      strconv.Itoa(blog.DefaultLength),
		NumOutlines: strconv.Itoa(blog.DefaultOutlines),
	}
}

type createPage struct {
	Snap      workflow.Snapshot
	Steps     []stepView
	Form      formView
	Tones     []string
	Audiences []string
	Flash     string
	MinLength int
	MaxLength int
	MinOut    int
	MaxOut    int
	MaxURLs   int
}

var stepLabels = []string{"Getting Started", "Generating Content", "Review & Refine"}

func buildSteps(current int) []stepView {
	steps := make([]stepView, len(stepLabels))
	for i, label := range stepLabels {
		n := i + 1
		steps[i] = stepView{Number: n, Label: label, Active: n == current, Done: n < current}
	}
	return steps
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "landing.html", nil)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	s.renderCreate(w, http.StatusOK, defaultForm())
}

func (s *Server) renderCreate(w http.ResponseWriter, status int, form formView) {
	snap := s.wf.Snapshot()
	s.render(w, status, "create.html", createPage{
		Snap:      snap,
		Steps:     buildSteps(snap.State.CurrentStep),
		Form:      form,
		Tones:     blog.Tones,
		Audiences: blog.Audiences,
		Flash:     s.takeFlash(),
		MinLength: blog.MinLength,
		MaxLength: blog.MaxLength,
		MinOut:    blog.MinOutlines,
		MaxOut:    blog.MaxOutlines,
		MaxURLs:   blog.MaxURLs,
	})
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("render failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleFormGenerate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	req, form, err := parseGenerateForm(r)
	if err != nil {
		var ve *blog.ValidationError
		if errors.As(err, &ve) {
			form.Errors = make(map[string]string, len(ve.Fields))
			for _, f := range ve.Fields {
				form.Errors[f.Field] = f.Message
			}
		}
		s.renderCreate(w, http.StatusUnprocessableEntity, form)
		return
	}
	s.dispatch(r, "generate", func(ctx context.Context) error {
		return s.wf.Generate(ctx, req)
	})
	redirectToCreate(w, r)
}

func (s *Server) handleFormFeedback(w http.ResponseWriter, r *http.Request) {
	text := r.PostFormValue("message")
	// the chat box doubles as the image prompt when prefixed with /image
	if rest, ok := workflow.ParseImageCommand(text); ok {
		s.dispatch(r, "image", func(ctx context.Context) error {
			return s.wf.RegenerateImage(ctx, rest)
		})
	} else {
		s.dispatch(r, "feedback", func(ctx context.Context) error {
			return s.wf.SubmitFeedback(ctx, text)
		})
	}
	redirectToCreate(w, r)
}

func (s *Server) handleFormImage(w http.ResponseWriter, r *http.Request) {
	feedback := r.PostFormValue("image_feedback")
	s.dispatch(r, "image", func(ctx context.Context) error {
		return s.wf.RegenerateImage(ctx, feedback)
	})
	redirectToCreate(w, r)
}

func (s *Server) handleFormNew(w http.ResponseWriter, r *http.Request) {
	if err := s.wf.NewBlog(r.Context()); err != nil {
		s.logger.Error("new blog failed", zap.Error(err))
		s.setFlash(refusalMessage(err))
	}
	redirectToCreate(w, r)
}

func (s *Server) handleFormContent(w http.ResponseWriter, r *http.Request) {
	if err := s.wf.SaveEditedContent(r.Context(), r.PostFormValue("content")); err != nil {
		s.setFlash(refusalMessage(err))
	}
	redirectToCreate(w, r)
}

// handleExport downloads the current draft as HTML or Markdown.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := publisher.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	state := s.wf.Snapshot().State
	body, err := publisher.Export(state, format, publisher.Params{Author: r.URL.Query().Get("author")})
	if errors.Is(err, publisher.ErrNoDraft) {
		http.Error(w, "no draft yet", http.StatusConflict)
		return
	}
	if err != nil {
		s.logger.Error("export failed", zap.Error(err))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+publisher.Filename(state.DraftArticle.Title, format)+`"`)
	_, _ = w.Write(body)
}

// parseGenerateForm reads the form into a request and validates it. URL
// lists are one per line.
func parseGenerateForm(r *http.Request) (blog.GenerationRequest, formView, error) {
	form := formView{
		Topic:          r.PostFormValue("topic"),
		Tone:           r.PostFormValue("tone"),
		ToneCustom:     r.PostFormValue("tone_custom"),
		Audience:       r.PostFormValue("audience"),
		AudienceCustom: r.PostFormValue("audience_custom"),
		Length:         r.PostFormValue("length"),
		NumOutlines:    r.PostFormValue("num_outlines"),
		Keywords:       r.PostFormValue("keywords"),
		ReferenceURLs:  r.PostFormValue("reference_urls"),
		CustomURLs:     r.PostFormValue("custom_urls"),
	}
	length, _ := strconv.Atoi(strings.TrimSpace(form.Length))
	sections, _ := strconv.Atoi(strings.TrimSpace(form.NumOutlines))

	var ve blog.ValidationError
	refs, err := collectURLs(form.ReferenceURLs)
	if err != nil {
		ve.Fields = append(ve.Fields, blog.FieldError{Field: "reference_urls", Message: err.Error()})
	}
	custom, err := collectURLs(form.CustomURLs)
	if err != nil {
		ve.Fields = append(ve.Fields, blog.FieldError{Field: "custom_urls", Message: err.Error()})
	}

	req := blog.GenerationRequest{
		Topic:          strings.TrimSpace(form.Topic),
		Tone:           blog.ParseChoice(form.Tone, form.ToneCustom),
		TargetAudience: blog.ParseChoice(form.Audience, form.AudienceCustom),
		Length:         length,
		NumOutlines:    sections,
		Keywords:       strings.TrimSpace(form.Keywords),
		ReferenceURLs:  refs,
		CustomURLs:     custom,
	}
	if err := req.Validate(); err != nil {
		var inner *blog.ValidationError
		if errors.As(err, &inner) {
			ve.Fields = append(ve.Fields, inner.Fields...)
		}
	}
	if len(ve.Fields) > 0 {
		return req, form, &ve
	}
	return req, form, nil
}

func collectURLs(text string) ([]string, error) {
	var list blog.URLList
	for _, u := range trimLines(text) {
		if err := list.Add(u); err != nil {
			return list.Items(), err
		}
	}
	return list.Items(), nil
}
