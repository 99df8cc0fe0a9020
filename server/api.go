package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"blog_generator/blog"
	"blog_generator/workflow"
)

// APIError is the JSON error envelope of the /api routes.
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  []blog.FieldError `json:"fields,omitempty"`
}

func writeAPIError(w http.ResponseWriter, status int, e APIError) {
	writeJSON(w, status, e)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeControllerError maps a refused controller call onto a status code.
func writeControllerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrBusy):
		writeAPIError(w, http.StatusConflict, APIError{Code: "busy", Message: err.Error()})
	case errors.Is(err, workflow.ErrWrongStage), errors.Is(err, workflow.ErrNoDraft):
		writeAPIError(w, http.StatusConflict, APIError{Code: "wrong_stage", Message: err.Error()})
	case errors.Is(err, workflow.ErrEmptyFeedback):
		writeAPIError(w, http.StatusUnprocessableEntity, APIError{Code: "empty_feedback", Message: err.Error()})
	case errors.Is(err, workflow.ErrNotLoaded):
		writeAPIError(w, http.StatusServiceUnavailable, APIError{Code: "not_loaded", Message: err.Error()})
	default:
		writeAPIError(w, http.StatusInternalServerError, APIError{Code: "internal", Message: err.Error()})
	}
}

type apiGenerateReq struct {
	Topic          string   `json:"topic"`
	Tone           string   `json:"tone"`
	ToneCustom     string   `json:"tone_custom"`
	TargetAudience string   `json:"target_audience"`
	AudienceCustom string   `json:"audience_custom"`
	Length         int      `json:"length"`
	NumOutlines    int      `json:"num_outlines"`
	Keywords       string   `json:"keywords"`
	ReferenceURLs  []string `json:"reference_urls"`
	CustomURLs     []string `json:"custom_urls"`
}

func (r apiGenerateReq) toRequest() blog.GenerationRequest {
	return blog.GenerationRequest{
		Topic:          strings.TrimSpace(r.Topic),
		Tone:           blog.ParseChoice(r.Tone, r.ToneCustom),
		TargetAudience: blog.ParseChoice(r.TargetAudience, r.AudienceCustom),
		Length:         r.Length,
		NumOutlines:    r.NumOutlines,
		Keywords:       strings.TrimSpace(r.Keywords),
		ReferenceURLs:  r.ReferenceURLs,
		CustomURLs:     r.CustomURLs,
	}
}

type apiTextReq struct {
	Text string `json:"text"`
}

type apiContentReq struct {
	Content string `json:"content"`
}

func decodeAPI(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeAPIError(w, http.StatusBadRequest, APIError{Code: "bad_request", Message: err.Error()})
		return false
	}
	return true
}

func (s *Server) handleAPIState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.wf.Snapshot())
}

// The /api calls block until the controller settles and reply with the
// resulting snapshot.

func (s *Server) handleAPIGenerate(w http.ResponseWriter, r *http.Request) {
	var body apiGenerateReq
	if !decodeAPI(w, r, &body) {
		return
	}
	req := body.toRequest()
	if err := req.Validate(); err != nil {
		apiErr := APIError{Code: "validation_failed", Message: err.Error()}
		var ve *blog.ValidationError
		if errors.As(err, &ve) {
			apiErr.Fields = ve.Fields
		}
		writeAPIError(w, http.StatusUnprocessableEntity, apiErr)
		return
	}
	s.reply(w, s.wf.Generate(r.Context(), req))
}

func (s *Server) handleAPIFeedback(w http.ResponseWriter, r *http.Request) {
	var body apiTextReq
	if !decodeAPI(w, r, &body) {
		return
	}
	s.reply(w, s.wf.SubmitFeedback(r.Context(), body.Text))
}

func (s *Server) handleAPIImage(w http.ResponseWriter, r *http.Request) {
	var body apiTextReq
	if !decodeAPI(w, r, &body) {
		return
	}
	s.reply(w, s.wf.RegenerateImage(r.Context(), body.Text))
}

func (s *Server) handleAPIReset(w http.ResponseWriter, r *http.Request) {
	s.reply(w, s.wf.NewBlog(r.Context()))
}

func (s *Server) handleAPIContent(w http.ResponseWriter, r *http.Request) {
	var body apiContentReq
	if !decodeAPI(w, r, &body) {
		return
	}
	s.reply(w, s.wf.SaveEditedContent(r.Context(), body.Content))
}

func (s *Server) reply(w http.ResponseWriter, err error) {
	if err != nil {
		writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.wf.Snapshot())
}
