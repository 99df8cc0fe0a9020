// Package backend serves the generation API (/generate, /user_input,
// /regenerate_image) on top of generator.Session. It is a local stand-in for
// the hosted service the client normally talks to.
package backend

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"blog_generator/blog"
	"blog_generator/generator"
	"blog_generator/logging"
)

type Server struct {
	agent  *generator.Agent
	store  *sessionStore
	logger *zap.Logger
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*generator.Session
}

func newStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*generator.Session)}
}

func (s *sessionStore) set(id string, sess *generator.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = sess
}

func (s *sessionStore) get(id string) (*generator.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func New(agent *generator.Agent, logger *zap.Logger) (*Server, error) {
	if agent == nil {
		return nil, errors.New("generator agent required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		agent:  agent,
		store:  newStore(),
		logger: logger.Named("backend"),
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /generate", s.handleGenerate)
	mux.HandleFunc("POST /user_input", s.handleUserInput)
	mux.HandleFunc("POST /regenerate_image", s.handleRegenerateImage)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return logging.Middleware(s.logger, mux)
}

// --- Handlers ---

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

type generateResp struct {
	Status           string             `json:"status"`
	SessionID        string             `json:"session_id"`
	CurrentStage     string             `json:"current_stage"`
	Outlines         *blog.Outlines     `json:"outlines_json,omitempty"`
	DraftArticle     *blog.DraftArticle `json:"draft_article,omitempty"`
	GeneratedImages  []string           `json:"generated_images,omitempty"`
	ImagePrompt      string             `json:"image_prompt,omitempty"`
	FollowUpQuestion string             `json:"follow_up_question,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateReq
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(req.Topic) == "" {
		writeDetail(w, http.StatusBadRequest, "session_id and topic are required")
		return
	}
	spec := generator.Spec{
		Topic:         req.Topic,
		Tone:          req.Tone,
		Audience:      req.TargetAudience,
		Words:         req.Length,
		Sections:      req.NumOutlines,
		Keywords:      req.Keywords,
		ReferenceURLs: req.ReferenceURLs,
		CustomURLs:    req.CustomURLs,
	}
	sess := generator.NewSession(req.SessionID, spec, s.agent)
	res, err := sess.Propose(r.Context())
	if err != nil {
		s.fail(w, "/generate", req.SessionID, err)
		return
	}
	s.store.set(req.SessionID, sess)
	writeJSON(w, http.StatusOK, toResp(req.SessionID, res))
}

func (s *Server) handleUserInput(w http.ResponseWriter, r *http.Request) {
	var req userInputReq
	if !decode(w, r, &req) {
		return
	}
	sess, ok := s.session(w, req.SessionID)
	if !ok {
		return
	}
	res, err := sess.Revise(r.Context(), req.UserFeedback)
	if err != nil {
		s.fail(w, "/user_input", req.SessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, toResp(req.SessionID, res))
}

func (s *Server) handleRegenerateImage(w http.ResponseWriter, r *http.Request) {
	var req regenerateImageReq
	if !decode(w, r, &req) {
		return
	}
	sess, ok := s.session(w, req.SessionID)
	if !ok {
		return
	}
	res, err := sess.RegenerateImage(r.Context(), req.ImageFeedback)
	if errors.Is(err, generator.ErrNoDraft) {
		writeDetail(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.fail(w, "/regenerate_image", req.SessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, toResp(req.SessionID, res))
}

// --- Helpers ---

func (s *Server) session(w http.ResponseWriter, id string) (*generator.Session, bool) {
	sess, ok := s.store.get(id)
	if !ok {
		writeDetail(w, http.StatusNotFound, "session not found")
	}
	return sess, ok
}

func (s *Server) fail(w http.ResponseWriter, path, sessionID string, err error) {
	s.logger.Error("request failed",
		zap.String("path", path),
		zap.String("session_id", sessionID),
		zap.Error(err))
	writeDetail(w, http.StatusInternalServerError, err.Error())
}

func toResp(id string, res generator.Result) generateResp {
	return generateResp{
		Status:           "success",
		SessionID:        id,
		CurrentStage:     string(res.Stage),
		Outlines:         res.Outlines,
		DraftArticle:     res.Draft,
		GeneratedImages:  res.Images,
		ImagePrompt:      res.ImagePrompt,
		FollowUpQuestion: res.FollowUpQuestion,
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

