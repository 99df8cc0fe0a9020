// Package server is the browser front end of the blog workflow: a landing
// page, the /create workspace and a small JSON API over the same controller.
package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"blog_generator/blog"
	"blog_generator/logging"
	"blog_generator/workflow"
)

//go:embed templates/*.html
var templateFS embed.FS

// Workflow is the controller surface the pages drive.
type Workflow interface {
	Snapshot() workflow.Snapshot
	Generate(ctx context.Context, req blog.GenerationRequest) error
	SubmitFeedback(ctx context.Context, text string) error
	RegenerateImage(ctx context.Context, feedback string) error
	SaveEditedContent(ctx context.Context, html string) error
	NewBlog(ctx context.Context) error
}

type Server struct {
	wf     Workflow
	tmpl   *template.Template
	logger *zap.Logger

	// form posts run in the background; this tracks them so tests and
	// shutdown can wait.
	inflight sync.WaitGroup

	mu    sync.Mutex
	flash string
}

func New(wf Workflow, logger *zap.Logger) (*Server, error) {
	if wf == nil {
		return nil, errors.New("workflow controller required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	tmpl, err := template.New("pages").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Server{
		wf:     wf,
		tmpl:   tmpl,
		logger: logger.Named("server"),
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleLanding)
	mux.HandleFunc("GET /create", s.handleCreate)
	mux.HandleFunc("POST /create/generate", s.handleFormGenerate)
	mux.HandleFunc("POST /create/feedback", s.handleFormFeedback)
	mux.HandleFunc("POST /create/image", s.handleFormImage)
	mux.HandleFunc("POST /create/new", s.handleFormNew)
	mux.HandleFunc("POST /create/content", s.handleFormContent)
	mux.HandleFunc("GET /create/export", s.handleExport)

	mux.HandleFunc("GET /api/state", s.handleAPIState)
	mux.HandleFunc("POST /api/generate", s.handleAPIGenerate)
	mux.HandleFunc("POST /api/feedback", s.handleAPIFeedback)
	mux.HandleFunc("POST /api/image", s.handleAPIImage)
	mux.HandleFunc("POST /api/reset", s.handleAPIReset)
	mux.HandleFunc("POST /api/content", s.handleAPIContent)
	// State-changing requests from other sites are refused with 403.
	return logging.Middleware(s.logger, http.NewCrossOriginProtection().Handler(mux))
}

// Wait blocks until background form submissions have finished.
func (s *Server) Wait() {
	s.inflight.Wait()
}

// dispatch runs a controller call detached from the request so the browser
// can be redirected while generation continues.
func (s *Server) dispatch(r *http.Request, name string, fn func(ctx context.Context) error) {
	ctx := context.WithoutCancel(r.Context())
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if err := fn(ctx); err != nil {
			s.logger.Warn("submission refused", zap.String("action", name), zap.Error(err))
			s.setFlash(refusalMessage(err))
		}
	}()
}

func (s *Server) setFlash(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flash = msg
}

func (s *Server) takeFlash() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.flash
	s.flash = ""
	return msg
}

func refusalMessage(err error) string {
	switch {
	case errors.Is(err, workflow.ErrBusy):
		return "A request is already in progress. Please wait."
	case errors.Is(err, workflow.ErrEmptyFeedback):
		return "Please enter a message first."
	case errors.Is(err, workflow.ErrNoDraft):
		return "There is no draft yet."
	case errors.Is(err, workflow.ErrWrongStage):
		return "That action is not available right now."
	default:
		return "Something went wrong. Please try again."
	}
}

func redirectToCreate(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/create", http.StatusSeeOther)
}

// trimLines splits a textarea into non-empty trimmed lines.
func trimLines(v string) []string {
	var out []string
	for _, line := range strings.Split(v, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
