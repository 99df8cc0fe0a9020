package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blog_generator/blog"
	"blog_generator/genclient"
	"blog_generator/generator"
)

func newTestBackend(t *testing.T) *genclient.Client {
	t.Helper()
	agent, err := generator.NewAgent(generator.MockLLM{}, nil)
	require.NoError(t, err)
	srv, err := New(agent, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	c, err := genclient.New(ts.URL)
	require.NoError(t, err)
	return c
}

func TestBackendFullFlow(t *testing.T) {
	ctx := context.Background()
	c := newTestBackend(t)

	out, err := c.StartGeneration(ctx, "session-1", blog.GenerationRequest{
		Topic:          "Remote Work",
		Tone:           blog.Preset("Casual"),
		TargetAudience: blog.Custom("Team leads"),
		Length:         800,
		NumOutlines:    3,
	})
	require.NoError(t, err)
	assert.Equal(t, "Remote Work", out.Outlines.Title)
	assert.Len(t, out.Outlines.Outlines, 3)

	fb, err := c.SubmitFeedback(ctx, "session-1", "add a section on tooling")
	require.NoError(t, err)
	assert.Nil(t, fb.Draft)
	require.NotNil(t, fb.Outlines)
	assert.Len(t, fb.Outlines.Outlines, 4)

	fb, err = c.SubmitFeedback(ctx, "session-1", "looks good")
	require.NoError(t, err)
	require.NotNil(t, fb.Draft)
	assert.True(t, strings.HasPrefix(fb.Draft.Content, "# Remote Work"))
	assert.Len(t, fb.GeneratedImages, 1)

	img, err := c.RegenerateImage(ctx, "session-1", "warmer colors")
	require.NoError(t, err)
	assert.Len(t, img.GeneratedImages, 1)
	assert.Contains(t, img.ImagePrompt, "warmer colors")
}

func TestBackendUnknownSession(t *testing.T) {
	c := newTestBackend(t)
	_, err := c.SubmitFeedback(context.Background(), "nope", "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, genclient.ErrFeedbackFailed)
	assert.Contains(t, err.Error(), "session not found")
}

func TestBackendImageBeforeDraft(t *testing.T) {
	ctx := context.Background()
	c := newTestBackend(t)
	_, err := c.StartGeneration(ctx, "s", blog.GenerationRequest{
		Topic: "Go", Tone: blog.Preset("Technical"), TargetAudience: blog.Preset("Experts"),
		Length: 500, NumOutlines: 5,
	})
	require.NoError(t, err)

	_, err = c.RegenerateImage(ctx, "s", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 409")
}

func TestBackendRejectsBadJSON(t *testing.T) {
	agent, err := generator.NewAgent(generator.MockLLM{}, nil)
	require.NoError(t, err)
	srv, err := New(agent, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"detail"`)

	rec = httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"session_id":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewRequiresAgent(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}
