package genclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"blog_generator/blog"
)

const (
	generatePath        = "/generate"
	userInputPath       = "/user_input"
	regenerateImagePath = "/regenerate_image"

	maxErrorBody = 4 << 10
)

var (
	ErrGenerationFailed = errors.New("outline generation failed")
	ErrFeedbackFailed   = errors.New("feedback submission failed")
	ErrImageRegenFailed = errors.New("image regeneration failed")
)

// Client talks to the remote generation API. Every call is a single
// request/response exchange: no retries, no streaming.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the default client's overall request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http = &http.Client{Timeout: d}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("genclient: base url is required")
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("genclient")
	return c, nil
}

// StartGeneration asks the API for an outline.
func (c *Client) StartGeneration(ctx context.Context, sessionID string, req blog.GenerationRequest) (Outlines, error) {
	payload := generateReq{
		SessionID:      sessionID,
		Topic:          req.Topic,
		Tone:           req.Tone.Value(),
		Length:         req.Length,
		TargetAudience: req.TargetAudience.Value(),
		NumOutlines:    req.NumOutlines,
		Keywords:       req.Keywords,
		ReferenceURLs:  nilIfEmpty(req.ReferenceURLs),
		CustomURLs:     nilIfEmpty(req.CustomURLs),
	}
	var data apiResp
	if err := c.post(ctx, generatePath, payload, &data); err != nil {
		return Outlines{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if data.Outlines == nil {
		return Outlines{}, fmt.Errorf("%w: response has no outlines", ErrGenerationFailed)
	}
	return Outlines{Outlines: *data.Outlines, FollowUpQuestion: data.FollowUpQuestion}, nil
}

// SubmitFeedback sends free-text feedback for the current outline or draft.
func (c *Client) SubmitFeedback(ctx context.Context, sessionID, feedback string) (Feedback, error) {
	var data apiResp
	if err := c.post(ctx, userInputPath, userInputReq{SessionID: sessionID, UserFeedback: feedback}, &data); err != nil {
		return Feedback{}, fmt.Errorf("%w: %v", ErrFeedbackFailed, err)
	}
	return Feedback{
		Outlines:         data.Outlines,
		Draft:            data.DraftArticle,
		GeneratedImages:  data.GeneratedImages,
		ImagePrompt:      data.ImagePrompt,
		FollowUpQuestion: data.FollowUpQuestion,
	}, nil
}

// RegenerateImage asks for new images for the current draft.
func (c *Client) RegenerateImage(ctx context.Context, sessionID, feedback string) (Images, error) {
	var data apiResp
	if err := c.post(ctx, regenerateImagePath, regenerateImageReq{SessionID: sessionID, ImageFeedback: feedback}, &data); err != nil {
		return Images{}, fmt.Errorf("%w: %v", ErrImageRegenFailed, err)
	}
	if len(data.GeneratedImages) == 0 {
		return Images{}, fmt.Errorf("%w: response has no images", ErrImageRegenFailed)
	}
	return Images{GeneratedImages: data.GeneratedImages, ImagePrompt: data.ImagePrompt}, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed", zap.String("path", path), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("response",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var e errorResp
		if json.Unmarshal(raw, &e) == nil && e.Detail != "" {
			return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, e.Detail)
		}
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	return nil
}

func nilIfEmpty(urls []string) []string {
	if len(urls) == 0 {
		return nil
	}
	return urls
}
