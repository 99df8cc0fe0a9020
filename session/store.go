package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"blog_generator/blog"
)

const (
	// ActiveIDKey holds the identifier of the session the client resumes.
	ActiveIDKey = "blogGeneratorSessionId"

	stateKeyPrefix = "blogGenerator_"
)

// ErrStorageRead marks a stored blob that could not be decoded.
var ErrStorageRead = errors.New("session: stored state unreadable")

// Repository is the storage port the workflow controller persists through.
type Repository interface {
	LoadSessionID(ctx context.Context) (string, bool)
	CreateSessionID(ctx context.Context) (string, error)
	LoadState(ctx context.Context, id string) (blog.WorkflowState, bool)
	SaveState(ctx context.Context, id string, state blog.WorkflowState) error
	ClearState(ctx context.Context, id string) error
}

// Store keeps one active-identifier pointer plus one blob per session id.
type Store struct {
	kv     KV
	logger *zap.Logger
	now    func() time.Time
}

// NewStore wraps kv. A nil logger disables logging.
func NewStore(kv KV, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{kv: kv, logger: logger.Named("session"), now: time.Now}
}

// StateKey is the KV key of the blob for session id.
func StateKey(id string) string {
	return stateKeyPrefix + id
}

// NewID returns "session-<unix-ms>-<9 random chars>".
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("session-%d-%s", now.UnixMilli(), suffix)
}

// LoadSessionID returns the active identifier, if any. Read failures are
// logged and reported as absent.
func (s *Store) LoadSessionID(ctx context.Context) (string, bool) {
	data, err := s.kv.Get(ctx, ActiveIDKey)
	if errors.Is(err, ErrNotFound) {
		return "", false
	}
	if err != nil {
		s.logger.Warn("load session id failed", zap.Error(err))
		return "", false
	}
	id := strings.TrimSpace(string(data))
	return id, id != ""
}

// CreateSessionID generates a fresh identifier and makes it the active one.
func (s *Store) CreateSessionID(ctx context.Context) (string, error) {
	id := NewID(s.now())
	if err := s.kv.Set(ctx, ActiveIDKey, []byte(id)); err != nil {
		return "", err
	}
	s.logger.Info("session created", zap.String("session_id", id))
	return id, nil
}

// LoadState decodes the blob stored for id. A missing or malformed blob is
// reported as absent so the caller falls back to the initial state.
func (s *Store) LoadState(ctx context.Context, id string) (blog.WorkflowState, bool) {
	data, err := s.kv.Get(ctx, StateKey(id))
	if errors.Is(err, ErrNotFound) {
		return blog.WorkflowState{}, false
	}
	if err != nil {
		s.logger.Warn("load state failed", zap.String("session_id", id), zap.Error(err))
		return blog.WorkflowState{}, false
	}
	var state blog.WorkflowState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("stored state is malformed, using defaults",
			zap.String("session_id", id),
			zap.Error(fmt.Errorf("%w: %v", ErrStorageRead, err)))
		return blog.WorkflowState{}, false
	}
	return state.Normalize(), true
}

// SaveState overwrites the blob for id with the full snapshot.
func (s *Store) SaveState(ctx context.Context, id string, state blog.WorkflowState) error {
	if id == "" {
		return errors.New("session: empty session id")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("session: encode state: %w", err)
	}
	return s.kv.Set(ctx, StateKey(id), data)
}

// ClearState removes the blob for id. The active pointer is left alone.
func (s *Store) ClearState(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.kv.Remove(ctx, StateKey(id)); err != nil {
		return err
	}
	s.logger.Info("session cleared", zap.String("session_id", id))
	return nil
}
