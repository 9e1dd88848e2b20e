package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"pdf-qa-rag/internal/models"
	"pdf-qa-rag/internal/vectorstore"
)

// Answerer answers a question from a store.
type Answerer interface {
	Query(ctx context.Context, store vectorstore.Store, question string) (*models.Answer, error)
}

// handle guards one store. Searches hold the read lock; retiring the store
// takes the write lock, so Close runs after the last search returns.
type handle struct {
	mu     sync.RWMutex
	store  vectorstore.Store
	closed bool
}

func (h *handle) retire() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	if err := h.store.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close replaced vector store")
	}
}

// Session is the state of one user: the current document store and the chat
// transcript.
type Session struct {
	ID        string
	CreatedAt time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	lastUsed atomic.Int64
	current  atomic.Pointer[handle]

	mu       sync.Mutex
	messages []models.Message
}

func newSession(id string, now time.Time) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{ID: id, CreatedAt: now, ctx: ctx, cancel: cancel}
	s.lastUsed.Store(now.UnixNano())
	return s
}

// Context is cancelled when the session is closed.
func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// Processed reports whether a document store is available.
func (s *Session) Processed() bool {
	return s.current.Load() != nil
}

// ReplaceStore makes store the session's store. The previous store is closed
// once no search is using it. Searches see either store in full.
func (s *Session) ReplaceStore(store vectorstore.Store) {
	s.touch()
	old := s.current.Swap(&handle{store: store})
	if old != nil {
		old.retire()
	}
	log.Info().Str("session", s.ID).Int("chunks", store.Count()).Msg("Replaced vector store")
}

// WithStore runs fn with the current store, keeping it open until fn
// returns. It fails with models.ErrNoDocument when no store is present.
func (s *Session) WithStore(fn func(vectorstore.Store) error) error {
	for {
		h := s.current.Load()
		if h == nil {
			return models.ErrNoDocument
		}
		h.mu.RLock()
		if h.closed {
			// swapped out between Load and RLock
			h.mu.RUnlock()
			continue
		}
		err := fn(h.store)
		h.mu.RUnlock()
		return err
	}
}

// Ask records question in the transcript, answers it from the current store
// and records the answer. A failed answer leaves only the question behind.
func (s *Session) Ask(ctx context.Context, answerer Answerer, question string) (*models.Answer, error) {
	s.touch()
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", models.ErrInvalidInput)
	}
	if !s.Processed() {
		return nil, models.ErrNoDocument
	}

	s.appendMessage(models.RoleUser, question)

	var answer *models.Answer
	err := s.WithStore(func(store vectorstore.Store) error {
		var err error
		answer, err = answerer.Query(ctx, store, question)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.appendMessage(models.RoleAssistant, answer.Content)
	return answer, nil
}

func (s *Session) appendMessage(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, models.Message{Role: role, Content: content, CreatedAt: time.Now()})
}

// History returns a copy of the transcript.
func (s *Session) History() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}

// Close cancels work bound to the session and closes its store.
func (s *Session) Close() {
	s.cancel()
	if old := s.current.Swap(nil); old != nil {
		old.retire()
	}
}
