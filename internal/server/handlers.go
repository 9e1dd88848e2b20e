package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"pdf-qa-rag/internal/config"
	"pdf-qa-rag/internal/describe"
	"pdf-qa-rag/internal/helper"
	"pdf-qa-rag/internal/metrics"
	"pdf-qa-rag/internal/models"
	"pdf-qa-rag/internal/parser"
	"pdf-qa-rag/internal/render"
	"pdf-qa-rag/internal/session"
)

type handlers struct {
	cfg      *config.ServerConfig
	sessions *session.Manager
	ingester Ingester
	answerer session.Answerer
	metrics  *metrics.Metrics
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

type SessionResponse struct {
	ID string `json:"id"`
}

type UploadResponse struct {
	File      string           `json:"file"`
	Pages     int              `json:"pages"`
	Documents int              `json:"documents"`
	Chunks    int              `json:"chunks"`
	Images    *describe.Report `json:"images"`
}

type AskRequest struct {
	Question string `json:"question"`
}

type AskResponse struct {
	Answer     string               `json:"answer"`
	AnswerHTML string               `json:"answer_html"`
	Sources    []models.ScoredChunk `json:"sources"`
}

type MessagesResponse struct {
	Messages []models.Message `json:"messages"`
}

func (h *handlers) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return nil, false
	}
	return s, true
}

func (h *handlers) createSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Create()
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, SessionResponse{ID: s.ID})
}

func (h *handlers) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) uploadDocument(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		h.handleError(w, r, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !slices.Contains(parser.SupportedExtensions, ext) {
		h.handleError(w, r, fmt.Errorf("%w: unsupported file type %q", models.ErrInvalidInput, ext))
		return
	}

	path, cleanup, err := helper.WriteTempFile(file, h.cfg.UploadDir, ext)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	defer cleanup()

	// stop processing when either the client goes away or the session ends
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.Context(), cancel)
	defer stop()

	hlog.FromRequest(r).Info().Str("session", s.ID).Str("file", header.Filename).Int64("size", header.Size).Msg("Processing upload")
	store, res, err := h.ingester.Ingest(ctx, path)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if s.Context().Err() != nil {
		_ = store.Close()
		h.handleError(w, r, session.ErrSessionNotFound)
		return
	}
	s.ReplaceStore(store)

	writeJSON(w, http.StatusOK, UploadResponse{
		File:      header.Filename,
		Pages:     res.Pages,
		Documents: len(res.Documents),
		Chunks:    store.Count(),
		Images:    res.Report,
	})
}

func (h *handlers) ask(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleError(w, r, fmt.Errorf("%w: invalid request body", models.ErrInvalidInput))
		return
	}

	answer, err := s.Ask(r.Context(), h.answerer, req.Question)
	h.metrics.QuestionAnswered(err)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	html, err := render.MarkdownToHTML(answer.Content)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Failed to render answer")
	}
	writeJSON(w, http.StatusOK, AskResponse{Answer: answer.Content, AnswerHTML: html, Sources: answer.Sources})
}

func (h *handlers) messages(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, MessagesResponse{Messages: s.History()})
}

func (h *handlers) clearMessages(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) sampleQuestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"questions": models.SampleQuestions})
}

// statusFor maps an error to an HTTP status code.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNoDocument):
		return http.StatusConflict
	case errors.Is(err, models.ErrExtraction), errors.Is(err, models.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrParseService),
		errors.Is(err, models.ErrDescription),
		errors.Is(err, models.ErrEmbedding),
		errors.Is(err, models.ErrAnswer):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled):
		return 499
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	event := hlog.FromRequest(r).Warn()
	if status >= http.StatusInternalServerError {
		event = hlog.FromRequest(r).Error()
	}
	event.Err(err).Int("status", status).Msg("Request failed")
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
