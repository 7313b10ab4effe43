// Package server exposes the vacancy ingestion HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/vacradar/vacradar/internal/duplicate"
	"github.com/vacradar/vacradar/internal/vacancy"
)

// Store is the persistence surface the ingestion path needs.
type Store interface {
	CreateVacancy(ctx context.Context, text, source string) (*vacancy.Record, error)
	VacancyTexts(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

// Notifier emits fire-and-forget diagnostic messages.
type Notifier interface {
	Send(ctx context.Context, message string)
}

// Server handles vacancy ingestion. Every request rebuilds the duplicate
// index from the current corpus snapshot, so concurrent ingestion and
// reconciliation see consistent storage state without shared locks.
type Server struct {
	store     Store
	notifier  Notifier
	minLength int
	threshold float64
	logger    *zap.Logger
}

// New creates the ingestion server.
func New(store Store, notifier Notifier, minLength int, threshold float64, logger *zap.Logger) *Server {
	return &Server{
		store:     store,
		notifier:  notifier,
		minLength: minLength,
		threshold: threshold,
		logger:    logger,
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/vacancies", s.handleCreate)

	return r
}

type createRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

type createResponse struct {
	ID      int64  `json:"id"`
	Text    string `json:"text"`
	Source  string `json:"source"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error      string   `json:"error"`
	Similarity *float64 `json:"similarity,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}

	rec, err := s.ingest(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("vacancy created",
		zap.Int64("vacancy_id", rec.ID),
		zap.String("source", rec.Source),
	)
	s.notifier.Send(r.Context(), fmt.Sprintf("new vacancy %d ingested from %s", rec.ID, rec.Source))

	writeJSON(w, http.StatusCreated, createResponse{
		ID:      rec.ID,
		Text:    rec.Text,
		Source:  rec.Source,
		Message: "Vacancy created. Classification is in progress.",
	})
}

// ingest validates the input, checks it against the current corpus and
// persists the record when it is unique.
func (s *Server) ingest(ctx context.Context, req createRequest) (*vacancy.Record, error) {
	if utf8.RuneCountInString(req.Text) < s.minLength {
		return nil, &vacancy.ValidationError{
			Msg: fmt.Sprintf("vacancy text must be at least %d characters", s.minLength),
		}
	}
	if req.Source == "" {
		return nil, &vacancy.ValidationError{Msg: "source is required"}
	}

	texts, err := s.store.VacancyTexts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}

	index, err := duplicate.NewIndex(texts, s.threshold)
	if err != nil {
		return nil, fmt.Errorf("building duplicate index: %w", err)
	}

	if m := index.Check(req.Text); m.Duplicate {
		return nil, &vacancy.DuplicateError{Similarity: m.Similarity, Matched: m.Matched}
	}

	rec, err := s.store.CreateVacancy(ctx, req.Text, req.Source)
	if err != nil {
		return nil, fmt.Errorf("persisting vacancy: %w", err)
	}
	return rec, nil
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var validationErr *vacancy.ValidationError
	if errors.As(err, &validationErr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validationErr.Msg})
		return
	}

	var duplicateErr *vacancy.DuplicateError
	if errors.As(err, &duplicateErr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:      duplicateErr.Error(),
			Similarity: &duplicateErr.Similarity,
		})
		return
	}

	s.logger.Error("ingestion failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
