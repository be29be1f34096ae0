// Package authoritystub serves a MemoryAuthority over the authority's REST
// contract so the gateway and CLI can run without the real backend.
package authoritystub

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"stackit/application/ports"
	"stackit/domain/core/valueobjects"
	"stackit/infrastructure/authority"
	"stackit/pkg/auth"
	pkgerrors "stackit/pkg/errors"
)

const maxRequestBytes = 64 << 10

// Handler serves the authority endpoints
type Handler struct {
	store  *authority.MemoryAuthority
	errors *pkgerrors.ErrorHandler
	logger *zap.Logger
}

// NewHandler creates a stub handler over store
func NewHandler(store *authority.MemoryAuthority, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:  store,
		errors: pkgerrors.NewErrorHandler(logger, false),
		logger: logger,
	}
}

// NewRouter creates the stub router
func NewRouter(store *authority.MemoryAuthority, logger *zap.Logger) http.Handler {
	h := NewHandler(store, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.errors.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/question/{questionID}", func(r chi.Router) {
		r.Get("/", h.GetQuestion)
		r.Post("/answers", h.CreateAnswer)
		r.Post("/answers/{answerID}/vote", h.CastVote)
	})

	return r
}

// GetQuestion handles GET /question/{questionID}
func (h *Handler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := valueobjects.NewQuestionID(chi.URLParam(r, "questionID"))
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	record, err := h.store.QuestionFor(r.Context(), id, auth.ExtractBearer(r))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, record)
}

// CastVote handles POST /question/{questionID}/answers/{answerID}/vote
func (h *Handler) CastVote(w http.ResponseWriter, r *http.Request) {
	token := auth.ExtractBearer(r)
	if token == "" {
		h.errors.Handle(w, r, pkgerrors.NewUnauthorizedError("sign in to vote"))
		return
	}

	questionID, err := valueobjects.NewQuestionID(chi.URLParam(r, "questionID"))
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}
	answerID, err := valueobjects.NewAnswerID(chi.URLParam(r, "answerID"))
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	if err := h.store.CastVote(r.Context(), questionID, answerID, token); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateAnswer handles POST /question/{questionID}/answers
func (h *Handler) CreateAnswer(w http.ResponseWriter, r *http.Request) {
	token := auth.ExtractBearer(r)
	if token == "" {
		h.errors.Handle(w, r, pkgerrors.NewUnauthorizedError("sign in to submit your answer"))
		return
	}

	questionID, err := valueobjects.NewQuestionID(chi.URLParam(r, "questionID"))
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	var req ports.CreateAnswerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
		return
	}

	record, err := h.store.CreateAnswer(r.Context(), questionID, req.Text, token)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.logger.Info("answer created",
		zap.String("question_id", questionID.String()),
		zap.String("answer_id", record.ID.String()))
	h.respond(w, http.StatusCreated, record)
}

func (h *Handler) respond(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
