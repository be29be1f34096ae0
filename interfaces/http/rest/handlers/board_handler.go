package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"stackit/application/board"
	"stackit/application/commands"
	"stackit/application/commands/bus"
	"stackit/application/queries"
	querybus "stackit/application/queries/bus"
	"stackit/pkg/auth"
	"stackit/pkg/common"
	pkgerrors "stackit/pkg/errors"
)

const maxBodyBytes = 64 << 10

// SessionStore creates and resolves board sessions
type SessionStore interface {
	Create() *board.Session
	Get(key string) (*board.Session, bool)
}

// StreamObserver is told when event streams open and close
type StreamObserver interface {
	StreamOpened()
	StreamClosed()
}

// BoardHandler handles board-related HTTP requests
type BoardHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	sessions   SessionStore
	errors     *pkgerrors.ErrorHandler
	streams    StreamObserver
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewBoardHandler creates a new board handler; streams may be nil.
// allowedOrigins limits which browser origins may open a stream.
func NewBoardHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	sessions SessionStore,
	errs *pkgerrors.ErrorHandler,
	streams StreamObserver,
	allowedOrigins []string,
	logger *zap.Logger,
) *BoardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if errs == nil {
		errs = pkgerrors.NewErrorHandler(logger, false)
	}
	return &BoardHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		sessions:   sessions,
		errors:     errs,
		streams:    streams,
		upgrader:   newUpgrader(allowedOrigins),
		logger:     logger,
	}
}

// CreateSessionResponse is returned by POST /boards
type CreateSessionResponse struct {
	Session string `json:"session"`
}

// TextRequest is the body of the draft and answer routes
type TextRequest struct {
	Text string `json:"text"`
}

// SubmitAnswerResponse is returned by POST /boards/{session}/answers
type SubmitAnswerResponse struct {
	LocalID  string            `json:"localId"`
	Answer   *board.AnswerView `json:"answer,omitempty"`
	Snapshot board.Snapshot    `json:"snapshot"`
}

// RefreshResponse is returned by POST /boards/{session}/refresh
type RefreshResponse struct {
	Applied  bool           `json:"applied"`
	Snapshot board.Snapshot `json:"snapshot"`
}

// NoticesResponse is returned by GET /boards/{session}/notices
type NoticesResponse struct {
	Notices []board.Notice `json:"notices"`
}

// CreateSession handles POST /boards
func (h *BoardHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.Create()
	session.Identity.SetToken(auth.ExtractBearer(r))

	h.logger.Info("board session created", zap.String("session", session.Key))
	common.RespondJSON(w, r, http.StatusCreated, CreateSessionResponse{Session: session.Key})
}

// GetBoard handles GET /boards/{session}
func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	h.respondSnapshot(w, r, http.StatusOK)
}

// LoadQuestion handles PUT /boards/{session}/question/{questionID}
func (h *BoardHandler) LoadQuestion(w http.ResponseWriter, r *http.Request) {
	cmd := &commands.LoadQuestionCommand{
		Session:    chi.URLParam(r, "session"),
		QuestionID: chi.URLParam(r, "questionID"),
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondSnapshot(w, r, http.StatusAccepted)
}

// UpdateDraft handles PUT /boards/{session}/draft
func (h *BoardHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("Invalid request body: "+err.Error()))
		return
	}

	cmd := &commands.UpdateDraftCommand{
		Session: chi.URLParam(r, "session"),
		Text:    req.Text,
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondSnapshot(w, r, http.StatusOK)
}

// CastVote handles POST /boards/{session}/answers/{answerID}/vote
func (h *BoardHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	cmd := &commands.CastVoteCommand{
		Session:  chi.URLParam(r, "session"),
		AnswerID: chi.URLParam(r, "answerID"),
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondSnapshot(w, r, http.StatusOK)
}

// SubmitAnswer handles POST /boards/{session}/answers. With ?wait=true the
// response is held until the authority settles the submission.
func (h *BoardHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("Invalid request body: "+err.Error()))
		return
	}

	session := chi.URLParam(r, "session")
	cmd := &commands.SubmitAnswerCommand{Session: session, Text: req.Text}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	status := http.StatusAccepted
	resp := SubmitAnswerResponse{LocalID: cmd.Submission.LocalID()}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		err := cmd.Submission.Wait(r.Context())
		meta := common.ExtractMetadata(r.Context())
		h.logger.Debug("submission settled",
			zap.String("session", meta.Session),
			zap.String("user_id", meta.UserID),
			zap.String("local_id", resp.LocalID),
			zap.Duration("elapsed", meta.Duration),
			zap.Error(err))
		if err != nil {
			h.errors.Handle(w, r, err)
			return
		}
		if answer, ok := cmd.Submission.Answer(); ok {
			resp.Answer = &answer
		}
		status = http.StatusCreated
	}

	snap, err := queries.AskBoard(r.Context(), h.queryBus, session)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	resp.Snapshot = snap
	common.RespondJSON(w, r, status, resp)
}

// Refresh handles POST /boards/{session}/refresh
func (h *BoardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session")
	cmd := &commands.RefreshBoardCommand{Session: session}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	snap, err := queries.AskBoard(r.Context(), h.queryBus, session)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, RefreshResponse{Applied: cmd.Applied, Snapshot: snap})
}

// DrainNotices handles GET /boards/{session}/notices
func (h *BoardHandler) DrainNotices(w http.ResponseWriter, r *http.Request) {
	cmd := &commands.DrainNoticesCommand{Session: chi.URLParam(r, "session")}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	notices := cmd.Notices
	if notices == nil {
		notices = []board.Notice{}
	}
	common.RespondJSON(w, r, http.StatusOK, NoticesResponse{Notices: notices})
}

// CloseSession handles DELETE /boards/{session}
func (h *BoardHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	cmd := &commands.CloseBoardCommand{Session: chi.URLParam(r, "session")}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	meta := common.ExtractMetadata(r.Context())
	h.logger.Info("board session closed", zap.String("session", meta.Session), zap.String("user_id", meta.UserID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *BoardHandler) respondSnapshot(w http.ResponseWriter, r *http.Request, status int) {
	snap, err := queries.AskBoard(r.Context(), h.queryBus, chi.URLParam(r, "session"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, status, snap)
}
