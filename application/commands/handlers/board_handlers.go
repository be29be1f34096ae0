package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"stackit/application/board"
	"stackit/application/commands"
	"stackit/application/commands/bus"
	pkgerrors "stackit/pkg/errors"
)

// SessionStore resolves session keys to boards
type SessionStore interface {
	Get(key string) (*board.Session, bool)
	Remove(key string) bool
}

// BoardHandlers executes board commands against the sessions in a store
type BoardHandlers struct {
	sessions SessionStore
	logger   *zap.Logger
}

// NewBoardHandlers creates a new handler set
func NewBoardHandlers(sessions SessionStore, logger *zap.Logger) *BoardHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BoardHandlers{
		sessions: sessions,
		logger:   logger,
	}
}

// Register registers every board command on b
func (h *BoardHandlers) Register(b *bus.CommandBus) error {
	registrations := []struct {
		cmd     bus.Command
		handler bus.CommandHandlerFunc
	}{
		{&commands.LoadQuestionCommand{}, h.handleLoadQuestion},
		{&commands.CastVoteCommand{}, h.handleCastVote},
		{&commands.SubmitAnswerCommand{}, h.handleSubmitAnswer},
		{&commands.UpdateDraftCommand{}, h.handleUpdateDraft},
		{&commands.RefreshBoardCommand{}, h.handleRefresh},
		{&commands.DrainNoticesCommand{}, h.handleDrainNotices},
		{&commands.CloseBoardCommand{}, h.handleCloseBoard},
	}
	for _, r := range registrations {
		if err := b.Register(r.cmd, r.handler); err != nil {
			return err
		}
	}
	return nil
}

func (h *BoardHandlers) session(key string) (*board.Session, error) {
	session, ok := h.sessions.Get(key)
	if !ok {
		return nil, pkgerrors.NewNotFoundError("session")
	}
	return session, nil
}

func (h *BoardHandlers) handleLoadQuestion(ctx context.Context, c bus.Command) error {
	cmd, ok := c.(*commands.LoadQuestionCommand)
	if !ok {
		return invalidCommand(c)
	}
	session, err := h.session(cmd.Session)
	if err != nil {
		return err
	}
	return session.Board.Load(cmd.QuestionID)
}

func (h *BoardHandlers) handleCastVote(ctx context.Context, c bus.Command) error {
	cmd, ok := c.(*commands.CastVoteCommand)
	if !ok {
		return invalidCommand(c)
	}
	session, err := h.session(cmd.Session)
	if err != nil {
		return err
	}
	return session.Board.Vote(cmd.AnswerID)
}

func (h *BoardHandlers) handleSubmitAnswer(ctx context.Context, c bus.Command) error {
	cmd, ok := c.(*commands.SubmitAnswerCommand)
	if !ok {
		return invalidCommand(c)
	}
	session, err := h.session(cmd.Session)
	if err != nil {
		return err
	}
	sub, err := session.Board.SubmitAnswer(cmd.Text)
	if err != nil {
		return err
	}
	cmd.Submission = sub
	return nil
}

func (h *BoardHandlers) handleUpdateDraft(ctx context.Context, c bus.Command) error {
	cmd, ok := c.(*commands.UpdateDraftCommand)
	if !ok {
		return invalidCommand(c)
	}
	session, err := h.session(cmd.Session)
	if err != nil {
		return err
	}
	session.Board.SetDraft(cmd.Text)
	return nil
}

func (h *BoardHandlers) handleRefresh(ctx context.Context, c bus.Command) error {
	cmd, ok := c.(*commands.RefreshBoardCommand)
	if !ok {
		return invalidCommand(c)
	}
	session, err := h.session(cmd.Session)
	if err != nil {
		return err
	}
	applied, err := session.Board.Refresh(ctx)
	if err != nil {
		return err
	}
	cmd.Applied = applied
	return nil
}

func (h *BoardHandlers) handleDrainNotices(ctx context.Context, c bus.Command) error {
	cmd, ok := c.(*commands.DrainNoticesCommand)
	if !ok {
		return invalidCommand(c)
	}
	session, err := h.session(cmd.Session)
	if err != nil {
		return err
	}
	cmd.Notices = session.Board.DrainNotices()
	return nil
}

func (h *BoardHandlers) handleCloseBoard(ctx context.Context, c bus.Command) error {
	cmd, ok := c.(*commands.CloseBoardCommand)
	if !ok {
		return invalidCommand(c)
	}
	if !h.sessions.Remove(cmd.Session) {
		return pkgerrors.NewNotFoundError("session")
	}
	h.logger.Debug("session closed", zap.String("session", cmd.Session))
	return nil
}

func invalidCommand(c bus.Command) error {
	return pkgerrors.NewInternalError(fmt.Sprintf("invalid command type %T", c))
}
