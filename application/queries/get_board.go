package queries

import (
	"context"
	"errors"
	"fmt"

	"stackit/application/board"
	"stackit/application/queries/bus"
	pkgerrors "stackit/pkg/errors"
)

// GetBoardQuery represents a query for a session's board state
type GetBoardQuery struct {
	Session string
}

// Validate validates the GetBoardQuery
func (q GetBoardQuery) Validate() error {
	if q.Session == "" {
		return pkgerrors.NewValidationError("session is required")
	}
	return nil
}

// SessionLookup resolves session keys to boards
type SessionLookup interface {
	Get(key string) (*board.Session, bool)
}

// GetBoardHandler answers GetBoardQuery with a board.Snapshot
type GetBoardHandler struct {
	sessions SessionLookup
}

// NewGetBoardHandler creates a new handler
func NewGetBoardHandler(sessions SessionLookup) *GetBoardHandler {
	return &GetBoardHandler{sessions: sessions}
}

// Handle implements bus.QueryHandler
func (h *GetBoardHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(GetBoardQuery)
	if !ok {
		return nil, pkgerrors.NewInternalError(fmt.Sprintf("invalid query type %T", query))
	}
	session, ok := h.sessions.Get(q.Session)
	if !ok {
		return nil, pkgerrors.NewNotFoundError("session")
	}
	return session.Board.Snapshot(), nil
}

// AskBoard runs a GetBoardQuery and unpacks the snapshot
func AskBoard(ctx context.Context, b *bus.QueryBus, session string) (board.Snapshot, error) {
	result, err := b.Ask(ctx, GetBoardQuery{Session: session})
	if err != nil {
		return board.Snapshot{}, err
	}
	snap, ok := result.(board.Snapshot)
	if !ok {
		return board.Snapshot{}, errors.New("unexpected query result")
	}
	return snap, nil
}
