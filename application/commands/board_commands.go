package commands

import (
	"stackit/application/board"
	"stackit/pkg/utils"
)

// LoadQuestionCommand points a session's board at a question
type LoadQuestionCommand struct {
	Session    string `json:"session" validate:"required"`
	QuestionID string `json:"questionId" validate:"required,max=200"`
}

// Validate validates the command
func (c *LoadQuestionCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// CastVoteCommand votes on an answer
type CastVoteCommand struct {
	Session  string `json:"session" validate:"required"`
	AnswerID string `json:"answerId" validate:"required,max=200"`
}

// Validate validates the command
func (c *CastVoteCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// SubmitAnswerCommand submits an answer. Blank text is rejected by the board
// itself so the caller sees EmptyInput rather than a validation error.
type SubmitAnswerCommand struct {
	Session string `json:"session" validate:"required"`
	Text    string `json:"text"`

	// Submission is set by the handler
	Submission *board.Submission `json:"-"`
}

// Validate validates the command
func (c *SubmitAnswerCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// UpdateDraftCommand replaces a board's input buffer
type UpdateDraftCommand struct {
	Session string `json:"session" validate:"required"`
	Text    string `json:"text"`
}

// Validate validates the command
func (c *UpdateDraftCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// RefreshBoardCommand runs one reconciliation pass
type RefreshBoardCommand struct {
	Session string `json:"session" validate:"required"`

	// Applied is set by the handler
	Applied bool `json:"-"`
}

// Validate validates the command
func (c *RefreshBoardCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// DrainNoticesCommand takes the pending failure notices off a board
type DrainNoticesCommand struct {
	Session string `json:"session" validate:"required"`

	// Notices is set by the handler
	Notices []board.Notice `json:"-"`
}

// Validate validates the command
func (c *DrainNoticesCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// CloseBoardCommand tears a session down
type CloseBoardCommand struct {
	Session string `json:"session" validate:"required"`
}

// Validate validates the command
func (c *CloseBoardCommand) Validate() error {
	return utils.ValidateStruct(c)
}
