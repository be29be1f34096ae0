package board

import (
	"context"
	"time"

	"stackit/domain/core/entities"
	"stackit/domain/core/valueobjects"
)

// NoticeSubmissionFailed is the kind of notice left by a rolled back answer
const NoticeSubmissionFailed = "submission_failed"

// Notice is a user-visible failure message
type Notice struct {
	Kind    string    `json:"kind"`
	LocalID string    `json:"localId,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Submission tracks one optimistic answer until the authority responds
type Submission struct {
	local  valueobjects.LocalID
	done   chan struct{}
	answer *entities.Answer
	err    error
}

func newSubmission(local valueobjects.LocalID) *Submission {
	return &Submission{
		local: local,
		done:  make(chan struct{}),
	}
}

// LocalID returns the placeholder id shown until the answer is confirmed
func (s *Submission) LocalID() string {
	return s.local.String()
}

// Done is closed once the submission has been confirmed or rolled back
func (s *Submission) Done() <-chan struct{} {
	return s.done
}

// Err returns nil while pending or after confirmation, and a SubmissionFailed
// error after a rollback
func (s *Submission) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Answer returns the confirmed answer once the submission succeeded
func (s *Submission) Answer() (AnswerView, bool) {
	select {
	case <-s.done:
	default:
		return AnswerView{}, false
	}
	if s.answer == nil {
		return AnswerView{}, false
	}
	return viewOf(s.answer), true
}

// Wait blocks until the submission settles or ctx is done
func (s *Submission) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Submission) settle(answer *entities.Answer, err error) {
	s.answer = answer
	s.err = err
	close(s.done)
}
