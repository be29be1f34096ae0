package entities

import (
	"stackit/domain/core/valueobjects"
	pkgerrors "stackit/pkg/errors"
)

// AnswerRef identifies an answer in one of two regimes: a client-minted
// placeholder while the authority has not confirmed it, or the authority's own
// id afterwards. Switch on the concrete type to handle both.
type AnswerRef interface {
	String() string
	isAnswerRef()
}

// PendingRef marks an answer inserted optimistically and not yet confirmed
type PendingRef struct {
	Local valueobjects.LocalID
}

func (r PendingRef) String() string { return r.Local.String() }
func (PendingRef) isAnswerRef()     {}

// ConfirmedRef marks an answer the authority knows about
type ConfirmedRef struct {
	ID valueobjects.AnswerID
}

func (r ConfirmedRef) String() string { return r.ID.String() }
func (ConfirmedRef) isAnswerRef()     {}

// Answer is one entry of a question's answer list
type Answer struct {
	ref         AnswerRef
	text        string
	votes       int
	votedByUser bool

	// touched is the board mutation sequence of the last local change.
	// Refreshes dispatched before that sequence must not overwrite the entry.
	touched uint64
}

// NewPendingAnswer creates an unconfirmed answer with a fresh local id
func NewPendingAnswer(text valueobjects.AnswerText) *Answer {
	return &Answer{
		ref:  PendingRef{Local: valueobjects.NewLocalID()},
		text: text.String(),
	}
}

// ReconstructAnswer builds a confirmed answer from authority data
func ReconstructAnswer(id valueobjects.AnswerID, text string, votes int, votedByUser bool) (*Answer, error) {
	if id.IsZero() {
		return nil, pkgerrors.NewValidationError("answer id is required")
	}
	if votes < 0 {
		return nil, pkgerrors.NewValidationError("answer votes cannot be negative")
	}
	return &Answer{
		ref:         ConfirmedRef{ID: id},
		text:        text,
		votes:       votes,
		votedByUser: votedByUser,
	}, nil
}

// Ref returns the answer's identifier
func (a *Answer) Ref() AnswerRef {
	return a.ref
}

// IsPending reports whether the answer is still waiting for confirmation
func (a *Answer) IsPending() bool {
	_, ok := a.ref.(PendingRef)
	return ok
}

// LocalID returns the placeholder id of a pending answer
func (a *Answer) LocalID() (valueobjects.LocalID, bool) {
	if p, ok := a.ref.(PendingRef); ok {
		return p.Local, true
	}
	return valueobjects.LocalID{}, false
}

// ID returns the authority id of a confirmed answer
func (a *Answer) ID() (valueobjects.AnswerID, bool) {
	if c, ok := a.ref.(ConfirmedRef); ok {
		return c.ID, true
	}
	return valueobjects.AnswerID{}, false
}

// Text returns the answer body
func (a *Answer) Text() string {
	return a.text
}

// Votes returns the vote count
func (a *Answer) Votes() int {
	return a.votes
}

// VotedByUser reports whether the current caller has voted
func (a *Answer) VotedByUser() bool {
	return a.votedByUser
}

// Touched returns the mutation sequence of the last local change
func (a *Answer) Touched() uint64 {
	return a.touched
}

// Vote applies one vote from the current caller. It reports false when the
// caller already voted; the count and flag only ever change together.
func (a *Answer) Vote(seq uint64) bool {
	if a.votedByUser {
		return false
	}
	a.votes++
	a.votedByUser = true
	a.touched = seq
	return true
}

// Matches reports whether s names this answer in either regime
func (a *Answer) Matches(s string) bool {
	return a.ref.String() == s
}

// Clone returns an independent copy
func (a *Answer) Clone() *Answer {
	c := *a
	return &c
}

// Stamped returns a copy of a marked as changed locally at seq
func Stamped(a *Answer, seq uint64) *Answer {
	c := a.Clone()
	c.touched = seq
	return c
}

// Voted returns a copy of a flagged as voted by the current caller. The count
// is left as reported.
func Voted(a *Answer) *Answer {
	c := a.Clone()
	c.votedByUser = true
	return c
}
