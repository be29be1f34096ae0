package aggregates

import (
	"errors"
	"fmt"
	"time"

	"stackit/domain/config"
	"stackit/domain/core/entities"
	"stackit/domain/core/valueobjects"
	"stackit/domain/events"
	pkgerrors "stackit/pkg/errors"
)

// ErrIncompleteQuestion is returned by Validate for payloads that cannot be shown
var ErrIncompleteQuestion = errors.New("incomplete question")

// Question is the aggregate root for one question and its ordered answers.
// Answer order is display order; entries are appended and only ever removed
// by rolling back a failed submission.
type Question struct {
	id      valueobjects.QuestionID
	title   string
	body    string
	answers []*entities.Answer
	events  []events.DomainEvent
}

// NewQuestion creates a question from authority data
func NewQuestion(id valueobjects.QuestionID, title, body string, answers []*entities.Answer) *Question {
	list := make([]*entities.Answer, 0, len(answers))
	for _, a := range answers {
		if a != nil {
			list = append(list, a)
		}
	}
	return &Question{
		id:      id,
		title:   title,
		body:    body,
		answers: list,
		events:  []events.DomainEvent{},
	}
}

// ID returns the question's identifier
func (q *Question) ID() valueobjects.QuestionID {
	return q.id
}

// Title returns the question title
func (q *Question) Title() string {
	return q.title
}

// Body returns the question body
func (q *Question) Body() string {
	return q.body
}

// Answers returns a copy of the answer list
func (q *Question) Answers() []*entities.Answer {
	out := make([]*entities.Answer, len(q.answers))
	for i, a := range q.answers {
		out[i] = a.Clone()
	}
	return out
}

// AnswerCount returns the number of answers, pending ones included
func (q *Question) AnswerCount() int {
	return len(q.answers)
}

// PendingCount returns the number of unconfirmed answers
func (q *Question) PendingCount() int {
	n := 0
	for _, a := range q.answers {
		if a.IsPending() {
			n++
		}
	}
	return n
}

// IsSettled reports whether every optimistic insert has been reconciled
func (q *Question) IsSettled() bool {
	return q.PendingCount() == 0
}

// Validate checks that the question can be displayed as loaded
func (q *Question) Validate(cfg *config.DomainConfig) error {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if cfg.RequireTitle && q.title == "" {
		return fmt.Errorf("%w: missing title", ErrIncompleteQuestion)
	}
	if cfg.RequireBody && q.body == "" {
		return fmt.Errorf("%w: missing body", ErrIncompleteQuestion)
	}
	if len(q.answers) < cfg.MinAnswerCount {
		return fmt.Errorf("%w: %d answers, need at least %d", ErrIncompleteQuestion, len(q.answers), cfg.MinAnswerCount)
	}
	return nil
}

// Vote applies the caller's vote to the answer named by ref. It reports
// whether the count changed; a repeated vote is a no-op.
func (q *Question) Vote(ref string, seq uint64) (bool, error) {
	idx := q.indexOf(ref)
	if idx < 0 {
		return false, pkgerrors.NewNotFoundError("answer").WithDetails(map[string]interface{}{"answer_id": ref})
	}
	answer := q.answers[idx]
	if answer.IsPending() {
		return false, pkgerrors.NewConflictError("answer is still being submitted").WithCode("ANSWER_PENDING")
	}
	if !answer.Vote(seq) {
		return false, nil
	}

	q.addEvent(events.NewAnswerVoted(q.id.String(), ref, answer.Votes(), time.Now()))
	return true, nil
}

// AppendPending inserts an unconfirmed answer at the end of the list
func (q *Question) AppendPending(text valueobjects.AnswerText, seq uint64) *entities.Answer {
	answer := entities.Stamped(entities.NewPendingAnswer(text), seq)
	q.answers = append(q.answers, answer)
	local, _ := answer.LocalID()
	q.addEvent(events.NewAnswerSubmitted(q.id.String(), local.String(), time.Now()))
	return answer.Clone()
}

// Confirm swaps the pending entry for the authority's record, keeping its
// position. It reports false when the entry is gone.
func (q *Question) Confirm(local valueobjects.LocalID, record *entities.Answer, seq uint64) bool {
	idx := q.indexOfLocal(local)
	if idx < 0 || record == nil {
		return false
	}
	if id, ok := record.ID(); ok {
		// the authority's record may already be present from a refresh
		if dup := q.indexOf(id.String()); dup >= 0 {
			q.answers = append(q.answers[:dup], q.answers[dup+1:]...)
			if dup < idx {
				idx--
			}
		}
		q.addEvent(events.NewAnswerConfirmed(q.id.String(), local.String(), id.String(), time.Now()))
	}
	q.answers[idx] = entities.Stamped(record, seq)
	return true
}

// Rollback removes the pending entry entirely
func (q *Question) Rollback(local valueobjects.LocalID, reason string) bool {
	idx := q.indexOfLocal(local)
	if idx < 0 {
		return false
	}
	q.answers = append(q.answers[:idx], q.answers[idx+1:]...)
	q.addEvent(events.NewAnswerRolledBack(q.id.String(), local.String(), reason, time.Now()))
	return true
}

// Merge folds a fresh authority copy into the question. Entries changed
// locally after since keep their local values and pending entries stay at the
// end. Every other entry takes the authority's values, except that answers in
// confirmed keep the caller's vote flag. It returns the number of entries kept
// from local state.
func (q *Question) Merge(fresh *Question, since uint64, confirmed map[string]bool) int {
	local := make(map[string]*entities.Answer, len(q.answers))
	for _, a := range q.answers {
		if !a.IsPending() {
			local[a.Ref().String()] = a
		}
	}

	kept := 0
	merged := make([]*entities.Answer, 0, len(fresh.answers)+len(q.answers))
	seen := make(map[string]bool, len(fresh.answers))
	for _, a := range fresh.answers {
		key := a.Ref().String()
		seen[key] = true
		if mine, ok := local[key]; ok && mine.Touched() > since {
			merged = append(merged, mine)
			kept++
			continue
		}
		if confirmed[key] && !a.VotedByUser() {
			merged = append(merged, entities.Voted(a))
			continue
		}
		merged = append(merged, a.Clone())
	}

	// confirmed after the refresh was dispatched
	for _, a := range q.answers {
		if a.IsPending() || seen[a.Ref().String()] || a.Touched() <= since {
			continue
		}
		merged = append(merged, a)
		kept++
	}

	for _, a := range q.answers {
		if a.IsPending() {
			merged = append(merged, a)
			kept++
		}
	}

	q.title = fresh.title
	q.body = fresh.body
	q.answers = merged
	return kept
}

// Clone returns a deep copy without pending events
func (q *Question) Clone() *Question {
	return &Question{
		id:      q.id,
		title:   q.title,
		body:    q.body,
		answers: q.Answers(),
		events:  []events.DomainEvent{},
	}
}

// GetUncommittedEvents returns all uncommitted domain events
func (q *Question) GetUncommittedEvents() []events.DomainEvent {
	out := make([]events.DomainEvent, len(q.events))
	copy(out, q.events)
	return out
}

// MarkEventsAsCommitted clears all uncommitted events
func (q *Question) MarkEventsAsCommitted() {
	q.events = []events.DomainEvent{}
}

// Private helper methods

func (q *Question) addEvent(event events.DomainEvent) {
	q.events = append(q.events, event)
}

func (q *Question) indexOf(ref string) int {
	for i, a := range q.answers {
		if a.Matches(ref) {
			return i
		}
	}
	return -1
}

func (q *Question) indexOfLocal(local valueobjects.LocalID) int {
	for i, a := range q.answers {
		if id, ok := a.LocalID(); ok && id.Equals(local) {
			return i
		}
	}
	return -1
}
