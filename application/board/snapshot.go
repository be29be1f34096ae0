package board

import (
	"stackit/domain/core/entities"
)

// AnswerView is a read-only copy of one answer
type AnswerView struct {
	ID          string `json:"id"`
	Pending     bool   `json:"pending"`
	Text        string `json:"text"`
	Votes       int    `json:"votes"`
	VotedByUser bool   `json:"votedByUser"`
}

// Snapshot is an immutable copy of the board state
type Snapshot struct {
	Status      Status       `json:"status"`
	RequestedID string       `json:"requestedId,omitempty"`
	QuestionID  string       `json:"questionId,omitempty"`
	Title       string       `json:"title,omitempty"`
	Body        string       `json:"body,omitempty"`
	Answers     []AnswerView `json:"answers"`
	Draft       string       `json:"draft"`
	LoadError   string       `json:"loadError,omitempty"`
	Settled     bool         `json:"settled"`
	Epoch       uint64       `json:"epoch"`
}

// Find returns the answer with the given id
func (s Snapshot) Find(id string) (AnswerView, bool) {
	for _, a := range s.Answers {
		if a.ID == id {
			return a, true
		}
	}
	return AnswerView{}, false
}

// Snapshot returns a copy of the current state
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := Snapshot{
		Status:      b.status,
		RequestedID: b.requestedID.String(),
		Answers:     []AnswerView{},
		Draft:       b.draft,
		Settled:     true,
		Epoch:       b.epoch,
	}
	if b.loadErr != nil {
		snap.LoadError = b.loadErr.Error()
	}
	if b.question == nil {
		return snap
	}

	snap.QuestionID = b.question.ID().String()
	snap.Title = b.question.Title()
	snap.Body = b.question.Body()
	snap.Settled = b.question.IsSettled()
	for _, a := range b.question.Answers() {
		snap.Answers = append(snap.Answers, viewOf(a))
	}
	return snap
}

func viewOf(a *entities.Answer) AnswerView {
	return AnswerView{
		ID:          a.Ref().String(),
		Pending:     a.IsPending(),
		Text:        a.Text(),
		Votes:       a.Votes(),
		VotedByUser: a.VotedByUser(),
	}
}
