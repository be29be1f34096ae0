package authority

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"stackit/application/ports"
	"stackit/domain/core/aggregates"
	"stackit/domain/core/valueobjects"
	pkgerrors "stackit/pkg/errors"
)

// MemoryAuthority is a non-persistent authority used by the stub server and
// tests. Votes are tracked per credential so a second vote is rejected.
type MemoryAuthority struct {
	mu        sync.RWMutex
	questions map[string]*ports.QuestionRecord
	voters    map[string]map[string]bool
	nextID    int64
}

// NewMemoryAuthority creates an empty store
func NewMemoryAuthority() *MemoryAuthority {
	return &MemoryAuthority{
		questions: make(map[string]*ports.QuestionRecord),
		voters:    make(map[string]map[string]bool),
		nextID:    1,
	}
}

// NewSeededMemoryAuthority creates a store holding the sample question under
// the ids "sample" and "1"
func NewSeededMemoryAuthority() *MemoryAuthority {
	m := NewMemoryAuthority()
	for _, id := range []string{aggregates.SampleQuestionID, "1"} {
		record := RecordFromQuestion(aggregates.SampleQuestion())
		record.ID = valueobjects.MustQuestionID(id)
		m.Put(record)
	}
	return m
}

// RecordFromQuestion converts a question aggregate into its wire form
func RecordFromQuestion(q *aggregates.Question) *ports.QuestionRecord {
	record := &ports.QuestionRecord{
		ID:      q.ID(),
		Title:   q.Title(),
		Body:    q.Body(),
		Answers: []ports.AnswerRecord{},
	}
	for _, a := range q.Answers() {
		id, ok := a.ID()
		if !ok {
			continue
		}
		record.Answers = append(record.Answers, ports.AnswerRecord{
			ID:          id,
			Text:        a.Text(),
			Votes:       a.Votes(),
			VotedByUser: a.VotedByUser(),
		})
	}
	return record
}

// Put stores a question, replacing any question with the same id
func (m *MemoryAuthority) Put(record *ports.QuestionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := cloneRecord(record)
	for _, a := range clone.Answers {
		if n, err := strconv.ParseInt(a.ID.String(), 10, 64); err == nil && n >= m.nextID {
			m.nextID = n + 1
		}
	}
	m.questions[clone.ID.String()] = clone
}

// FetchQuestion implements ports.Authority. Without a credential the
// votedByUser flags are all false.
func (m *MemoryAuthority) FetchQuestion(ctx context.Context, id valueobjects.QuestionID) (*ports.QuestionRecord, error) {
	return m.QuestionFor(ctx, id, "")
}

// QuestionFor returns the question as seen by the caller holding credential
func (m *MemoryAuthority) QuestionFor(ctx context.Context, id valueobjects.QuestionID, credential string) (*ports.QuestionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	q, ok := m.questions[id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("question")
	}
	out := cloneRecord(q)
	for i := range out.Answers {
		out.Answers[i].VotedByUser = credential != "" && m.voters[voteKey(id, out.Answers[i].ID)][credential]
	}
	return out, nil
}

// CastVote implements ports.Authority
func (m *MemoryAuthority) CastVote(ctx context.Context, questionID valueobjects.QuestionID, answerID valueobjects.AnswerID, credential string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if credential == "" {
		return pkgerrors.NewUnauthorizedError("sign in to vote")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	answer, err := m.findAnswer(questionID, answerID)
	if err != nil {
		return err
	}

	key := voteKey(questionID, answerID)
	if m.voters[key][credential] {
		return pkgerrors.NewConflictError("already voted")
	}
	if m.voters[key] == nil {
		m.voters[key] = make(map[string]bool)
	}
	m.voters[key][credential] = true
	answer.Votes++
	return nil
}

// CreateAnswer implements ports.Authority
func (m *MemoryAuthority) CreateAnswer(ctx context.Context, questionID valueobjects.QuestionID, text string, credential string) (*ports.AnswerRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if credential == "" {
		return nil, pkgerrors.NewUnauthorizedError("sign in to submit your answer")
	}
	if strings.TrimSpace(text) == "" {
		return nil, pkgerrors.NewEmptyInputError("text")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.questions[questionID.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("question")
	}

	record := ports.AnswerRecord{
		ID:   valueobjects.NumericAnswerID(json.Number(strconv.FormatInt(m.nextID, 10))),
		Text: text,
	}
	m.nextID++
	q.Answers = append(q.Answers, record)
	return &record, nil
}

func (m *MemoryAuthority) findAnswer(questionID valueobjects.QuestionID, answerID valueobjects.AnswerID) (*ports.AnswerRecord, error) {
	q, ok := m.questions[questionID.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("question")
	}
	for i := range q.Answers {
		if q.Answers[i].ID.Equals(answerID) {
			return &q.Answers[i], nil
		}
	}
	return nil, pkgerrors.NewNotFoundError("answer")
}

func voteKey(questionID valueobjects.QuestionID, answerID valueobjects.AnswerID) string {
	return questionID.String() + "/" + answerID.String()
}

func cloneRecord(record *ports.QuestionRecord) *ports.QuestionRecord {
	out := *record
	out.Answers = append([]ports.AnswerRecord{}, record.Answers...)
	return &out
}
