package ports

import (
	"context"

	"stackit/domain/core/valueobjects"
	"stackit/domain/events"
)

// QuestionRecord is the authority's representation of a question
type QuestionRecord struct {
	ID      valueobjects.QuestionID `json:"id"`
	Title   string                  `json:"title"`
	Body    string                  `json:"body"`
	Answers []AnswerRecord          `json:"answers"`
}

// AnswerRecord is the authority's representation of an answer
type AnswerRecord struct {
	ID          valueobjects.AnswerID `json:"id"`
	Text        string                `json:"text"`
	Votes       int                   `json:"votes"`
	VotedByUser bool                  `json:"votedByUser"`
}

// CreateAnswerRequest is the body sent when submitting an answer
type CreateAnswerRequest struct {
	Text string `json:"text"`
}

// Authority is the external system holding the durable copy of questions.
// This is a port in hexagonal architecture - the board doesn't know about the transport.
type Authority interface {
	// FetchQuestion retrieves a question with its answers
	FetchQuestion(ctx context.Context, id valueobjects.QuestionID) (*QuestionRecord, error)

	// CastVote records the caller's vote; the response body is ignored
	CastVote(ctx context.Context, questionID valueobjects.QuestionID, answerID valueobjects.AnswerID, credential string) error

	// CreateAnswer durably creates an answer and returns the confirmed record
	CreateAnswer(ctx context.Context, questionID valueobjects.QuestionID, text string, credential string) (*AnswerRecord, error)
}

// Identity tells the board whether the caller may mutate and which credential
// to attach to outbound requests
type Identity interface {
	IsAuthorized() bool
	Credential() string
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Metrics receives board counters. Implementations must be safe for concurrent use.
type Metrics interface {
	LoadCompleted(outcome string)
	VoteCast()
	VoteConfirmFailed()
	SubmissionSettled(outcome string)
	RefreshCompleted(outcome string)
}

// NoopMetrics discards every observation
type NoopMetrics struct{}

func (NoopMetrics) LoadCompleted(string)     {}
func (NoopMetrics) VoteCast()                {}
func (NoopMetrics) VoteConfirmFailed()       {}
func (NoopMetrics) SubmissionSettled(string) {}
func (NoopMetrics) RefreshCompleted(string)  {}
