package events

import (
	"time"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// Event types raised by the answer board
const (
	TypeQuestionLoaded    = "question.loaded"
	TypeQuestionFallback  = "question.fallback"
	TypeQuestionRefreshed = "question.refreshed"
	TypeAnswerVoted       = "answer.voted"
	TypeVoteConfirmFailed = "answer.vote_confirm_failed"
	TypeAnswerSubmitted   = "answer.submitted"
	TypeAnswerConfirmed   = "answer.confirmed"
	TypeAnswerRolledBack  = "answer.rolled_back"
)

func newBase(questionID, eventType string, timestamp time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: questionID,
		EventType:   eventType,
		Timestamp:   timestamp,
		Version:     1,
	}
}

// Question Events

// QuestionLoaded is raised when an authority payload is shown
type QuestionLoaded struct {
	BaseEvent
	QuestionID  string `json:"question_id"`
	AnswerCount int    `json:"answer_count"`
	Epoch       uint64 `json:"epoch"`
}

// NewQuestionLoaded creates a QuestionLoaded event
func NewQuestionLoaded(questionID string, answerCount int, epoch uint64, timestamp time.Time) QuestionLoaded {
	return QuestionLoaded{
		BaseEvent:   newBase(questionID, TypeQuestionLoaded, timestamp),
		QuestionID:  questionID,
		AnswerCount: answerCount,
		Epoch:       epoch,
	}
}

// QuestionFallback is raised when the built-in sample replaces a failed load
type QuestionFallback struct {
	BaseEvent
	RequestedID string `json:"requested_id"`
	Reason      string `json:"reason"`
	Epoch       uint64 `json:"epoch"`
}

// NewQuestionFallback creates a QuestionFallback event
func NewQuestionFallback(requestedID, reason string, epoch uint64, timestamp time.Time) QuestionFallback {
	return QuestionFallback{
		BaseEvent:   newBase(requestedID, TypeQuestionFallback, timestamp),
		RequestedID: requestedID,
		Reason:      reason,
		Epoch:       epoch,
	}
}

// QuestionRefreshed is raised when a reconciliation pass merged authority data
type QuestionRefreshed struct {
	BaseEvent
	QuestionID  string `json:"question_id"`
	AnswerCount int    `json:"answer_count"`
	Kept        int    `json:"kept_local"`
}

// NewQuestionRefreshed creates a QuestionRefreshed event
func NewQuestionRefreshed(questionID string, answerCount, kept int, timestamp time.Time) QuestionRefreshed {
	return QuestionRefreshed{
		BaseEvent:   newBase(questionID, TypeQuestionRefreshed, timestamp),
		QuestionID:  questionID,
		AnswerCount: answerCount,
		Kept:        kept,
	}
}

// Answer Events

// AnswerVoted is raised when a vote is applied locally
type AnswerVoted struct {
	BaseEvent
	QuestionID string `json:"question_id"`
	AnswerID   string `json:"answer_id"`
	Votes      int    `json:"votes"`
}

// NewAnswerVoted creates an AnswerVoted event
func NewAnswerVoted(questionID, answerID string, votes int, timestamp time.Time) AnswerVoted {
	return AnswerVoted{
		BaseEvent:  newBase(questionID, TypeAnswerVoted, timestamp),
		QuestionID: questionID,
		AnswerID:   answerID,
		Votes:      votes,
	}
}

// VoteConfirmFailed is raised when the authority did not acknowledge a vote.
// The local vote stays applied.
type VoteConfirmFailed struct {
	BaseEvent
	QuestionID string `json:"question_id"`
	AnswerID   string `json:"answer_id"`
	Reason     string `json:"reason"`
}

// NewVoteConfirmFailed creates a VoteConfirmFailed event
func NewVoteConfirmFailed(questionID, answerID, reason string, timestamp time.Time) VoteConfirmFailed {
	return VoteConfirmFailed{
		BaseEvent:  newBase(questionID, TypeVoteConfirmFailed, timestamp),
		QuestionID: questionID,
		AnswerID:   answerID,
		Reason:     reason,
	}
}

// AnswerSubmitted is raised when a pending answer is inserted
type AnswerSubmitted struct {
	BaseEvent
	QuestionID string `json:"question_id"`
	LocalID    string `json:"local_id"`
}

// NewAnswerSubmitted creates an AnswerSubmitted event
func NewAnswerSubmitted(questionID, localID string, timestamp time.Time) AnswerSubmitted {
	return AnswerSubmitted{
		BaseEvent:  newBase(questionID, TypeAnswerSubmitted, timestamp),
		QuestionID: questionID,
		LocalID:    localID,
	}
}

// AnswerConfirmed is raised when a pending answer is replaced by the authority's record
type AnswerConfirmed struct {
	BaseEvent
	QuestionID string `json:"question_id"`
	LocalID    string `json:"local_id"`
	AnswerID   string `json:"answer_id"`
}

// NewAnswerConfirmed creates an AnswerConfirmed event
func NewAnswerConfirmed(questionID, localID, answerID string, timestamp time.Time) AnswerConfirmed {
	return AnswerConfirmed{
		BaseEvent:  newBase(questionID, TypeAnswerConfirmed, timestamp),
		QuestionID: questionID,
		LocalID:    localID,
		AnswerID:   answerID,
	}
}

// AnswerRolledBack is raised when a pending answer is removed after a failed submission
type AnswerRolledBack struct {
	BaseEvent
	QuestionID string `json:"question_id"`
	LocalID    string `json:"local_id"`
	Reason     string `json:"reason"`
}

// NewAnswerRolledBack creates an AnswerRolledBack event
func NewAnswerRolledBack(questionID, localID, reason string, timestamp time.Time) AnswerRolledBack {
	return AnswerRolledBack{
		BaseEvent:  newBase(questionID, TypeAnswerRolledBack, timestamp),
		QuestionID: questionID,
		LocalID:    localID,
		Reason:     reason,
	}
}
