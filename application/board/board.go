// Package board holds the answer board: one question's answers kept consistent
// with the authority under optimistic voting and answer submission.
package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"stackit/application/ports"
	"stackit/domain/config"
	"stackit/domain/core/aggregates"
	"stackit/domain/core/entities"
	"stackit/domain/core/valueobjects"
	"stackit/domain/events"
	pkgerrors "stackit/pkg/errors"

	"go.uber.org/zap"
)

// Status describes what the board is currently showing
type Status string

const (
	StatusIdle     Status = "idle"
	StatusLoading  Status = "loading"
	StatusReady    Status = "ready"
	StatusFallback Status = "fallback"
	StatusClosed   Status = "closed"
)

// Listener receives board events. It is called without the board lock held.
type Listener func(event events.DomainEvent)

// Options configures a Board
type Options struct {
	Config            *config.DomainConfig
	Logger            *zap.Logger
	Publisher         ports.EventPublisher
	Metrics           ports.Metrics
	ReconcileInterval time.Duration
}

// Board is the state container for one question page
type Board struct {
	authority ports.Authority
	identity  ports.Identity
	cfg       *config.DomainConfig
	logger    *zap.Logger
	publisher ports.EventPublisher
	metrics   ports.Metrics

	mu          sync.Mutex
	status      Status
	question    *aggregates.Question
	requestedID valueobjects.QuestionID
	loadErr     error
	draft       string
	notices     []Notice
	listeners   map[uint64]Listener
	nextListen  uint64

	// epoch identifies the latest load; seq counts local mutations
	epoch      uint64
	seq        uint64
	cancelLoad context.CancelFunc

	// confirming holds the seq of votes the authority has not answered yet;
	// confirmed holds votes it acknowledged
	confirming map[voteKey]uint64
	confirmed  map[voteKey]bool

	lifetime context.Context
	shutdown context.CancelFunc
	closed   bool

	tasks sync.WaitGroup
	loops sync.WaitGroup
}

type voteKey struct {
	question string
	answer   string
}

// New creates a board. A non-zero ReconcileInterval starts a background
// refresh loop that runs until Close.
func New(authority ports.Authority, identity ports.Identity, opts Options) *Board {
	if opts.Config == nil {
		opts.Config = config.DefaultDomainConfig()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = ports.NoopMetrics{}
	}

	lifetime, shutdown := context.WithCancel(context.Background())
	b := &Board{
		authority:  authority,
		identity:   identity,
		cfg:        opts.Config,
		logger:     opts.Logger,
		publisher:  opts.Publisher,
		metrics:    opts.Metrics,
		status:     StatusIdle,
		listeners:  make(map[uint64]Listener),
		confirming: make(map[voteKey]uint64),
		confirmed:  make(map[voteKey]bool),
		lifetime:   lifetime,
		shutdown:   shutdown,
	}

	if opts.ReconcileInterval > 0 {
		b.loops.Add(1)
		go b.reconcile(opts.ReconcileInterval)
	}

	return b
}

// Load requests a question from the authority, superseding any load still in
// flight. Only the latest load may change state; the result is applied
// asynchronously.
func (b *Board) Load(questionID string) error {
	id, err := valueobjects.NewQuestionID(questionID)
	if err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return pkgerrors.NewUnavailableError("board")
	}
	if b.cancelLoad != nil {
		b.cancelLoad()
	}
	b.epoch++
	epoch := b.epoch
	ctx, cancel := context.WithTimeout(b.lifetime, b.cfg.LoadTimeout)
	b.cancelLoad = cancel
	b.status = StatusLoading
	b.requestedID = id
	b.loadErr = nil
	b.mu.Unlock()

	b.logger.Debug("loading question",
		zap.String("question_id", id.String()),
		zap.Uint64("epoch", epoch))

	b.tasks.Add(1)
	go b.runLoad(ctx, cancel, epoch, id)
	return nil
}

func (b *Board) runLoad(ctx context.Context, cancel context.CancelFunc, epoch uint64, id valueobjects.QuestionID) {
	defer b.tasks.Done()
	defer cancel()

	record, err := b.authority.FetchQuestion(ctx, id)
	if errors.Is(ctx.Err(), context.Canceled) {
		b.logger.Debug("load superseded",
			zap.String("question_id", id.String()),
			zap.Uint64("epoch", epoch))
		b.metrics.LoadCompleted("cancelled")
		return
	}

	var question *aggregates.Question
	if err == nil {
		question, err = questionFromRecord(record, id)
	}
	if err == nil {
		err = question.Validate(b.cfg)
	}

	b.mu.Lock()
	if b.closed || b.epoch != epoch {
		b.mu.Unlock()
		b.metrics.LoadCompleted("stale")
		return
	}

	var evts []events.DomainEvent
	if err != nil {
		b.question = aggregates.SampleQuestion()
		b.status = StatusFallback
		b.loadErr = pkgerrors.NewLoadFailedError(id.String(), err)
		evts = append(evts, events.NewQuestionFallback(id.String(), err.Error(), epoch, time.Now()))
	} else {
		b.question = question
		b.status = StatusReady
		b.loadErr = nil
		evts = append(evts, events.NewQuestionLoaded(id.String(), question.AnswerCount(), epoch, time.Now()))
	}
	listeners := b.listenersLocked()
	b.mu.Unlock()

	if err != nil {
		b.logger.Warn("question load failed, showing sample",
			zap.String("question_id", id.String()),
			zap.Uint64("epoch", epoch),
			zap.Error(err))
		b.metrics.LoadCompleted("fallback")
	} else {
		b.logger.Debug("question loaded",
			zap.String("question_id", id.String()),
			zap.Uint64("epoch", epoch))
		b.metrics.LoadCompleted("ready")
	}

	b.emit(evts, listeners)
}

// Vote casts the caller's vote on an answer. The local count changes before
// Vote returns; the authority is told in the background and a failed
// confirmation is never rolled back.
func (b *Board) Vote(answerID string) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return pkgerrors.NewUnavailableError("board")
	}
	if !b.identity.IsAuthorized() {
		b.mu.Unlock()
		return pkgerrors.NewUnauthorizedError("sign in to vote")
	}
	if b.question == nil {
		b.mu.Unlock()
		return pkgerrors.NewNotFoundError("question")
	}

	b.seq++
	changed, err := b.question.Vote(answerID, b.seq)
	if err != nil || !changed {
		b.mu.Unlock()
		return err
	}
	key := voteKey{question: b.question.ID().String(), answer: answerID}
	b.confirming[key] = b.seq
	// the authority is addressed by the route id even while the sample is shown
	questionID := b.requestedID
	credential := b.identity.Credential()
	evts, listeners := b.collectLocked()
	b.mu.Unlock()

	b.metrics.VoteCast()
	b.emit(evts, listeners)

	b.tasks.Add(1)
	go b.confirmVote(key, questionID, valueobjects.MustAnswerID(answerID), credential)
	return nil
}

func (b *Board) confirmVote(key voteKey, questionID valueobjects.QuestionID, answerID valueobjects.AnswerID, credential string) {
	defer b.tasks.Done()

	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.ConfirmTimeout)
	defer cancel()

	err := b.authority.CastVote(ctx, questionID, answerID, credential)

	b.mu.Lock()
	delete(b.confirming, key)
	if err == nil {
		b.confirmed[key] = true
		b.mu.Unlock()
		return
	}
	listeners := b.listenersLocked()
	b.mu.Unlock()

	b.logger.Warn("vote confirmation failed",
		zap.String("question_id", questionID.String()),
		zap.String("answer_id", answerID.String()),
		zap.Error(err))
	b.metrics.VoteConfirmFailed()
	b.emit([]events.DomainEvent{
		events.NewVoteConfirmFailed(questionID.String(), answerID.String(), err.Error(), time.Now()),
	}, listeners)
}

// SubmitAnswer appends the answer optimistically and clears the draft, then
// asks the authority to create it. The returned Submission settles once the
// entry has been confirmed or rolled back.
func (b *Board) SubmitAnswer(text string) (*Submission, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, pkgerrors.NewUnavailableError("board")
	}
	if !b.identity.IsAuthorized() {
		b.mu.Unlock()
		return nil, pkgerrors.NewUnauthorizedError("sign in to submit your answer")
	}
	body, err := valueobjects.NewAnswerTextWithConfig(text, b.cfg)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	if b.question == nil {
		b.mu.Unlock()
		return nil, pkgerrors.NewNotFoundError("question")
	}

	b.seq++
	pending := b.question.AppendPending(body, b.seq)
	local, _ := pending.LocalID()
	b.draft = ""
	questionID := b.requestedID
	credential := b.identity.Credential()
	evts, listeners := b.collectLocked()
	b.mu.Unlock()

	b.logger.Debug("answer inserted optimistically",
		zap.String("question_id", questionID.String()),
		zap.String("local_id", local.String()))
	b.emit(evts, listeners)

	sub := newSubmission(local)
	b.tasks.Add(1)
	go b.confirmSubmission(sub, questionID, body, credential)
	return sub, nil
}

func (b *Board) confirmSubmission(sub *Submission, questionID valueobjects.QuestionID, body valueobjects.AnswerText, credential string) {
	defer b.tasks.Done()

	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.ConfirmTimeout)
	defer cancel()

	var confirmed *entities.Answer
	record, err := b.authority.CreateAnswer(ctx, questionID, body.String(), credential)
	if err == nil {
		confirmed, err = answerFromRecord(record)
	}

	b.mu.Lock()
	if err == nil && b.question != nil {
		b.seq++
		b.question.Confirm(sub.local, confirmed, b.seq)
	}
	if err != nil {
		failure := pkgerrors.NewSubmissionFailedError(err)
		if b.question != nil {
			b.question.Rollback(sub.local, err.Error())
		}
		b.notices = append(b.notices, Notice{
			Kind:    NoticeSubmissionFailed,
			LocalID: sub.local.String(),
			Message: failure.Message,
			At:      time.Now(),
		})
		err = failure
	}
	evts, listeners := b.collectLocked()
	b.mu.Unlock()

	if err != nil {
		b.logger.Warn("answer submission failed, rolled back",
			zap.String("question_id", questionID.String()),
			zap.String("local_id", sub.local.String()),
			zap.Error(errors.Unwrap(err)))
		b.metrics.SubmissionSettled("rolled_back")
	} else {
		b.metrics.SubmissionSettled("confirmed")
	}

	b.emit(evts, listeners)
	sub.settle(confirmed, err)
}

// SetDraft replaces the input buffer
func (b *Board) SetDraft(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.draft = text
}

// Draft returns the input buffer
func (b *Board) Draft() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.draft
}

// Subscribe registers fn for every board event and returns a function that
// removes it
func (b *Board) Subscribe(fn Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextListen++
	id := b.nextListen
	b.listeners[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

// DrainNotices returns and clears the user-visible failure notices
func (b *Board) DrainNotices() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.notices
	b.notices = nil
	return out
}

// Close cancels the in-flight load and stops the refresh loop. Confirmations
// already dispatched still run to completion.
func (b *Board) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.status = StatusClosed
	if b.cancelLoad != nil {
		b.cancelLoad()
	}
	b.mu.Unlock()

	b.shutdown()
	b.loops.Wait()
	return nil
}

// Wait blocks until every load, confirmation and publish dispatched so far has finished
func (b *Board) Wait() {
	b.tasks.Wait()
}

// Done is closed once Close has been called
func (b *Board) Done() <-chan struct{} {
	return b.lifetime.Done()
}

// Closed reports whether Close has been called
func (b *Board) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Board) collectLocked() ([]events.DomainEvent, []Listener) {
	if b.question == nil {
		return nil, b.listenersLocked()
	}
	evts := b.question.GetUncommittedEvents()
	b.question.MarkEventsAsCommitted()
	return evts, b.listenersLocked()
}

func (b *Board) listenersLocked() []Listener {
	out := make([]Listener, 0, len(b.listeners))
	for _, fn := range b.listeners {
		out = append(out, fn)
	}
	return out
}

func (b *Board) emit(evts []events.DomainEvent, listeners []Listener) {
	if len(evts) == 0 {
		return
	}
	for _, event := range evts {
		for _, fn := range listeners {
			fn(event)
		}
	}

	if b.publisher == nil {
		return
	}
	b.tasks.Add(1)
	go func() {
		defer b.tasks.Done()
		ctx, cancel := context.WithTimeout(context.Background(), b.cfg.ConfirmTimeout)
		defer cancel()
		if err := b.publisher.PublishBatch(ctx, evts); err != nil {
			b.logger.Warn("failed to publish board events",
				zap.Int("count", len(evts)),
				zap.Error(err))
		}
	}()
}

func questionFromRecord(record *ports.QuestionRecord, requested valueobjects.QuestionID) (*aggregates.Question, error) {
	if record == nil {
		return nil, errors.New("empty question payload")
	}
	id := record.ID
	if id.IsZero() {
		id = requested
	}
	answers := make([]*entities.Answer, 0, len(record.Answers))
	for i := range record.Answers {
		a, err := answerFromRecord(&record.Answers[i])
		if err != nil {
			return nil, fmt.Errorf("answer %d: %w", i, err)
		}
		answers = append(answers, a)
	}
	return aggregates.NewQuestion(id, record.Title, record.Body, answers), nil
}

func answerFromRecord(record *ports.AnswerRecord) (*entities.Answer, error) {
	if record == nil {
		return nil, errors.New("empty answer payload")
	}
	return entities.ReconstructAnswer(record.ID, record.Text, record.Votes, record.VotedByUser)
}
