package board

import (
	"context"
	"time"

	"stackit/domain/core/aggregates"
	"stackit/domain/events"
	pkgerrors "stackit/pkg/errors"

	"go.uber.org/zap"
)

// Refresh re-fetches the current question and merges the authority's answers
// into the board. Entries changed locally after the refresh started, or with a
// vote confirmation still in flight, keep their local values and pending
// answers stay at the end. A vote the authority never recorded is taken back. Failed fetches and invalid
// payloads leave the board untouched. It reports whether anything was merged.
func (b *Board) Refresh(ctx context.Context) (bool, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false, pkgerrors.NewUnavailableError("board")
	}
	if b.status != StatusReady || b.question == nil {
		b.mu.Unlock()
		return false, nil
	}
	epoch := b.epoch
	id := b.requestedID
	shown := b.question.ID().String()
	// votes still awaiting confirmation may not be in the authority's copy yet
	since := b.seq
	for key, seq := range b.confirming {
		if key.question == shown && seq <= since {
			since = seq - 1
		}
	}
	b.mu.Unlock()

	var fresh *aggregates.Question
	record, err := b.authority.FetchQuestion(ctx, id)
	if err == nil {
		fresh, err = questionFromRecord(record, id)
	}
	if err == nil {
		err = fresh.Validate(b.cfg)
	}
	if err != nil {
		b.logger.Debug("refresh ignored",
			zap.String("question_id", id.String()),
			zap.Error(err))
		b.metrics.RefreshCompleted("ignored")
		return false, nil
	}

	b.mu.Lock()
	if b.closed || b.epoch != epoch || b.status != StatusReady {
		b.mu.Unlock()
		b.metrics.RefreshCompleted("stale")
		return false, nil
	}
	confirmed := make(map[string]bool)
	for key := range b.confirmed {
		if key.question == shown {
			confirmed[key.answer] = true
		}
	}
	kept := b.question.Merge(fresh, since, confirmed)
	evts, listeners := b.collectLocked()
	evts = append(evts, events.NewQuestionRefreshed(id.String(), b.question.AnswerCount(), kept, time.Now()))
	b.mu.Unlock()

	b.metrics.RefreshCompleted("merged")
	b.emit(evts, listeners)
	return true, nil
}

func (b *Board) reconcile(interval time.Duration) {
	defer b.loops.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.lifetime.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(b.lifetime, b.cfg.LoadTimeout)
			if _, err := b.Refresh(ctx); err != nil && !pkgerrors.IsUnavailable(err) {
				b.logger.Warn("periodic refresh failed", zap.Error(err))
			}
			cancel()
		}
	}
}
